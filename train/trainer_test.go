package train

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"tengen/cluster"
	"tengen/game"
	"tengen/minigo"
	"tengen/model"
	"tengen/montecarlo"
	"tengen/policy"
	"tengen/replay"
)

func TestShouldPromoteBoundary(t *testing.T) {
	require.False(t, ShouldPromote(0.54))
	require.False(t, ShouldPromote(0.55), "exactly the threshold is not enough")
	require.True(t, ShouldPromote(0.56))
	require.True(t, ShouldPromote(1))
	require.False(t, ShouldPromote(0))
}

// fakeModel counts optimizer and checkpoint calls; its forward passes return
// zeros.
type fakeModel struct {
	name      string
	optimized atomic.Int64
	batches   atomic.Int64
	saved     atomic.Int64
	loaded    atomic.Int64
}

func (m *fakeModel) Name() string { return m.name }

func (m *fakeModel) ValueFunc() montecarlo.ValueFunc {
	return func(states []game.State) ([]float32, error) {
		return make([]float32, len(states)), nil
	}
}

func (m *fakeModel) PolicyFunc() montecarlo.PolicyFunc {
	return func(states []game.State) ([][]float32, error) {
		out := make([][]float32, len(states))
		for i, s := range states {
			out[i] = make([]float32, s.ActionSize())
		}
		return out, nil
	}
}

func (m *fakeModel) Optimize(_ context.Context, batches []replay.Batch) (model.Summary, error) {
	m.optimized.Add(1)
	m.batches.Add(int64(len(batches)))
	return model.Summary{CritAcc: 0.5, CritLoss: 1, ActAcc: 0.25, ActLoss: 2}, nil
}

func (m *fakeModel) SaveCheckpoint(path string) error {
	m.saved.Add(1)
	return os.WriteFile(path, []byte(m.name), 0o644)
}

func (m *fakeModel) LoadCheckpoint(string) error {
	m.loaded.Add(1)
	return nil
}

func TestTrainerSingleIteration(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Iterations:   1,
		Episodes:     4,
		Evaluations:  2,
		EvalInterval: 2, // no evaluation within a single iteration
		BatchSize:    8,
		TrainSize:    32,
		ReplaySize:   1024,

		EpisodesDir:    filepath.Join(dir, "episodes"),
		CheckpointPath: filepath.Join(dir, "checkpoint.bin"),
		SaveDir:        dir,

		Seed: 1,
	}
	require.NoError(t, os.MkdirAll(cfg.EpisodesDir, 0o755))

	curr := &fakeModel{name: "curr"}
	checkpoint := &fakeModel{name: "checkpoint"}
	newEnv := func() game.Environment { return minigo.NewEnv(5) }

	trainer := New(cfg, cluster.NewGroup(1), curr, checkpoint,
		policy.NewRandom(), policy.NewRandom(), newEnv)

	var events []Event
	trainer.Progress = func(e Event) { events = append(events, e) }

	require.NoError(t, trainer.Run(context.Background()))

	// One round of self-play leaves exactly one shard, and the reported
	// replay length is the number of transitions it holds.
	entries, err := os.ReadDir(cfg.EpisodesDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	trajs, err := replay.LoadAll(cfg.EpisodesDir)
	require.NoError(t, err)
	require.Len(t, trajs, cfg.Episodes)

	require.Len(t, events, 1)
	e := events[0]
	require.Equal(t, 0, e.Iteration)
	require.Equal(t, len(replay.Flatten(trajs)), e.ReplayLen)
	require.Zero(t, e.Rejections)
	require.Zero(t, e.WinRates.Checkpoint)

	// One optimization pass on the candidate, none on the checkpoint, no
	// promotion traffic.
	require.EqualValues(t, 1, curr.optimized.Load())
	require.Positive(t, curr.batches.Load())
	require.Zero(t, checkpoint.optimized.Load())
	require.Zero(t, curr.saved.Load())
	require.Zero(t, checkpoint.loaded.Load())

	// Metrics come back untouched by the single-worker reduction.
	require.InDelta(t, 0.5, e.Metrics.CritAcc, 1e-9)
	require.InDelta(t, 2, e.Metrics.ActLoss, 1e-9)

	// The iteration's games are also exported to the parquet archive.
	archiveDir := filepath.Join(dir, "archive")
	archives, err := filepath.Glob(filepath.Join(archiveDir, "*.parquet"))
	require.NoError(t, err)
	require.Len(t, archives, 1)

	rows, err := replay.ReadArchiveParquet(archives[0])
	require.NoError(t, err)
	require.Len(t, rows, e.ReplayLen)
	require.EqualValues(t, 5, rows[0].BoardSize)
}

func TestTrainerDecaysTemperaturePerIteration(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Iterations:   2,
		Episodes:     1,
		Evaluations:  1,
		EvalInterval: 5, // no evaluation in this run
		BatchSize:    8,
		TrainSize:    8,
		ReplaySize:   1024,
		TempDecay:    0.5,
		MinTemp:      0.4,

		EpisodesDir:    filepath.Join(dir, "episodes"),
		CheckpointPath: filepath.Join(dir, "checkpoint.bin"),
		SaveDir:        dir,

		Seed: 2,
	}
	require.NoError(t, os.MkdirAll(cfg.EpisodesDir, 0o755))

	zeroVals := func(states []game.State) ([]float32, error) {
		return make([]float32, len(states)), nil
	}
	currPi := policy.NewValue("curr", zeroVals, 0, 1, 100)
	checkpointPi := policy.NewValue("checkpoint", zeroVals, 0, 1, 100)

	trainer := New(cfg, cluster.NewGroup(1), &fakeModel{name: "curr"}, &fakeModel{name: "checkpoint"},
		currPi, checkpointPi, func() game.Environment { return minigo.NewEnv(3) })

	require.NoError(t, trainer.Run(context.Background()))

	// 1 -> 0.5 after the first iteration, then 0.25 floors at MinTemp.
	require.InDelta(t, 0.4, float64(currPi.Temp()), 1e-6)
	require.InDelta(t, 0.4, float64(checkpointPi.Temp()), 1e-6)
}

func TestTrainerEvaluatesAndRejects(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Iterations:   2,
		Episodes:     2,
		Evaluations:  2,
		EvalInterval: 1,
		BatchSize:    8,
		TrainSize:    16,
		ReplaySize:   1024,

		EpisodesDir:    filepath.Join(dir, "episodes"),
		CheckpointPath: filepath.Join(dir, "checkpoint.bin"),
		SaveDir:        dir,

		Seed: 3,
	}
	require.NoError(t, os.MkdirAll(cfg.EpisodesDir, 0o755))

	curr := &fakeModel{name: "curr"}
	checkpoint := &fakeModel{name: "checkpoint"}
	newEnv := func() game.Environment { return minigo.NewEnv(3) }

	trainer := New(cfg, cluster.NewGroup(1), curr, checkpoint,
		policy.NewRandom(), policy.NewRandom(), newEnv)

	var events []Event
	trainer.Progress = func(e Event) { events = append(events, e) }

	require.NoError(t, trainer.Run(context.Background()))
	require.Len(t, events, 2)

	for i, e := range events {
		require.Equal(t, i, e.Iteration)
		// Every iteration evaluated against the checkpoint, so the win rate
		// is a real figure, not the zero default.
		require.GreaterOrEqual(t, e.WinRates.Checkpoint, 0.0)
		require.LessOrEqual(t, e.WinRates.Checkpoint, 1.0)
	}

	saved := curr.saved.Load()
	loaded := checkpoint.loaded.Load()
	require.Equal(t, saved, loaded, "every promotion saves the candidate and reloads the checkpoint")
}

func TestElapsedFormatsHoursMinutesSeconds(t *testing.T) {
	require.Equal(t, "0:00:00", elapsed(0))
	require.Equal(t, "0:01:05", elapsed(65e9))
	require.Equal(t, "2:30:09", elapsed(2*3600e9+30*60e9+9e9))
}
