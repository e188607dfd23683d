// Package train runs the training loop: self-play between checkpoint
// policies, replay persistence and sampling, candidate optimization, and
// periodic evaluation with accept/reject checkpoint promotion.
package train

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"tengen/cluster"
	"tengen/game"
	"tengen/model"
	"tengen/policy"
	"tengen/replay"
	"tengen/selfplay"
)

// promoteThreshold is the win rate against the checkpoint a candidate must
// exceed to be promoted. Exactly reaching it is not enough.
const promoteThreshold = 0.55

// ShouldPromote reports whether a candidate with win rate wr against the
// checkpoint replaces it.
func ShouldPromote(wr float64) bool { return wr > promoteThreshold }

// WinRates holds the latest evaluation results. Values persist across
// iterations; when an evaluation exits early after a checkpoint loss, the
// random and greedy figures keep their previous (stale) values.
type WinRates struct {
	Checkpoint float64
	Random     float64
	Greedy     float64
}

// Event summarizes one finished training iteration for live monitoring.
type Event struct {
	Iteration  int
	ReplayLen  int
	Metrics    model.Summary
	WinRates   WinRates
	Rejections int
}

// Config holds the trainer's hyperparameters. Validation happens in the
// config package; the trainer trusts its inputs.
type Config struct {
	Iterations   int
	Episodes     int
	Evaluations  int
	EvalInterval int
	BatchSize    int
	TrainSize    int
	ReplaySize   int

	// TempDecay scales the policies' temperature after every iteration,
	// floored at MinTemp. Zero disables the schedule.
	TempDecay float32
	MinTemp   float32

	EpisodesDir    string
	CheckpointPath string
	SaveDir        string

	Seed int64
}

// Trainer owns one training run over a worker group. The candidate and
// checkpoint models are shared by all workers; collective points keep their
// use in lockstep.
type Trainer struct {
	cfg   Config
	group *cluster.Group

	curr       model.Model
	checkpoint model.Model

	currPi       policy.Policy
	checkpointPi policy.Policy
	randomPi     policy.Policy
	greedyPi     policy.Policy

	newEnv func() game.Environment

	// Progress, when set, receives an Event from rank 0 after every
	// iteration.
	Progress func(Event)
}

func New(cfg Config, group *cluster.Group, curr, checkpoint model.Model, currPi, checkpointPi policy.Policy, newEnv func() game.Environment) *Trainer {
	return &Trainer{
		cfg:          cfg,
		group:        group,
		curr:         curr,
		checkpoint:   checkpoint,
		currPi:       currPi,
		checkpointPi: checkpointPi,
		randomPi:     policy.NewRandom(),
		greedyPi:     policy.NewGreedy(newEnv().Rules()),
		newEnv:       newEnv,
	}
}

// Run drives the full training loop to completion across the worker group.
func (t *Trainer) Run(ctx context.Context) error {
	stats, err := NewStatsWriter(t.cfg.SaveDir)
	if err != nil {
		return err
	}
	defer stats.Close()

	return t.group.Run(ctx, func(ctx context.Context, w *cluster.Worker) error {
		return t.runWorker(ctx, w, stats)
	})
}

func (t *Trainer) runWorker(ctx context.Context, w *cluster.Worker, stats *StatsWriter) error {
	env := t.newEnv()
	rng := rand.New(rand.NewSource(t.cfg.Seed + int64(w.Rank())))

	perWorker := t.cfg.ReplaySize / w.Size()
	if perWorker < 1 {
		perWorker = 1
	}
	buffer := replay.NewBuffer(perWorker)

	var winrates WinRates
	rejections := 0

	for iter := 0; iter < t.cfg.Iterations; iter++ {
		summary, replayLen, err := t.trainStep(ctx, w, env, buffer, rng, rejections)
		if err != nil {
			return fmt.Errorf("iteration %d: %w", iter, err)
		}

		if (iter+1)%t.cfg.EvalInterval == 0 {
			accepted, err := t.evaluate(ctx, w, env, rng, &winrates)
			if err != nil {
				return fmt.Errorf("iteration %d evaluate: %w", iter, err)
			}
			if accepted {
				buffer.Clear()
				rejections = 0
				if w.Rank() == 0 {
					log.Debug().Msg("accepted new checkpoint, cleared replay data")
				}
			} else {
				rejections++
				if w.Rank() == 0 {
					log.Debug().Int("rejections", rejections).Msg("continuing to train candidate")
				}
			}
		}

		if w.Rank() == 0 {
			if err := stats.WriteRow(iter, replayLen, summary, winrates); err != nil {
				return err
			}
			if t.Progress != nil {
				t.Progress(Event{
					Iteration:  iter,
					ReplayLen:  replayLen,
					Metrics:    summary,
					WinRates:   winrates,
					Rejections: rejections,
				})
			}
		}

		// The policies are shared, so one rank applies the decay and the
		// barrier publishes it before the next round of self-play.
		if t.cfg.TempDecay > 0 {
			if w.Rank() == 0 {
				decayTemp(t.currPi, t.cfg.TempDecay, t.cfg.MinTemp)
				decayTemp(t.checkpointPi, t.cfg.TempDecay, t.cfg.MinTemp)
			}
			if err := w.Barrier(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// decayTemp applies one schedule step with a floor.
func decayTemp(pi policy.Policy, decay, min float32) {
	pi.DecayTemp(decay)
	if pi.Temp() < min {
		pi.SetTemp(min)
	}
}

// trainStep plays one round of checkpoint self-play, persists and samples
// replay data, and runs one optimization pass on the candidate. Episode
// count doubles per consecutive rejection to diversify data when stuck.
func (t *Trainer) trainStep(ctx context.Context, w *cluster.Worker, env game.Environment, buffer *replay.Buffer, rng *rand.Rand, rejections int) (model.Summary, int, error) {
	episodes := (1 << rejections) * t.cfg.Episodes

	if w.Rank() == 0 {
		log.Debug().Int("episodes", episodes).Msgf("self-playing %s V %s", t.checkpointPi.Name(), t.checkpointPi.Name())
	}
	_, trajs, err := selfplay.ParallelPlay(ctx, w, env, t.checkpointPi, t.checkpointPi, true, episodes, rng, nil)
	if err != nil {
		return model.Summary{}, 0, err
	}
	buffer.Extend(trajs)

	if err := replay.SaveShard(t.cfg.EpisodesDir, w.Rank(), buffer.Trajectories()); err != nil {
		return model.Summary{}, 0, err
	}
	if w.Rank() == 0 && len(trajs) > 0 {
		rows := replay.ArchiveRows(trajs, env.State().Size())
		path, err := replay.WriteArchiveParquetAtomic(filepath.Join(t.cfg.SaveDir, "archive"), rows)
		if err != nil {
			return model.Summary{}, 0, fmt.Errorf("archive episodes: %w", err)
		}
		log.Debug().Str("path", path).Int("rows", len(rows)).Msg("archived episodes")
	}
	if err := w.Barrier(ctx); err != nil {
		return model.Summary{}, 0, err
	}

	batches, replayLen, err := replay.SampleDir(ctx, w, t.cfg.EpisodesDir, t.cfg.TrainSize, t.cfg.BatchSize, rng)
	if err != nil {
		return model.Summary{}, 0, err
	}

	if w.Rank() == 0 {
		log.Debug().Int("batches", len(batches)).Msg("optimizing")
	}

	// The trainer service takes one pass at a time; the turn token
	// serializes the workers' passes against the shared candidate.
	var summary model.Summary
	err = w.InTurn(ctx, func() error {
		var err error
		summary, err = t.curr.Optimize(ctx, batches)
		return err
	})
	if err != nil {
		return model.Summary{}, 0, err
	}

	summary, err = t.reduceSummary(ctx, w, summary)
	if err != nil {
		return model.Summary{}, 0, err
	}
	if w.Rank() == 0 {
		log.Debug().Stringer("metrics", summary).Msg("optimized")
	}
	return summary, replayLen, nil
}

// reduceSummary averages the optimization metrics across the group.
func (t *Trainer) reduceSummary(ctx context.Context, w *cluster.Worker, s model.Summary) (model.Summary, error) {
	size := float64(w.Size())
	fields := []*float64{&s.CritAcc, &s.CritLoss, &s.ActAcc, &s.ActLoss}
	for _, f := range fields {
		sum, err := w.AllReduceSum(ctx, *f)
		if err != nil {
			return model.Summary{}, err
		}
		*f = sum / size
	}
	return s, nil
}

// evaluate pits the candidate against the checkpoint and the fixed
// baselines. Promotion happens iff the candidate beats the checkpoint with
// a win rate above the threshold; on a loss the remaining opponents are
// skipped, leaving their win-rate figures stale.
func (t *Trainer) evaluate(ctx context.Context, w *cluster.Worker, env game.Environment, rng *rand.Rand, winrates *WinRates) (bool, error) {
	opponents := []struct {
		pi   policy.Policy
		slot *float64
	}{
		{t.checkpointPi, &winrates.Checkpoint},
		{t.randomPi, &winrates.Random},
		{t.greedyPi, &winrates.Greedy},
	}

	accepted := false
	for i, opp := range opponents {
		if w.Rank() == 0 {
			log.Debug().Msgf("pitting %s V %s", t.currPi.Name(), opp.pi.Name())
		}
		wr, _, err := selfplay.ParallelPlay(ctx, w, env, t.currPi, opp.pi, false, t.cfg.Evaluations, rng, nil)
		if err != nil {
			return false, err
		}
		*opp.slot = wr

		if i == 0 {
			if !ShouldPromote(wr) {
				break
			}
			if err := t.promote(ctx, w); err != nil {
				return false, err
			}
			accepted = true
		}
	}
	return accepted, nil
}

// promote overwrites the checkpoint with the candidate's current weights.
// The models are shared across workers, so rank 0 performs the copy and the
// barrier keeps everyone in lockstep around it.
func (t *Trainer) promote(ctx context.Context, w *cluster.Worker) error {
	if w.Rank() == 0 {
		if err := t.curr.SaveCheckpoint(t.cfg.CheckpointPath); err != nil {
			return fmt.Errorf("save checkpoint: %w", err)
		}
		if err := t.checkpoint.LoadCheckpoint(t.cfg.CheckpointPath); err != nil {
			return fmt.Errorf("load checkpoint: %w", err)
		}
	}
	return w.Barrier(ctx)
}

// elapsed formats a duration the way the stats table shows it.
func elapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	return fmt.Sprintf("%d:%02d:%02d", h, m, d/time.Second)
}
