package selfplay

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"tengen/cluster"
	"tengen/game"
	"tengen/minigo"
	"tengen/policy"
)

func TestPlayGameRecordsEveryMove(t *testing.T) {
	env := minigo.NewEnv(3)
	rng := rand.New(rand.NewSource(7))

	res, err := PlayGame(context.Background(), env, policy.NewRandom(), policy.NewRandom(), true, rng)
	require.NoError(t, err)

	require.True(t, env.Terminal())
	require.NotEmpty(t, res.Trajectory.GameID)
	require.Len(t, res.Trajectory.Transitions, res.Steps)
	require.Positive(t, res.Steps)

	last := res.Trajectory.Transitions[res.Steps-1]
	require.Equal(t, uint8(1), last.Terminal)
	for _, tr := range res.Trajectory.Transitions[:res.Steps-1] {
		require.Equal(t, uint8(0), tr.Terminal)
	}

	planeLen := env.State().ActionSize() - 1
	for _, tr := range res.Trajectory.Transitions {
		require.Len(t, tr.State, 6*planeLen)
		require.Len(t, tr.NextState, 6*planeLen)
		require.Len(t, tr.SearchPolicy, planeLen+1)
		require.Contains(t, []int32{-1, 0, 1}, tr.Outcome)
	}
}

func TestPlayGameOutcomesAlternateByMover(t *testing.T) {
	env := minigo.NewEnv(3)
	rng := rand.New(rand.NewSource(1))

	var res Result
	var err error
	for {
		res, err = PlayGame(context.Background(), env, policy.NewRandom(), policy.NewRandom(), true, rng)
		require.NoError(t, err)
		if res.Winner != 0 {
			break
		}
	}

	// Black moves on even transitions, so outcomes alternate sign.
	want := int32(res.Winner)
	for i, tr := range res.Trajectory.Transitions {
		if i%2 == 0 {
			require.Equal(t, want, tr.Outcome)
		} else {
			require.Equal(t, -want, tr.Outcome)
		}
	}
}

func TestPlayGameUnrecordedKeepsNoTrajectory(t *testing.T) {
	env := minigo.NewEnv(3)
	rng := rand.New(rand.NewSource(3))

	res, err := PlayGame(context.Background(), env, policy.NewRandom(), policy.NewRandom(), false, rng)
	require.NoError(t, err)
	require.Empty(t, res.Trajectory.GameID)
	require.Empty(t, res.Trajectory.Transitions)
	require.Positive(t, res.Steps)
}

func TestPlayGamesAlternatesColors(t *testing.T) {
	env := minigo.NewEnv(3)
	rng := rand.New(rand.NewSource(11))

	calls := 0
	winrate, steps, trajs, err := PlayGames(context.Background(), env, policy.NewRandom(), policy.NewRandom(), true, 4, rng, func(done, total int) {
		calls++
		require.Equal(t, calls, done)
		require.Equal(t, 4, total)
	})
	require.NoError(t, err)

	require.Equal(t, 4, calls)
	require.Len(t, steps, 4)
	require.Len(t, trajs, 4)
	require.GreaterOrEqual(t, winrate, 0.0)
	require.LessOrEqual(t, winrate, 1.0)
}

func TestPitObservesEveryPosition(t *testing.T) {
	env := minigo.NewEnv(3)
	rng := rand.New(rand.NewSource(5))

	observed := 0
	winner, err := Pit(context.Background(), env, policy.NewRandom(), policy.NewRandom(), rng, func(game.Environment) {
		observed++
	})
	require.NoError(t, err)

	// The same seed replays the same game: the observer sees the fresh board
	// plus one position per move.
	res, err := PlayGame(context.Background(), minigo.NewEnv(3), policy.NewRandom(), policy.NewRandom(), false, rand.New(rand.NewSource(5)))
	require.NoError(t, err)

	require.Equal(t, res.Steps+1, observed)
	require.Contains(t, []float32{-1, 0, 1}, winner)
}

func TestParallelPlaySingleWorker(t *testing.T) {
	g := cluster.NewGroup(1)
	err := g.Run(context.Background(), func(ctx context.Context, w *cluster.Worker) error {
		env := minigo.NewEnv(3)
		rng := rand.New(rand.NewSource(int64(w.Rank())))

		winrate, trajs, err := ParallelPlay(ctx, w, env, policy.NewRandom(), policy.NewRandom(), true, 3, rng, nil)
		require.NoError(t, err)
		require.Len(t, trajs, 3)
		require.GreaterOrEqual(t, winrate, 0.0)
		require.LessOrEqual(t, winrate, 1.0)
		return nil
	})
	require.NoError(t, err)
}

func TestParallelPlayReducesAcrossWorkers(t *testing.T) {
	const size = 3
	g := cluster.NewGroup(size)
	err := g.Run(context.Background(), func(ctx context.Context, w *cluster.Worker) error {
		env := minigo.NewEnv(3)
		rng := rand.New(rand.NewSource(int64(w.Rank())))

		// 4 requested over 3 workers rounds up to 2 each.
		winrate, trajs, err := ParallelPlay(ctx, w, env, policy.NewRandom(), policy.NewRandom(), true, 4, rng, nil)
		require.NoError(t, err)
		require.Len(t, trajs, 2)
		require.GreaterOrEqual(t, winrate, 0.0)
		require.LessOrEqual(t, winrate, 1.0)
		return nil
	})
	require.NoError(t, err)
}

func TestSampleActionRespectsMass(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	dist := []float32{0, 0.5, 0, 0.5}
	for i := 0; i < 100; i++ {
		a := sampleAction(dist, rng)
		require.Contains(t, []int{1, 3}, a)
	}

	require.Equal(t, 2, sampleAction([]float32{0, 0, 1, 0}, rng))
}
