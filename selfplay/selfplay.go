// Package selfplay drives games between two policies, records trajectories
// for the replay store and aggregates win-rate statistics across the worker
// group.
package selfplay

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tengen/cluster"
	"tengen/game"
	"tengen/policy"
	"tengen/replay"
)

// Result is the outcome of one finished game.
type Result struct {
	// Winner is +1 if black won, -1 if white won, 0 for a tie.
	Winner     float32
	Steps      int
	Trajectory replay.Trajectory
}

// PlayGame plays one game with black and white to completion. With record
// set, every move is captured as a transition; the per-mover outcome is
// filled in once the winner is known.
func PlayGame(ctx context.Context, env game.Environment, black, white policy.Policy, record bool, rng *rand.Rand) (Result, error) {
	return playGame(ctx, env, black, white, record, rng, nil)
}

func playGame(ctx context.Context, env game.Environment, black, white policy.Policy, record bool, rng *rand.Rand, observe func(env game.Environment)) (Result, error) {
	env.Reset()
	if observe != nil {
		observe(env)
	}

	var res Result
	if record {
		res.Trajectory.GameID = uuid.NewString()
	}

	// Index of each transition's mover, for outcome assignment at the end.
	var movers []int

	for step := 0; !env.Terminal(); step++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		mover := env.State().Turn()
		pi := black
		if mover != game.Black {
			pi = white
		}

		dist, err := pi.Evaluate(ctx, env, step)
		if err != nil {
			return Result{}, fmt.Errorf("evaluate %s at step %d: %w", pi.Name(), step, err)
		}
		action := sampleAction(dist, rng)

		var state game.State
		if record {
			state = env.CanonicalState()
		}

		_, reward, terminal, err := env.Step(action)
		if err != nil {
			return Result{}, fmt.Errorf("step %d: %w", step, err)
		}
		res.Steps++

		if record {
			next := env.CanonicalState()
			t := replay.Transition{
				State:        append([]float32(nil), state.Planes()...),
				Action:       int32(action),
				Reward:       reward,
				NextState:    append([]float32(nil), next.Planes()...),
				SearchPolicy: append([]float32(nil), dist...),
			}
			if terminal {
				t.Terminal = 1
			}
			res.Trajectory.Transitions = append(res.Trajectory.Transitions, t)
			movers = append(movers, mover)
		}
		if observe != nil {
			observe(env)
		}
	}

	res.Winner = env.Winner()
	for i := range res.Trajectory.Transitions {
		outcome := res.Winner
		if movers[i] != game.Black {
			outcome = -outcome
		}
		res.Trajectory.Transitions[i].Outcome = int32(outcome)
	}
	return res, nil
}

// sampleAction draws from the distribution; any residual probability mass
// from floating error falls to the last positive entry.
func sampleAction(dist []float32, rng *rand.Rand) int {
	r := rng.Float32()
	last := 0
	var cum float32
	for i, p := range dist {
		if p <= 0 {
			continue
		}
		last = i
		cum += p
		if r < cum {
			return i
		}
	}
	return last
}

// PlayGames plays episodes games between pi1 and pi2, alternating colors
// each episode. The returned win rate is pi1's, counting ties as half a
// win. progress, when non-nil, is called after every finished game.
func PlayGames(ctx context.Context, env game.Environment, pi1, pi2 policy.Policy, record bool, episodes int, rng *rand.Rand, progress func(done, total int)) (float64, []int, []replay.Trajectory, error) {
	var wins float64
	steps := make([]int, 0, episodes)
	var trajs []replay.Trajectory

	for ep := 0; ep < episodes; ep++ {
		black, white := pi1, pi2
		if ep%2 == 1 {
			black, white = pi2, pi1
		}

		res, err := PlayGame(ctx, env, black, white, record, rng)
		if err != nil {
			return 0, nil, nil, fmt.Errorf("episode %d: %w", ep, err)
		}

		switch {
		case res.Winner == 0:
			wins += 0.5
		case (res.Winner > 0) == (black == pi1):
			wins++
		}
		steps = append(steps, res.Steps)
		if record {
			trajs = append(trajs, res.Trajectory)
		}
		if progress != nil {
			progress(ep+1, episodes)
		}
	}

	winrate := wins / float64(episodes)
	return winrate, steps, trajs, nil
}

// Pit plays one game and calls observe after every position change, for
// interactive play.
func Pit(ctx context.Context, env game.Environment, black, white policy.Policy, rng *rand.Rand, observe func(env game.Environment)) (float32, error) {
	res, err := playGame(ctx, env, black, white, false, rng, observe)
	if err != nil {
		return 0, err
	}
	return res.Winner, nil
}

// ParallelPlay splits reqEpisodes over the worker group by ceiling division,
// plays each worker's share locally, then reduces win rate and timing
// statistics collectively. Trajectories stay local to the worker that
// played them. Progress reporting is enabled only for a single worker.
func ParallelPlay(ctx context.Context, w *cluster.Worker, env game.Environment, pi1, pi2 policy.Policy, record bool, reqEpisodes int, rng *rand.Rand, progress func(done, total int)) (float64, []replay.Trajectory, error) {
	workerEpisodes := int(math.Ceil(float64(reqEpisodes) / float64(w.Size())))
	episodes := workerEpisodes * w.Size()
	if w.Size() > 1 {
		progress = nil
	}

	start := time.Now()
	winrate, steps, trajs, err := PlayGames(ctx, env, pi1, pi2, record, workerEpisodes, rng, progress)
	if err != nil {
		return 0, nil, err
	}
	duration := time.Since(start).Seconds()

	totalSteps := 0
	for _, s := range steps {
		totalSteps += s
	}

	avgTime, err := w.AllReduceSum(ctx, duration/float64(workerEpisodes))
	if err != nil {
		return 0, nil, err
	}
	avgTime /= float64(w.Size())

	winrate, err = w.AllReduceSum(ctx, winrate)
	if err != nil {
		return 0, nil, err
	}
	winrate /= float64(w.Size())

	avgSteps, err := w.AllReduceSum(ctx, float64(totalSteps))
	if err != nil {
		return 0, nil, err
	}
	avgSteps /= float64(episodes)

	if w.Rank() == 0 {
		log.Debug().Msgf("%s V %s | %d GAMES, %.1f SEC/GAME, %.0f STEPS/GAME, %.1f%% WIN",
			pi1.Name(), pi2.Name(), episodes, avgTime, avgSteps, 100*winrate)
	}
	return winrate, trajs, nil
}
