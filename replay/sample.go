package replay

import (
	"context"
	"fmt"
	"math/rand"

	"tengen/cluster"
)

// Batch is one fixed-dtype training batch. All component slices have the
// same length; construction panics otherwise, since a disagreement is a
// programming error rather than a runtime condition.
type Batch struct {
	States       [][]float32
	Actions      []int32
	Rewards      []float32
	NextStates   [][]float32
	Terminals    []uint8
	Outcomes     []int32
	SearchPolicy [][]float32
}

func (b Batch) Len() int { return len(b.States) }

func makeBatch(trans []Transition) Batch {
	b := Batch{
		States:       make([][]float32, len(trans)),
		Actions:      make([]int32, len(trans)),
		Rewards:      make([]float32, len(trans)),
		NextStates:   make([][]float32, len(trans)),
		Terminals:    make([]uint8, len(trans)),
		Outcomes:     make([]int32, len(trans)),
		SearchPolicy: make([][]float32, len(trans)),
	}
	for i, t := range trans {
		b.States[i] = t.State
		b.Actions[i] = t.Action
		b.Rewards[i] = t.Reward
		b.NextStates[i] = t.NextState
		b.Terminals[i] = t.Terminal
		b.Outcomes[i] = t.Outcome
		b.SearchPolicy[i] = t.SearchPolicy
	}
	b.check()
	return b
}

func (b Batch) check() {
	n := len(b.States)
	if len(b.Actions) != n || len(b.Rewards) != n || len(b.NextStates) != n ||
		len(b.Terminals) != n || len(b.Outcomes) != n || len(b.SearchPolicy) != n {
		panic(fmt.Sprintf("replay: batch components disagree on length (states=%d actions=%d rewards=%d next=%d terminals=%d outcomes=%d policies=%d)",
			n, len(b.Actions), len(b.Rewards), len(b.NextStates), len(b.Terminals), len(b.Outcomes), len(b.SearchPolicy)))
	}
}

// SampleTransitions draws n transitions uniformly without replacement via a
// partial Fisher-Yates shuffle. The pool is reordered in place.
func SampleTransitions(pool []Transition, n int, rng *rand.Rand) []Transition {
	if n > len(pool) {
		n = len(pool)
	}
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}

// MakeBatches splits transitions into batches of batchSize; the final batch
// may be smaller. Fewer transitions than one batch yield exactly one batch
// of everything sampled.
func MakeBatches(trans []Transition, batchSize int) []Batch {
	if batchSize <= 0 || batchSize > len(trans) {
		batchSize = len(trans)
	}
	var batches []Batch
	for start := 0; start < len(trans); start += batchSize {
		end := start + batchSize
		if end > len(trans) {
			end = len(trans)
		}
		batches = append(batches, makeBatch(trans[start:end]))
	}
	return batches
}

// SampleDir implements the cross-worker sampling protocol: ranks take the
// shared replay pool one at a time in increasing rank order, so no two
// workers hold a fully materialized pool in memory simultaneously. Each
// turn loads the union of all on-disk shards, flattens it into transitions
// and samples min(requestSize, available) of them uniformly without
// replacement. Returns the batches plus the pool size available before
// sampling.
func SampleDir(ctx context.Context, w *cluster.Worker, dir string, requestSize, batchSize int, rng *rand.Rand) ([]Batch, int, error) {
	var sampled []Transition
	poolSize := 0

	err := w.InTurn(ctx, func() error {
		trajs, err := LoadAll(dir)
		if err != nil {
			return err
		}
		pool := Flatten(trajs)
		poolSize = len(pool)
		// Copy so the full pool's backing array can be collected before the
		// next rank takes its turn.
		sampled = append([]Transition(nil), SampleTransitions(pool, requestSize, rng)...)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	if len(sampled) == 0 {
		return nil, poolSize, nil
	}
	return MakeBatches(sampled, batchSize), poolSize, nil
}
