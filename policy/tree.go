package policy

import (
	"context"
	"fmt"

	"tengen/game"
	"tengen/montecarlo"
)

// Tree runs the full tree search and converts root visit counts into a
// distribution. Before tempSteps moves it plays greedily on the maximum
// visit count; afterwards probabilities are inverse-temperature-weighted
// visit counts.
type Tree struct {
	schedule
	name        string
	valueFn     montecarlo.ValueFunc
	policyFn    montecarlo.PolicyFunc
	numSearches int
}

func NewTree(name string, valueFn montecarlo.ValueFunc, policyFn montecarlo.PolicyFunc, numSearches int, temp float32, tempSteps int) *Tree {
	return &Tree{
		schedule:    schedule{temp: temp, tempSteps: tempSteps},
		name:        name,
		valueFn:     valueFn,
		policyFn:    policyFn,
		numSearches: numSearches,
	}
}

func (t *Tree) Name() string { return t.name }

func (t *Tree) String() string {
	return fmt.Sprintf("Tree[%dS %.2fT]-%s", t.numSearches, t.temp, t.name)
}

func (t *Tree) Evaluate(ctx context.Context, env game.Environment, step int) ([]float32, error) {
	visits, err := montecarlo.Search(ctx, env, t.numSearches, t.valueFn, t.policyFn)
	if err != nil {
		return nil, err
	}

	pi := make([]float32, len(visits))
	if step < t.tempSteps || t.temp <= 0 {
		max := 0
		for _, v := range visits {
			if v > max {
				max = v
			}
		}
		for i, v := range visits {
			if v == max && v > 0 {
				pi[i] = 1
			}
		}
	} else {
		for i, v := range visits {
			pi[i] = float32(v) / t.temp
		}
	}

	var sum float32
	for _, p := range pi {
		sum += p
	}
	if sum == 0 {
		// Too few searches to visit any child. Fall back to the valid mask.
		copy(pi, env.ValidMoves())
	}
	return normalize(pi), nil
}
