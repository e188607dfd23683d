package montecarlo

import (
	"context"
	"fmt"
	"math"

	"tengen/game"
)

// DefaultCpuct is the PUCT exploration constant used by Search.
const DefaultCpuct = float32(1.0)

// Search runs numSearches MCTS iterations from the environment's current
// position and returns the root's per-action visit counts. Callers convert
// these to a move distribution; the tree itself is discarded.
//
// Per iteration: select by UCB while the node has been visited and is not
// terminal; a terminal leaf backs up a null signal; otherwise the leaf value
// comes from valueFn squashed through tanh and the prior from policyFn
// masked to the leaf's valid moves, and the negated value is backed up.
func Search(ctx context.Context, env game.Environment, numSearches int, valueFn ValueFunc, policyFn PolicyFunc) ([]int, error) {
	rules := env.Rules()
	root := newNode(rules, env.CanonicalState(), env.GroupMap(), nil)

	for i := 0; i < numSearches; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		node := root
		for node.visits > 0 && !node.terminal {
			action := argmax(node.UCBs(DefaultCpuct))
			next, err := node.Traverse(action)
			if err != nil {
				return nil, err
			}
			node = next
		}

		if node.terminal {
			node.Backprop(0, false)
			continue
		}

		leaf := []game.State{node.state}
		vals, err := valueFn(leaf)
		if err != nil {
			return nil, fmt.Errorf("leaf value: %w", err)
		}
		value := float32(math.Tanh(float64(vals[0])))

		logits, err := policyFn(leaf)
		if err != nil {
			return nil, fmt.Errorf("leaf prior: %w", err)
		}
		node.SetPrior(maskedPrior(logits[0], node.state))
		node.Backprop(InvertValue(value), true)
	}

	return root.MoveVisits(), nil
}

// maskedPrior zeroes invalid logits, biases them to MinValue and softmaxes
// the full row, yielding a prior with exact zeros off the valid support.
func maskedPrior(logits []float32, state game.State) []float32 {
	valid := state.ValidMoves()
	bias := state.InvalidBias()
	masked := make([]float32, len(logits))
	for i := range logits {
		masked[i] = logits[i]*valid[i] + bias[i]
	}
	return Softmax(masked)
}

// argmax returns the first index achieving the maximum.
func argmax(xs []float32) int {
	best := 0
	for i, x := range xs[1:] {
		if x > xs[best] {
			best = i + 1
		}
	}
	return best
}

func sqrtf(x float32) float32 { return float32(math.Sqrt(float64(x))) }
