// Package montecarlo implements the search core: Q-value derivation from
// child-state values, greedy and temperature-scaled action distributions,
// PUCT tree search and a shallow two-ply lookahead heuristic.
package montecarlo

import (
	"fmt"

	"tengen/game"
)

// ValueFunc evaluates a batch of canonical states, one scalar per state.
// Wraps an external network for forward inference only.
type ValueFunc func(states []game.State) ([]float32, error)

// PolicyFunc produces raw action-preference logits for a batch of canonical
// states.
type PolicyFunc func(states []game.State) ([][]float32, error)

// InvertValue flips a value to the opposing player's perspective.
func InvertValue(v float32) float32 { return -v }

// ValsToQs spreads canonical-child values over a dense action-sized Q-value
// vector: each valid action gets the negated value of its child, invalid
// actions stay zero. childVals must hold one value per valid action of
// state, in action order.
func ValsToQs(childVals []float32, state game.State) []float32 {
	valid := state.ValidMoves()
	qs := make([]float32, state.ActionSize())
	childIdx := 0
	for action, v := range valid {
		if v == 0 {
			continue
		}
		qs[action] = InvertValue(childVals[childIdx])
		childIdx++
	}
	return qs
}

// QsFromValueFunc expands the canonical children of state, evaluates them
// with valueFn and derives the Q-value vector. The children are returned too
// so callers can reuse them.
func QsFromValueFunc(rules game.Rules, state game.State, gmap game.GroupMap, valueFn ValueFunc) ([]float32, []game.State, error) {
	children, _, err := rules.Children(state, gmap, true)
	if err != nil {
		return nil, nil, fmt.Errorf("expand children: %w", err)
	}
	vals, err := valueFn(children)
	if err != nil {
		return nil, nil, fmt.Errorf("evaluate children: %w", err)
	}
	if len(vals) != len(children) {
		panic(fmt.Sprintf("montecarlo: %d child values for %d children", len(vals), len(children)))
	}
	return ValsToQs(vals, state), children, nil
}

// BatchQsFromValueFunc applies QsFromValueFunc per row. No cross-row
// interaction. gmaps may be nil.
func BatchQsFromValueFunc(rules game.Rules, states []game.State, gmaps []game.GroupMap, valueFn ValueFunc) ([][]float32, [][]game.State, error) {
	batchQs := make([][]float32, len(states))
	batchChildren := make([][]game.State, len(states))
	for i, state := range states {
		var gmap game.GroupMap
		if gmaps != nil {
			gmap = gmaps[i]
		}
		qs, children, err := QsFromValueFunc(rules, state, gmap, valueFn)
		if err != nil {
			return nil, nil, err
		}
		batchQs[i] = qs
		batchChildren[i] = children
	}
	return batchQs, batchChildren, nil
}
