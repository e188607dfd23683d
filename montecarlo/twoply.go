package montecarlo

import (
	"fmt"
	"sort"

	"tengen/game"
)

// TwoPlyQs is the shallow search used when the budget is too small for a
// full tree: derive Q-values from the canonical children, then deepen only
// the numSearches most threatening children (lowest raw value) one extra
// ply, assuming the opponent replies with the move that minimizes our value.
// The deepened Q is the unweighted mean of the shallow Q and that minimum.
//
// Children skipped by the budget get a bias correction equal to the minimum
// value delta among the successfully deepened children, keeping both groups
// on a comparable scale. Terminal children are never deepened and never
// corrected. Returns the shallow Q-values and the post-search Q-values.
func TwoPlyQs(rules game.Rules, state game.State, gmap game.GroupMap, valueFn ValueFunc, numSearches int) (priorQs, postQs []float32, err error) {
	children, childMaps, err := rules.Children(state, gmap, true)
	if err != nil {
		return nil, nil, fmt.Errorf("expand children: %w", err)
	}
	childVals, err := valueFn(children)
	if err != nil {
		return nil, nil, fmt.Errorf("evaluate children: %w", err)
	}

	priorQs = ValsToQs(childVals, state)
	postQs = make([]float32, len(priorQs))
	copy(postQs, priorQs)
	if numSearches <= 0 {
		return priorQs, postQs, nil
	}

	valid := state.ValidMoves()
	actions := make([]int, 0, len(children))
	for action, v := range valid {
		if v > 0 {
			actions = append(actions, action)
		}
	}
	if len(actions) != len(childVals) {
		panic(fmt.Sprintf("montecarlo: %d valid actions but %d child values", len(actions), len(childVals)))
	}

	// Ascending raw child value: the lowest values are the opponent's best
	// positions and therefore the moves most worth a deeper look.
	order := make([]int, len(childVals))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return childVals[order[a]] < childVals[order[b]]
	})
	if numSearches > len(order) {
		numSearches = len(order)
	}
	deepened, remaining := order[:numSearches], order[numSearches:]

	changed := false
	biasCorrection := float32(0)
	for _, childIdx := range deepened {
		child := children[childIdx]
		if child.Terminal() {
			continue
		}
		grandchildren, _, err := rules.Children(child, childMaps[childIdx], true)
		if err != nil {
			return nil, nil, fmt.Errorf("expand grandchildren: %w", err)
		}
		grandVals, err := valueFn(grandchildren)
		if err != nil {
			return nil, nil, fmt.Errorf("evaluate grandchildren: %w", err)
		}

		minGrand := grandVals[0]
		for _, v := range grandVals[1:] {
			if v < minGrand {
				minGrand = v
			}
		}

		action := actions[childIdx]
		newQ := (priorQs[action] + minGrand) / 2
		postQs[action] = newQ

		delta := newQ - priorQs[action]
		if !changed || delta < biasCorrection {
			biasCorrection = delta
		}
		changed = true
	}

	if changed {
		for _, childIdx := range remaining {
			if children[childIdx].Terminal() {
				continue
			}
			postQs[actions[childIdx]] += biasCorrection
		}
	}
	return priorQs, postQs, nil
}
