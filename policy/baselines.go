package policy

import (
	"context"
	"fmt"

	"tengen/game"
	"tengen/montecarlo"
)

// Random spreads probability uniformly over the valid moves.
type Random struct {
	noTemp
}

func NewRandom() *Random { return &Random{} }

func (*Random) Name() string { return "Random" }

func (*Random) Evaluate(_ context.Context, env game.Environment, _ int) ([]float32, error) {
	valid := env.ValidMoves()
	pi := make([]float32, len(valid))
	copy(pi, valid)
	return normalize(pi), nil
}

// GreedyValueFunc scores states by area difference scaled to [-1, 1], with
// exact outcomes at terminal positions. Used as the fixed greedy baseline
// opponent during evaluation.
func GreedyValueFunc(rules game.Rules) montecarlo.ValueFunc {
	return func(states []game.State) ([]float32, error) {
		vals := make([]float32, len(states))
		for i, s := range states {
			vals[i] = areaValue(rules, s)
		}
		return vals, nil
	}
}

// SmartGreedyValueFunc blends area difference with liberty difference 6:1,
// both scaled by the board area.
func SmartGreedyValueFunc(rules game.Rules) montecarlo.ValueFunc {
	return func(states []game.State) ([]float32, error) {
		vals := make([]float32, len(states))
		for i, s := range states {
			if s.Terminal() {
				vals[i] = terminalValue(rules, s)
				continue
			}
			boardArea := float32(s.ActionSize() - 1)
			black, white := rules.Areas(s)
			blackLibs, whiteLibs := rules.Liberties(s)
			areaVal := float32(black-white) / boardArea
			libsVal := float32(blackLibs-whiteLibs) / boardArea
			vals[i] = (6*areaVal + libsVal) / 7
		}
		return vals, nil
	}
}

func areaValue(rules game.Rules, s game.State) float32 {
	if s.Terminal() {
		return terminalValue(rules, s)
	}
	black, white := rules.Areas(s)
	return float32(black-white) / float32(s.ActionSize()-1)
}

func terminalValue(rules game.Rules, s game.State) float32 {
	black, white := rules.Areas(s)
	switch {
	case black > white:
		return 1
	case black < white:
		return -1
	default:
		return 0
	}
}

// NewGreedy builds the zero-search value policy over the area heuristic.
func NewGreedy(rules game.Rules) *Value {
	return NewValue("Greedy", GreedyValueFunc(rules), 0, 0, 0)
}

// NewSmartGreedy builds the zero-search value policy over the area plus
// liberties heuristic.
func NewSmartGreedy(rules game.Rules) *Value {
	return NewValue("Smart Greedy", SmartGreedyValueFunc(rules), 0, 0, 0)
}

// Human asks an injected selector for a move until it names a valid one and
// returns a one-hot distribution on it.
type Human struct {
	noTemp
	// Select is called with the current environment and must return a flat
	// action. It is called again if the action is invalid.
	Select func(env game.Environment) (int, error)
}

func NewHuman(selectFn func(env game.Environment) (int, error)) *Human {
	return &Human{Select: selectFn}
}

func (*Human) Name() string { return "Human" }

func (h *Human) Evaluate(ctx context.Context, env game.Environment, _ int) ([]float32, error) {
	valid := env.ValidMoves()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		action, err := h.Select(env)
		if err != nil {
			return nil, fmt.Errorf("select move: %w", err)
		}
		if action >= 0 && action < len(valid) && valid[action] > 0 {
			pi := make([]float32, len(valid))
			pi[action] = 1
			return pi, nil
		}
	}
}
