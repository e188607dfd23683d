package policy

import (
	"context"
	"fmt"

	"tengen/game"
	"tengen/montecarlo"
)

// nearGreedyTemp is used once a game is past its temperature steps. Close
// enough to zero to act greedily while keeping the softmax branch.
const nearGreedyTemp = 0.01

// Value derives Q-values from a value function over the canonical children,
// optionally sharpened by the shallow two-ply search, and samples through a
// temperature schedule.
type Value struct {
	schedule
	name        string
	valueFn     montecarlo.ValueFunc
	numSearches int
}

func NewValue(name string, valueFn montecarlo.ValueFunc, numSearches int, temp float32, tempSteps int) *Value {
	return &Value{
		schedule:    schedule{temp: temp, tempSteps: tempSteps},
		name:        name,
		valueFn:     valueFn,
		numSearches: numSearches,
	}
}

func (v *Value) Name() string { return v.name }

func (v *Value) String() string {
	return fmt.Sprintf("Value[%dS %.2fT]-%s", v.numSearches, v.temp, v.name)
}

func (v *Value) Evaluate(_ context.Context, env game.Environment, step int) ([]float32, error) {
	_, postQs, err := montecarlo.TwoPlyQs(env.Rules(), env.CanonicalState(), env.GroupMap(), v.valueFn, v.numSearches)
	if err != nil {
		return nil, err
	}

	temp := v.temp
	if step >= v.tempSteps {
		temp = nearGreedyTemp
	}
	return montecarlo.TemperatureDistribution(postQs, temp, env.ValidMoves()), nil
}

// Qs exposes the shallow and deepened Q-values for inspection tooling.
func (v *Value) Qs(env game.Environment) (priorQs, postQs []float32, err error) {
	return montecarlo.TwoPlyQs(env.Rules(), env.CanonicalState(), env.GroupMap(), v.valueFn, v.numSearches)
}
