package policy

import (
	"context"

	"tengen/game"
	"tengen/montecarlo"
)

// ActorCritic plays straight from the network's policy head: softmax over
// the invalid-masked logits for the canonical state, no search.
type ActorCritic struct {
	noTemp
	name     string
	policyFn montecarlo.PolicyFunc
}

func NewActorCritic(name string, policyFn montecarlo.PolicyFunc) *ActorCritic {
	return &ActorCritic{name: name, policyFn: policyFn}
}

func (a *ActorCritic) Name() string { return a.name }

func (a *ActorCritic) Evaluate(_ context.Context, env game.Environment, _ int) ([]float32, error) {
	state := env.CanonicalState()
	logits, err := a.policyFn([]game.State{state})
	if err != nil {
		return nil, err
	}
	masked := logits[0]
	for i, b := range state.InvalidBias() {
		masked[i] += b
	}
	return montecarlo.Softmax(masked), nil
}
