// Package policy holds the action-selection strategies used for self-play,
// evaluation and interactive games. Every variant observes the environment
// and produces a probability distribution over all actions, with invalid
// actions at exactly zero.
package policy

import (
	"context"

	"tengen/game"
)

// Policy produces an action distribution for the current position. step is
// the number of moves already played in the game, used by temperature
// schedules. Policies are stateful only through their temperature and are
// reused across a whole training iteration.
type Policy interface {
	Name() string
	Evaluate(ctx context.Context, env game.Environment, step int) ([]float32, error)
	Temp() float32
	SetTemp(temp float32)
	DecayTemp(decay float32)
}

// schedule is the shared temperature state embedded by the tunable variants.
type schedule struct {
	temp      float32
	tempSteps int
}

func (s *schedule) Temp() float32        { return s.temp }
func (s *schedule) SetTemp(temp float32) { s.temp = temp }

func (s *schedule) DecayTemp(decay float32) {
	s.temp *= decay
	if s.temp < 0 {
		s.temp = 0
	}
}

// noTemp is embedded by variants without a temperature knob.
type noTemp struct{}

func (noTemp) Temp() float32     { return 0 }
func (noTemp) SetTemp(float32)   {}
func (noTemp) DecayTemp(float32) {}

func normalize(pi []float32) []float32 {
	var sum float32
	for _, p := range pi {
		sum += p
	}
	if sum == 0 {
		return pi
	}
	for i := range pi {
		pi[i] /= sum
	}
	return pi
}
