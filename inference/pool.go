package inference

import (
	"fmt"
	"sync/atomic"

	"tengen/game"
	"tengen/montecarlo"
)

// Pool spreads forward passes across several clients of the same model.
// Requests rotate round-robin so every session's batching loop stays busy.
type Pool struct {
	clients []*Client
	counter atomic.Uint64
}

// NewPool loads numSessions independent sessions of the model at modelPath.
func NewPool(modelPath string, numSessions int, cfg Config) (*Pool, error) {
	if numSessions <= 0 {
		return nil, fmt.Errorf("inference: need at least one session, got %d", numSessions)
	}
	clients := make([]*Client, 0, numSessions)
	for i := 0; i < numSessions; i++ {
		c, err := NewClient(modelPath, cfg)
		if err != nil {
			for _, prev := range clients {
				prev.Close()
			}
			return nil, fmt.Errorf("session %d: %w", i, err)
		}
		clients = append(clients, c)
	}
	return &Pool{clients: clients}, nil
}

func (p *Pool) next() *Client {
	i := p.counter.Add(1)
	return p.clients[i%uint64(len(p.clients))]
}

func (p *Pool) Predict(state game.State) ([]float32, float32, error) {
	return p.next().Predict(state)
}

func (p *Pool) ValueFunc() montecarlo.ValueFunc {
	return func(states []game.State) ([]float32, error) {
		return p.next().ValueFunc()(states)
	}
}

func (p *Pool) PolicyFunc() montecarlo.PolicyFunc {
	return func(states []game.State) ([][]float32, error) {
		return p.next().PolicyFunc()(states)
	}
}

func (p *Pool) Close() error {
	var firstErr error
	for _, c := range p.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
