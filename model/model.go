package model

import (
	"context"

	"tengen/montecarlo"
	"tengen/replay"
)

// Model is a trainable value/policy network. Forward inference happens
// in-process; Optimize may hand off to an external trainer. Checkpoints hold
// network parameters only, no optimizer state.
type Model interface {
	Name() string

	// ValueFunc returns the batched scalar-value forward pass.
	ValueFunc() montecarlo.ValueFunc

	// PolicyFunc returns the batched policy-logit forward pass.
	PolicyFunc() montecarlo.PolicyFunc

	// Optimize runs one gradient step per batch against this model's
	// current weights and reports the mean metrics of the pass.
	Optimize(ctx context.Context, batches []replay.Batch) (Summary, error)

	// SaveCheckpoint writes the current weights to path, overwriting any
	// previous checkpoint there.
	SaveCheckpoint(path string) error

	// LoadCheckpoint replaces the current weights with the checkpoint at
	// path.
	LoadCheckpoint(path string) error
}
