// Package model defines the network abstraction used by training: forward
// inference functions for the search, an optimization step and checkpoint
// save/load. The concrete implementation runs forwards through ONNX Runtime
// and delegates gradient steps to an external trainer service.
package model

import "fmt"

// Metrics accumulates per-batch accuracy and loss over one optimization
// pass. Created fresh per Optimize call, reduced once at the end.
type Metrics struct {
	critAcc  float64
	critLoss float64
	actAcc   float64
	actLoss  float64
	batches  int
}

func (m *Metrics) Add(critAcc, critLoss, actAcc, actLoss float64) {
	m.critAcc += critAcc
	m.critLoss += critLoss
	m.actAcc += actAcc
	m.actLoss += actLoss
	m.batches++
}

// Summary mean-reduces the accumulated batch metrics.
func (m *Metrics) Summary() Summary {
	if m.batches == 0 {
		return Summary{}
	}
	n := float64(m.batches)
	return Summary{
		CritAcc:  m.critAcc / n,
		CritLoss: m.critLoss / n,
		ActAcc:   m.actAcc / n,
		ActLoss:  m.actLoss / n,
	}
}

// Summary is the final mean accuracy/loss of one optimization pass.
type Summary struct {
	CritAcc  float64
	CritLoss float64
	ActAcc   float64
	ActLoss  float64
}

func (s Summary) String() string {
	return fmt.Sprintf("%.1f%% C_ACC %.3f C_LOSS, %.1f%% A_ACC %.3f A_LOSS",
		100*s.CritAcc, s.CritLoss, 100*s.ActAcc, s.ActLoss)
}
