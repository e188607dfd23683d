package montecarlo

import (
	"math"

	"tengen/game"
)

// GreedyDistribution puts uniform probability mass on the valid action(s)
// achieving the maximum Q-value. The comparison happens after subtracting
// the row max, exponentiating and masking invalid actions to zero, which
// keeps exact ties intact at a scale robust to floating noise.
func GreedyDistribution(qs, valid []float32) []float32 {
	maxQ := qs[0]
	for _, q := range qs[1:] {
		if q > maxQ {
			maxQ = q
		}
	}

	expq := make([]float32, len(qs))
	maxE := float32(0)
	for i, q := range qs {
		e := float32(math.Exp(float64(q-maxQ))) * valid[i]
		expq[i] = e
		if e > maxE {
			maxE = e
		}
	}

	pi := make([]float32, len(qs))
	count := 0
	for i, e := range expq {
		if valid[i] > 0 && e == maxE {
			pi[i] = 1
			count++
		}
	}
	inv := 1 / float32(count)
	for i := range pi {
		pi[i] *= inv
	}
	return pi
}

// TemperatureDistribution softmaxes qs/temp over the valid support; invalid
// actions get exactly zero probability. A temperature at or below zero falls
// back to the greedy distribution, which also guards the division.
func TemperatureDistribution(qs []float32, temp float32, valid []float32) []float32 {
	if temp <= 0 {
		return GreedyDistribution(qs, valid)
	}

	maxQ := float32(math.Inf(-1))
	for i, q := range qs {
		if valid[i] > 0 && q > maxQ {
			maxQ = q
		}
	}

	pi := make([]float32, len(qs))
	sum := float32(0)
	for i, q := range qs {
		if valid[i] == 0 {
			continue
		}
		e := float32(math.Exp(float64((q - maxQ) / temp)))
		pi[i] = e
		sum += e
	}
	inv := 1 / sum
	for i := range pi {
		pi[i] *= inv
	}
	return pi
}

// BatchGreedyDistribution applies GreedyDistribution per row.
func BatchGreedyDistribution(batchQs, batchValid [][]float32) [][]float32 {
	out := make([][]float32, len(batchQs))
	for i := range batchQs {
		out[i] = GreedyDistribution(batchQs[i], batchValid[i])
	}
	return out
}

// BatchTemperatureDistribution applies a full-row softmax of qs/temp with
// invalid entries pre-masked to the minimum-value bias, so their
// exponentials underflow to zero without contaminating the normalization.
func BatchTemperatureDistribution(batchQs [][]float32, temp float32, batchValid [][]float32) [][]float32 {
	if temp <= 0 {
		return BatchGreedyDistribution(batchQs, batchValid)
	}
	out := make([][]float32, len(batchQs))
	for i, qs := range batchQs {
		valid := batchValid[i]
		masked := make([]float32, len(qs))
		for j, q := range qs {
			masked[j] = q / temp
			if valid[j] == 0 {
				masked[j] = game.MinValue
			}
		}
		out[i] = Softmax(masked)
	}
	return out
}

// Softmax over a full row, stabilized by the row max. Follows the engine's
// usual masking convention: entries biased to MinValue underflow to zero.
func Softmax(logits []float32) []float32 {
	maxV := logits[0]
	for _, v := range logits[1:] {
		if v > maxV {
			maxV = v
		}
	}
	out := make([]float32, len(logits))
	sum := float32(0)
	for i, v := range logits {
		e := float32(math.Exp(float64(v - maxV)))
		out[i] = e
		sum += e
	}
	if sum > 0 {
		inv := 1 / sum
		for i := range out {
			out[i] *= inv
		}
	}
	return out
}
