// Package game defines the board-state tensor and the interfaces a Go rules
// engine must provide to the search and training code.
//
// The full rules engine is an external collaborator: everything in this
// package is either a plain data type or an interface. The minigo package
// ships a reference implementation used by the binaries and tests.
package game

import "math"

// State plane indices. A state is a stack of size x size float planes:
// stone positions for both colors plus auxiliary indicator planes.
const (
	PlaneBlack = iota // stones of the player whose perspective this is
	PlaneWhite
	PlaneTurn    // all-ones when white is to move
	PlaneInvalid // 1 where placing a stone is illegal
	PlanePass    // all-ones when the previous move was a pass
	PlaneDone    // all-ones once the game has ended
	NumPlanes
)

// MinValue is the bias added to invalid actions before a softmax so their
// exponentials underflow to zero.
const MinValue = float32(-math.MaxFloat32)

// Turn values returned by State.Turn.
const (
	Black = 0
	White = 1
)

// State is an immutable snapshot of a board position plus auxiliary
// channels. Callers must never write to the returned plane slices.
type State struct {
	size   int
	planes []float32
}

// NewState returns an all-zero state for the given board size.
func NewState(size int) State {
	return State{size: size, planes: make([]float32, NumPlanes*size*size)}
}

// StateFromPlanes wraps an existing plane buffer. The buffer must hold
// NumPlanes*size*size values and is owned by the returned state afterwards.
func StateFromPlanes(size int, planes []float32) State {
	if len(planes) != NumPlanes*size*size {
		panic("game: plane buffer does not match board size")
	}
	return State{size: size, planes: planes}
}

func (s State) Size() int { return s.size }

// ActionSize is the number of distinct actions: one per board point plus pass.
func (s State) ActionSize() int { return s.size*s.size + 1 }

// PassAction is the action index of the pass move.
func (s State) PassAction() int { return s.size * s.size }

// Planes returns the raw plane buffer in channel-major order. Read only.
func (s State) Planes() []float32 { return s.planes }

// Plane returns one channel of the state. Read only.
func (s State) Plane(c int) []float32 {
	n := s.size * s.size
	return s.planes[c*n : (c+1)*n]
}

// At reads a single cell of a channel.
func (s State) At(c, row, col int) float32 {
	return s.planes[c*s.size*s.size+row*s.size+col]
}

// Clone returns a deep copy whose planes may be mutated freely.
func (s State) Clone() State {
	planes := make([]float32, len(s.planes))
	copy(planes, s.planes)
	return State{size: s.size, planes: planes}
}

// Turn reports the player to move: 0 for black, 1 for white.
func (s State) Turn() int {
	if s.Plane(PlaneTurn)[0] > 0 {
		return 1
	}
	return 0
}

// Terminal reports whether the game has ended.
func (s State) Terminal() bool { return s.Plane(PlaneDone)[0] > 0 }

// PassedLast reports whether the previous move was a pass.
func (s State) PassedLast() bool { return s.Plane(PlanePass)[0] > 0 }

// ValidMoves returns a 0/1 indicator over all actions. Board points follow
// the invalid plane; pass is always available.
func (s State) ValidMoves() []float32 {
	invalid := s.Plane(PlaneInvalid)
	valid := make([]float32, s.ActionSize())
	for i, inv := range invalid {
		valid[i] = 1 - inv
	}
	valid[s.PassAction()] = 1
	return valid
}

// InvalidBias returns MinValue at invalid actions and 0 at valid ones, for
// pre-masking logits ahead of a softmax.
func (s State) InvalidBias() []float32 {
	invalid := s.Plane(PlaneInvalid)
	bias := make([]float32, s.ActionSize())
	for i, inv := range invalid {
		if inv > 0 {
			bias[i] = MinValue
		}
	}
	return bias
}

// Canonical returns the position from the perspective of the player to move:
// if white is to move the color planes are swapped and the turn plane
// cleared, so a single value function always evaluates "black to move".
func (s State) Canonical() State {
	if s.Turn() == 0 {
		return s
	}
	c := s.Clone()
	n := s.size * s.size
	black := c.Plane(PlaneBlack)
	white := c.Plane(PlaneWhite)
	for i := 0; i < n; i++ {
		black[i], white[i] = white[i], black[i]
	}
	turn := c.Plane(PlaneTurn)
	for i := range turn {
		turn[i] = 0
	}
	return c
}

// BatchValidMoves applies State.ValidMoves over a batch.
func BatchValidMoves(states []State) [][]float32 {
	out := make([][]float32, len(states))
	for i, s := range states {
		out[i] = s.ValidMoves()
	}
	return out
}

// BatchInvalidBias applies State.InvalidBias over a batch.
func BatchInvalidBias(states []State) [][]float32 {
	out := make([][]float32, len(states))
	for i, s := range states {
		out[i] = s.InvalidBias()
	}
	return out
}
