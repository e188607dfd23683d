package minigo

import (
	"fmt"

	"tengen/game"
)

// moveCapFactor bounds game length at moveCapFactor*size*size moves, since
// without superko tracking a game could in principle cycle forever.
const moveCapFactor = 2

// Env is one live game. Not safe for concurrent use; each worker owns one.
type Env struct {
	size  int
	pos   *position
	grp   *groups
	state game.State
	moves int
}

var _ game.Environment = (*Env)(nil)

// NewEnv returns a fresh game on a size x size board.
func NewEnv(size int) *Env {
	e := &Env{size: size}
	e.Reset()
	return e
}

func (e *Env) Reset() {
	e.pos = newPosition(e.size)
	e.grp = buildGroups(e.pos)
	e.state = e.pos.state(e.grp)
	e.moves = 0
}

func (e *Env) Rules() game.Rules { return Rules{} }

func (e *Env) State() game.State { return e.state }

func (e *Env) GroupMap() game.GroupMap { return e.grp }

func (e *Env) CanonicalState() game.State { return e.state.Canonical() }

func (e *Env) ValidMoves() []float32 { return e.state.ValidMoves() }

func (e *Env) Children(canonical bool) ([]game.State, []game.GroupMap, error) {
	return Rules{}.Children(e.state, e.grp, canonical)
}

func (e *Env) Terminal() bool { return e.pos.done }

func (e *Env) Step(action int) (game.State, float32, bool, error) {
	if e.pos.done {
		return e.state, 0, true, fmt.Errorf("minigo: game already over")
	}
	if action < 0 || action >= e.state.ActionSize() {
		return e.state, 0, false, fmt.Errorf("minigo: action %d out of range", action)
	}
	if action != e.state.PassAction() && !e.pos.legal(action, e.grp) {
		return e.state, 0, false, fmt.Errorf("minigo: illegal move %d", action)
	}

	e.pos.play(action, e.grp)
	e.moves++
	if e.moves >= moveCapFactor*e.size*e.size {
		e.pos.done = true
	}
	e.grp = buildGroups(e.pos)
	e.state = e.pos.state(e.grp)

	reward := float32(0)
	if e.pos.done {
		reward = e.Winner()
	}
	return e.state, reward, e.pos.done, nil
}

func (e *Env) Winner() float32 {
	blackArea, whiteArea := e.pos.areas()
	switch {
	case blackArea > whiteArea:
		return 1
	case blackArea < whiteArea:
		return -1
	}
	return 0
}
