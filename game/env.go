package game

import "math/rand"

// GroupMap is engine-owned connectivity metadata for a state, used to
// generate children cheaply. It travels alongside its state and is never
// mutated after creation. Opaque to everything outside the engine.
type GroupMap any

// Rules is the stateless capability surface of a Go engine. Implementations
// must not keep per-call state; every method is a pure function of its
// arguments so the same Rules value can be shared across workers.
type Rules interface {
	// Children returns the successor state for every valid action of s, in
	// action order, together with their group maps. With canonical set, the
	// children are returned from the next mover's perspective.
	Children(s State, g GroupMap, canonical bool) ([]State, []GroupMap, error)

	// Areas scores the position: stones plus surrounded territory.
	Areas(s State) (black, white int)

	// Liberties counts the distinct liberty points of each color's groups.
	Liberties(s State) (black, white int)

	// RandomSymmetry applies one of the eight board symmetries chosen at
	// random to all spatial planes.
	RandomSymmetry(s State, rng *rand.Rand) State

	// ActionToCoord converts a flat action to board coordinates.
	// pass is true for the pass action.
	ActionToCoord(s State, action int) (row, col int, pass bool)

	// CoordToAction converts board coordinates to a flat action.
	CoordToAction(s State, row, col int) int
}

// Environment is one live game owned by a single worker. Implementations are
// not safe for concurrent use; each worker constructs its own.
type Environment interface {
	// Reset starts a fresh game.
	Reset()

	// Rules exposes the stateless engine capability for this environment.
	Rules() Rules

	// State returns the current raw position.
	State() State

	// GroupMap returns the connectivity metadata for the current position.
	GroupMap() GroupMap

	// CanonicalState returns the current position from the mover's
	// perspective.
	CanonicalState() State

	// ValidMoves returns the 0/1 action indicator for the current position.
	ValidMoves() []float32

	// Children expands all valid actions of the current position.
	Children(canonical bool) ([]State, []GroupMap, error)

	// Step plays an action for the player to move. It returns the resulting
	// raw state, the reward from black's perspective, and whether the game
	// ended. Playing on a finished game or an invalid action is an error.
	Step(action int) (State, float32, bool, error)

	// Terminal reports whether the game has ended.
	Terminal() bool

	// Winner returns +1 if black won, -1 if white won, 0 for a tie.
	// Only meaningful on a terminal position.
	Winner() float32
}
