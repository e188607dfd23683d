package minigo

import (
	"fmt"
	"math/rand"

	"tengen/game"
)

// Rules is the stateless engine capability. A single value can be shared by
// every worker; all methods are pure functions of their arguments.
type Rules struct{}

var _ game.Rules = Rules{}

func (Rules) Children(s game.State, g game.GroupMap, canonical bool) ([]game.State, []game.GroupMap, error) {
	if s.Terminal() {
		return nil, nil, fmt.Errorf("minigo: cannot expand a terminal state")
	}
	p := positionFromState(s)
	gm, ok := g.(*groups)
	if !ok || gm == nil {
		gm = buildGroups(p)
	}

	valid := s.ValidMoves()
	children := make([]game.State, 0, len(valid))
	childMaps := make([]game.GroupMap, 0, len(valid))
	for action, v := range valid {
		if v == 0 {
			continue
		}
		q := p.clone()
		q.play(action, gm)
		qg := buildGroups(q)
		child := q.state(qg)
		if canonical {
			child = child.Canonical()
		}
		children = append(children, child)
		childMaps = append(childMaps, game.GroupMap(qg))
	}
	return children, childMaps, nil
}

func (Rules) Areas(s game.State) (int, int) {
	return positionFromState(s).areas()
}

func (Rules) Liberties(s game.State) (int, int) {
	return libertyPoints(positionFromState(s))
}

func (Rules) RandomSymmetry(s game.State, rng *rand.Rand) game.State {
	return applySymmetry(s, rng.Intn(8))
}

func (Rules) ActionToCoord(s game.State, action int) (int, int, bool) {
	if action == s.PassAction() {
		return 0, 0, true
	}
	return action / s.Size(), action % s.Size(), false
}

func (Rules) CoordToAction(s game.State, row, col int) int {
	return row*s.Size() + col
}

// applySymmetry maps every plane through one of the eight board symmetries:
// k%4 quarter turns, plus a horizontal flip for k >= 4.
func applySymmetry(s game.State, k int) game.State {
	size := s.Size()
	out := game.NewState(size)
	src := s.Planes()
	dst := out.Planes()
	n := size * size
	for c := 0; c < game.NumPlanes; c++ {
		for row := 0; row < size; row++ {
			for col := 0; col < size; col++ {
				r, cl := symmetricCoord(row, col, size, k)
				dst[c*n+r*size+cl] = src[c*n+row*size+col]
			}
		}
	}
	return out
}

func symmetricCoord(row, col, size, k int) (int, int) {
	if k >= 4 {
		col = size - 1 - col
		k -= 4
	}
	for i := 0; i < k; i++ {
		row, col = col, size-1-row
	}
	return row, col
}
