// Package minigo is a small reference Go engine implementing the game
// interfaces: stone placement with captures, a suicide ban, pass, area
// scoring and board symmetries. It deliberately omits superko tracking;
// games are bounded by a move cap instead. Production training injects a
// full engine, minigo keeps the binaries and tests self-contained.
package minigo

import (
	"tengen/game"
)

const (
	empty int8 = iota
	black
	white
)

// position is the engine-internal board representation behind a state tensor.
type position struct {
	size   int
	board  []int8
	turn   int8 // player to move
	passed bool // previous move was a pass
	done   bool
}

func newPosition(size int) *position {
	return &position{
		size:  size,
		board: make([]int8, size*size),
		turn:  black,
	}
}

func (p *position) clone() *position {
	q := *p
	q.board = make([]int8, len(p.board))
	copy(q.board, p.board)
	return &q
}

func opponent(c int8) int8 {
	if c == black {
		return white
	}
	return black
}

func (p *position) neighbors(idx int, fn func(n int)) {
	row, col := idx/p.size, idx%p.size
	if row > 0 {
		fn(idx - p.size)
	}
	if row < p.size-1 {
		fn(idx + p.size)
	}
	if col > 0 {
		fn(idx - 1)
	}
	if col < p.size-1 {
		fn(idx + 1)
	}
}

// positionFromState reconstructs a position from a state tensor. Canonical
// states decode with the mover's stones as black, which is exactly the
// perspective the search wants.
func positionFromState(s game.State) *position {
	size := s.Size()
	p := newPosition(size)
	blackPlane := s.Plane(game.PlaneBlack)
	whitePlane := s.Plane(game.PlaneWhite)
	for i := range p.board {
		switch {
		case blackPlane[i] > 0:
			p.board[i] = black
		case whitePlane[i] > 0:
			p.board[i] = white
		}
	}
	if s.Turn() == 1 {
		p.turn = white
	}
	p.passed = s.PassedLast()
	p.done = s.Terminal()
	return p
}

// state encodes the position as a tensor, computing the invalid-move plane
// for the player to move from the supplied group map.
func (p *position) state(g *groups) game.State {
	s := game.NewState(p.size)
	blackPlane := s.Plane(game.PlaneBlack)
	whitePlane := s.Plane(game.PlaneWhite)
	for i, c := range p.board {
		switch c {
		case black:
			blackPlane[i] = 1
		case white:
			whitePlane[i] = 1
		}
	}
	if p.turn == white {
		fill(s.Plane(game.PlaneTurn), 1)
	}
	invalid := s.Plane(game.PlaneInvalid)
	for i := range p.board {
		if !p.legal(i, g) {
			invalid[i] = 1
		}
	}
	if p.passed {
		fill(s.Plane(game.PlanePass), 1)
	}
	if p.done {
		fill(s.Plane(game.PlaneDone), 1)
	}
	return s
}

func fill(plane []float32, v float32) {
	for i := range plane {
		plane[i] = v
	}
}

// legal reports whether the player to move may place a stone at idx.
// Uses the group map to resolve suicide and capture checks without
// re-walking the board.
func (p *position) legal(idx int, g *groups) bool {
	if p.done || p.board[idx] != empty {
		return false
	}
	legal := false
	p.neighbors(idx, func(n int) {
		if legal {
			return
		}
		if p.board[n] == empty {
			legal = true
			return
		}
		gid := g.id[n]
		if g.color[gid] == p.turn {
			if g.libs[gid] >= 2 {
				legal = true
			}
		} else if g.libs[gid] == 1 {
			// Capturing the adjacent group frees at least one point.
			legal = true
		}
	})
	return legal
}

// play applies an action for the player to move. The caller is responsible
// for checking legality first.
func (p *position) play(action int, g *groups) {
	if action == p.size*p.size {
		if p.passed {
			p.done = true
		}
		p.passed = true
		p.turn = opponent(p.turn)
		return
	}

	mover := p.turn
	p.board[action] = mover
	// Remove opposing groups whose last liberty this stone filled.
	p.neighbors(action, func(n int) {
		gid := -1
		if p.board[n] == opponent(mover) {
			gid = g.id[n]
		}
		if gid >= 0 && g.libs[gid] == 1 {
			p.removeGroup(n)
		}
	})
	p.passed = false
	p.turn = opponent(mover)
}

func (p *position) removeGroup(idx int) {
	color := p.board[idx]
	if color == empty {
		return
	}
	stack := []int{idx}
	p.board[idx] = empty
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		p.neighbors(cur, func(n int) {
			if p.board[n] == color {
				p.board[n] = empty
				stack = append(stack, n)
			}
		})
	}
}

// areas scores stones plus single-color-enclosed territory.
func (p *position) areas() (blackArea, whiteArea int) {
	seen := make([]bool, len(p.board))
	for i, c := range p.board {
		switch c {
		case black:
			blackArea++
		case white:
			whiteArea++
		case empty:
			if seen[i] {
				continue
			}
			region, borders := p.emptyRegion(i, seen)
			switch borders {
			case black:
				blackArea += region
			case white:
				whiteArea += region
			}
		}
	}
	return blackArea, whiteArea
}

// emptyRegion flood-fills the empty region containing idx and returns its
// size plus the single bordering color, or empty when both colors touch it.
func (p *position) emptyRegion(idx int, seen []bool) (int, int8) {
	stack := []int{idx}
	seen[idx] = true
	count := 0
	var border int8
	mixed := false
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++
		p.neighbors(cur, func(n int) {
			switch p.board[n] {
			case empty:
				if !seen[n] {
					seen[n] = true
					stack = append(stack, n)
				}
			default:
				if border == empty {
					border = p.board[n]
				} else if border != p.board[n] {
					mixed = true
				}
			}
		})
	}
	if mixed {
		return count, empty
	}
	return count, border
}
