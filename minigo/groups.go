package minigo

// groups is the connectivity group map for one position: per-point group
// ids, per-group color and distinct liberty counts. It is the concrete type
// behind game.GroupMap for this engine and is never mutated after creation.
type groups struct {
	id    []int  // point -> group id, -1 for empty points
	color []int8 // group id -> stone color
	libs  []int  // group id -> number of distinct liberty points
}

func buildGroups(p *position) *groups {
	g := &groups{id: make([]int, len(p.board))}
	for i := range g.id {
		g.id[i] = -1
	}
	for i, c := range p.board {
		if c == empty || g.id[i] >= 0 {
			continue
		}
		gid := len(g.color)
		g.color = append(g.color, c)

		libSeen := make(map[int]struct{})
		stack := []int{i}
		g.id[i] = gid
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			p.neighbors(cur, func(n int) {
				switch p.board[n] {
				case empty:
					libSeen[n] = struct{}{}
				case c:
					if g.id[n] < 0 {
						g.id[n] = gid
						stack = append(stack, n)
					}
				}
			})
		}
		g.libs = append(g.libs, len(libSeen))
	}
	return g
}

// libertyPoints returns the distinct liberty counts per color across all
// groups, counting each empty point once per color.
func libertyPoints(p *position) (blackLibs, whiteLibs int) {
	blackSeen := make(map[int]struct{})
	whiteSeen := make(map[int]struct{})
	for i, c := range p.board {
		if c != empty {
			continue
		}
		p.neighbors(i, func(n int) {
			switch p.board[n] {
			case black:
				blackSeen[i] = struct{}{}
			case white:
				whiteSeen[i] = struct{}{}
			}
		})
	}
	return len(blackSeen), len(whiteSeen)
}
