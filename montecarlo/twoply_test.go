package montecarlo

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"tengen/game"
)

// fakeRules serves a fixed two-level tree on a 1x1 board: the parent's two
// actions lead to childA (non-terminal) and childB, and childA expands into
// the configured grandchildren. Expansions are counted per state.
type fakeRules struct {
	parent, childA, childB game.State
	grandchildren          []game.State
	expansions             map[string]int
}

func (f *fakeRules) key(s game.State) string {
	switch {
	case s.Terminal():
		return "childB"
	case s.Plane(game.PlaneBlack)[0] > 0:
		return "childA"
	default:
		return "parent"
	}
}

func (f *fakeRules) Children(s game.State, _ game.GroupMap, _ bool) ([]game.State, []game.GroupMap, error) {
	k := f.key(s)
	f.expansions[k]++
	switch k {
	case "parent":
		return []game.State{f.childA, f.childB}, make([]game.GroupMap, 2), nil
	case "childA":
		return f.grandchildren, make([]game.GroupMap, len(f.grandchildren)), nil
	default:
		return nil, nil, fmt.Errorf("no children for %s", k)
	}
}

func (f *fakeRules) Areas(game.State) (int, int)     { return 0, 0 }
func (f *fakeRules) Liberties(game.State) (int, int) { return 0, 0 }
func (f *fakeRules) RandomSymmetry(s game.State, _ *rand.Rand) game.State {
	return s
}
func (f *fakeRules) ActionToCoord(s game.State, action int) (int, int, bool) {
	return 0, 0, action == s.PassAction()
}
func (f *fakeRules) CoordToAction(game.State, int, int) int { return 0 }

func newTwoPlyFixture(t *testing.T) (*fakeRules, ValueFunc) {
	t.Helper()
	mark := func(plane int, extra ...int) game.State {
		planes := make([]float32, game.NumPlanes)
		planes[plane] = 1
		for _, p := range extra {
			planes[p] = 1
		}
		return game.StateFromPlanes(1, planes)
	}

	rules := &fakeRules{
		parent:     game.NewState(1),
		childA:     mark(game.PlaneBlack),
		childB:     mark(game.PlaneDone),
		expansions: map[string]int{},
		grandchildren: []game.State{
			mark(game.PlanePass),
			mark(game.PlanePass, game.PlaneWhite),
		},
	}

	valueFn := func(states []game.State) ([]float32, error) {
		vals := make([]float32, len(states))
		for i, s := range states {
			switch {
			case s.Terminal():
				vals[i] = -0.5
			case s.Plane(game.PlaneBlack)[0] > 0:
				vals[i] = 0.2
			case s.PassedLast() && s.Plane(game.PlaneWhite)[0] > 0:
				vals[i] = 0.3
			case s.PassedLast():
				vals[i] = -0.8
			}
		}
		return vals, nil
	}
	return rules, valueFn
}

func TestTwoPlyQsSkipsTerminalChildren(t *testing.T) {
	rules, valueFn := newTwoPlyFixture(t)

	// Both children fit in the budget. childB has the lower value but is
	// terminal, so only childA gets a deeper look.
	priorQs, postQs, err := TwoPlyQs(rules, rules.parent, nil, valueFn, 2)
	require.NoError(t, err)

	require.Equal(t, []float32{-0.2, 0.5}, priorQs)
	require.Zero(t, rules.expansions["childB"], "terminal child must not be expanded")
	require.Equal(t, 1, rules.expansions["childA"])

	// childA: mean of its shallow Q (-0.2) and the worst grandchild (-0.8).
	require.InDelta(t, -0.5, postQs[0], 1e-6)
	// The terminal child is neither deepened nor bias-corrected.
	require.Equal(t, priorQs[1], postQs[1])
}

func TestTwoPlyQsNoChangesWhenOnlyTerminalDeepened(t *testing.T) {
	rules, valueFn := newTwoPlyFixture(t)

	// Budget of one selects only childB (lowest value), which is terminal,
	// so nothing changes and no bias correction is applied to childA.
	priorQs, postQs, err := TwoPlyQs(rules, rules.parent, nil, valueFn, 1)
	require.NoError(t, err)

	require.Equal(t, priorQs, postQs)
	require.Zero(t, rules.expansions["childB"])
}

// wideRules serves a fixed two-level tree on a 2x2 board with four valid
// actions. States carry an identity in the black plane's first cell and their
// value in the white plane's first cell, so the value function and the child
// dispatch stay table-free.
type wideRules struct {
	parent   game.State
	children []game.State
	grands   map[int][]game.State
	expanded map[int]int
}

func (f *wideRules) id(s game.State) int { return int(s.Plane(game.PlaneBlack)[0]) }

func (f *wideRules) Children(s game.State, _ game.GroupMap, _ bool) ([]game.State, []game.GroupMap, error) {
	id := f.id(s)
	f.expanded[id]++
	if id == 0 {
		return f.children, make([]game.GroupMap, len(f.children)), nil
	}
	if g, ok := f.grands[id]; ok {
		return g, make([]game.GroupMap, len(g)), nil
	}
	return nil, nil, fmt.Errorf("no children for state %d", id)
}

func (f *wideRules) Areas(game.State) (int, int)     { return 0, 0 }
func (f *wideRules) Liberties(game.State) (int, int) { return 0, 0 }
func (f *wideRules) RandomSymmetry(s game.State, _ *rand.Rand) game.State {
	return s
}
func (f *wideRules) ActionToCoord(s game.State, action int) (int, int, bool) {
	return 0, 0, action == s.PassAction()
}
func (f *wideRules) CoordToAction(game.State, int, int) int { return 0 }

func TestTwoPlyQsBiasCorrectsSkippedChildren(t *testing.T) {
	mk := func(id int, val float32, terminal bool) game.State {
		s := game.NewState(2)
		s.Plane(game.PlaneBlack)[0] = float32(id)
		s.Plane(game.PlaneWhite)[0] = val
		if terminal {
			s.Plane(game.PlaneDone)[0] = 1
		}
		return s
	}

	parent := game.NewState(2)
	parent.Plane(game.PlaneInvalid)[3] = 1 // valid actions: 0, 1, 2 and pass

	rules := &wideRules{
		parent: parent,
		children: []game.State{
			mk(1, -0.6, false),
			mk(2, -0.4, false),
			mk(3, 0.1, false),
			mk(4, 0.5, true),
		},
		grands: map[int][]game.State{
			1: {mk(9, 0.7, false), mk(9, 0, false)},
			2: {mk(9, -0.6, false), mk(9, 0.2, false)},
		},
		expanded: map[int]int{},
	}
	valueFn := func(states []game.State) ([]float32, error) {
		vals := make([]float32, len(states))
		for i, s := range states {
			vals[i] = s.Plane(game.PlaneWhite)[0]
		}
		return vals, nil
	}

	// Budget of two deepens the two lowest-valued children and leaves one
	// non-terminal and one terminal child shallow.
	priorQs, postQs, err := TwoPlyQs(rules, parent, nil, valueFn, 2)
	require.NoError(t, err)

	require.InDeltaSlice(t, []float32{0.6, 0.4, -0.1, 0, -0.5}, priorQs, 1e-6)
	require.Equal(t, 1, rules.expanded[1])
	require.Equal(t, 1, rules.expanded[2])
	require.Zero(t, rules.expanded[3])
	require.Zero(t, rules.expanded[4])

	// Deepened: action 0 averages to 0.3 (delta -0.3), action 1 to -0.1
	// (delta -0.5). The skipped non-terminal child moves by the minimum
	// delta; the terminal child and the invalid action do not move.
	require.InDelta(t, 0.3, postQs[0], 1e-6)
	require.InDelta(t, -0.1, postQs[1], 1e-6)
	require.InDelta(t, priorQs[2]-0.5, postQs[2], 1e-6)
	require.Zero(t, postQs[3])
	require.Equal(t, priorQs[4], postQs[4])
}

func TestTwoPlyQsZeroBudgetIsShallow(t *testing.T) {
	rules, valueFn := newTwoPlyFixture(t)

	priorQs, postQs, err := TwoPlyQs(rules, rules.parent, nil, valueFn, 0)
	require.NoError(t, err)

	require.Equal(t, priorQs, postQs)
	require.Equal(t, 1, rules.expansions["parent"])
	require.Zero(t, rules.expansions["childA"])
}
