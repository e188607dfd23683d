package montecarlo

import (
	"fmt"

	"tengen/game"
)

// Node is one state inside a single search episode. Nodes live only for the
// duration of one Search call; the tree is discarded once the root visit
// counts are extracted.
type Node struct {
	rules    game.Rules
	parent   *Node
	state    game.State
	gmap     game.GroupMap
	valid    []float32
	terminal bool

	visits   int
	valueSum float32
	prior    []float32

	// Children are materialized lazily, at most once, on first traversal.
	children    []*Node
	childStates []game.State
	childMaps   []game.GroupMap
	childIndex  []int // action -> index into childStates, -1 for invalid
}

func newNode(rules game.Rules, state game.State, gmap game.GroupMap, parent *Node) *Node {
	return &Node{
		rules:    rules,
		parent:   parent,
		state:    state,
		gmap:     gmap,
		valid:    state.ValidMoves(),
		terminal: state.Terminal(),
	}
}

func (n *Node) Visits() int    { return n.visits }
func (n *Node) Terminal() bool { return n.terminal }

// Value is the mean backed-up value at this node, zero before any backup.
func (n *Node) Value() float32 {
	if n.visits == 0 {
		return 0
	}
	return n.valueSum / float32(n.visits)
}

// SetPrior records the prior action distribution used to weight exploration
// of this node's children.
func (n *Node) SetPrior(pi []float32) { n.prior = pi }

// UCBs scores every action with the PUCT rule
//
//	Q(s,a) + c * P(s,a) * sqrt(N(s)) / (1 + N(s,a))
//
// where Q is the child's mean backed-up value (zero for unvisited children).
// Invalid actions score MinValue so they are never selected.
func (n *Node) UCBs(c float32) []float32 {
	sqrtN := sqrtf(float32(n.visits))
	ucbs := make([]float32, len(n.valid))
	for action := range ucbs {
		if n.valid[action] == 0 {
			ucbs[action] = game.MinValue
			continue
		}
		q := float32(0)
		childVisits := 0
		if n.children != nil {
			if child := n.children[n.childIndex[action]]; child != nil {
				q = child.Value()
				childVisits = child.visits
			}
		}
		prior := float32(1)
		if n.prior != nil {
			prior = n.prior[action]
		}
		ucbs[action] = q + c*prior*sqrtN/(1+float32(childVisits))
	}
	return ucbs
}

// Traverse descends to the child for action, creating it on first visit.
func (n *Node) Traverse(action int) (*Node, error) {
	if err := n.materialize(); err != nil {
		return nil, err
	}
	idx := n.childIndex[action]
	if idx < 0 {
		return nil, fmt.Errorf("montecarlo: traverse on invalid action %d", action)
	}
	if n.children[idx] == nil {
		n.children[idx] = newNode(n.rules, n.childStates[idx], n.childMaps[idx], n)
	}
	return n.children[idx], nil
}

func (n *Node) materialize() error {
	if n.children != nil {
		return nil
	}
	states, gmaps, err := n.rules.Children(n.state, n.gmap, true)
	if err != nil {
		return fmt.Errorf("expand node: %w", err)
	}
	n.childStates = states
	n.childMaps = gmaps
	n.children = make([]*Node, len(states))
	n.childIndex = make([]int, len(n.valid))
	idx := 0
	for action, v := range n.valid {
		if v == 0 {
			n.childIndex[action] = -1
			continue
		}
		n.childIndex[action] = idx
		idx++
	}
	return nil
}

// Backprop walks the path to the root, counting the visit at every level.
// The value flips sign once per tree edge so each ancestor accumulates it
// from its own player's perspective. A terminal short-circuit backs up with
// counted=false: visits increment, no value is added anywhere.
func (n *Node) Backprop(v float32, counted bool) {
	n.visits++
	if counted {
		n.valueSum += v
	}
	if n.parent != nil {
		n.parent.Backprop(InvertValue(v), counted)
	}
}

// MoveVisits returns the per-action visit counts of this node's children.
// Actions without a materialized child report zero.
func (n *Node) MoveVisits() []int {
	visits := make([]int, len(n.valid))
	if n.children == nil {
		return visits
	}
	for action, idx := range n.childIndex {
		if idx < 0 {
			continue
		}
		if child := n.children[idx]; child != nil {
			visits[action] = child.visits
		}
	}
	return visits
}
