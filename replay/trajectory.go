// Package replay owns self-play trajectories: the bounded in-memory buffer
// each worker accumulates, per-worker shard files on disk, the cross-worker
// sampling protocol and the fixed-dtype training batches it produces.
package replay

// Transition is one step of a played game, recorded from the perspective of
// the player who moved: canonical state, chosen action, step reward, the
// resulting canonical state, terminal flag, final game outcome for the
// mover, and the search policy the move was sampled from.
type Transition struct {
	State        []float32
	Action       int32
	Reward       float32
	NextState    []float32
	Terminal     uint8
	Outcome      int32
	SearchPolicy []float32
}

// Trajectory is the ordered transition sequence of one game.
type Trajectory struct {
	GameID      string
	Transitions []Transition
}

// Buffer is a bounded FIFO of trajectories. Once full, the oldest
// trajectories are dropped as new ones arrive.
type Buffer struct {
	max   int
	trajs []Trajectory
}

// NewBuffer creates a buffer holding at most max trajectories.
func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = 1
	}
	return &Buffer{max: max}
}

// Extend appends trajectories, evicting from the front beyond capacity.
func (b *Buffer) Extend(trajs []Trajectory) {
	b.trajs = append(b.trajs, trajs...)
	if over := len(b.trajs) - b.max; over > 0 {
		b.trajs = append(b.trajs[:0:0], b.trajs[over:]...)
	}
}

// Trajectories returns the buffered trajectories, oldest first. The slice
// is shared; callers must not mutate it.
func (b *Buffer) Trajectories() []Trajectory { return b.trajs }

func (b *Buffer) Len() int { return len(b.trajs) }

// Transitions counts all buffered transitions.
func (b *Buffer) Transitions() int {
	n := 0
	for _, t := range b.trajs {
		n += len(t.Transitions)
	}
	return n
}

func (b *Buffer) Clear() { b.trajs = nil }

// Flatten concatenates the transitions of all trajectories in order.
func Flatten(trajs []Trajectory) []Transition {
	n := 0
	for _, t := range trajs {
		n += len(t.Transitions)
	}
	out := make([]Transition, 0, n)
	for _, t := range trajs {
		out = append(out, t.Transitions...)
	}
	return out
}
