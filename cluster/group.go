// Package cluster runs a fixed-size group of SPMD workers inside one
// process. All workers execute the same code path, diverging only on their
// rank, and meet at explicit collectives: a barrier, an all-reduce sum and a
// sequenced round-robin turn. Every collective honors context cancellation;
// a cancelled worker unblocks with the context's error.
package cluster

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Group is a set of cooperating workers. Construct once, then Run.
type Group struct {
	size int

	barrier *barrier

	redMu    sync.Mutex
	redRound *reduceRound

	seqMu     sync.Mutex
	seq       int
	seqChange chan struct{}
}

type reduceRound struct {
	sum   float64
	count int
	total float64
	done  chan struct{}
}

// NewGroup creates a worker group of the given size. Size must be positive.
func NewGroup(size int) *Group {
	if size <= 0 {
		panic("cluster: group size must be positive")
	}
	return &Group{
		size:      size,
		barrier:   newBarrier(size),
		redRound:  &reduceRound{done: make(chan struct{})},
		seqChange: make(chan struct{}),
	}
}

func (g *Group) Size() int { return g.size }

// Run launches one goroutine per rank and blocks until all return. The
// first error cancels the context seen by the remaining workers.
func (g *Group) Run(ctx context.Context, fn func(ctx context.Context, w *Worker) error) error {
	eg, ctx := errgroup.WithContext(ctx)
	for rank := 0; rank < g.size; rank++ {
		w := &Worker{group: g, rank: rank}
		eg.Go(func() error {
			return fn(ctx, w)
		})
	}
	return eg.Wait()
}

// Worker is one rank's handle on the group collectives.
type Worker struct {
	group *Group
	rank  int
	turns int
}

func (w *Worker) Rank() int { return w.rank }
func (w *Worker) Size() int { return w.group.size }

// Barrier blocks until every rank has arrived.
func (w *Worker) Barrier(ctx context.Context) error {
	return w.group.barrier.wait(ctx)
}

// AllReduceSum contributes v and returns the sum over all ranks. Every rank
// must call it the same number of times.
func (w *Worker) AllReduceSum(ctx context.Context, v float64) (float64, error) {
	g := w.group
	g.redMu.Lock()
	round := g.redRound
	round.sum += v
	round.count++
	if round.count == g.size {
		round.total = round.sum
		g.redRound = &reduceRound{done: make(chan struct{})}
		close(round.done)
	}
	g.redMu.Unlock()

	select {
	case <-round.done:
		return round.total, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// InTurn runs fn once on this rank, with ranks proceeding strictly one at a
// time in increasing order. The turn token is a shared sequence number: rank
// r of round k owns sequence k*size+r. An error from fn still releases the
// token so later ranks are not deadlocked.
func (w *Worker) InTurn(ctx context.Context, fn func() error) error {
	g := w.group
	target := w.turns*g.size + w.rank
	w.turns++

	if err := g.waitSeq(ctx, target); err != nil {
		return err
	}
	err := fn()
	g.advanceSeq()
	return err
}

func (g *Group) waitSeq(ctx context.Context, target int) error {
	g.seqMu.Lock()
	for g.seq != target {
		change := g.seqChange
		g.seqMu.Unlock()
		select {
		case <-change:
		case <-ctx.Done():
			return ctx.Err()
		}
		g.seqMu.Lock()
	}
	g.seqMu.Unlock()
	return nil
}

func (g *Group) advanceSeq() {
	g.seqMu.Lock()
	g.seq++
	close(g.seqChange)
	g.seqChange = make(chan struct{})
	g.seqMu.Unlock()
}

// barrier is a reusable generation barrier.
type barrier struct {
	mu      sync.Mutex
	size    int
	count   int
	release chan struct{}
}

func newBarrier(size int) *barrier {
	return &barrier{size: size, release: make(chan struct{})}
}

func (b *barrier) wait(ctx context.Context) error {
	b.mu.Lock()
	b.count++
	if b.count == b.size {
		b.count = 0
		close(b.release)
		b.release = make(chan struct{})
		b.mu.Unlock()
		return nil
	}
	release := b.release
	b.mu.Unlock()

	select {
	case <-release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
