package httpclient

import (
	"container/list"
	"context"
	"sync"
)

type gateState int

const (
	stateIdle gateState = iota
	stateRefreshing
)

// refreshGate collapses concurrent authentication failures into a single
// refresh. The first caller runs the refresh; later callers park in a FIFO
// queue and are settled with its outcome. The gate is back to idle before
// any caller observes the result.
type refreshGate struct {
	mu    sync.Mutex
	state gateState
	queue *list.List
}

type waiter struct {
	done    chan struct{}
	token   string
	err     error
	elem    *list.Element
	settled bool
}

func newRefreshGate() *refreshGate {
	return &refreshGate{
		queue: list.New(),
	}
}

func (g *refreshGate) pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queue.Len()
}

// do runs refresh unless one is already in flight, in which case it waits
// for that one. A waiter whose ctx ends leaves the queue and returns
// ctx.Err().
func (g *refreshGate) do(ctx context.Context, refresh func() (string, error)) (string, error) {
	g.mu.Lock()
	if g.state == stateRefreshing {
		w := g.enqueue()
		g.mu.Unlock()
		return g.wait(ctx, w)
	}
	g.state = stateRefreshing
	g.mu.Unlock()

	finished := false
	defer func() {
		if !finished {
			g.settle("", errRefreshAborted)
		}
	}()

	token, err := refresh()
	g.settle(token, err)
	finished = true

	return token, err
}

// enqueue must be called with g.mu held.
func (g *refreshGate) enqueue() *waiter {
	w := &waiter{done: make(chan struct{})}
	w.elem = g.queue.PushBack(w)
	return w
}

func (g *refreshGate) wait(ctx context.Context, w *waiter) (string, error) {
	select {
	case <-w.done:
		return w.token, w.err
	case <-ctx.Done():
		g.mu.Lock()
		if !w.settled {
			g.queue.Remove(w.elem)
			w.elem = nil
		}
		g.mu.Unlock()
		return "", ctx.Err()
	}
}

// settle returns the gate to idle and drains the queue in arrival order.
func (g *refreshGate) settle(token string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state = stateIdle
	for e := g.queue.Front(); e != nil; e = e.Next() {
		w := e.Value.(*waiter)
		w.token = token
		w.err = err
		w.settled = true
		close(w.done)
	}
	g.queue.Init()
}
