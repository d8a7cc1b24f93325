package httpclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// queued lists the parked waiters front to back.
func queued(g *refreshGate) []*waiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []*waiter
	for e := g.queue.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*waiter))
	}
	return out
}

func TestRefreshGate_SettlesInArrivalOrder(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		err     error
		wantErr bool
	}{
		{name: "resolved", token: "T2"},
		{name: "rejected", err: errors.New("refresh failed"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newRefreshGate()

			g.mu.Lock()
			g.state = stateRefreshing
			a := g.enqueue()
			b := g.enqueue()
			c := g.enqueue()
			g.mu.Unlock()

			assert.Equal(t, []*waiter{a, b, c}, queued(g))
			g.settle(tt.token, tt.err)

			for _, w := range []*waiter{a, b, c} {
				select {
				case <-w.done:
				default:
					t.Fatal("waiter not settled")
				}
				assert.Equal(t, tt.token, w.token)
				if tt.wantErr {
					assert.Error(t, w.err)
				} else {
					assert.NoError(t, w.err)
				}
			}

			assert.Equal(t, stateIdle, g.state)
			assert.Equal(t, 0, g.pending())
		})
	}
}

func TestRefreshGate_SingleFlight(t *testing.T) {
	g := newRefreshGate()
	release := make(chan struct{})
	calls := 0

	leader := make(chan string, 1)
	go func() {
		token, _ := g.do(context.Background(), func() (string, error) {
			calls++
			<-release
			return "T2", nil
		})
		leader <- token
	}()

	require.Eventually(t, func() bool {
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.state == stateRefreshing
	}, time.Second, time.Millisecond)

	const followers = 3
	results := make(chan string, followers)
	for i := 0; i < followers; i++ {
		go func() {
			token, err := g.do(context.Background(), func() (string, error) {
				t.Error("follower must not refresh")
				return "", nil
			})
			assert.NoError(t, err)
			results <- token
		}()
		want := i + 1
		require.Eventually(t, func() bool { return g.pending() == want }, time.Second, time.Millisecond)
	}

	close(release)

	assert.Equal(t, "T2", <-leader)
	for i := 0; i < followers; i++ {
		assert.Equal(t, "T2", <-results)
	}
	assert.Equal(t, 1, calls)
}

func TestRefreshGate_CancelledWaiterLeavesQueue(t *testing.T) {
	g := newRefreshGate()

	g.mu.Lock()
	g.state = stateRefreshing
	kept := g.enqueue()
	cancelled := g.enqueue()
	g.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.wait(ctx, cancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []*waiter{kept}, queued(g))

	g.settle("T2", nil)
	assert.Equal(t, "T2", kept.token)
	assert.False(t, cancelled.settled)
}

func TestRefreshGate_PanicResetsState(t *testing.T) {
	g := newRefreshGate()

	g.mu.Lock()
	g.state = stateRefreshing
	queued := g.enqueue()
	g.state = stateIdle
	g.mu.Unlock()

	// The queued waiter above stands in for one parked behind the
	// refresh that is about to panic.
	func() {
		defer func() { recover() }()
		g.do(context.Background(), func() (string, error) {
			panic("boom")
		})
	}()

	assert.Equal(t, stateIdle, g.state)
	assert.ErrorIs(t, queued.err, errRefreshAborted)

	token, err := g.do(context.Background(), func() (string, error) { return "T3", nil })
	require.NoError(t, err)
	assert.Equal(t, "T3", token)
}
