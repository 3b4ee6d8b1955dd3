package process

import (
	"context"
	"sync"
)

// Gates holds one single-slot suspension gate per process. A checkout
// goroutine parks in Wait until an external caller (HTTP handler or console
// prompt) calls Signal for the same id. The gate resets on wake, so the next
// Wait blocks again. At most one waiter per process at a time.
type Gates struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
}

func NewGates() *Gates {
	return &Gates{gates: make(map[string]chan struct{})}
}

func (g *Gates) gate(id string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[id]
	if !ok {
		ch = make(chan struct{}, 1)
		g.gates[id] = ch
	}
	return ch
}

// Wait parks until Signal(id) fires or ctx is cancelled. The suspension is
// unbounded, it represents waiting on a human; cancellation comes from the
// process-level context, not a timeout here. Cancellation wins over a
// pending signal, so a terminated process never resumes off a gate wake.
func (g *Gates) Wait(ctx context.Context, id string) error {
	ch := g.gate(id)
	select {
	case <-ch:
		if err := ctx.Err(); err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Signal wakes the waiter for id. The gate is created on first use from
// either side, and the buffered slot means a signal sent moments before the
// waiter parks is not lost; a second signal before the first is consumed is
// dropped.
func (g *Gates) Signal(id string) {
	ch := g.gate(id)
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Release force-signals and removes the gate so a parked waiter is never
// left hanging at teardown.
func (g *Gates) Release(id string) {
	g.mu.Lock()
	ch, ok := g.gates[id]
	if ok {
		delete(g.gates, id)
	}
	g.mu.Unlock()
	if ok {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
