package core

import (
	"context"
	"sync"
)

// Notifier is a broadcast wake primitive for one room. Every Signal closes the
// current wake channel and installs a fresh one, so all goroutines parked on
// the old channel resume together.
type Notifier struct {
	mu      sync.Mutex
	gen     uint64
	ch      chan struct{}
	waiters int
}

// NewNotifier returns a notifier at generation zero.
func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{})}
}

// Signal wakes every current waiter. With no waiters it only advances the
// generation.
func (n *Notifier) Signal() {
	n.mu.Lock()
	close(n.ch)
	n.ch = make(chan struct{})
	n.gen++
	n.mu.Unlock()
}

// Generation returns how many times Signal has been called.
func (n *Notifier) Generation() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.gen
}

// Waiters returns the number of goroutines currently parked.
func (n *Notifier) Waiters() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.waiters
}

func (n *Notifier) watch() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ch
}

// WaitUntilAtLeast blocks until length reports at least want, re-checking after
// every Signal. The wake channel is captured before each length check, so a
// Signal that lands between the check and parking is not lost.
func (n *Notifier) WaitUntilAtLeast(ctx context.Context, want int64, length func(context.Context) (int64, error)) error {
	for {
		wake := n.watch()

		have, err := length(ctx)
		if err != nil {
			return err
		}
		if have >= want {
			return nil
		}

		if err := n.park(ctx, wake); err != nil {
			return err
		}
	}
}

func (n *Notifier) park(ctx context.Context, wake <-chan struct{}) error {
	n.mu.Lock()
	n.waiters++
	n.mu.Unlock()
	defer func() {
		n.mu.Lock()
		n.waiters--
		n.mu.Unlock()
	}()

	select {
	case <-wake:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
