package core

import (
	"context"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-live/internal/store/memory"
)

func newTestRegistry(t *testing.T) (*Registry, *memory.Store) {
	t.Helper()

	st := memory.New()
	t.Cleanup(func() { _ = st.Close() })
	return NewRegistry(RegistryOptions{Store: st}), st
}

func mustRoom(t *testing.T, reg *Registry, id string) *Room {
	t.Helper()

	room, err := reg.GetOrCreate(id)
	if err != nil {
		t.Fatalf("get room %s: %v", id, err)
	}
	return room
}

// startReader pumps a cursor into a channel until ctx is done.
func startReader(ctx context.Context, c *Cursor) (<-chan Message, <-chan error) {
	out := make(chan Message, 64)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		for {
			msg, err := c.Next(ctx)
			if err != nil {
				errCh <- err
				return
			}
			out <- msg
		}
	}()
	return out, errCh
}

func mustReceive(t *testing.T, ch <-chan Message) Message {
	t.Helper()

	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatalf("reader stopped before delivering a message")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("expected message not received")
	}
	return Message{}
}

func expectNothing(t *testing.T, ch <-chan Message, wait time.Duration) {
	t.Helper()

	select {
	case msg, ok := <-ch:
		if ok {
			t.Fatalf("unexpected message %q", msg)
		}
	case <-time.After(wait):
	}
}

// waitParked polls until n goroutines are parked on the notifier.
func waitParked(t *testing.T, n *Notifier, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n.Waiters() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d parked waiters, have %d", want, n.Waiters())
}
