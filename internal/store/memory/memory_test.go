package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-live/internal/store"
	"github.com/vovakirdan/wirechat-live/internal/store/storetest"
)

func TestMemoryMessageStore(t *testing.T) {
	storetest.RunMessageStore(t, func(t *testing.T) store.MessageStore {
		s := New()
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestMemoryPubSub(t *testing.T) {
	storetest.RunPubSub(t, func(t *testing.T) store.Backend {
		s := New()
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestOfflineReturnsUnavailable(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.Append(ctx, "k", "a"); err != nil {
		t.Fatalf("append: %v", err)
	}

	s.SetOffline(true)
	if _, err := s.Append(ctx, "k", "b"); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from append, got %v", err)
	}
	if _, err := s.Len(ctx, "k"); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from len, got %v", err)
	}
	if err := s.Publish(ctx, "c", "k"); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from publish, got %v", err)
	}

	s.SetOffline(false)
	n, err := s.Len(ctx, "k")
	if err != nil {
		t.Fatalf("len after recovery: %v", err)
	}
	if n != 1 {
		t.Fatalf("failed append must not be stored, len=%d", n)
	}
}

func TestOfflineDropsSubscriptions(t *testing.T) {
	s := New()
	sub, err := s.Subscribe(context.Background(), "c")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if got := s.Subscribers("c"); got != 1 {
		t.Fatalf("expected 1 subscriber, got %d", got)
	}

	s.SetOffline(true)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := sub.Receive(ctx); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if got := s.Subscribers("c"); got != 0 {
		t.Fatalf("expected subscribers cleared, got %d", got)
	}
}

func TestSmallPages(t *testing.T) {
	s := New()
	s.SetPageSize(2)
	ctx := context.Background()
	for _, v := range []string{"a", "b", "c", "d", "e"} {
		if _, err := s.Append(ctx, "k", v); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	var got []string
	for line, err := range s.Range(ctx, "k", 1) {
		if err != nil {
			t.Fatalf("range: %v", err)
		}
		got = append(got, line)
	}
	if len(got) != 4 || got[0] != "b" || got[3] != "e" {
		t.Fatalf("unexpected lines: %v", got)
	}
}
