// Package storetest holds the behaviour every store backend must share.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-live/internal/store"
)

// Factory returns a fresh, empty store. Cleanup is the caller's job via t.Cleanup.
type Factory func(t *testing.T) store.MessageStore

// RunMessageStore runs the MessageStore contract against stores built by newStore.
func RunMessageStore(t *testing.T, newStore Factory) {
	t.Run("append and len", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		n, err := s.Len(ctx, "empty")
		if err != nil {
			t.Fatalf("len of missing key: %v", err)
		}
		if n != 0 {
			t.Fatalf("expected 0, got %d", n)
		}

		for i := 1; i <= 3; i++ {
			got, err := s.Append(ctx, "k", "line"+strconv.Itoa(i))
			if err != nil {
				t.Fatalf("append %d: %v", i, err)
			}
			if got != int64(i) {
				t.Fatalf("append %d returned length %d", i, got)
			}
		}

		n, err = s.Len(ctx, "k")
		if err != nil {
			t.Fatalf("len: %v", err)
		}
		if n != 3 {
			t.Fatalf("expected 3, got %d", n)
		}
	})

	t.Run("keys are independent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		mustAppend(t, s, "a", "1")
		mustAppend(t, s, "a", "2")
		mustAppend(t, s, "b", "x")

		if got := collect(t, s, "a", 0); strings.Join(got, ",") != "1,2" {
			t.Fatalf("unexpected a: %v", got)
		}
		if got := collect(t, s, "b", 0); strings.Join(got, ",") != "x" {
			t.Fatalf("unexpected b: %v", got)
		}
		if n, _ := s.Len(ctx, "b"); n != 1 {
			t.Fatalf("expected b len 1, got %d", n)
		}
	})

	t.Run("range from offset", func(t *testing.T) {
		s := newStore(t)
		for i := range 5 {
			mustAppend(t, s, "k", strconv.Itoa(i))
		}

		tests := []struct {
			start int64
			want  string
		}{
			{start: 0, want: "0,1,2,3,4"},
			{start: 2, want: "2,3,4"},
			{start: 4, want: "4"},
			{start: 5, want: ""},
			{start: 9, want: ""},
			{start: -3, want: "0,1,2,3,4"},
		}
		for _, tt := range tests {
			got := strings.Join(collect(t, s, "k", tt.start), ",")
			if got != tt.want {
				t.Errorf("range(%d) = %q, want %q", tt.start, got, tt.want)
			}
		}
	})

	t.Run("range spans pages", func(t *testing.T) {
		s := newStore(t)
		const total = store.DefaultPageSize*2 + 7
		for i := range total {
			mustAppend(t, s, "big", strconv.Itoa(i))
		}

		got := collect(t, s, "big", 3)
		if len(got) != total-3 {
			t.Fatalf("expected %d lines, got %d", total-3, len(got))
		}
		for i, line := range got {
			if line != strconv.Itoa(i+3) {
				t.Fatalf("line %d = %q", i, line)
			}
		}
	})

	t.Run("range stops at snapshot length", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustAppend(t, s, "k", "a")
		mustAppend(t, s, "k", "b")

		var got []string
		for line, err := range s.Range(ctx, "k", 0) {
			if err != nil {
				t.Fatalf("range: %v", err)
			}
			got = append(got, line)
			if len(got) == 1 {
				mustAppend(t, s, "k", "c")
			}
		}
		if strings.Join(got, ",") != "a,b" {
			t.Fatalf("unexpected lines: %v", got)
		}
	})

	t.Run("early break", func(t *testing.T) {
		s := newStore(t)
		for i := range 10 {
			mustAppend(t, s, "k", strconv.Itoa(i))
		}
		count := 0
		for _, err := range s.Range(context.Background(), "k", 0) {
			if err != nil {
				t.Fatalf("range: %v", err)
			}
			count++
			if count == 4 {
				break
			}
		}
		if count != 4 {
			t.Fatalf("expected to stop at 4, got %d", count)
		}
		// store still usable after an abandoned iteration
		mustAppend(t, s, "k", "after")
	})

	t.Run("concurrent appends", func(t *testing.T) {
		s := newStore(t)
		const writers, perWriter = 8, 25

		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for w := range writers {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := range perWriter {
					if _, err := s.Append(context.Background(), "k", fmt.Sprintf("w%d:%d", w, i)); err != nil {
						errs <- err
						return
					}
				}
			}(w)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("append: %v", err)
		}

		n, err := s.Len(context.Background(), "k")
		if err != nil {
			t.Fatalf("len: %v", err)
		}
		if n != writers*perWriter {
			t.Fatalf("expected %d, got %d", writers*perWriter, n)
		}

		seen := make(map[string]bool)
		next := make(map[string]int)
		for _, line := range collect(t, s, "k", 0) {
			if seen[line] {
				t.Fatalf("duplicate line %q", line)
			}
			seen[line] = true
			writer, idx, _ := strings.Cut(line, ":")
			if want := strconv.Itoa(next[writer]); idx != want {
				t.Fatalf("writer %s out of order: got %s want %s", writer, idx, want)
			}
			next[writer]++
		}
		if len(seen) != writers*perWriter {
			t.Fatalf("expected %d distinct lines, got %d", writers*perWriter, len(seen))
		}
	})
}

// RunPubSub runs the PubSub contract against backends built by newBackend.
func RunPubSub(t *testing.T, newBackend func(t *testing.T) store.Backend) {
	t.Run("publish reaches every subscriber", func(t *testing.T) {
		b := newBackend(t)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		first, err := b.Subscribe(ctx, "updates")
		if err != nil {
			t.Fatalf("subscribe first: %v", err)
		}
		defer first.Close()
		second, err := b.Subscribe(ctx, "updates")
		if err != nil {
			t.Fatalf("subscribe second: %v", err)
		}
		defer second.Close()

		if err := b.Publish(ctx, "updates", "lobby"); err != nil {
			t.Fatalf("publish: %v", err)
		}

		for name, sub := range map[string]store.Subscription{"first": first, "second": second} {
			msg, err := sub.Receive(ctx)
			if err != nil {
				t.Fatalf("%s receive: %v", name, err)
			}
			if msg.Channel != "updates" || msg.Payload != "lobby" {
				t.Fatalf("%s got %+v", name, msg)
			}
		}
	})

	t.Run("other channels are not delivered", func(t *testing.T) {
		b := newBackend(t)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		sub, err := b.Subscribe(ctx, "updates")
		if err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		defer sub.Close()

		if err := b.Publish(ctx, "elsewhere", "nope"); err != nil {
			t.Fatalf("publish elsewhere: %v", err)
		}
		if err := b.Publish(ctx, "updates", "x"); err != nil {
			t.Fatalf("publish: %v", err)
		}

		msg, err := sub.Receive(ctx)
		if err != nil {
			t.Fatalf("receive: %v", err)
		}
		if msg.Payload != "x" {
			t.Fatalf("expected payload x, got %q", msg.Payload)
		}
	})

	t.Run("receive honours context", func(t *testing.T) {
		b := newBackend(t)
		sub, err := b.Subscribe(context.Background(), "quiet")
		if err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		defer sub.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		if _, err := sub.Receive(ctx); err == nil {
			t.Fatalf("expected error on idle receive")
		}
	})

	t.Run("receive returns promptly on cancel", func(t *testing.T) {
		b := newBackend(t)
		sub, err := b.Subscribe(context.Background(), "quiet")
		if err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		defer sub.Close()

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			_, err := sub.Receive(ctx)
			done <- err
		}()
		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("expected context.Canceled, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("receive still blocked after cancel")
		}
	})

	t.Run("repeated payloads are not lost", func(t *testing.T) {
		b := newBackend(t)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		sub, err := b.Subscribe(ctx, "updates")
		if err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		defer sub.Close()

		// Identical pending payloads may be coalesced, distinct ones must all arrive.
		for i := 0; i < 200; i++ {
			if err := b.Publish(ctx, "updates", "hot"); err != nil {
				t.Fatalf("publish: %v", err)
			}
		}
		if err := b.Publish(ctx, "updates", "cold"); err != nil {
			t.Fatalf("publish: %v", err)
		}

		for {
			msg, err := sub.Receive(ctx)
			if err != nil {
				t.Fatalf("receive: %v", err)
			}
			if msg.Payload == "cold" {
				return
			}
		}
	})
}

func mustAppend(t *testing.T, s store.MessageStore, key, value string) {
	t.Helper()
	if _, err := s.Append(context.Background(), key, value); err != nil {
		t.Fatalf("append %q: %v", value, err)
	}
}

func collect(t *testing.T, s store.MessageStore, key string, start int64) []string {
	t.Helper()
	var out []string
	for line, err := range s.Range(context.Background(), key, start) {
		if err != nil {
			t.Fatalf("range: %v", err)
		}
		out = append(out, line)
	}
	return out
}
