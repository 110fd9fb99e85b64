package http

import (
	"testing"
	"time"
)

func TestRateLimiterResetsEachWindow(t *testing.T) {
	rl := newRateLimiterWindow(2, 20*time.Millisecond)
	stop := make(chan struct{})
	defer close(stop)
	rl.startReset(stop)

	if !rl.allow() || !rl.allow() {
		t.Fatal("first two messages must pass")
	}
	if rl.allow() {
		t.Fatal("third message in the window must be rejected")
	}

	deadline := time.Now().Add(time.Second)
	for !rl.allow() {
		if time.Now().After(deadline) {
			t.Fatal("limiter never reset")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := newRateLimiter(0)
	rl.startReset(nil)
	for i := 0; i < 1000; i++ {
		if !rl.allow() {
			t.Fatal("zero limit must not reject")
		}
	}
}
