package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-live/internal/config"
	"github.com/vovakirdan/wirechat-live/internal/core"
	"github.com/vovakirdan/wirechat-live/internal/store/memory"
)

type testEnv struct {
	ts       *httptest.Server
	registry *core.Registry
	store    *memory.Store
	cfg      config.Config
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	if mutate != nil {
		mutate(&cfg)
	}

	st := memory.New()
	t.Cleanup(func() { _ = st.Close() })

	logger := zerolog.Nop()
	reg := core.NewRegistry(core.RegistryOptions{Store: st, Logger: &logger})
	server := NewServer(reg, nil, &cfg, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, registry: reg, store: st, cfg: cfg}
}

func (e *testEnv) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(e.ts.URL, "http") + path
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func (e *testEnv) room(t *testing.T, id string) *core.Room {
	t.Helper()

	room, err := e.registry.GetOrCreate(id)
	if err != nil {
		t.Fatalf("get room %s: %v", id, err)
	}
	return room
}

func readLine(t *testing.T, conn *websocket.Conn) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if typ != websocket.MessageText {
		t.Fatalf("expected text frame, got %v", typ)
	}
	return string(data)
}

func sendLine(t *testing.T, conn *websocket.Conn, body string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageText, []byte(body)); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

// waitWaiters polls until n readers are parked on the room.
func waitWaiters(t *testing.T, room *core.Room, n int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for room.Notifier().Waiters() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d parked readers, have %d", n, room.Notifier().Waiters())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
