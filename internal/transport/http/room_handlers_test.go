package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/vovakirdan/wirechat-live/internal/core"
	"github.com/vovakirdan/wirechat-live/internal/proto"
	"github.com/vovakirdan/wirechat-live/internal/relay"
)

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url, body string) int {
	t.Helper()

	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	env.room(t, "lobby")

	resp, err := http.Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected /health response: %d %q", resp.StatusCode, body)
	}

	var health proto.HealthResponse
	if code := getJSON(t, env.ts.URL+"/api/health", &health); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if health.Status != "ok" || health.Mode != "local" || health.Rooms != 1 || health.Relay != "" {
		t.Fatalf("unexpected health: %+v", health)
	}
}

type fixedRelay relay.State

func (f fixedRelay) State() relay.State { return relay.State(f) }

func TestHealthReportsRelayState(t *testing.T) {
	env := newTestEnv(t, nil)
	handler := healthHandler(env.registry, fixedRelay(relay.StateListening), "distributed")

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	handler(c)

	var health proto.HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Mode != "distributed" || health.Relay != "listening" {
		t.Fatalf("unexpected health: %+v", health)
	}
}

func TestPostAndHistory(t *testing.T) {
	env := newTestEnv(t, nil)
	base := env.ts.URL + "/api/rooms/lobby/messages"

	if code := postJSON(t, base, `{"author":"alice","body":"hi"}`); code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", code)
	}

	form := url.Values{"author": {"bob"}, "body": {"yo"}}
	resp, err := http.PostForm(base, form)
	if err != nil {
		t.Fatalf("post form: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for form post, got %d", resp.StatusCode)
	}

	if code := postJSON(t, base, `{"body":"who am i"}`); code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", code)
	}

	var page proto.HistoryResponse
	if code := getJSON(t, base, &page); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	want := []string{"alice: hi", "bob: yo", "anonymous: who am i"}
	if page.Room != "lobby" || page.Next != 3 || len(page.Messages) != len(want) {
		t.Fatalf("unexpected page: %+v", page)
	}
	for i := range want {
		if page.Messages[i] != want[i] {
			t.Fatalf("message %d: want %q, got %q", i, want[i], page.Messages[i])
		}
	}

	var tail proto.HistoryResponse
	getJSON(t, base+"?since=2", &tail)
	if tail.Next != 3 || len(tail.Messages) != 1 || tail.Messages[0] != "anonymous: who am i" {
		t.Fatalf("unexpected tail: %+v", tail)
	}

	var past proto.HistoryResponse
	getJSON(t, base+"?since=99", &past)
	if past.Next != 3 || len(past.Messages) != 0 {
		t.Fatalf("since beyond length should clamp: %+v", past)
	}
}

func TestEmptyBodyIsNotStored(t *testing.T) {
	env := newTestEnv(t, nil)
	base := env.ts.URL + "/api/rooms/lobby/messages"

	if code := postJSON(t, base, `{"author":"alice","body":""}`); code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", code)
	}

	var page proto.HistoryResponse
	getJSON(t, base, &page)
	if page.Next != 0 || len(page.Messages) != 0 {
		t.Fatalf("empty body must not be stored: %+v", page)
	}
}

func TestRoomRequestErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		do     func() int
		status int
	}{
		{
			name:   "invalid room id",
			do:     func() int { return postJSON(t, env.ts.URL+"/api/rooms/bad%20room/messages", `{"body":"x"}`) },
			status: http.StatusBadRequest,
		},
		{
			name:   "negative since",
			do:     func() int { return getJSON(t, env.ts.URL+"/api/rooms/lobby/messages?since=-1", nil) },
			status: http.StatusBadRequest,
		},
		{
			name:   "malformed json",
			do:     func() int { return postJSON(t, env.ts.URL+"/api/rooms/lobby/messages", `{"body":`) },
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.do(); got != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, got)
			}
		})
	}
}

func TestStoreUnavailableMapsTo503(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.SetOffline(true)

	if code := postJSON(t, env.ts.URL+"/api/rooms/lobby/messages", `{"author":"a","body":"x"}`); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 on post, got %d", code)
	}
	if code := getJSON(t, env.ts.URL+"/api/rooms/lobby/messages", nil); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 on history, got %d", code)
	}
}

func TestListRooms(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, id := range []string{"zeta", "alpha"} {
		env.room(t, id)
	}

	var rooms proto.RoomsResponse
	getJSON(t, env.ts.URL+"/api/rooms", &rooms)
	if len(rooms.Rooms) != 2 || rooms.Rooms[0] != "alpha" || rooms.Rooms[1] != "zeta" {
		t.Fatalf("unexpected rooms: %v", rooms.Rooms)
	}
}

func TestErrorCodes(t *testing.T) {
	body := errorResponse(core.ErrInvalidRoomID)
	if body.Error.Code != core.ErrCodeBadRequest {
		t.Fatalf("unexpected code %q", body.Error.Code)
	}
}
