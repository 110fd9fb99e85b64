package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/wirechat-live/internal/config"
	"github.com/vovakirdan/wirechat-live/internal/core"
	"github.com/vovakirdan/wirechat-live/internal/utils"
)

const writeTimeout = 5 * time.Second

// WSHandler upgrades HTTP connections and bridges them to a room: inbound
// text frames become messages, and every message appended to the room goes
// out as one "author: body" text frame.
type WSHandler struct {
	registry        *core.Registry
	maxMessageBytes int64
	rateLimit       int
	log             *zerolog.Logger

	active sync.WaitGroup
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(registry *core.Registry, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		registry:        registry,
		maxMessageBytes: cfg.MaxMessageBytes,
		rateLimit:       cfg.RateLimitPerMinute,
		log:             logger,
	}
}

// ServeHTTP handles GET /ws/{room}?author=NAME[&since=N].
func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	h.active.Add(1)
	defer h.active.Done()

	if r.Method != stdhttp.MethodGet {
		stdhttp.Error(w, "method not allowed", stdhttp.StatusMethodNotAllowed)
		return
	}
	roomID := strings.TrimPrefix(r.URL.Path, "/ws/")

	room, err := h.registry.GetOrCreate(roomID)
	if err != nil {
		stdhttp.Error(w, err.Error(), httpStatus(err))
		return
	}
	author := r.URL.Query().Get("author")
	if author == "" {
		author = anonymousAuthor
	}
	rawSince := r.URL.Query().Get("since")
	since, err := parseSince(rawSince)
	if err != nil {
		stdhttp.Error(w, "invalid since", stdhttp.StatusBadRequest)
		return
	}

	ctx := r.Context()

	// Position the cursor before the upgrade so a store failure is a plain
	// HTTP error.
	var cursor *core.Cursor
	if rawSince == "" {
		cursor, err = room.Attach(ctx)
	} else {
		var n int64
		if n, err = room.Len(ctx); err == nil {
			cursor = room.Cursor(min(since, n))
		}
	}
	if err != nil {
		h.log.Error().Err(err).Str("room", roomID).Msg("position live cursor")
		stdhttp.Error(w, errorResponse(err).Error.Msg, httpStatus(err))
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()
	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	log := h.log.With().
		Str("conn_id", utils.NewID()).
		Str("room", room.ID()).
		Str("author", author).
		Logger()
	log.Info().Int64("from", cursor.Position()).Msg("ws connected")

	limiter := newRateLimiter(h.rateLimit)
	stop := make(chan struct{})
	limiter.startReset(stop)
	defer close(stop)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return h.readLoop(gctx, conn, room, author, limiter)
	})
	g.Go(func() error {
		return h.writeLoop(gctx, conn, cursor)
	})
	err = g.Wait()

	if errors.Is(err, io.EOF) {
		err = nil
	}
	status, reason, expected := websocket.StatusNormalClosure, "closing", true
	if err != nil {
		status, reason, expected = closeStatus(err)
	}
	if !expected {
		log.Warn().Err(err).Msg("ws connection closed with error")
	} else {
		log.Info().Int64("delivered_to", cursor.Position()).Msg("ws disconnected")
	}

	_ = conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, room *core.Room, author string, limiter *rateLimiter) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}
		if !limiter.allow() {
			return errRateLimited
		}
		if err := room.AddMessage(ctx, author, string(data)); err != nil {
			return err
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, cursor *core.Cursor) error {
	for {
		msg, err := cursor.Next(ctx)
		if err != nil {
			return err
		}
		// A pending write finishes even when the read side has failed, so the
		// close frame that follows is not lost.
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
		err = conn.Write(wctx, websocket.MessageText, []byte(msg.String()))
		cancel()
		if err != nil {
			return err
		}
	}
}
