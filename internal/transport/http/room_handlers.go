package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-live/internal/core"
	"github.com/vovakirdan/wirechat-live/internal/proto"
)

const anonymousAuthor = "anonymous"

// RoomHandlers provides HTTP handlers for room endpoints.
type RoomHandlers struct {
	registry *core.Registry
	log      *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(registry *core.Registry, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		registry: registry,
		log:      logger,
	}
}

// ListRooms returns the rooms resident in this process.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, proto.RoomsResponse{Rooms: h.registry.Rooms()})
}

// History returns the stored lines of a room from ?since=N onwards.
// GET /api/rooms/:room/messages
func (h *RoomHandlers) History(c *gin.Context) {
	room, err := h.registry.GetOrCreate(c.Param("room"))
	if err != nil {
		h.fail(c, err)
		return
	}
	since, err := parseSince(c.Query("since"))
	if err != nil {
		h.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	n, err := room.Len(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	since = min(since, n)

	// Lines appended while the page is read are left for the live channel.
	lines := make([]string, 0, n-since)
	for msg, err := range room.History(ctx, since) {
		if err != nil {
			h.fail(c, err)
			return
		}
		if since+int64(len(lines)) >= n {
			break
		}
		lines = append(lines, msg.String())
	}

	c.JSON(http.StatusOK, proto.HistoryResponse{
		Room:     room.ID(),
		Messages: lines,
		Next:     since + int64(len(lines)),
	})
}

// PostMessage appends a message to a room. An empty body is accepted and
// dropped.
// POST /api/rooms/:room/messages
func (h *RoomHandlers) PostMessage(c *gin.Context) {
	room, err := h.registry.GetOrCreate(c.Param("room"))
	if err != nil {
		h.fail(c, err)
		return
	}

	var req proto.PostMessageRequest
	if err := c.ShouldBind(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid post message request")
		h.fail(c, core.ErrBadRequest)
		return
	}
	if req.Author == "" {
		req.Author = anonymousAuthor
	}

	if err := room.AddMessage(c.Request.Context(), req.Author, req.Body); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RoomHandlers) fail(c *gin.Context, err error) {
	status := httpStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("room request failed")
	}
	c.JSON(status, errorResponse(err))
}

// parseSince reads an optional non-negative index.
func parseSince(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, core.ErrBadRequest
	}
	return n, nil
}
