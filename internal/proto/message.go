// Package proto holds the JSON bodies of the HTTP API. Live connections carry
// no envelope: every outbound WebSocket text frame is one "author: body" line
// and every inbound text frame is one message body.
package proto

// PostMessageRequest is the body of POST /api/rooms/:room/messages. It binds
// from JSON or from an HTML form.
type PostMessageRequest struct {
	Author string `json:"author" form:"author"`
	Body   string `json:"body" form:"body"`
}

// HistoryResponse is the backlog page for a room.
type HistoryResponse struct {
	Room     string   `json:"room"`
	Messages []string `json:"messages"`
	// Next is the index a live reader should continue from.
	Next int64 `json:"next"`
}

// RoomsResponse lists the rooms resident in this process.
type RoomsResponse struct {
	Rooms []string `json:"rooms"`
}

// HealthResponse reports process state.
type HealthResponse struct {
	Status string `json:"status"`
	Mode   string `json:"mode"`
	Rooms  int    `json:"rooms"`
	Relay  string `json:"relay,omitempty"`
}

// Error describes an error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// ErrorResponse wraps Error in API responses.
type ErrorResponse struct {
	Error Error `json:"error"`
}
