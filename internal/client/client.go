// Package client is a terminal chat client for the live room endpoint.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/coder/websocket"
)

// Options selects the server, room and identity of a chat session.
type Options struct {
	// URL is the server base, e.g. ws://localhost:8080.
	URL    string
	Room   string
	Author string
	// Since replays history from this index; negative starts live.
	Since int64
}

// Endpoint returns the WebSocket URL for the session.
func (o Options) Endpoint() (string, error) {
	base, err := url.Parse(o.URL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	switch base.Scheme {
	case "http":
		base.Scheme = "ws"
	case "https":
		base.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported url scheme %q", base.Scheme)
	}
	if o.Room == "" {
		return "", errors.New("room is required")
	}

	base.Path = strings.TrimSuffix(base.Path, "/") + "/ws/" + o.Room
	q := url.Values{}
	if o.Author != "" {
		q.Set("author", o.Author)
	}
	if o.Since >= 0 {
		q.Set("since", strconv.FormatInt(o.Since, 10))
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// Run sends every non-empty line of in to the room and writes every received
// line to out. It returns when in is exhausted, ctx is canceled or the server
// closes the connection.
func Run(ctx context.Context, opts Options, in io.Reader, out io.Writer) error {
	endpoint, err := opts.Endpoint()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()

	readErr := make(chan error, 1)
	go func() {
		defer cancel()
		readErr <- readLoop(ctx, conn, out)
	}()

	writeErr := writeLoop(ctx, conn, in)
	if writeErr == nil && ctx.Err() == nil {
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}
	cancel()

	if err := <-readErr; err != nil {
		return err
	}
	return writeErr
}

func readLoop(ctx context.Context, conn *websocket.Conn, out io.Writer) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return nil
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if _, err := fmt.Fprintln(out, string(data)); err != nil {
			return fmt.Errorf("print: %w", err)
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, []byte(text)); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("send: %w", err)
			}
		}
	}
}
