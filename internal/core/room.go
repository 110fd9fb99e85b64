package core

import (
	"context"
	"fmt"
	"iter"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-live/internal/store"
)

// Publisher announces a room update to every process sharing the store.
type Publisher interface {
	Publish(ctx context.Context, channel, payload string) error
}

// Room is one chat stream: a handle on its history in the store plus the
// notifier its readers park on.
type Room struct {
	id       string
	key      string
	store    store.MessageStore
	notifier *Notifier

	// publisher is nil in local mode; then writers signal the notifier directly.
	publisher Publisher
	channel   string

	log zerolog.Logger
}

// ID returns the room identifier.
func (r *Room) ID() string { return r.id }

// Notifier returns the wake primitive of the room.
func (r *Room) Notifier() *Notifier { return r.notifier }

// AddMessage appends "author: body" and wakes readers. An empty body is
// dropped silently. The wake goes either to the local notifier or, when a
// publisher is configured, to the shared channel, never both.
func (r *Room) AddMessage(ctx context.Context, author, body string) error {
	if body == "" {
		return nil
	}

	msg := Message{Author: author, Body: body}
	n, err := r.store.Append(ctx, r.key, msg.String())
	if err != nil {
		return fmt.Errorf("append to room %s: %w", r.id, err)
	}
	r.log.Debug().Int64("index", n-1).Str("author", author).Msg("message appended")

	if r.publisher == nil {
		r.notifier.Signal()
		return nil
	}
	if err := r.publisher.Publish(ctx, r.channel, r.id); err != nil {
		// The message is durable; only remote and local wakeups are delayed.
		r.log.Warn().Err(err).Str("channel", r.channel).Msg("publish room update failed, readers may lag")
	}
	return nil
}

// Len returns the current history length.
func (r *Room) Len(ctx context.Context) (int64, error) {
	n, err := r.store.Len(ctx, r.key)
	if err != nil {
		return 0, fmt.Errorf("length of room %s: %w", r.id, err)
	}
	return n, nil
}

// History yields the messages stored from start up to the current length.
func (r *Room) History(ctx context.Context, start int64) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		for line, err := range r.store.Range(ctx, r.key, start) {
			if err != nil {
				yield(Message{}, fmt.Errorf("read room %s: %w", r.id, err))
				return
			}
			if !yield(ParseMessage(line), nil) {
				return
			}
		}
	}
}

// WaitFor blocks until the history holds at least n messages or ctx is done.
func (r *Room) WaitFor(ctx context.Context, n int64) error {
	return r.notifier.WaitUntilAtLeast(ctx, n, r.Len)
}

// Cursor returns a reader positioned at next.
func (r *Room) Cursor(next int64) *Cursor {
	if next < 0 {
		next = 0
	}
	return &Cursor{room: r, next: next}
}

// Attach returns a cursor at the current length, so the reader receives only
// messages appended from now on.
func (r *Room) Attach(ctx context.Context) (*Cursor, error) {
	n, err := r.Len(ctx)
	if err != nil {
		return nil, err
	}
	return r.Cursor(n), nil
}

// StreamSince yields every message from next on, blocking when caught up. It
// ends only with an error, including ctx cancellation.
func (r *Room) StreamSince(ctx context.Context, next int64) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		c := r.Cursor(next)
		for {
			msg, err := c.Next(ctx)
			if !yield(msg, err) || err != nil {
				return
			}
		}
	}
}
