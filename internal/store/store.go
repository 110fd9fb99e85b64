package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// ErrUnavailable is returned when the backing persistence cannot be reached.
// Callers must treat a write that failed with it as not delivered.
var ErrUnavailable = errors.New("store unavailable")

// ErrClosed is returned by a subscription after Close.
var ErrClosed = errors.New("subscription closed")

// DefaultPageSize bounds how many lines a backend materializes per round trip
// while serving Range.
const DefaultPageSize = 128

// MessageStore is an append-only list of lines per key.
type MessageStore interface {
	// Append adds value to the end of the list stored at key and returns the new length.
	Append(ctx context.Context, key, value string) (int64, error)

	// Len returns the current length of the list stored at key.
	Len(ctx context.Context, key string) (int64, error)

	// Range yields the lines from start (inclusive) up to the length observed
	// when iteration begins. Backends read in pages.
	Range(ctx context.Context, key string, start int64) iter.Seq2[string, error]

	// Close releases the backend.
	Close() error
}

// Notification is one message received on a pub/sub channel.
type Notification struct {
	Channel string
	Payload string
}

// Subscription delivers notifications for a subscribed channel.
type Subscription interface {
	// Receive blocks until the next notification arrives or ctx is done.
	Receive(ctx context.Context) (Notification, error)

	// Close ends the subscription.
	Close() error
}

// PubSub is a broadcast channel shared by every process using the backend.
type PubSub interface {
	Publish(ctx context.Context, channel, payload string) error

	// Subscribe returns once the backend has confirmed the subscription.
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Backend is a store that also provides pub/sub.
type Backend interface {
	MessageStore
	PubSub
}

// Unavailable wraps a backend failure with ErrUnavailable. Context errors are
// passed through unchanged so callers can tell cancellation from outages.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

// Paged builds a Range iterator from a page reader. The end of the range is
// the length reported by length when iteration begins; read returns at most
// limit lines starting at from.
func Paged(
	ctx context.Context,
	start int64,
	pageSize int,
	length func(ctx context.Context) (int64, error),
	read func(ctx context.Context, from int64, limit int) ([]string, error),
) iter.Seq2[string, error] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if start < 0 {
		start = 0
	}
	return func(yield func(string, error) bool) {
		end, err := length(ctx)
		if err != nil {
			yield("", err)
			return
		}
		for pos := start; pos < end; {
			limit := pageSize
			if remaining := end - pos; remaining < int64(limit) {
				limit = int(remaining)
			}
			page, err := read(ctx, pos, limit)
			if err != nil {
				yield("", err)
				return
			}
			if len(page) == 0 {
				return
			}
			for _, line := range page {
				if !yield(line, nil) {
					return
				}
			}
			pos += int64(len(page))
		}
	}
}
