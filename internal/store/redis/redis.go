// Package redis implements store.Backend on Redis lists and pub/sub, so any
// number of server processes can share room history and update notifications.
package redis

import (
	"context"
	"errors"
	"fmt"
	"iter"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vovakirdan/wirechat-live/internal/store"
)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Store keeps each room as a Redis list.
type Store struct {
	client   *goredis.Client
	pageSize int
}

var _ store.Backend = (*Store)(nil)

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, opts Options) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", store.Unavailable("ping", err))
	}
	return NewFromClient(client), nil
}

// NewFromClient wraps an existing client. The store takes ownership of it.
func NewFromClient(client *goredis.Client) *Store {
	return &Store{client: client, pageSize: store.DefaultPageSize}
}

// Append pushes value with RPUSH, which returns the new length atomically.
func (s *Store) Append(ctx context.Context, key, value string) (int64, error) {
	n, err := s.client.RPush(ctx, key, value).Result()
	if err != nil {
		return 0, store.Unavailable("rpush", err)
	}
	return n, nil
}

// Len implements store.MessageStore.
func (s *Store) Len(ctx context.Context, key string) (int64, error) {
	n, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, store.Unavailable("llen", err)
	}
	return n, nil
}

// Range pages through the list with LRANGE.
func (s *Store) Range(ctx context.Context, key string, start int64) iter.Seq2[string, error] {
	length := func(ctx context.Context) (int64, error) { return s.Len(ctx, key) }
	return store.Paged(ctx, start, s.pageSize, length, func(ctx context.Context, from int64, limit int) ([]string, error) {
		lines, err := s.client.LRange(ctx, key, from, from+int64(limit)-1).Result()
		if err != nil {
			return nil, store.Unavailable("lrange", err)
		}
		return lines, nil
	})
}

// Publish implements store.PubSub.
func (s *Store) Publish(ctx context.Context, channel, payload string) error {
	if err := s.client.Publish(ctx, channel, payload).Err(); err != nil {
		return store.Unavailable("publish", err)
	}
	return nil
}

// Subscribe waits for Redis to confirm the subscription before returning.
func (s *Store) Subscribe(ctx context.Context, channel string) (store.Subscription, error) {
	ps := s.client.Subscribe(ctx, channel)
	stop := context.AfterFunc(ctx, func() { _ = ps.Close() })
	msg, err := ps.Receive(ctx)
	if !stop() {
		return nil, ctx.Err()
	}
	if err != nil {
		_ = ps.Close()
		return nil, store.Unavailable("subscribe", err)
	}
	if _, ok := msg.(*goredis.Subscription); !ok {
		_ = ps.Close()
		return nil, store.Unavailable("subscribe", fmt.Errorf("unexpected reply %T", msg))
	}
	return &subscription{ps: ps}, nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

type subscription struct {
	ps *goredis.PubSub
}

// Receive blocks until a message arrives. go-redis only honours ctx
// deadlines while reading, so cancellation closes the subscription; it cannot
// be used after Receive returned a context error.
func (sub *subscription) Receive(ctx context.Context) (store.Notification, error) {
	stop := context.AfterFunc(ctx, func() { _ = sub.ps.Close() })
	defer stop()

	msg, err := sub.ps.ReceiveMessage(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return store.Notification{}, ctxErr
		}
		if errors.Is(err, goredis.ErrClosed) {
			return store.Notification{}, store.ErrClosed
		}
		return store.Notification{}, store.Unavailable("receive", err)
	}
	return store.Notification{Channel: msg.Channel, Payload: msg.Payload}, nil
}

func (sub *subscription) Close() error {
	return sub.ps.Close()
}
