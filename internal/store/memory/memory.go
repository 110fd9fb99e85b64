// Package memory implements store.Backend in process memory. Several
// registries sharing one Store behave like processes sharing one Redis.
package memory

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/vovakirdan/wirechat-live/internal/store"
)

var errInjected = errors.New("memory store offline")

// Store keeps lists and channel subscribers in memory.
type Store struct {
	mu     sync.RWMutex
	lists  map[string][]string
	subs   map[string]map[*subscription]struct{}
	closed bool

	pageSize int
	offline  bool
}

var _ store.Backend = (*Store)(nil)

// New creates an empty memory store.
func New() *Store {
	return &Store{
		lists:    make(map[string][]string),
		subs:     make(map[string]map[*subscription]struct{}),
		pageSize: store.DefaultPageSize,
	}
}

// SetPageSize overrides how many lines Range copies per page.
func (s *Store) SetPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageSize = n
}

// SetOffline makes every operation fail with store.ErrUnavailable while on is
// true. Going offline also drops existing subscriptions.
func (s *Store) SetOffline(on bool) {
	s.mu.Lock()
	s.offline = on
	var dropped []*subscription
	if on {
		for channel, set := range s.subs {
			for sub := range set {
				dropped = append(dropped, sub)
			}
			delete(s.subs, channel)
		}
	}
	s.mu.Unlock()

	for _, sub := range dropped {
		sub.fail(store.Unavailable("receive", errInjected))
	}
}

// Subscribers reports how many live subscriptions channel has.
func (s *Store) Subscribers(channel string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs[channel])
}

func (s *Store) check(op string) error {
	if s.closed {
		return store.Unavailable(op, errors.New("memory store closed"))
	}
	if s.offline {
		return store.Unavailable(op, errInjected)
	}
	return nil
}

// Append implements store.MessageStore.
func (s *Store) Append(ctx context.Context, key, value string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("append"); err != nil {
		return 0, err
	}
	s.lists[key] = append(s.lists[key], value)
	return int64(len(s.lists[key])), nil
}

// Len implements store.MessageStore.
func (s *Store) Len(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check("len"); err != nil {
		return 0, err
	}
	return int64(len(s.lists[key])), nil
}

// Range implements store.MessageStore.
func (s *Store) Range(ctx context.Context, key string, start int64) iter.Seq2[string, error] {
	s.mu.RLock()
	pageSize := s.pageSize
	s.mu.RUnlock()

	length := func(ctx context.Context) (int64, error) { return s.Len(ctx, key) }
	return store.Paged(ctx, start, pageSize, length, func(ctx context.Context, from int64, limit int) ([]string, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.mu.RLock()
		defer s.mu.RUnlock()
		if err := s.check("range"); err != nil {
			return nil, err
		}
		list := s.lists[key]
		if from >= int64(len(list)) {
			return nil, nil
		}
		to := from + int64(limit)
		if to > int64(len(list)) {
			to = int64(len(list))
		}
		page := make([]string, to-from)
		copy(page, list[from:to])
		return page, nil
	})
}

// Publish implements store.PubSub. It never blocks: a payload already
// pending for a subscriber is coalesced with the new one.
func (s *Store) Publish(ctx context.Context, channel, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check("publish"); err != nil {
		return err
	}

	msg := store.Notification{Channel: channel, Payload: payload}
	for sub := range s.subs[channel] {
		sub.push(msg)
	}
	return nil
}

// Subscribe implements store.PubSub.
func (s *Store) Subscribe(ctx context.Context, channel string) (store.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("subscribe"); err != nil {
		return nil, err
	}
	sub := &subscription{
		owner:   s,
		channel: channel,
		wake:    make(chan struct{}, 1),
		queued:  make(map[store.Notification]struct{}),
		done:    make(chan struct{}),
	}
	if s.subs[channel] == nil {
		s.subs[channel] = make(map[*subscription]struct{})
	}
	s.subs[channel][sub] = struct{}{}
	return sub, nil
}

// Close implements store.MessageStore.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	var all []*subscription
	for channel, set := range s.subs {
		for sub := range set {
			all = append(all, sub)
		}
		delete(s.subs, channel)
	}
	s.mu.Unlock()

	for _, sub := range all {
		sub.fail(store.ErrClosed)
	}
	return nil
}

func (s *Store) unsubscribe(sub *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.subs[sub.channel]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(s.subs, sub.channel)
		}
	}
}

type subscription struct {
	owner   *Store
	channel string
	done    chan struct{}

	mu      sync.Mutex
	pending []store.Notification
	queued  map[store.Notification]struct{}
	wake    chan struct{}

	once sync.Once
	err  error
}

func (sub *subscription) push(msg store.Notification) {
	sub.mu.Lock()
	if _, dup := sub.queued[msg]; !dup {
		sub.queued[msg] = struct{}{}
		sub.pending = append(sub.pending, msg)
	}
	sub.mu.Unlock()

	select {
	case sub.wake <- struct{}{}:
	default:
	}
}

func (sub *subscription) pop() (store.Notification, bool) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if len(sub.pending) == 0 {
		return store.Notification{}, false
	}
	msg := sub.pending[0]
	sub.pending = sub.pending[1:]
	delete(sub.queued, msg)
	return msg, true
}

func (sub *subscription) fail(err error) {
	sub.once.Do(func() {
		sub.err = err
		close(sub.done)
	})
}

func (sub *subscription) Receive(ctx context.Context) (store.Notification, error) {
	for {
		if msg, ok := sub.pop(); ok {
			return msg, nil
		}
		select {
		case <-sub.wake:
		case <-sub.done:
			return store.Notification{}, sub.err
		case <-ctx.Done():
			return store.Notification{}, ctx.Err()
		}
	}
}

func (sub *subscription) Close() error {
	sub.fail(store.ErrClosed)
	sub.owner.unsubscribe(sub)
	return nil
}
