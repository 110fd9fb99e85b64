// Package relay turns room-update notifications on the shared pub/sub channel
// into local notifier wakeups, which lets several server processes serve the
// same rooms from one store.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-live/internal/core"
	"github.com/vovakirdan/wirechat-live/internal/store"
)

// ErrChannelDisconnected marks a lost subscription. It is logged, never
// returned to chat clients.
var ErrChannelDisconnected = errors.New("relay channel disconnected")

const (
	defaultBackoffMin = 100 * time.Millisecond
	defaultBackoffMax = 10 * time.Second
)

// State is the subscription state of a relay.
type State int32

const (
	StateDisconnected State = iota
	StateSubscribing
	StateListening
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateSubscribing:
		return "subscribing"
	case StateListening:
		return "listening"
	default:
		return "unknown"
	}
}

// Subscriber opens subscriptions on the shared channel.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (store.Subscription, error)
}

// RoomLookup finds resident rooms without creating them.
type RoomLookup interface {
	Lookup(id string) (*core.Room, bool)
}

// Options configures a Relay.
type Options struct {
	Channel    string
	BackoffMin time.Duration
	BackoffMax time.Duration
	Logger     *zerolog.Logger
}

// Relay listens on one channel and wakes local rooms named in notifications.
type Relay struct {
	sub   Subscriber
	rooms RoomLookup
	opts  Options
	log   zerolog.Logger

	state     atomic.Int32
	delivered atomic.Uint64
	missed    atomic.Uint64
}

// New builds a relay; call Run to start it.
func New(sub Subscriber, rooms RoomLookup, opts Options) *Relay {
	if opts.BackoffMin <= 0 {
		opts.BackoffMin = defaultBackoffMin
	}
	if opts.BackoffMax < opts.BackoffMin {
		opts.BackoffMax = max(defaultBackoffMax, opts.BackoffMin)
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Relay{
		sub:   sub,
		rooms: rooms,
		opts:  opts,
		log:   logger.With().Str("component", "relay").Str("channel", opts.Channel).Logger(),
	}
}

// State returns the current subscription state.
func (r *Relay) State() State { return State(r.state.Load()) }

// Delivered counts notifications that woke a resident room.
func (r *Relay) Delivered() uint64 { return r.delivered.Load() }

// Missed counts notifications for rooms not resident in this process.
func (r *Relay) Missed() uint64 { return r.missed.Load() }

func (r *Relay) setState(s State) {
	if State(r.state.Swap(int32(s))) != s {
		r.log.Debug().Str("state", s.String()).Msg("relay state changed")
	}
}

// Run subscribes and dispatches until ctx is canceled, resubscribing with
// exponential backoff after failures. While disconnected, local readers do not
// learn about writes made by other processes.
func (r *Relay) Run(ctx context.Context) error {
	defer r.setState(StateDisconnected)

	backoff := r.opts.BackoffMin
	for {
		if ctx.Err() != nil {
			return nil
		}

		r.setState(StateSubscribing)
		sub, err := r.sub.Subscribe(ctx, r.opts.Channel)
		if err == nil {
			backoff = r.opts.BackoffMin
			r.setState(StateListening)
			r.log.Info().Msg("relay listening")
			err = r.listen(ctx, sub)
			_ = sub.Close()
		}
		r.setState(StateDisconnected)
		if ctx.Err() != nil {
			return nil
		}

		r.log.Warn().
			Err(fmt.Errorf("%w: %w", ErrChannelDisconnected, err)).
			Dur("retry_in", backoff).
			Msg("relay degraded, cross-process updates paused")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		backoff = min(backoff*2, r.opts.BackoffMax)
	}
}

func (r *Relay) listen(ctx context.Context, sub store.Subscription) error {
	for {
		msg, err := sub.Receive(ctx)
		if err != nil {
			return err
		}
		r.dispatch(msg.Payload)
	}
}

// dispatch only wakes waiters; they re-read the shared store themselves.
func (r *Relay) dispatch(roomID string) {
	room, ok := r.rooms.Lookup(roomID)
	if !ok {
		r.missed.Add(1)
		r.log.Debug().Str("room", roomID).Msg("update for non-resident room")
		return
	}
	r.delivered.Add(1)
	room.Notifier().Signal()
}
