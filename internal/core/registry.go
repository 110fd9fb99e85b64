package core

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-live/internal/store"
)

// RegistryOptions wires rooms created by a Registry.
type RegistryOptions struct {
	Store store.MessageStore
	// Publisher selects distributed mode when non-nil.
	Publisher Publisher
	// KeyPrefix namespaces store keys and the update channel. Defaults to DefaultKeyPrefix.
	KeyPrefix string
	Logger    *zerolog.Logger
}

// Registry owns every Room of the process, at most one per id.
type Registry struct {
	opts    RegistryOptions
	channel string
	log     zerolog.Logger

	mu    sync.Mutex
	rooms map[string]*Room
}

// NewRegistry creates an empty registry.
func NewRegistry(opts RegistryOptions) *Registry {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultKeyPrefix
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Registry{
		opts:    opts,
		channel: UpdatesChannel(opts.KeyPrefix),
		log:     logger.With().Str("component", "registry").Logger(),
		rooms:   make(map[string]*Room),
	}
}

// Channel returns the pub/sub channel rooms publish updates on.
func (r *Registry) Channel() string { return r.channel }

// Distributed reports whether rooms publish instead of signalling locally.
func (r *Registry) Distributed() bool { return r.opts.Publisher != nil }

// GetOrCreate returns the room for id, creating it on first use. Concurrent
// first calls for one id all observe the same instance.
func (r *Registry) GetOrCreate(id string) (*Room, error) {
	if err := ValidateRoomID(id); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if room, ok := r.rooms[id]; ok {
		return room, nil
	}
	room := &Room{
		id:        id,
		key:       RoomKey(r.opts.KeyPrefix, id),
		store:     r.opts.Store,
		notifier:  NewNotifier(),
		publisher: r.opts.Publisher,
		channel:   r.channel,
		log:       r.log.With().Str("room", id).Logger(),
	}
	r.rooms[id] = room
	r.log.Debug().Str("room", id).Msg("room created")
	return room, nil
}

// Lookup returns the room for id without creating it.
func (r *Registry) Lookup(id string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	return room, ok
}

// Len returns the number of resident rooms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Rooms returns the resident room ids in sorted order.
func (r *Registry) Rooms() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return ids
}
