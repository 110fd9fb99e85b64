// Package pebblestore implements store.MessageStore on an embedded Pebble database.
//
// Key layout (byte-wise, lexicographically sortable):
//
//	room/{room}/m              current length, 8 bytes big-endian
//	room/{room}/e/{idx_be8}    line at idx
package pebblestore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/vovakirdan/wirechat-live/internal/store"
)

var (
	roomPrefix = []byte("room/")
	metaSuffix = []byte("/m")
	entrySeg   = []byte("/e/")
)

// Options configures the Pebble store.
type Options struct {
	// Dir is the Pebble database directory.
	Dir string
	// Sync forces a WAL fsync on every append.
	Sync bool
}

// Store keeps room logs in Pebble.
type Store struct {
	db        *pebble.DB
	writeSync bool
	pageSize  int

	locks sync.Map // room -> *sync.Mutex
}

var _ store.MessageStore = (*Store)(nil)

// Open creates or opens the database in opts.Dir.
func Open(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, errors.New("pebble: Options.Dir is required")
	}
	db, err := pebble.Open(opts.Dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	return &Store{db: db, writeSync: opts.Sync, pageSize: store.DefaultPageSize}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) lock(room string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(room, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Append writes the entry and the new length in one batch.
func (s *Store) Append(ctx context.Context, room, line string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	mu := s.lock(room)
	mu.Lock()
	defer mu.Unlock()

	n, err := s.length(room)
	if err != nil {
		return 0, err
	}

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(entryKey(room, uint64(n)), []byte(line), nil); err != nil {
		return 0, store.Unavailable("set entry", err)
	}
	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], uint64(n+1))
	if err := b.Set(metaKey(room), meta[:], nil); err != nil {
		return 0, store.Unavailable("set meta", err)
	}

	syncMode := pebble.NoSync
	if s.writeSync {
		syncMode = pebble.Sync
	}
	if err := b.Commit(syncMode); err != nil {
		return 0, store.Unavailable("commit", err)
	}
	return n + 1, nil
}

// Len implements store.MessageStore.
func (s *Store) Len(ctx context.Context, room string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.length(room)
}

func (s *Store) length(room string) (int64, error) {
	val, closer, err := s.db.Get(metaKey(room))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return 0, nil
		}
		return 0, store.Unavailable("get meta", err)
	}
	defer closer.Close()
	if len(val) < 8 {
		return 0, store.Unavailable("get meta", fmt.Errorf("corrupt length for room %q", room))
	}
	return int64(binary.BigEndian.Uint64(val[:8])), nil
}

// Range scans entry keys in index order, one iterator per page.
func (s *Store) Range(ctx context.Context, room string, start int64) iter.Seq2[string, error] {
	length := func(ctx context.Context) (int64, error) { return s.Len(ctx, room) }
	return store.Paged(ctx, start, s.pageSize, length, func(ctx context.Context, from int64, limit int) ([]string, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		it, err := s.db.NewIter(&pebble.IterOptions{
			LowerBound: entryKey(room, uint64(from)),
			UpperBound: entryUpperBound(room),
		})
		if err != nil {
			return nil, store.Unavailable("new iter", err)
		}
		defer it.Close()

		lines := make([]string, 0, limit)
		for ok := it.First(); ok && len(lines) < limit; ok = it.Next() {
			lines = append(lines, string(it.Value()))
		}
		if err := it.Error(); err != nil {
			return nil, store.Unavailable("iterate", err)
		}
		return lines, nil
	})
}

func roomKeyPrefix(room string) []byte {
	k := make([]byte, 0, len(roomPrefix)+len(room)+16)
	k = append(k, roomPrefix...)
	k = append(k, room...)
	return k
}

func metaKey(room string) []byte {
	return append(roomKeyPrefix(room), metaSuffix...)
}

func entryKey(room string, idx uint64) []byte {
	k := append(roomKeyPrefix(room), entrySeg...)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], idx)
	return append(k, b[:]...)
}

// entryUpperBound is the first key after every entry of room.
func entryUpperBound(room string) []byte {
	k := append(roomKeyPrefix(room), entrySeg...)
	k[len(k)-1]++
	return k
}
