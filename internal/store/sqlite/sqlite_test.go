package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/vovakirdan/wirechat-live/internal/store"
	"github.com/vovakirdan/wirechat-live/internal/store/storetest"
)

func TestSQLiteMessageStore(t *testing.T) {
	storetest.RunMessageStore(t, func(t *testing.T) store.MessageStore {
		s, err := New(":memory:")
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestSeededRowsAreVisible(t *testing.T) {
	s, err := NewWithSetup(":memory:", func(db *sql.DB) error {
		if _, err := db.Exec(Schema); err != nil {
			return err
		}
		_, err := db.Exec(`
			INSERT INTO messages (room, idx, line) VALUES
				('lobby', 0, 'alice: hi'),
				('lobby', 1, 'bob: yo');
		`)
		return err
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	n, err := s.Append(ctx, "lobby", "carol: hey")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected length 3 after append, got %d", n)
	}

	var got []string
	for line, err := range s.Range(ctx, "lobby", 1) {
		if err != nil {
			t.Fatalf("range: %v", err)
		}
		got = append(got, line)
	}
	if len(got) != 2 || got[0] != "bob: yo" || got[1] != "carol: hey" {
		t.Fatalf("unexpected lines: %v", got)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")
	ctx := context.Background()

	s, err := New(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.Append(ctx, "lobby", "alice: hi"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	n, err := reopened.Len(ctx, "lobby")
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 message after reopen, got %d", n)
	}
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = s.Close()

	if _, err := s.Append(context.Background(), "lobby", "x"); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
