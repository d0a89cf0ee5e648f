package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skwf/portal/storage"
)

func newTestStore(t *testing.T) (*Store, func()) {
	t.Helper()
	dsn := os.Getenv("PORTAL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PORTAL_TEST_POSTGRES_DSN not set; skipping PostgreSQL tests")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("could not connect to postgres: %v", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("could not ensure schema: %v", err)
	}

	pool.Exec(ctx, "DELETE FROM portal_records") //nolint:errcheck

	return NewRepository(pool), func() {
		pool.Exec(ctx, "DELETE FROM portal_records") //nolint:errcheck
		pool.Close()
	}
}

func TestPostgresStorage(t *testing.T) {
	s, cleanup := newTestStore(t)
	defer cleanup()

	namespace := "portal"
	recordType := "SESSION"
	recordID := "user"
	env := &storage.Envelope{Ver: 1, Scheme: storage.SchemeSealed, Nonce: make([]byte, 12), Data: []byte("cipher")}

	t.Run("PutGet", func(t *testing.T) {
		if err := s.Put(namespace, recordType, recordID, env); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		got, err := s.Get(namespace, recordType, recordID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Scheme != env.Scheme {
			t.Errorf("expected scheme %q, got %q", env.Scheme, got.Scheme)
		}
		if string(got.Data) != string(env.Data) {
			t.Errorf("expected data %q, got %q", env.Data, got.Data)
		}
	})

	t.Run("Upsert", func(t *testing.T) {
		next := storage.PlainRecord([]byte(`{"token":"t2"}`))
		if err := s.Put(namespace, recordType, recordID, next); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := s.Get(namespace, recordType, recordID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Scheme != storage.SchemePlain || string(got.Data) != `{"token":"t2"}` {
			t.Errorf("upsert did not replace the record: %+v", got)
		}
	})

	t.Run("List", func(t *testing.T) {
		s.Put(namespace, recordType, "second", env) //nolint:errcheck
		ids, err := s.List(namespace, recordType)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(ids) != 2 {
			t.Errorf("expected 2 IDs, got %d", len(ids))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := s.Delete(namespace, recordType, recordID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := s.Get(namespace, recordType, recordID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := s.Delete(namespace, recordType, recordID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})
}
