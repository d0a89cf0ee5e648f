package bbolt

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/skwf/portal/storage"
	"go.etcd.io/bbolt"
)

func newTestDB(t *testing.T) (*bbolt.DB, func()) {
	t.Helper()
	f, err := os.CreateTemp("", "portal-test-*.db")
	if err != nil {
		t.Fatalf("could not create temp file: %v", err)
	}
	path := f.Name()
	f.Close()

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		os.Remove(path)
		t.Fatalf("could not open db: %v", err)
	}
	return db, func() {
		db.Close()
		os.Remove(path)
	}
}

func TestBBoltStorage(t *testing.T) {
	db, cleanup := newTestDB(t)
	defer cleanup()

	s := NewRepository(db)
	namespace := "portal"
	recordType := "SESSION"
	recordID := "user"
	env := storage.PlainRecord([]byte(`{"token":"t1"}`))

	t.Run("GetMissingNamespace", func(t *testing.T) {
		_, err := s.Get(namespace, recordType, recordID)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("PutGet", func(t *testing.T) {
		if err := s.Put(namespace, recordType, recordID, env); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		got, err := s.Get(namespace, recordType, recordID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Ver != env.Ver || got.Scheme != env.Scheme {
			t.Errorf("expected %d/%s, got %d/%s", env.Ver, env.Scheme, got.Ver, got.Scheme)
		}
		if string(got.Data) != string(env.Data) {
			t.Errorf("expected data %q, got %q", env.Data, got.Data)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		next := storage.PlainRecord([]byte(`{"token":"t2"}`))
		if err := s.Put(namespace, recordType, recordID, next); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := s.Get(namespace, recordType, recordID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got.Data) != `{"token":"t2"}` {
			t.Errorf("expected overwritten data, got %q", got.Data)
		}
	})

	t.Run("List", func(t *testing.T) {
		s.Put(namespace, recordType, "other", env) //nolint:errcheck
		s.Put(namespace, "PREFS", "x", env)        //nolint:errcheck
		ids, err := s.List(namespace, recordType)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(ids) != 2 {
			t.Errorf("expected 2 IDs, got %d (%v)", len(ids), ids)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := s.Delete(namespace, recordType, recordID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		_, err := s.Get(namespace, recordType, recordID)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := s.Delete(namespace, recordType, recordID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})
}

func TestBBoltReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.db")

	s, err := NewRepositoryFromFile(path, nil)
	if err != nil {
		t.Fatalf("NewRepositoryFromFile failed: %v", err)
	}
	if err := s.Put("portal", "SESSION", "user", storage.PlainRecord([]byte("persisted"))); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s, err = NewRepositoryFromFile(path, nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	got, err := s.Get("portal", "SESSION", "user")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if string(got.Data) != "persisted" {
		t.Errorf("expected persisted data, got %q", got.Data)
	}
}
