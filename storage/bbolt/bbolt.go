// Package bbolt provides a BBolt-backed storage repository. It is the default
// store driver: the session survives process restarts in a single local file.
package bbolt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/skwf/portal/storage"
	"go.etcd.io/bbolt"
)

// Store implements storage.Repository backed by a BBolt database.
// Each namespace maps to one bucket; keys are "recordType:recordID".
type Store struct {
	db *bbolt.DB
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given BBolt database.
func NewRepository(db *bbolt.DB) *Store {
	return &Store{db: db}
}

// NewRepositoryFromFile opens a BBolt database at the given path, creating
// parent directories as needed, and returns a new Repository.
func NewRepositoryFromFile(path string, options *bbolt.Options) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewRepository(db), nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func recordKey(recordType, recordID string) []byte {
	return []byte(recordType + ":" + recordID)
}

func (s *Store) Put(namespace, recordType, recordID string, envelope *storage.Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return err
		}
		return b.Put(recordKey(recordType, recordID), data)
	})
}

func (s *Store) Get(namespace, recordType, recordID string) (*storage.Envelope, error) {
	var envelope storage.Envelope
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return fmt.Errorf("%s/%s/%s: %w", namespace, recordType, recordID, storage.ErrNotFound)
		}
		data := b.Get(recordKey(recordType, recordID))
		if data == nil {
			return fmt.Errorf("%s/%s/%s: %w", namespace, recordType, recordID, storage.ErrNotFound)
		}
		return json.Unmarshal(data, &envelope)
	})
	if err != nil {
		return nil, err
	}
	return &envelope, nil
}

func (s *Store) Delete(namespace, recordType, recordID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		key := recordKey(recordType, recordID)
		if b == nil || b.Get(key) == nil {
			return fmt.Errorf("%s/%s/%s: %w", namespace, recordType, recordID, storage.ErrNotFound)
		}
		return b.Delete(key)
	})
}

func (s *Store) List(namespace, recordType string) ([]string, error) {
	var ids []string
	prefix := []byte(recordType + ":")
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			ids = append(ids, string(k[len(prefix):]))
		}
		return nil
	})
	return ids, err
}
