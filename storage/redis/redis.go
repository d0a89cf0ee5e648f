// Package redis implements storage.Repository on top of a Redis server, so a
// gateway deployed on several hosts can share one session record.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/skwf/portal/storage"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "portal"

// Store implements storage.Repository backed by Redis. Records are stored as
// JSON-encoded envelopes under "<prefix>:<namespace>:<recordType>:<recordID>".
type Store struct {
	client goredis.UniversalClient
	prefix string
}

var _ storage.Repository = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// NewRepository returns a Repository using the given client.
func NewRepository(client goredis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRepositoryFromAddr dials addr and verifies the connection with PING.
func NewRepositoryFromAddr(ctx context.Context, addr, password string, db int, opts ...Option) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRepository(client, opts...), nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(namespace, recordType, recordID string) string {
	return strings.Join([]string{s.prefix, namespace, recordType, recordID}, ":")
}

func (s *Store) Put(namespace, recordType, recordID string, envelope *storage.Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	return s.client.Set(context.Background(), s.key(namespace, recordType, recordID), data, 0).Err()
}

func (s *Store) Get(namespace, recordType, recordID string) (*storage.Envelope, error) {
	data, err := s.client.Get(context.Background(), s.key(namespace, recordType, recordID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("%s/%s/%s: %w", namespace, recordType, recordID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var env storage.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func (s *Store) Delete(namespace, recordType, recordID string) error {
	n, err := s.client.Del(context.Background(), s.key(namespace, recordType, recordID)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s/%s/%s: %w", namespace, recordType, recordID, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) List(namespace, recordType string) ([]string, error) {
	ctx := context.Background()
	prefix := s.key(namespace, recordType, "")
	var (
		ids    []string
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			ids = append(ids, strings.TrimPrefix(k, prefix))
		}
		if next == 0 {
			return ids, nil
		}
		cursor = next
	}
}
