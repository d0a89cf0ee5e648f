// Package postgres implements storage.Repository backed by PostgreSQL.
//
// The portal_records table uses a composite primary key (namespace,
// record_type, record_id) that mirrors the key space used by the BBolt and
// in-memory backends. Envelope fields are stored as individual columns.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skwf/portal/storage"
)

// Store implements storage.Repository backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given pgx connection pool.
func NewRepository(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewRepositoryFromDSN creates a connection pool from a DSN string, ensures
// the schema exists, and returns a new Repository.
func NewRepositoryFromDSN(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return NewRepository(pool), nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Put(namespace, recordType, recordID string, envelope *storage.Envelope) error {
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO portal_records (namespace, record_type, record_id, ver, scheme, nonce, data)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (namespace, record_type, record_id)
		 DO UPDATE SET ver = $4, scheme = $5, nonce = $6, data = $7, updated_at = now()`,
		namespace, recordType, recordID,
		envelope.Ver, envelope.Scheme, envelope.Nonce, envelope.Data)
	return err
}

func (s *Store) Get(namespace, recordType, recordID string) (*storage.Envelope, error) {
	var env storage.Envelope
	err := s.pool.QueryRow(context.Background(),
		`SELECT ver, scheme, nonce, data
		 FROM portal_records WHERE namespace = $1 AND record_type = $2 AND record_id = $3`,
		namespace, recordType, recordID).Scan(&env.Ver, &env.Scheme, &env.Nonce, &env.Data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s/%s: %w", namespace, recordType, recordID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &env, nil
}

func (s *Store) List(namespace, recordType string) ([]string, error) {
	rows, err := s.pool.Query(context.Background(),
		`SELECT record_id FROM portal_records WHERE namespace = $1 AND record_type = $2 ORDER BY record_id`,
		namespace, recordType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) Delete(namespace, recordType, recordID string) error {
	tag, err := s.pool.Exec(context.Background(),
		`DELETE FROM portal_records WHERE namespace = $1 AND record_type = $2 AND record_id = $3`,
		namespace, recordType, recordID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s/%s: %w", namespace, recordType, recordID, storage.ErrNotFound)
	}
	return nil
}
