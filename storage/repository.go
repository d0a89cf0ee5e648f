// Package storage provides the durable record storage that backs the portal
// session. Records are addressed by (namespace, recordType, recordID) and
// carried as Envelopes, which are either plain JSON or AES-256-GCM sealed.
package storage

import "errors"

var (
	// ErrNotFound is returned when no record exists for the requested key.
	ErrNotFound = errors.New("record not found")
)

// Repository defines the interface for durable record storage.
type Repository interface {
	Put(namespace string, recordType string, recordID string, envelope *Envelope) error
	Get(namespace string, recordType string, recordID string) (*Envelope, error)
	Delete(namespace string, recordType string, recordID string) error
	List(namespace string, recordType string) ([]string, error)
}
