// Package memory provides a thread-safe in-memory implementation of storage.Repository.
package memory

import (
	"strings"
	"sync"

	"github.com/skwf/portal/storage"
)

// Repository is a thread-safe in-memory implementation of storage.Repository.
// Sessions kept here do not survive a restart; use it for tests and for
// the "memory" store driver.
type Repository struct {
	mu   sync.RWMutex
	data map[string]map[string]*storage.Envelope
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string]map[string]*storage.Envelope)}
}

func makeKey(recordType, recordID string) string {
	return recordType + ":" + recordID
}

func cloneEnvelope(env *storage.Envelope) *storage.Envelope {
	if env == nil {
		return nil
	}
	return &storage.Envelope{
		Ver:    env.Ver,
		Scheme: env.Scheme,
		Nonce:  append([]byte(nil), env.Nonce...),
		Data:   append([]byte(nil), env.Data...),
	}
}

func (r *Repository) Put(namespace, recordType, recordID string, envelope *storage.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[namespace]; !ok {
		r.data[namespace] = make(map[string]*storage.Envelope)
	}
	r.data[namespace][makeKey(recordType, recordID)] = cloneEnvelope(envelope)
	return nil
}

func (r *Repository) Get(namespace, recordType, recordID string) (*storage.Envelope, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	env, ok := r.data[namespace][makeKey(recordType, recordID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneEnvelope(env), nil
}

func (r *Repository) List(namespace, recordType string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	prefix := recordType + ":"
	for k := range r.data[namespace] {
		if id, ok := strings.CutPrefix(k, prefix); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *Repository) Delete(namespace, recordType, recordID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := makeKey(recordType, recordID)
	records := r.data[namespace]
	if _, ok := records[k]; !ok {
		return storage.ErrNotFound
	}
	delete(records, k)
	if len(records) == 0 {
		delete(r.data, namespace)
	}
	return nil
}
