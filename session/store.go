// Package session holds the portal's single source of truth for identity:
// the logged-in user, the auth token and whether the state has been restored
// from durable storage yet.
//
// A Store is safe for concurrent use. Every mutation is applied together
// with its persistence write; a failed write leaves the in-memory state as
// it was before the call.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/skwf/portal/internal/logger"
	"github.com/skwf/portal/storage"
)

// Location of the persisted session record.
const (
	Namespace  = "portal"
	RecordType = "SESSION"
	RecordID   = "user"
)

var recordAAD = []byte(Namespace + "/" + RecordType + "/" + RecordID)

// record is the persisted body: the user and token pair.
type record struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// Store is the process-wide session holder.
type Store struct {
	repo   storage.Repository
	sealer *sealer
	logger *slog.Logger
	clock  clockwork.Clock

	mu    sync.Mutex
	state Session

	subMu   sync.Mutex
	subs    map[uint64]func(Session)
	nextSub uint64
}

// NewStore returns an empty, not yet hydrated Store persisting to repo.
func NewStore(repo storage.Repository, opts ...Option) (*Store, error) {
	if repo == nil {
		return nil, fmt.Errorf("session: repository is required")
	}
	o := storeOptions{logger: logger.Discard(), clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Store{
		repo:   repo,
		logger: o.logger,
		clock:  o.clock,
		subs:   make(map[uint64]func(Session)),
	}
	if o.secret != "" {
		sl, err := newSealer(o.secret)
		if err != nil {
			return nil, err
		}
		s.sealer = sl
	}
	return s, nil
}

// Snapshot returns a copy of the current session.
func (s *Store) Snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Subscribe registers fn to be called with a snapshot after every change.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(Session)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) notify(snap Session) {
	s.subMu.Lock()
	fns := make([]func(Session), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(snap.Clone())
	}
}

// Hydrate restores the session from durable storage. A missing, unreadable
// or expired record yields an empty session. IsHydrated is true afterwards.
// Hydrate never writes to storage and may be called again to reload.
func (s *Store) Hydrate() Session {
	s.mu.Lock()
	rec, ok := s.load()
	if ok {
		s.state = Session{User: rec.User, Token: rec.Token, IsLoggedIn: true}
	} else {
		s.state = Session{}
	}
	s.state.IsHydrated = true
	snap := s.state.Clone()
	s.mu.Unlock()

	s.logger.Debug("session hydrated", "logged_in", snap.IsLoggedIn)
	s.notify(snap)
	return snap
}

func (s *Store) load() (record, bool) {
	env, err := s.repo.Get(Namespace, RecordType, RecordID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("reading stored session", "error", err)
		}
		return record{}, false
	}
	body, err := s.sealer.open(env, recordAAD)
	if err != nil {
		s.logger.Warn("opening stored session", "error", err)
		return record{}, false
	}
	var rec record
	if err := json.Unmarshal(body, &rec); err != nil {
		s.logger.Warn("decoding stored session", "error", err)
		return record{}, false
	}
	if rec.Token == "" || rec.User == nil {
		return record{}, false
	}
	if s.tokenExpired(rec.Token) {
		s.logger.Info("stored session token expired")
		return record{}, false
	}
	return rec, true
}

// tokenExpired reports whether token is a JWT whose exp claim has passed.
// Tokens that are not JWTs are opaque and never considered expired here.
func (s *Store) tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !s.clock.Now().Before(exp.Time)
}

// persist writes next to storage. Callers hold s.mu.
func (s *Store) persist(next Session) error {
	if !next.IsLoggedIn {
		err := s.repo.Delete(Namespace, RecordType, RecordID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("removing stored session: %w", err)
		}
		return nil
	}
	body, err := json.Marshal(record{User: next.User, Token: next.Token})
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	env, err := s.sealer.seal(body, recordAAD)
	if err != nil {
		return fmt.Errorf("sealing session: %w", err)
	}
	if err := s.repo.Put(Namespace, RecordType, RecordID, env); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	return nil
}

// commit persists next and, on success, makes it the current state.
func (s *Store) commit(next Session) error {
	if err := s.persist(next); err != nil {
		return err
	}
	s.state = next
	return nil
}

// LoginSuccess replaces the session with user and token and persists both.
// Any prior session is overwritten.
func (s *Store) LoginSuccess(user *User, token string) error {
	if user == nil || token == "" {
		return ErrInvalidSession
	}
	s.mu.Lock()
	next := Session{User: user.Clone(), Token: token, IsLoggedIn: true, IsHydrated: true}
	if err := s.commit(next); err != nil {
		s.mu.Unlock()
		return err
	}
	snap := s.state.Clone()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// Logout clears the session and removes the stored record. It is idempotent.
// The in-memory session is cleared even when removing the record fails.
func (s *Store) Logout() error {
	s.mu.Lock()
	next := Session{IsHydrated: s.state.IsHydrated}
	err := s.persist(next)
	s.state = next
	snap := s.state.Clone()
	s.mu.Unlock()

	s.notify(snap)
	return err
}

// UpdatePaymentStatus sets the user's payment flag and, when creditHours is
// non-nil, their credit hours. It does nothing when there is no user.
func (s *Store) UpdatePaymentStatus(verified bool, creditHours *int) error {
	s.mu.Lock()
	if s.state.User == nil {
		s.mu.Unlock()
		return nil
	}
	next := s.state.Clone()
	next.User.PaymentVerified = verified
	if creditHours != nil {
		next.User.CreditHours = *creditHours
	}
	if err := s.commit(next); err != nil {
		s.mu.Unlock()
		return err
	}
	snap := s.state.Clone()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// UpdateUserData replaces the stored user, keeping the token. It does nothing
// for a nil user or when no one is logged in.
func (s *Store) UpdateUserData(user *User) error {
	if user == nil {
		return nil
	}
	s.mu.Lock()
	if !s.state.IsLoggedIn {
		s.mu.Unlock()
		return nil
	}
	next := s.state
	next.User = user.Clone()
	if err := s.commit(next); err != nil {
		s.mu.Unlock()
		return err
	}
	snap := s.state.Clone()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// Token returns the current auth token, or ErrNoSession when logged out.
func (s *Store) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsLoggedIn {
		return "", ErrNoSession
	}
	return s.state.Token, nil
}
