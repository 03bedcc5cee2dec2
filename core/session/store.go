package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
)

type LogoutReason int

const (
	LogoutManual LogoutReason = iota
	LogoutSessionExpired
)

func (r LogoutReason) String() string {
	if r == LogoutSessionExpired {
		return "session_expired"
	}
	return "manual"
}

type (
	// Persister reads and writes the durable Session State record.
	Persister interface {
		Load() ([]byte, error)
		Save(data []byte) error
	}

	// TimeoutCanceler is the session-timeout collaborator. ClearTimeout cancels any pending expiry.
	TimeoutCanceler interface {
		ClearTimeout()
	}

	StoreOption func(*Store)

	// Store is the source of truth for who is logged in and what they can do.
	// It is only mutated by Login and Logout, each of which persists the new state.
	Store struct {
		mu        sync.RWMutex
		state     State
		persister Persister
		timeout   TimeoutCanceler
		logger    core.Logger
		now       func() time.Time
	}
)

func WithTimeout(tc TimeoutCanceler) StoreOption {
	return func(s *Store) { s.timeout = tc }
}

func WithLogger(logger core.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore restores the last persisted state from p. A nil p keeps the state in memory only.
// Unreadable records degrade to the unauthenticated state.
func NewStore(p Persister, opts ...StoreOption) *Store {
	s := &Store{persister: p, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if p == nil {
		return s
	}

	data, err := p.Load()
	if err != nil {
		s.warn("loading session record", err)
		return s
	}
	st, err := decodeState(data)
	if err != nil {
		s.warn("decoding session record", err)
		return s
	}
	s.state = st
	return s
}

// Login replaces the current Identity, if any, and clears the expiry marker.
func (s *Store) Login(id Identity) {
	s.mu.Lock()
	id = id.clone()
	s.state = State{Identity: &id, IsAuthenticated: true}
	s.persist()
	s.mu.Unlock()

	s.audit(fmt.Sprintf("session: login %s (%s)", id.ID, id.Role), id)
}

// Logout clears the Identity. The reason defaults to LogoutManual;
// LogoutSessionExpired stamps the expiry marker with the current time.
func (s *Store) Logout(reason ...LogoutReason) {
	rsn := LogoutManual
	if len(reason) > 0 {
		rsn = reason[0]
	}

	s.mu.Lock()
	prev := s.state.Identity
	st := State{}
	if rsn == LogoutSessionExpired {
		now := s.now().UTC()
		st.SessionExpiredAt = &now
	}
	s.state = st
	s.persist()
	s.mu.Unlock()

	if s.timeout != nil {
		s.timeout.ClearTimeout()
	}
	if prev != nil {
		s.audit(fmt.Sprintf("session: logout %s (%s)", prev.ID, rsn), *prev)
	}
}

// HasPermission reports whether the current Identity's role is granted perm, exactly or by Wildcard.
func (s *Store) HasPermission(perm string) bool {
	role, ok := s.Role()
	if !ok {
		return false
	}
	return Allows(role, perm)
}

// HasRole reports whether the current Identity's role is one of roles.
func (s *Store) HasRole(roles ...Role) bool {
	role, ok := s.Role()
	if !ok {
		return false
	}
	return containsRole(roles, role)
}

func (s *Store) Role() (Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Identity == nil {
		return "", false
	}
	return s.state.Identity.Role, true
}

func (s *Store) Identity() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Identity == nil {
		return Identity{}, false
	}
	return s.state.Identity.clone(), true
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated
}

// SessionExpiredAt returns the time of the last logout caused by a session timeout, if any.
func (s *Store) SessionExpiredAt() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.SessionExpiredAt == nil {
		return time.Time{}, false
	}
	return *s.state.SessionExpiredAt, true
}

// State returns a copy of the current Session State.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// persist writes the state. Failures are logged only; the in-memory state stays authoritative.
// The caller must hold s.mu.
func (s *Store) persist() {
	if s.persister == nil {
		return
	}
	data, err := encodeState(s.state)
	if err != nil {
		s.warn("encoding session record", err)
		return
	}
	if err := s.persister.Save(data); err != nil {
		s.warn("saving session record", err)
	}
}

func (s *Store) warn(msg string, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, errors.Wrap(err, msg))
	}
}

func (s *Store) audit(msg string, id Identity) {
	if s.logger != nil {
		s.logger.Info(msg, id)
	}
}
