// Package memstore provides an in-process implementation of the memory.Store
// interface backed by plain maps. It is used in tests and in single-instance
// deployments that run without PostgreSQL.
//
// State is held behind one mutex per store instance — there is no global
// process state, and multiple independent stores can coexist.
package memstore

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/swarajlabs/vaani/pkg/memory"
	"github.com/swarajlabs/vaani/pkg/types"
)

// Compile-time interface assertion.
var _ memory.Store = (*Store)(nil)

// session is the in-memory document for one session.
type session struct {
	createdAt time.Time
	expiresAt time.Time
	messages  []types.Message
	prefs     map[string]any
	notes     []string
}

// Store is an in-memory memory.Store. The zero value is not usable;
// construct with [New].
type Store struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// Option configures a Store during construction.
type Option func(*Store)

// WithTTL overrides the session TTL. Default is memory.DefaultSessionTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock injects a clock, letting tests advance time past the TTL.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		ttl:      memory.DefaultSessionTTL,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// get returns the live session for id, pruning it first when expired.
// Must be called with s.mu held.
func (s *Store) get(id string) *session {
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	if s.now().After(sess.expiresAt) {
		delete(s.sessions, id)
		return nil
	}
	return sess
}

// ensure returns the live session for id, creating it when absent.
// Must be called with s.mu held.
func (s *Store) ensure(id string) *session {
	if sess := s.get(id); sess != nil {
		return sess
	}
	now := s.now()
	sess := &session{
		createdAt: now,
		expiresAt: now.Add(s.ttl),
	}
	s.sessions[id] = sess
	return sess
}

// AppendMessage implements memory.Store.
func (s *Store) AppendMessage(_ context.Context, sessionID string, msg types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now().UTC()
	}
	sess := s.ensure(sessionID)
	sess.messages = append(sess.messages, msg)
	return nil
}

// RecentMessages implements memory.Store.
func (s *Store) RecentMessages(_ context.Context, sessionID string, limit int) ([]types.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.get(sessionID)
	if sess == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = memory.DefaultMessageWindow
	}
	msgs := sess.messages
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]types.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Preferences implements memory.Store.
func (s *Store) Preferences(_ context.Context, sessionID string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.get(sessionID)
	if sess == nil || sess.prefs == nil {
		return nil, nil
	}
	return maps.Clone(sess.prefs), nil
}

// SetPreference implements memory.Store. The store mutex makes the
// read-modify-write atomic with respect to concurrent updates.
func (s *Store) SetPreference(_ context.Context, sessionID, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.ensure(sessionID)
	if sess.prefs == nil {
		sess.prefs = make(map[string]any)
	}
	sess.prefs[key] = value
	return nil
}

// AppendNote implements memory.Store.
func (s *Store) AppendNote(_ context.Context, sessionID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.ensure(sessionID)
	sess.notes = append(sess.notes, content)
	return nil
}

// Notes implements memory.Store.
func (s *Store) Notes(_ context.Context, sessionID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.get(sessionID)
	if sess == nil {
		return nil, nil
	}
	out := make([]string, len(sess.notes))
	copy(out, sess.notes)
	return out, nil
}

// DeleteSession implements memory.Store.
func (s *Store) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Ping implements memory.Store.
func (s *Store) Ping(context.Context) error { return nil }

// Close implements memory.Store. All state is discarded.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*session)
	return nil
}
