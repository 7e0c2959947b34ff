// Package memory implements Vaani's per-session conversational memory: an
// append-only encrypted message log, a preference map, and a small note pad,
// all bounded by a session TTL.
//
// The package is split along an explicit storage boundary: [Store] is the
// document-style persistence interface (sessions with nested messages,
// server-assigned timestamps, TTL expiry), while [Layer] adds encryption at
// rest, context assembly, and summarisation on top of any Store. Backends are
// provided for PostgreSQL (pkg/memory/postgres) and in-process maps
// (pkg/memory/memstore); both carry an explicit lifecycle — constructor plus
// Close — so multi-instance deployments and tests can manage them cleanly.
//
// Every implementation must be safe for concurrent use. Message appends
// commute, so concurrent turns on one session may interleave appends freely;
// preference updates are read-modify-write and every Store must make
// SetPreference atomic (single-statement merge or internal locking).
package memory

import (
	"context"
	"time"

	"github.com/swarajlabs/vaani/pkg/types"
)

// DefaultSessionTTL is how long a session lives without an explicit end.
const DefaultSessionTTL = 24 * time.Hour

// DefaultMessageWindow is the window RecentMessages applies when called with
// a limit of 0. Every Store implementation uses the same default.
const DefaultMessageWindow = 10

// Store is the document-style persistence boundary for session state.
//
// A session springs into existence on first write and disappears on
// DeleteSession or TTL expiry. Reads against a missing or expired session
// return empty results, not errors.
type Store interface {
	// AppendMessage appends msg to the session's ordered log, creating the
	// session (with a fresh TTL) if it does not exist. The message's
	// Timestamp is assigned by the store if zero.
	AppendMessage(ctx context.Context, sessionID string, msg types.Message) error

	// RecentMessages returns up to limit of the most recent messages in
	// chronological order (oldest of the window first). A limit of 0 applies
	// [DefaultMessageWindow].
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]types.Message, error)

	// Preferences returns the session's preference map, or nil when the
	// session has no saved preferences.
	Preferences(ctx context.Context, sessionID string) (map[string]any, error)

	// SetPreference merges key=value into the session's preference map.
	// The merge must be atomic with respect to concurrent SetPreference
	// calls on the same session.
	SetPreference(ctx context.Context, sessionID string, key string, value any) error

	// AppendNote adds a note to the session's note pad.
	AppendNote(ctx context.Context, sessionID string, content string) error

	// Notes returns the session's notes in insertion order.
	Notes(ctx context.Context, sessionID string) ([]string, error)

	// DeleteSession removes all state for the session. Deleting a session
	// that does not exist is a no-op, not an error.
	DeleteSession(ctx context.Context, sessionID string) error

	// Ping verifies the backend is reachable. Used by readiness checks.
	Ping(ctx context.Context) error

	// Close releases backend resources. The store must not be used afterwards.
	Close() error
}
