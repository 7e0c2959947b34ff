// Package postgres provides a PostgreSQL-backed implementation of the
// memory.Store interface: a sessions table with TTL expiry plus nested
// message, preference, and note state.
//
// All operations share a single [pgxpool.Pool]. [New] runs the embedded DDL
// on startup so the required tables exist; TTL expiry is enforced on read and
// by deleting expired rows opportunistically, so no background reaper is
// required in the database.
//
// Usage:
//
//	store, err := postgres.New(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swarajlabs/vaani/pkg/memory"
	"github.com/swarajlabs/vaani/pkg/types"
)

// Compile-time interface assertion.
var _ memory.Store = (*Store)(nil)

const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
    id          TEXT         PRIMARY KEY,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    expires_at  TIMESTAMPTZ  NOT NULL,
    preferences JSONB        NOT NULL DEFAULT '{}'::jsonb,
    notes       JSONB        NOT NULL DEFAULT '[]'::jsonb
);

CREATE TABLE IF NOT EXISTS session_messages (
    seq           BIGSERIAL    PRIMARY KEY,
    session_id    TEXT         NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    message_id    TEXT         NOT NULL,
    role          TEXT         NOT NULL,
    content       TEXT         NOT NULL,
    language      TEXT         NOT NULL DEFAULT 'en',
    timestamp     TIMESTAMPTZ  NOT NULL DEFAULT now(),
    intent        JSONB,
    action_result JSONB
);

CREATE INDEX IF NOT EXISTS idx_session_messages_session_id
    ON session_messages (session_id, seq);
`

// Store is a PostgreSQL-backed memory.Store. All methods are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// Option configures a Store during construction.
type Option func(*Store)

// WithTTL overrides the session TTL. Default is memory.DefaultSessionTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// New connects to the database at dsn, verifies connectivity, and ensures
// the schema exists.
func New(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddl); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	s := &Store{pool: pool, ttl: memory.DefaultSessionTTL}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// ensureSession upserts the session row, refreshing its expiry.
func (s *Store) ensureSession(ctx context.Context, sessionID string) error {
	const q = `
		INSERT INTO sessions (id, expires_at)
		VALUES ($1, now() + $2::interval)
		ON CONFLICT (id) DO UPDATE SET expires_at = now() + $2::interval`

	_, err := s.pool.Exec(ctx, q, sessionID, s.ttl.String())
	if err != nil {
		return fmt.Errorf("postgres store: ensure session: %w", err)
	}
	return nil
}

// AppendMessage implements memory.Store.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, msg types.Message) error {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return err
	}

	var intentJSON, resultJSON []byte
	var err error
	if msg.Intent != nil {
		if intentJSON, err = json.Marshal(msg.Intent); err != nil {
			return fmt.Errorf("postgres store: marshal intent: %w", err)
		}
	}
	if msg.ActionResult != nil {
		if resultJSON, err = json.Marshal(msg.ActionResult); err != nil {
			return fmt.Errorf("postgres store: marshal action result: %w", err)
		}
	}

	const q = `
		INSERT INTO session_messages
		    (session_id, message_id, role, content, language, timestamp, intent, action_result)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()), $7, $8)`

	var ts any
	if !msg.Timestamp.IsZero() {
		ts = msg.Timestamp
	}
	_, err = s.pool.Exec(ctx, q,
		sessionID, msg.ID, string(msg.Role), msg.Content, string(msg.Language), ts, intentJSON, resultJSON,
	)
	if err != nil {
		return fmt.Errorf("postgres store: append message: %w", err)
	}
	return nil
}

// RecentMessages implements memory.Store. Expired sessions yield no rows.
func (s *Store) RecentMessages(ctx context.Context, sessionID string, limit int) ([]types.Message, error) {
	if limit <= 0 {
		limit = memory.DefaultMessageWindow
	}

	const q = `
		SELECT m.message_id, m.role, m.content, m.language, m.timestamp, m.intent, m.action_result
		FROM   session_messages m
		JOIN   sessions s ON s.id = m.session_id
		WHERE  m.session_id = $1
		  AND  s.expires_at > now()
		ORDER  BY m.seq DESC
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres store: query messages: %w", err)
	}
	defer rows.Close()

	var msgs []types.Message
	for rows.Next() {
		var (
			m                      types.Message
			role, lang             string
			intentJSON, resultJSON []byte
		)
		if err := rows.Scan(&m.ID, &role, &m.Content, &lang, &m.Timestamp, &intentJSON, &resultJSON); err != nil {
			return nil, fmt.Errorf("postgres store: scan message: %w", err)
		}
		m.Role = types.Role(role)
		m.Language = types.Language(lang)
		if len(intentJSON) > 0 {
			var intent types.Intent
			if err := json.Unmarshal(intentJSON, &intent); err == nil {
				m.Intent = &intent
			}
		}
		if len(resultJSON) > 0 {
			var result types.ActionResult
			if err := json.Unmarshal(resultJSON, &result); err == nil {
				m.ActionResult = &result
			}
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: iterate messages: %w", err)
	}

	// Rows arrive newest-first; flip to chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Preferences implements memory.Store.
func (s *Store) Preferences(ctx context.Context, sessionID string) (map[string]any, error) {
	const q = `SELECT preferences FROM sessions WHERE id = $1 AND expires_at > now()`

	var raw []byte
	if err := s.pool.QueryRow(ctx, q, sessionID).Scan(&raw); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres store: query preferences: %w", err)
	}

	var prefs map[string]any
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return nil, fmt.Errorf("postgres store: decode preferences: %w", err)
	}
	if len(prefs) == 0 {
		return nil, nil
	}
	return prefs, nil
}

// SetPreference implements memory.Store. The jsonb_set merge happens inside
// a single UPDATE, so concurrent preference updates on one session cannot
// lose writes.
func (s *Store) SetPreference(ctx context.Context, sessionID, key string, value any) error {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("postgres store: encode preference: %w", err)
	}

	const q = `
		UPDATE sessions
		SET    preferences = jsonb_set(preferences, ARRAY[$2], $3::jsonb, true)
		WHERE  id = $1`

	if _, err := s.pool.Exec(ctx, q, sessionID, key, encoded); err != nil {
		return fmt.Errorf("postgres store: set preference: %w", err)
	}
	return nil
}

// AppendNote implements memory.Store. The append is a single-statement jsonb
// concatenation, atomic under concurrency.
func (s *Store) AppendNote(ctx context.Context, sessionID, content string) error {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return err
	}

	encoded, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("postgres store: encode note: %w", err)
	}

	const q = `UPDATE sessions SET notes = notes || $2::jsonb WHERE id = $1`
	if _, err := s.pool.Exec(ctx, q, sessionID, encoded); err != nil {
		return fmt.Errorf("postgres store: append note: %w", err)
	}
	return nil
}

// Notes implements memory.Store.
func (s *Store) Notes(ctx context.Context, sessionID string) ([]string, error) {
	const q = `SELECT notes FROM sessions WHERE id = $1 AND expires_at > now()`

	var raw []byte
	if err := s.pool.QueryRow(ctx, q, sessionID).Scan(&raw); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres store: query notes: %w", err)
	}

	var notes []string
	if err := json.Unmarshal(raw, &notes); err != nil {
		return nil, fmt.Errorf("postgres store: decode notes: %w", err)
	}
	return notes, nil
}

// DeleteSession implements memory.Store. Messages cascade with the session row.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	const q = `DELETE FROM sessions WHERE id = $1`
	if _, err := s.pool.Exec(ctx, q, sessionID); err != nil {
		return fmt.Errorf("postgres store: delete session: %w", err)
	}
	return nil
}

// Ping implements memory.Store.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres store: ping: %w", err)
	}
	return nil
}

// Close implements memory.Store.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
