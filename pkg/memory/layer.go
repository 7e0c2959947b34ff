package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/swarajlabs/vaani/pkg/types"
)

const (
	// defaultContextWindow is how many recent messages feed a turn's context
	// when the caller does not say otherwise.
	defaultContextWindow = 10

	// summaryThreshold is the minimum message count before Summarize produces
	// a real summary.
	summaryThreshold = 10

	// summaryWindow is how far back Summarize looks.
	summaryWindow = 50
)

// Layer is the conversational memory layer: it encrypts content before it
// reaches the [Store] and decrypts it on the way back out, assembles
// per-turn conversation contexts, and produces cheap deterministic summaries
// for long sessions.
//
// Layer is safe for concurrent use; all synchronisation requirements are
// delegated to the underlying Store.
type Layer struct {
	store  Store
	cipher *Cipher
}

// NewLayer wires a Layer over the given store and cipher.
func NewLayer(store Store, cipher *Cipher) *Layer {
	return &Layer{store: store, cipher: cipher}
}

// AddMessage encrypts content and appends it to the session's log. The
// optional intent and result are stored alongside the message for later
// summarisation and introspection; they are not encrypted (they contain no
// free-form user text beyond what the entities echo).
func (l *Layer) AddMessage(ctx context.Context, sessionID string, role types.Role, content string, lang types.Language, intent *types.Intent, result *types.ActionResult) error {
	sealed, err := l.cipher.Encrypt(content)
	if err != nil {
		return fmt.Errorf("memory: encrypt message: %w", err)
	}

	msg := types.Message{
		ID:           "msg_" + uuid.NewString(),
		Role:         role,
		Content:      sealed,
		Language:     lang,
		Timestamp:    time.Now().UTC(),
		Intent:       intent,
		ActionResult: result,
	}
	if err := l.store.AppendMessage(ctx, sessionID, msg); err != nil {
		return fmt.Errorf("memory: append message: %w", err)
	}
	return nil
}

// Context assembles a read-only projection of the session for one turn: the
// most recent maxMessages messages (decrypted, chronological) plus the
// session's preferences merged over defaults.
//
// Decryption failure on an individual message is tolerated — the raw stored
// value is kept for that message only and the fetch continues. A session that
// has never been written yields an empty context, not an error.
func (l *Layer) Context(ctx context.Context, sessionID string, maxMessages int) (*types.ConversationContext, error) {
	if maxMessages <= 0 {
		maxMessages = defaultContextWindow
	}

	msgs, err := l.store.RecentMessages(ctx, sessionID, maxMessages)
	if err != nil {
		return nil, fmt.Errorf("memory: fetch messages: %w", err)
	}

	for i := range msgs {
		plain, err := l.cipher.Decrypt(msgs[i].Content)
		if err != nil {
			slog.Warn("message decryption failed, returning stored value",
				"session_id", sessionID,
				"message_id", msgs[i].ID,
			)
			continue
		}
		msgs[i].Content = plain
	}

	prefs, err := l.store.Preferences(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("memory: fetch preferences: %w", err)
	}
	merged := types.DefaultPreferences()
	for k, v := range prefs {
		merged[k] = v
	}

	return &types.ConversationContext{
		SessionID:   sessionID,
		Messages:    msgs,
		Preferences: merged,
		AssembledAt: time.Now().UTC(),
	}, nil
}

// SavePreference merges key=value into the session's preferences.
func (l *Layer) SavePreference(ctx context.Context, sessionID, key string, value any) error {
	if err := l.store.SetPreference(ctx, sessionID, key, value); err != nil {
		return fmt.Errorf("memory: save preference %q: %w", key, err)
	}
	return nil
}

// Preference returns a single preference value (or the default when unset).
func (l *Layer) Preference(ctx context.Context, sessionID, key string) (any, error) {
	prefs, err := l.store.Preferences(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("memory: fetch preferences: %w", err)
	}
	if v, ok := prefs[key]; ok {
		return v, nil
	}
	return types.DefaultPreferences()[key], nil
}

// AddNote appends a note to the session's note pad.
func (l *Layer) AddNote(ctx context.Context, sessionID, content string) error {
	if err := l.store.AppendNote(ctx, sessionID, content); err != nil {
		return fmt.Errorf("memory: append note: %w", err)
	}
	return nil
}

// Notes returns the session's notes in insertion order.
func (l *Layer) Notes(ctx context.Context, sessionID string) ([]string, error) {
	notes, err := l.store.Notes(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("memory: fetch notes: %w", err)
	}
	return notes, nil
}

// ClearSession deletes all session state. Idempotent: clearing a session
// that is already gone succeeds.
func (l *Layer) ClearSession(ctx context.Context, sessionID string) error {
	if err := l.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("memory: clear session: %w", err)
	}
	return nil
}

// Summarize produces a cheap deterministic summary of the session: message
// count plus the distinct action types observed, in first-seen order. It
// never calls the classifier. Sessions below the length threshold get a
// fixed short-conversation notice.
func (l *Layer) Summarize(ctx context.Context, sessionID string) (string, error) {
	msgs, err := l.store.RecentMessages(ctx, sessionID, summaryWindow)
	if err != nil {
		return "", fmt.Errorf("memory: summarize: %w", err)
	}
	if len(msgs) < summaryThreshold {
		return "Short conversation, no summary needed", nil
	}

	seen := map[string]struct{}{}
	var order []string
	for _, m := range msgs {
		if m.Intent == nil || m.Intent.Action == "" {
			continue
		}
		if _, ok := seen[m.Intent.Action]; !ok {
			seen[m.Intent.Action] = struct{}{}
			order = append(order, m.Intent.Action)
		}
	}

	summary := fmt.Sprintf("Conversation with %d messages", len(msgs))
	if len(order) > 0 {
		summary += " covering: "
		for i, a := range order {
			if i > 0 {
				summary += ", "
			}
			summary += a
		}
	}
	return summary, nil
}
