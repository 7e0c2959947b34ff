// Package types defines the shared types used across all Vaani packages.
//
// These types form the lingua franca between the classifier, the action
// registry, the response generator, the memory layer, and the orchestrator.
// They are intentionally minimal — each package defines its own domain types,
// but cross-cutting data structures live here to avoid circular imports.
package types

import "time"

// Language tags the language of a user utterance or assistant reply.
// Vaani is bilingual: responses mirror the language of the input.
type Language string

const (
	// LangEnglish is plain English.
	LangEnglish Language = "en"

	// LangHindi is Devanagari Hindi.
	LangHindi Language = "hi"

	// LangMixed is Hinglish — English and Hindi code-switched in one utterance.
	LangMixed Language = "mixed"
)

// IsValid reports whether l is one of the three recognised language tags.
func (l Language) IsValid() bool {
	switch l {
	case LangEnglish, LangHindi, LangMixed:
		return true
	}
	return false
}

// Intent is the structured interpretation of a user utterance: an action name
// plus the parameters extracted from the text.
//
// Intents are produced fresh per turn by a classifier provider and are never
// mutated after creation — the validator and orchestrator operate on copies.
type Intent struct {
	// Action is the name of the action to dispatch. Must correspond to a
	// definition in the action registry for validation to pass.
	Action string `json:"action"`

	// Entities maps parameter names (as declared by the action's schema)
	// to the values extracted from the utterance.
	Entities map[string]any `json:"entities"`

	// Confidence is the classifier's confidence in this interpretation (0.0–1.0).
	Confidence float64 `json:"confidence"`

	// RequiresConfirmation is set when the action is sensitive or the
	// confidence fell below the validator's threshold. The orchestrator routes
	// such turns into a confirmation prompt instead of direct execution.
	RequiresConfirmation bool `json:"requiresConfirmation"`
}

// Entity returns the string value of the named entity, or "" when absent
// or not a string.
func (i Intent) Entity(name string) string {
	if v, ok := i.Entities[name]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// ActionResult is the outcome of a single action execution. Produced once per
// dispatch and immutable afterwards.
type ActionResult struct {
	// Success reports whether the action completed.
	Success bool `json:"success"`

	// Message is a human-readable description of what happened. On failure it
	// carries the reason and is folded into the error-response template.
	Message string `json:"message"`

	// Data is an optional structured payload for the client (e.g. a URL to
	// open). Failed results never carry an actionable Data payload.
	Data map[string]any `json:"data,omitempty"`
}

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry in a session's conversation log. Messages are immutable
// once appended; the log is append-only and insertion order is chronological.
type Message struct {
	// ID is the unique identifier assigned when the message is stored.
	ID string `json:"id"`

	// Role is who authored the message.
	Role Role `json:"role"`

	// Content is the plain text of the message. Stored encrypted at rest;
	// decrypted when assembled into a ConversationContext.
	Content string `json:"content"`

	// Language tags the message's language.
	Language Language `json:"language"`

	// Timestamp is when the message was recorded.
	Timestamp time.Time `json:"timestamp"`

	// Intent is the parsed intent associated with a user message, if any.
	Intent *Intent `json:"intent,omitempty"`

	// ActionResult is the execution outcome associated with an assistant
	// message, if any.
	ActionResult *ActionResult `json:"actionResult,omitempty"`
}

// ConversationContext is a read-only projection of a session for a single
// turn: the last N messages (decrypted) plus the session's preferences.
// It is assembled on demand and never persisted as its own entity.
type ConversationContext struct {
	// SessionID identifies the session this context was assembled from.
	SessionID string

	// Messages holds the most recent messages in chronological order.
	Messages []Message

	// Preferences is the session's preference map merged over defaults.
	Preferences map[string]any

	// AssembledAt is when this projection was built.
	AssembledAt time.Time
}

// ParameterSchema describes one parameter of an action definition.
type ParameterSchema struct {
	// Name is the entity key the classifier must produce.
	Name string `json:"name"`

	// Type is the semantic type: "string", "number", or "boolean".
	Type string `json:"type"`

	// Required marks parameters that must be present and non-empty for the
	// action to execute.
	Required bool `json:"required"`

	// Description explains the parameter to the classifier's function schema.
	Description string `json:"description"`
}

// DefaultPreferences returns the preference map applied to sessions that have
// not saved any preferences yet.
func DefaultPreferences() map[string]any {
	return map[string]any{
		"language":    "auto",
		"voiceSpeed":  1.0,
		"theme":       "default",
		"autoExecute": false,
	}
}
