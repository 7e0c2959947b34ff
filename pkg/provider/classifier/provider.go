// Package classifier defines the Provider interface for intent classification
// backends.
//
// A classifier provider maps a free-text user utterance (plus recent
// conversational context) to a structured [types.Intent], generates
// persona-consistent reply text, and detects the utterance language. The LLM
// call itself is an external collaborator — this package only fixes the
// boundary so that the orchestrator never couples to any specific SDK.
//
// Implementations must be safe for concurrent use.
package classifier

import (
	"context"
	"errors"

	"github.com/swarajlabs/vaani/pkg/types"
)

// ErrNoIntent is returned by ParseIntent when the backend produced nothing
// usable. Callers should treat it as a classification failure and route the
// turn into a clarification request rather than surfacing the error.
var ErrNoIntent = errors.New("classifier: no usable intent")

// Function describes one action offered to the classifier as a callable
// function. The Parameters field is a JSON Schema object in the same shape
// accepted by OpenAI-compatible function calling.
type Function struct {
	// Name is the action name the classifier may select.
	Name string

	// Description explains when the function applies.
	Description string

	// Parameters is the JSON Schema for the function's arguments.
	Parameters map[string]any

	// RequiresConfirmation marks sensitive actions; intents produced for them
	// carry RequiresConfirmation regardless of confidence.
	RequiresConfirmation bool
}

// ReplyRequest carries everything needed to generate a persona reply for a
// completed (or pending) action.
type ReplyRequest struct {
	// Prompt is the structured description of what was done, e.g.
	// "I just opened YouTube for the user."
	Prompt string

	// Context is the recent conversation, used for persona continuity.
	// May be nil when no history exists yet.
	Context *types.ConversationContext

	// ActionResult is the action outcome to weave into the reply. May be nil.
	ActionResult *types.ActionResult
}

// Provider is the abstraction over any intent classification backend.
//
// Implementations must be safe for concurrent use and must return promptly
// when ctx is cancelled. All calls carry finite timeouts at the transport
// level; a hung classifier must surface as a catchable error, never a stall.
type Provider interface {
	// ParseIntent maps text to a structured intent. The context may be nil.
	//
	// When the backend cannot produce a usable intent it returns [ErrNoIntent]
	// (possibly wrapped); any other error indicates a transport or backend
	// failure. Implementations that cannot match any function should fall back
	// to a "general_conversation" intent rather than erroring.
	ParseIntent(ctx context.Context, text string, convCtx *types.ConversationContext) (types.Intent, error)

	// GenerateReply produces persona-consistent natural-language text for the
	// given request. Callers must be prepared for failure and fall back to
	// deterministic templates.
	GenerateReply(ctx context.Context, req ReplyRequest) (string, error)

	// DetectLanguage tags text as English, Hindi, or mixed. It is a pure
	// function of the text and never fails.
	DetectLanguage(text string) types.Language
}

// DetectLanguage is the shared character-range heuristic used by providers
// that have no better signal: any Devanagari rune marks Hindi, any Latin
// letter marks English, both together mark mixed. Defaults to English.
func DetectLanguage(text string) types.Language {
	var hasHindi, hasEnglish bool
	for _, r := range text {
		switch {
		case r >= 0x0900 && r <= 0x097F:
			hasHindi = true
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			hasEnglish = true
		}
		if hasHindi && hasEnglish {
			return types.LangMixed
		}
	}
	if hasHindi {
		return types.LangHindi
	}
	return types.LangEnglish
}
