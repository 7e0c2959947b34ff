// Package mock provides a test double for the classifier.Provider interface.
//
// Configure the result fields, then inspect the recorded calls:
//
//	p := &mock.Provider{
//	    ParseIntentResult: types.Intent{Action: "open_website", Confidence: 0.9},
//	    GenerateReplyResult: "Got it, opening YouTube.",
//	}
package mock

import (
	"context"
	"sync"

	"github.com/swarajlabs/vaani/pkg/provider/classifier"
	"github.com/swarajlabs/vaani/pkg/types"
)

// ParseIntentCall records a single invocation of ParseIntent.
type ParseIntentCall struct {
	Text    string
	Context *types.ConversationContext
}

// GenerateReplyCall records a single invocation of GenerateReply.
type GenerateReplyCall struct {
	Request classifier.ReplyRequest
}

// Provider is a mock implementation of classifier.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// ParseIntentResult is returned by ParseIntent when ParseIntentFn is nil.
	ParseIntentResult types.Intent

	// ParseIntentErr, if non-nil, is returned by ParseIntent.
	ParseIntentErr error

	// ParseIntentFn, if non-nil, overrides the canned result entirely.
	ParseIntentFn func(text string) (types.Intent, error)

	// GenerateReplyResult is returned by GenerateReply.
	GenerateReplyResult string

	// GenerateReplyErr, if non-nil, is returned by GenerateReply.
	GenerateReplyErr error

	// DetectLanguageResult is returned by DetectLanguage; when empty, the
	// shared heuristic is used instead.
	DetectLanguageResult types.Language

	// --- Recorded calls ---

	ParseIntentCalls   []ParseIntentCall
	GenerateReplyCalls []GenerateReplyCall
}

// Compile-time interface assertion.
var _ classifier.Provider = (*Provider)(nil)

// ParseIntent implements classifier.Provider.
func (p *Provider) ParseIntent(_ context.Context, text string, convCtx *types.ConversationContext) (types.Intent, error) {
	p.mu.Lock()
	p.ParseIntentCalls = append(p.ParseIntentCalls, ParseIntentCall{Text: text, Context: convCtx})
	fn := p.ParseIntentFn
	result, err := p.ParseIntentResult, p.ParseIntentErr
	p.mu.Unlock()

	if fn != nil {
		return fn(text)
	}
	return result, err
}

// GenerateReply implements classifier.Provider.
func (p *Provider) GenerateReply(_ context.Context, req classifier.ReplyRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateReplyCalls = append(p.GenerateReplyCalls, GenerateReplyCall{Request: req})
	return p.GenerateReplyResult, p.GenerateReplyErr
}

// DetectLanguage implements classifier.Provider.
func (p *Provider) DetectLanguage(text string) types.Language {
	if p.DetectLanguageResult != "" {
		return p.DetectLanguageResult
	}
	return classifier.DetectLanguage(text)
}
