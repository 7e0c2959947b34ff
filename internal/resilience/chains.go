package resilience

import (
	"context"

	"github.com/swarajlabs/vaani/pkg/provider/classifier"
	"github.com/swarajlabs/vaani/pkg/provider/tts"
	"github.com/swarajlabs/vaani/pkg/types"
)

// ClassifierChain runs an ordered chain of classifier providers behind
// per-provider circuit breakers. The last entry should be the deterministic
// keyword classifier, which never depends on a network, so intent parsing
// keeps producing results when every remote backend is down.
//
// ClassifierChain itself satisfies [classifier.Provider], so callers never
// see the fallback machinery.
type ClassifierChain struct {
	group *FallbackGroup[classifier.Provider]
}

var _ classifier.Provider = (*ClassifierChain)(nil)

// NewClassifierChain builds a chain from the given entries, in order. At
// least one entry is required.
func NewClassifierChain(cfg FallbackConfig, names []string, providers []classifier.Provider) *ClassifierChain {
	group := NewFallbackGroup(providers[0], names[0], cfg)
	for i := 1; i < len(providers); i++ {
		group.AddFallback(names[i], providers[i])
	}
	return &ClassifierChain{group: group}
}

// ParseIntent implements classifier.Provider by trying each backend in order.
func (c *ClassifierChain) ParseIntent(ctx context.Context, text string, convCtx *types.ConversationContext) (types.Intent, error) {
	return ExecuteWithResult(c.group, func(p classifier.Provider) (types.Intent, error) {
		return p.ParseIntent(ctx, text, convCtx)
	})
}

// GenerateReply implements classifier.Provider. Backends without generative
// capability (the keyword classifier) fail fast and the caller falls back to
// response templates.
func (c *ClassifierChain) GenerateReply(ctx context.Context, req classifier.ReplyRequest) (string, error) {
	return ExecuteWithResult(c.group, func(p classifier.Provider) (string, error) {
		return p.GenerateReply(ctx, req)
	})
}

// DetectLanguage implements classifier.Provider with the shared heuristic;
// language tagging never needs a backend.
func (c *ClassifierChain) DetectLanguage(text string) types.Language {
	return classifier.DetectLanguage(text)
}

// SynthChain runs an ordered chain of TTS providers behind per-provider
// circuit breakers, satisfying [tts.Provider] itself. Synthesis failure of
// the whole chain surfaces as an error that the speech layer treats as
// non-fatal: the turn completes text-only.
type SynthChain struct {
	group *FallbackGroup[tts.Provider]
}

var _ tts.Provider = (*SynthChain)(nil)

// NewSynthChain builds a chain from the given entries, in order. At least
// one entry is required.
func NewSynthChain(cfg FallbackConfig, names []string, providers []tts.Provider) *SynthChain {
	group := NewFallbackGroup(providers[0], names[0], cfg)
	for i := 1; i < len(providers); i++ {
		group.AddFallback(names[i], providers[i])
	}
	return &SynthChain{group: group}
}

// Synthesize implements tts.Provider by trying each vendor in order.
func (c *SynthChain) Synthesize(ctx context.Context, text string, opts tts.Options) ([]byte, error) {
	return ExecuteWithResult(c.group, func(p tts.Provider) ([]byte, error) {
		return p.Synthesize(ctx, text, opts)
	})
}
