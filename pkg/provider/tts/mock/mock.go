// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to return controlled audio bytes and to verify the text and
// options passed to the synthesis backend:
//
//	p := &mock.Provider{SynthesizeResult: []byte("mp3-bytes")}
//	audio, _ := p.Synthesize(ctx, "hello", tts.Options{})
package mock

import (
	"context"
	"sync"

	"github.com/swarajlabs/vaani/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Text is the text passed to Synthesize.
	Text string
	// Opts is the options value passed to Synthesize.
	Opts tts.Options
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// SynthesizeResult is the audio returned on success. When nil and
	// SynthesizeFn is also nil, a small placeholder payload is returned.
	SynthesizeResult []byte

	// SynthesizeErr, if non-nil, is returned instead of audio.
	SynthesizeErr error

	// SynthesizeFn, if non-nil, overrides the canned behaviour entirely.
	SynthesizeFn func(text string, opts tts.Options) ([]byte, error)

	// SynthesizeCalls records every invocation in order.
	SynthesizeCalls []SynthesizeCall
}

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(_ context.Context, text string, opts tts.Options) ([]byte, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, Opts: opts})
	fn := p.SynthesizeFn
	result, err := p.SynthesizeResult, p.SynthesizeErr
	p.mu.Unlock()

	if fn != nil {
		return fn(text, opts)
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		return []byte("audio"), nil
	}
	return result, nil
}

// Calls returns a snapshot of the recorded invocations.
func (p *Provider) Calls() []SynthesizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SynthesizeCall, len(p.SynthesizeCalls))
	copy(out, p.SynthesizeCalls)
	return out
}
