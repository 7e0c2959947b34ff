// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., Google Cloud TTS or
// ElevenLabs) and presents a uniform one-shot interface: text in, encoded
// audio bytes out. Streaming synthesis is deliberately out of scope — replies
// are short conversational sentences, and the caching layer in
// internal/speech needs complete utterances to key on.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/swarajlabs/vaani/pkg/types"
)

// Options configures a single synthesis request.
type Options struct {
	// Language selects the voice language. LangMixed utterances use the Hindi
	// voice, which handles code-switched Hinglish naturally.
	Language types.Language

	// SpeakingRate adjusts speech speed (0.5–2.0). Zero means the provider
	// default of 1.0.
	SpeakingRate float64

	// SSML marks Text as SSML markup rather than plain text.
	SSML bool
}

// Provider is the abstraction over any TTS backend.
//
// Implementations must apply a finite request timeout so that a hung vendor
// surfaces as a catchable error: synthesis failure is always non-fatal to the
// conversation turn.
type Provider interface {
	// Synthesize converts text into encoded audio bytes (MP3 unless the
	// implementation documents otherwise). Returns an error when the backend
	// is unreachable, rejects the request, or returns no audio.
	Synthesize(ctx context.Context, text string, opts Options) ([]byte, error)
}
