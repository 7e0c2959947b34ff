// Package speech is the synthesis layer: it decorates reply text with SSML,
// delegates to a TTS provider chain, and caches the resulting audio so
// repeated phrases ("Got it, bhai.") cost one vendor call a day instead of
// hundreds.
//
// The cache is deliberately not an LRU: entries are evicted in insertion
// order once the size cap is reached, and a background sweeper drops entries
// older than the TTL. Synthesis failure is always non-fatal to the caller.
package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/swarajlabs/vaani/internal/observe"
	"github.com/swarajlabs/vaani/pkg/provider/tts"
	"github.com/swarajlabs/vaani/pkg/types"
)

const (
	defaultCacheSize    = 100
	defaultCacheTTL     = 24 * time.Hour
	defaultSpeakingRate = 1.0
	sweepInterval       = time.Hour
)

// Stats is a snapshot of the cache state.
type Stats struct {
	Size    int   `json:"size"`
	MaxSize int   `json:"maxSize"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

type cacheEntry struct {
	audio    []byte
	storedAt time.Time
}

// Synthesizer converts reply text to audio through a TTS provider, caching
// results keyed by (text, language, speaking rate). Safe for concurrent use.
type Synthesizer struct {
	provider tts.Provider
	metrics  *observe.Metrics
	rate     float64
	maxSize  int
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
	order   []string
	hits    int64
	misses  int64
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithCacheSize overrides the cache entry cap.
func WithCacheSize(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// WithCacheTTL overrides the cache entry lifetime.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Synthesizer) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSpeakingRate overrides the default speaking rate.
func WithSpeakingRate(rate float64) Option {
	return func(s *Synthesizer) {
		if rate > 0 {
			s.rate = rate
		}
	}
}

// WithClock injects a clock, letting tests advance time past the TTL.
func WithClock(now func() time.Time) Option {
	return func(s *Synthesizer) { s.now = now }
}

// NewSynthesizer wires a Synthesizer over the given provider. A nil metrics
// falls back to [observe.DefaultMetrics].
func NewSynthesizer(provider tts.Provider, metrics *observe.Metrics, opts ...Option) *Synthesizer {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	s := &Synthesizer{
		provider: provider,
		metrics:  metrics,
		rate:     defaultSpeakingRate,
		maxSize:  defaultCacheSize,
		ttl:      defaultCacheTTL,
		now:      time.Now,
		entries:  make(map[string]cacheEntry),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Synthesize renders text as audio in the given language, decorating it with
// SSML pauses and emphasis first. Cached audio is returned when present and
// fresh.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, lang types.Language) ([]byte, error) {
	if !lang.IsValid() {
		lang = types.LangEnglish
	}
	ssml := AddSSMLTags(text)
	key := cacheKey(ssml, lang, s.rate)

	if audio, ok := s.lookup(key); ok {
		s.metrics.RecordCacheRequest(ctx, "tts", "hit")
		return audio, nil
	}
	s.metrics.RecordCacheRequest(ctx, "tts", "miss")

	start := time.Now()
	audio, err := s.provider.Synthesize(ctx, ssml, tts.Options{
		Language:     lang,
		SpeakingRate: s.rate,
		SSML:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("speech: synthesize: %w", err)
	}
	s.metrics.SynthesisDuration.Record(ctx, time.Since(start).Seconds())

	s.store(key, audio)
	return audio, nil
}

// lookup returns fresh cached audio for key.
func (s *Synthesizer) lookup(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		s.misses++
		return nil, false
	}
	if s.now().Sub(entry.storedAt) > s.ttl {
		s.misses++
		return nil, false
	}
	s.hits++
	return entry.audio, true
}

// store inserts audio under key, evicting the oldest-inserted entry when the
// cache is full.
func (s *Synthesizer) store(key string, audio []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; exists {
		// A refresh (e.g. after TTL expiry) re-queues the key at the back so
		// it is no longer first in line for eviction.
		s.entries[key] = cacheEntry{audio: audio, storedAt: s.now()}
		for i, k := range s.order {
			if k == key {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		s.order = append(s.order, key)
		return
	}
	if len(s.entries) >= s.maxSize {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, oldest)
	}
	s.entries[key] = cacheEntry{audio: audio, storedAt: s.now()}
	s.order = append(s.order, key)
}

// Sweep removes expired entries. It runs hourly under [Synthesizer.Run] and
// is exported for direct invocation in tests.
func (s *Synthesizer) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	kept := s.order[:0]
	removed := 0
	for _, key := range s.order {
		entry, ok := s.entries[key]
		if !ok {
			continue
		}
		if now.Sub(entry.storedAt) > s.ttl {
			delete(s.entries, key)
			removed++
			continue
		}
		kept = append(kept, key)
	}
	s.order = kept
	return removed
}

// Run sweeps the cache hourly until ctx is cancelled. Intended to run in its
// own goroutine.
func (s *Synthesizer) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := s.Sweep()
			slog.Debug("tts cache sweep", "removed", removed, "remaining", s.Stats().Size)
		}
	}
}

// Stats returns a snapshot of the cache state.
func (s *Synthesizer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Size:    len(s.entries),
		MaxSize: s.maxSize,
		Hits:    s.hits,
		Misses:  s.misses,
	}
}

// ClearCache drops every cached entry.
func (s *Synthesizer) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]cacheEntry)
	s.order = nil
}

// cacheKey derives the cache key from the exact synthesis inputs.
func cacheKey(text string, lang types.Language, rate float64) string {
	h := sha256.Sum256([]byte(text + "_" + string(lang) + "_" + strconv.FormatFloat(rate, 'f', -1, 64)))
	return hex.EncodeToString(h[:])
}
