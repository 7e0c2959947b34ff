// Package googletts provides a Google Cloud Text-to-Speech backed TTS
// provider using the REST API with API-key authentication. It implements the
// tts.Provider interface and is the default synthesis vendor.
package googletts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/swarajlabs/vaani/pkg/provider/tts"
	"github.com/swarajlabs/vaani/pkg/types"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const (
	synthesizeEndpoint = "https://texttospeech.googleapis.com/v1/text:synthesize"
	defaultTimeout     = 15 * time.Second
)

// voiceParams selects the Neural2 Indian voices used for each language.
// Mixed-language (Hinglish) text goes through the Hindi voice, which renders
// embedded English naturally.
var voiceParams = map[types.Language]voiceSelection{
	types.LangEnglish: {LanguageCode: "en-IN", Name: "en-IN-Neural2-B", Gender: "MALE"},
	types.LangHindi:   {LanguageCode: "hi-IN", Name: "hi-IN-Neural2-B", Gender: "MALE"},
	types.LangMixed:   {LanguageCode: "hi-IN", Name: "hi-IN-Neural2-B", Gender: "MALE"},
}

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithTimeout sets the per-request HTTP timeout. Default is 15s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// WithEndpoint overrides the synthesis endpoint (used in tests to point at a
// local httptest server).
func WithEndpoint(url string) Option {
	return func(p *Provider) { p.endpoint = url }
}

// Provider implements tts.Provider backed by the Google Cloud TTS REST API.
type Provider struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// New creates a Google Cloud TTS Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("googletts: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		endpoint:   synthesizeEndpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ---- REST message types ----

type voiceSelection struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name"`
	Gender       string `json:"ssmlGender"`
}

type synthesisInput struct {
	Text string `json:"text,omitempty"`
	SSML string `json:"ssml,omitempty"`
}

type audioConfig struct {
	AudioEncoding    string   `json:"audioEncoding"`
	SpeakingRate     float64  `json:"speakingRate"`
	Pitch            float64  `json:"pitch"`
	EffectsProfileID []string `json:"effectsProfileId,omitempty"`
}

type synthesizeRequest struct {
	Input       synthesisInput `json:"input"`
	Voice       voiceSelection `json:"voice"`
	AudioConfig audioConfig    `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// Synthesize implements tts.Provider. It posts a synthesis request and
// decodes the base64 MP3 payload from the response.
func (p *Provider) Synthesize(ctx context.Context, text string, opts tts.Options) ([]byte, error) {
	if text == "" {
		return nil, errors.New("googletts: text must not be empty")
	}

	lang := opts.Language
	if !lang.IsValid() {
		lang = types.LangEnglish
	}
	rate := opts.SpeakingRate
	if rate == 0 {
		rate = 1.0
	}

	reqBody := synthesizeRequest{
		Voice: voiceParams[lang],
		AudioConfig: audioConfig{
			AudioEncoding:    "MP3",
			SpeakingRate:     rate,
			EffectsProfileID: []string{"headphone-class-device"},
		},
	}
	if opts.SSML {
		reqBody.Input.SSML = text
	} else {
		reqBody.Input.Text = text
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("googletts: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"?key="+p.apiKey, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("googletts: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("googletts: synthesize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("googletts: synthesize: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var out synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("googletts: decode response: %w", err)
	}
	if out.AudioContent == "" {
		return nil, errors.New("googletts: no audio content in response")
	}

	audio, err := base64.StdEncoding.DecodeString(out.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("googletts: decode audio: %w", err)
	}
	return audio, nil
}
