// Package openai provides an intent classifier backed by an OpenAI-compatible
// chat completion API using native function calling. It implements the
// classifier.Provider interface.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/swarajlabs/vaani/pkg/provider/classifier"
	"github.com/swarajlabs/vaani/pkg/types"
)

// Compile-time interface assertion.
var _ classifier.Provider = (*Provider)(nil)

const (
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 20 * time.Second

	// functionCallConfidence is assigned when the model selects a function:
	// a function call is a strong structured signal, so confidence is high.
	functionCallConfidence = 0.9

	// fallbackConfidence is assigned when no function was called and the
	// utterance is treated as general conversation.
	fallbackConfidence = 0.7

	// maxContextMessages bounds how much history is sent with each request.
	maxContextMessages = 6
)

// Provider implements classifier.Provider using an OpenAI-compatible API.
type Provider struct {
	client    oai.Client
	model     string
	persona   string
	functions []classifier.Function
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	model   string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default API base URL, e.g. to target a local
// OpenAI-compatible server.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel selects the chat model. Default is gpt-4o-mini.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithTimeout sets the per-request HTTP timeout. Default is 20s.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a Provider offering the given functions to the model.
// persona is the system instruction applied to reply generation; it may be
// empty, in which case replies are unstyled.
func New(apiKey, persona string, functions []classifier.Function, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	cfg := &config{model: defaultModel, timeout: defaultTimeout}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}

	fns := make([]classifier.Function, len(functions))
	copy(fns, functions)

	return &Provider{
		client:    oai.NewClient(reqOpts...),
		model:     cfg.model,
		persona:   persona,
		functions: fns,
	}, nil
}

// ParseIntent implements classifier.Provider. It offers the configured
// functions to the model and converts the first returned tool call into an
// intent. When the model answers in prose instead of calling a function, the
// utterance is classified as general conversation.
func (p *Provider) ParseIntent(ctx context.Context, text string, convCtx *types.ConversationContext) (types.Intent, error) {
	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(intentSystemPrompt),
			oai.UserMessage(buildIntentPrompt(text, convCtx)),
		},
		Temperature: param.NewOpt(0.2),
	}
	for _, fn := range p.functions {
		params.Tools = append(params.Tools, oai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        fn.Name,
				Description: param.NewOpt(fn.Description),
				Parameters:  shared.FunctionParameters(fn.Parameters),
			},
		})
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return types.Intent{}, fmt.Errorf("openai: parse intent: %w", err)
	}
	if len(resp.Choices) == 0 {
		return types.Intent{}, fmt.Errorf("openai: parse intent: %w", classifier.ErrNoIntent)
	}

	choice := resp.Choices[0]
	if len(choice.Message.ToolCalls) == 0 {
		// No function selected — treat as general conversation.
		return types.Intent{
			Action:     "general_conversation",
			Entities:   map[string]any{"topic": text},
			Confidence: fallbackConfidence,
		}, nil
	}

	call := choice.Message.ToolCalls[0]
	entities := map[string]any{}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &entities); err != nil {
			return types.Intent{}, fmt.Errorf("openai: decode function arguments: %w", err)
		}
	}

	return types.Intent{
		Action:               call.Function.Name,
		Entities:             entities,
		Confidence:           functionCallConfidence,
		RequiresConfirmation: p.requiresConfirmation(call.Function.Name),
	}, nil
}

// GenerateReply implements classifier.Provider. The persona system prompt and
// a bounded slice of conversation history are sent alongside the structured
// action description.
func (p *Provider) GenerateReply(ctx context.Context, req classifier.ReplyRequest) (string, error) {
	var messages []oai.ChatCompletionMessageParamUnion
	if p.persona != "" {
		messages = append(messages, oai.SystemMessage(p.persona))
	}
	if req.Context != nil {
		history := req.Context.Messages
		if len(history) > maxContextMessages {
			history = history[len(history)-maxContextMessages:]
		}
		for _, m := range history {
			switch m.Role {
			case types.RoleAssistant:
				messages = append(messages, oai.AssistantMessage(m.Content))
			default:
				messages = append(messages, oai.UserMessage(m.Content))
			}
		}
	}

	prompt := req.Prompt
	if req.ActionResult != nil {
		payload, err := json.Marshal(req.ActionResult)
		if err == nil {
			prompt += "\n\nAction result: " + string(payload)
		}
	}
	messages = append(messages, oai.UserMessage(prompt))

	resp, err := p.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model:       shared.ChatModel(p.model),
		Messages:    messages,
		Temperature: param.NewOpt(0.8),
	})
	if err != nil {
		return "", fmt.Errorf("openai: generate reply: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai: generate reply: empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}

// DetectLanguage implements classifier.Provider using the shared
// character-range heuristic. No model call is made: language detection must
// stay cheap and deterministic on the turn hot path.
func (p *Provider) DetectLanguage(text string) types.Language {
	return classifier.DetectLanguage(text)
}

func (p *Provider) requiresConfirmation(action string) bool {
	for _, fn := range p.functions {
		if fn.Name == action {
			return fn.RequiresConfirmation
		}
	}
	return false
}

// intentSystemPrompt steers the model toward function selection.
const intentSystemPrompt = "Analyze the user's utterance and select the function that matches " +
	"their intent, extracting arguments from the text. If no specific action is requested, " +
	"select general_conversation."

// buildIntentPrompt assembles the user prompt, appending up to three recent
// messages of context when available.
func buildIntentPrompt(text string, convCtx *types.ConversationContext) string {
	if convCtx == nil || len(convCtx.Messages) == 0 {
		return text
	}
	recent := convCtx.Messages
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	out := "User input: " + text + "\n\nRecent conversation:"
	for _, m := range recent {
		out += fmt.Sprintf("\n%s: %s", m.Role, m.Content)
	}
	return out
}
