// Package orchestrator coordinates a full conversation turn: memory, intent
// classification, validation, action dispatch, response generation, and
// optional speech synthesis.
//
// The orchestrator's outer boundary never surfaces an error for a turn.
// Classification failure becomes a clarification request, validation failure
// becomes an error response, a panicking collaborator becomes a fallback
// line, and a failed synthesis degrades to a text-only result. The caller
// always gets a speakable reply.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/swarajlabs/vaani/internal/action"
	"github.com/swarajlabs/vaani/internal/intent"
	"github.com/swarajlabs/vaani/internal/observe"
	"github.com/swarajlabs/vaani/internal/respond"
	"github.com/swarajlabs/vaani/internal/speech"
	"github.com/swarajlabs/vaani/pkg/memory"
	"github.com/swarajlabs/vaani/pkg/provider/classifier"
	"github.com/swarajlabs/vaani/pkg/types"
)

// State labels how a turn concluded.
type State string

const (
	// StateCompleted means an action (or conversation) ran and a response was
	// produced.
	StateCompleted State = "completed"

	// StateConfirmationRequired means the turn stopped short of execution and
	// is waiting for explicit user approval.
	StateConfirmationRequired State = "confirmation_required"

	// StateClarification means the utterance could not be turned into an
	// executable intent and the user was asked to rephrase.
	StateClarification State = "clarification"

	// StateInvalid means the intent named an unknown action or was missing a
	// required parameter.
	StateInvalid State = "invalid"
)

// TurnResult is everything a transport needs to answer one user turn.
type TurnResult struct {
	// Text is the reply in the active persona and language. Never empty.
	Text string `json:"text"`

	// Language tags the reply language.
	Language types.Language `json:"language"`

	// Audio is the synthesized reply. Nil when synthesis is disabled or
	// failed; the turn is still complete.
	Audio []byte `json:"audio,omitempty"`

	// Intent is the parsed intent, when one was produced.
	Intent *types.Intent `json:"intent,omitempty"`

	// ActionResult is the execution outcome, when an action was dispatched.
	ActionResult *types.ActionResult `json:"actionResult,omitempty"`

	// State labels how the turn concluded.
	State State `json:"state"`
}

// Config carries the orchestrator's collaborators. Memory, Classifier,
// Validator, Registry, and Responder are required; Synthesizer and Metrics
// are optional.
type Config struct {
	Memory      *memory.Layer
	Classifier  classifier.Provider
	Validator   *intent.Validator
	Registry    *action.Registry
	Responder   *respond.Generator
	Synthesizer *speech.Synthesizer
	Metrics     *observe.Metrics

	// ContextWindow is how many recent messages feed each turn. Zero means
	// the memory layer's default.
	ContextWindow int
}

// Orchestrator drives the per-turn state machine. Safe for concurrent use;
// turns on the same session are serialized to keep read-modify-write
// preference updates and confirmation flows coherent.
type Orchestrator struct {
	memory        *memory.Layer
	classifier    classifier.Provider
	validator     *intent.Validator
	registry      *action.Registry
	responder     *respond.Generator
	synth         *speech.Synthesizer
	metrics       *observe.Metrics
	contextWindow int

	sessions sync.Map // session id -> *sync.Mutex
}

// New wires an Orchestrator from cfg. A nil Metrics falls back to
// [observe.DefaultMetrics].
func New(cfg Config) *Orchestrator {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Orchestrator{
		memory:        cfg.Memory,
		classifier:    cfg.Classifier,
		validator:     cfg.Validator,
		registry:      cfg.Registry,
		responder:     cfg.Responder,
		synth:         cfg.Synthesizer,
		metrics:       metrics,
		contextWindow: cfg.ContextWindow,
	}
}

// ProcessTurn runs one user utterance through the full pipeline and returns
// the reply. It never returns an error: every failure collapses into a
// natural-language response in the detected language.
func (o *Orchestrator) ProcessTurn(ctx context.Context, sessionID, text string, lang types.Language) (result *TurnResult) {
	start := time.Now()
	ctx, span := observe.StartTurnSpan(ctx, sessionID)
	defer span.End()

	if !lang.IsValid() {
		lang = o.classifier.DetectLanguage(text)
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("turn panicked",
				"session_id", sessionID,
				"panic", r,
			)
			result = &TurnResult{
				Text:     o.responder.Fallback(lang),
				Language: lang,
				State:    StateClarification,
			}
			o.metrics.RecordTurn(ctx, "", "panic")
		}
		o.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())
	}()

	mu := o.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	if err := o.memory.AddMessage(ctx, sessionID, types.RoleUser, text, lang, nil, nil); err != nil {
		slog.Warn("failed to persist user message", "session_id", sessionID, "error", err)
	}

	convCtx, err := o.memory.Context(ctx, sessionID, o.contextWindow)
	if err != nil {
		slog.Warn("failed to load conversation context", "session_id", sessionID, "error", err)
		convCtx = nil
	}

	parseStart := time.Now()
	parsed, err := o.classifier.ParseIntent(ctx, text, convCtx)
	o.metrics.IntentParseDuration.Record(ctx, time.Since(parseStart).Seconds())
	if err != nil {
		slog.Info("intent parsing failed, asking for clarification",
			"session_id", sessionID,
			"error", err,
		)
		reply := o.responder.ClarificationRequest(lang)
		o.finishTurn(ctx, sessionID, reply, lang, nil, nil)
		o.metrics.RecordTurn(ctx, "", "clarification")
		return &TurnResult{
			Text:     reply,
			Language: lang,
			Audio:    o.synthesize(ctx, sessionID, reply, lang),
			State:    StateClarification,
		}
	}

	return o.runIntent(ctx, sessionID, parsed, convCtx, lang)
}

// ExecuteIntent runs an already-parsed intent through validation, dispatch,
// and response generation, skipping classification. Used by the transport's
// direct action-execution entry points.
func (o *Orchestrator) ExecuteIntent(ctx context.Context, sessionID string, in types.Intent, lang types.Language) *TurnResult {
	if !lang.IsValid() {
		lang = types.LangEnglish
	}
	mu := o.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	convCtx, err := o.memory.Context(ctx, sessionID, o.contextWindow)
	if err != nil {
		convCtx = nil
	}
	return o.runIntent(ctx, sessionID, in, convCtx, lang)
}

// runIntent is the shared validate-execute-respond tail of a turn. The
// caller must hold the session lock.
func (o *Orchestrator) runIntent(ctx context.Context, sessionID string, parsed types.Intent, convCtx *types.ConversationContext, lang types.Language) *TurnResult {
	trace.SpanFromContext(ctx).SetAttributes(observe.Attr("action", parsed.Action))

	if v := o.validator.Validate(parsed); !v.Valid {
		failed := types.ActionResult{Success: false, Message: v.Reason}
		reply := o.responder.Generate(ctx, parsed, failed, convCtx, lang)
		o.finishTurn(ctx, sessionID, reply, lang, &parsed, &failed)
		o.metrics.RecordTurn(ctx, parsed.Action, "invalid")
		return &TurnResult{
			Text:         reply,
			Language:     lang,
			Audio:        o.synthesize(ctx, sessionID, reply, lang),
			Intent:       &parsed,
			ActionResult: &failed,
			State:        StateInvalid,
		}
	}

	final := o.validator.Finalize(parsed)
	confirmed := final.Entities["confirmed"] == true

	if final.RequiresConfirmation && !confirmed {
		pending := types.ActionResult{Success: true}
		reply := o.responder.Generate(ctx, final, pending, convCtx, lang)
		o.finishTurn(ctx, sessionID, reply, lang, &final, nil)
		o.metrics.RecordTurn(ctx, final.Action, "confirmation")
		return &TurnResult{
			Text:     reply,
			Language: lang,
			Audio:    o.synthesize(ctx, sessionID, reply, lang),
			Intent:   &final,
			State:    StateConfirmationRequired,
		}
	}

	result := o.registry.Execute(ctx, sessionID, final)

	// The reply for a confirmed sensitive action goes through the success
	// path, not another confirmation prompt.
	replyIntent := final
	if confirmed {
		replyIntent.RequiresConfirmation = false
	}
	reply := o.responder.Generate(ctx, replyIntent, result, convCtx, lang)
	o.finishTurn(ctx, sessionID, reply, lang, &final, &result)

	status := "ok"
	if !result.Success {
		status = "failed"
	}
	o.metrics.RecordTurn(ctx, final.Action, status)

	return &TurnResult{
		Text:         reply,
		Language:     lang,
		Audio:        o.synthesize(ctx, sessionID, reply, lang),
		Intent:       &final,
		ActionResult: &result,
		State:        StateCompleted,
	}
}

// Greet opens a session: bumps the live-session gauge and returns a greeting
// in the requested language.
func (o *Orchestrator) Greet(ctx context.Context, sessionID string, lang types.Language) *TurnResult {
	if !lang.IsValid() {
		lang = types.LangEnglish
	}
	o.metrics.ActiveSessions.Add(ctx, 1)

	reply := o.responder.Greeting(lang)
	o.finishTurn(ctx, sessionID, reply, lang, nil, nil)
	return &TurnResult{
		Text:     reply,
		Language: lang,
		Audio:    o.synthesize(ctx, sessionID, reply, lang),
		State:    StateCompleted,
	}
}

// Farewell closes a session: returns a goodbye line, clears the session's
// stored state, and decrements the live-session gauge.
func (o *Orchestrator) Farewell(ctx context.Context, sessionID string, lang types.Language) *TurnResult {
	if !lang.IsValid() {
		lang = types.LangEnglish
	}
	reply := o.responder.Goodbye(lang)
	audio := o.synthesize(ctx, sessionID, reply, lang)

	if err := o.memory.ClearSession(ctx, sessionID); err != nil {
		slog.Warn("failed to clear session", "session_id", sessionID, "error", err)
	}
	o.sessions.Delete(sessionID)
	o.metrics.ActiveSessions.Add(ctx, -1)

	return &TurnResult{
		Text:     reply,
		Language: lang,
		Audio:    audio,
		State:    StateCompleted,
	}
}

// Disconnect releases a session's live resources after its connection drops
// without a farewell: the live-session gauge goes down and the turn lock is
// discarded, but the stored conversation survives so the client can
// reconnect. Must not be called after [Orchestrator.Farewell] for the same
// session, which already does both.
func (o *Orchestrator) Disconnect(ctx context.Context, sessionID string) {
	o.sessions.Delete(sessionID)
	o.metrics.ActiveSessions.Add(ctx, -1)
}

// Summary returns the session's deterministic conversation summary.
func (o *Orchestrator) Summary(ctx context.Context, sessionID string) (string, error) {
	return o.memory.Summarize(ctx, sessionID)
}

// finishTurn persists the assistant's reply. Persistence failure never fails
// the turn.
func (o *Orchestrator) finishTurn(ctx context.Context, sessionID, reply string, lang types.Language, in *types.Intent, result *types.ActionResult) {
	if err := o.memory.AddMessage(ctx, sessionID, types.RoleAssistant, reply, lang, in, result); err != nil {
		slog.Warn("failed to persist assistant message", "session_id", sessionID, "error", err)
	}
}

// synthesize renders reply audio. Failure degrades to a text-only turn.
func (o *Orchestrator) synthesize(ctx context.Context, sessionID, text string, lang types.Language) []byte {
	if o.synth == nil {
		return nil
	}
	audio, err := o.synth.Synthesize(ctx, text, lang)
	if err != nil {
		slog.Warn("speech synthesis failed, returning text only",
			"session_id", sessionID,
			"error", err,
		)
		o.metrics.RecordProviderError(ctx, "tts", "synthesis")
		return nil
	}
	return audio
}

func (o *Orchestrator) sessionLock(sessionID string) *sync.Mutex {
	mu, _ := o.sessions.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
