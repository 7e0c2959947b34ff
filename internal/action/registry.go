// Package action implements the action registry and the built-in action
// handlers. An action is a named, schema-described operation dispatched from
// a validated intent: opening a website, fetching news, reading the clock.
//
// Execution never throws: unknown actions, missing parameters, and panicking
// handlers all collapse into a failed [types.ActionResult] that the response
// generator turns into a polite error reply.
package action

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/swarajlabs/vaani/internal/observe"
	"github.com/swarajlabs/vaani/pkg/provider/classifier"
	"github.com/swarajlabs/vaani/pkg/types"
)

// historySize caps the in-memory execution history ring.
const historySize = 100

// Handler executes one action. Entities carries the parameters extracted from
// the utterance; Execute has already checked the required ones are present.
// Handlers report failure through the result, not through panics; a panic is
// caught by the registry as a last resort.
type Handler func(ctx context.Context, sessionID string, entities map[string]any) types.ActionResult

// Definition describes one registered action.
type Definition struct {
	// Name is the unique action name (e.g. "open_website").
	Name string

	// Description explains when the action applies; it feeds the classifier's
	// function schema.
	Description string

	// Parameters is the action's parameter schema.
	Parameters []types.ParameterSchema

	// RequiresConfirmation marks sensitive actions that always need explicit
	// user approval before execution.
	RequiresConfirmation bool

	// Handler is the execution function.
	Handler Handler
}

// HistoryEntry records one execution for introspection.
type HistoryEntry struct {
	Action     string             `json:"action"`
	SessionID  string             `json:"sessionId"`
	Entities   map[string]any     `json:"entities,omitempty"`
	Result     types.ActionResult `json:"result"`
	ExecutedAt time.Time          `json:"executedAt"`
	Duration   time.Duration      `json:"duration"`
}

// Registry holds the action definitions and the execution history ring.
// It is safe for concurrent use.
type Registry struct {
	metrics *observe.Metrics

	mu      sync.RWMutex
	defs    map[string]Definition
	order   []string
	history []HistoryEntry
	histPos int
}

// NewRegistry creates an empty registry recording to the given metrics.
// A nil metrics falls back to [observe.DefaultMetrics].
func NewRegistry(metrics *observe.Metrics) *Registry {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Registry{
		metrics: metrics,
		defs:    make(map[string]Definition),
	}
}

// Register adds def to the registry. Registering the same name again replaces
// the previous definition, so re-registration during reconfiguration is safe.
func (r *Registry) Register(def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; !exists {
		r.order = append(r.order, def.Name)
	}
	r.defs[def.Name] = def
}

// Get returns the definition for name.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Definitions returns all registered definitions in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name])
	}
	return out
}

// Functions converts the registry's definitions into the classifier's
// function-calling schema.
func (r *Registry) Functions() []classifier.Function {
	defs := r.Definitions()
	out := make([]classifier.Function, 0, len(defs))
	for _, def := range defs {
		props := make(map[string]any, len(def.Parameters))
		var required []string
		for _, p := range def.Parameters {
			props[p.Name] = map[string]any{
				"type":        p.Type,
				"description": p.Description,
			}
			if p.Required {
				required = append(required, p.Name)
			}
		}
		params := map[string]any{
			"type":       "object",
			"properties": props,
		}
		if len(required) > 0 {
			params["required"] = required
		}
		out = append(out, classifier.Function{
			Name:                 def.Name,
			Description:          def.Description,
			Parameters:           params,
			RequiresConfirmation: def.RequiresConfirmation,
		})
	}
	return out
}

// Execute dispatches the intent's action. It never returns an error and never
// panics: every failure mode becomes a failed result so the caller can always
// render a response.
func (r *Registry) Execute(ctx context.Context, sessionID string, intent types.Intent) (result types.ActionResult) {
	def, ok := r.Get(intent.Action)
	if !ok {
		result = types.ActionResult{
			Success: false,
			Message: fmt.Sprintf("I don't know how to do %q yet", intent.Action),
		}
		r.record(sessionID, intent, result, 0)
		r.metrics.RecordActionExecution(ctx, intent.Action, "unknown")
		return result
	}

	if name := missingParameter(def, intent); name != "" {
		result = types.ActionResult{
			Success: false,
			Message: fmt.Sprintf("Missing required parameter: %s", name),
		}
		r.record(sessionID, intent, result, 0)
		r.metrics.RecordActionExecution(ctx, intent.Action, "invalid")
		return result
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("action handler panicked",
				"action", intent.Action,
				"panic", rec,
			)
			result = types.ActionResult{
				Success: false,
				Message: fmt.Sprintf("something went wrong while running %s", intent.Action),
			}
			r.record(sessionID, intent, result, time.Since(start))
			r.metrics.RecordActionExecution(ctx, intent.Action, "panic")
		}
	}()

	result = def.Handler(ctx, sessionID, intent.Entities)

	elapsed := time.Since(start)
	r.record(sessionID, intent, result, elapsed)
	r.metrics.ActionDuration.Record(ctx, elapsed.Seconds())
	status := "ok"
	if !result.Success {
		status = "failed"
	}
	r.metrics.RecordActionExecution(ctx, intent.Action, status)
	return result
}

// missingParameter returns the name of the first required parameter the
// intent carries no usable value for. Empty strings count as absent, so the
// guard holds even when Execute is called directly without prior validation.
func missingParameter(def Definition, intent types.Intent) string {
	for _, p := range def.Parameters {
		if !p.Required {
			continue
		}
		v, ok := intent.Entities[p.Name]
		if !ok || v == nil {
			return p.Name
		}
		if p.Type == "string" && intent.Entity(p.Name) == "" {
			return p.Name
		}
	}
	return ""
}

// record appends one history entry, overwriting the oldest once the ring is
// full.
func (r *Registry) record(sessionID string, intent types.Intent, result types.ActionResult, d time.Duration) {
	entry := HistoryEntry{
		Action:     intent.Action,
		SessionID:  sessionID,
		Entities:   intent.Entities,
		Result:     result,
		ExecutedAt: time.Now().UTC(),
		Duration:   d,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history) < historySize {
		r.history = append(r.history, entry)
		return
	}
	r.history[r.histPos] = entry
	r.histPos = (r.histPos + 1) % historySize
}

// History returns up to limit most recent executions, newest first.
// limit <= 0 returns everything retained.
func (r *Registry) History(limit int) []HistoryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Reassemble chronological order from the ring.
	chrono := make([]HistoryEntry, 0, len(r.history))
	if len(r.history) < historySize {
		chrono = append(chrono, r.history...)
	} else {
		chrono = append(chrono, r.history[r.histPos:]...)
		chrono = append(chrono, r.history[:r.histPos]...)
	}

	// Newest first.
	for i, j := 0, len(chrono)-1; i < j; i, j = i+1, j-1 {
		chrono[i], chrono[j] = chrono[j], chrono[i]
	}
	if limit > 0 && len(chrono) > limit {
		chrono = chrono[:limit]
	}
	return chrono
}

// ClearHistory discards all retained history entries.
func (r *Registry) ClearHistory() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = nil
	r.histPos = 0
}
