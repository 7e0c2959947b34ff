package orchestrator_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/swarajlabs/vaani/internal/action"
	"github.com/swarajlabs/vaani/internal/intent"
	"github.com/swarajlabs/vaani/internal/observe"
	"github.com/swarajlabs/vaani/internal/orchestrator"
	"github.com/swarajlabs/vaani/internal/respond"
	"github.com/swarajlabs/vaani/internal/speech"
	"github.com/swarajlabs/vaani/pkg/memory"
	"github.com/swarajlabs/vaani/pkg/memory/memstore"
	classifiermock "github.com/swarajlabs/vaani/pkg/provider/classifier/mock"
	ttsmock "github.com/swarajlabs/vaani/pkg/provider/tts/mock"
	"github.com/swarajlabs/vaani/pkg/types"
)

// harness bundles an orchestrator with the fakes behind it.
type harness struct {
	orch       *orchestrator.Orchestrator
	classifier *classifiermock.Provider
	tts        *ttsmock.Provider
	layer      *memory.Layer
	registry   *action.Registry
	reader     *sdkmetric.ManualReader
}

func newHarness(t *testing.T, cp *classifiermock.Provider) *harness {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	metrics, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	cipher, err := memory.NewCipher("test-secret")
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	layer := memory.NewLayer(memstore.New(), cipher)

	registry := action.NewRegistry(metrics)
	action.RegisterBuiltins(registry, action.Deps{Notes: layer})

	tp := &ttsmock.Provider{SynthesizeResult: []byte("mp3")}
	synth := speech.NewSynthesizer(tp, metrics)

	orch := orchestrator.New(orchestrator.Config{
		Memory:      layer,
		Classifier:  cp,
		Validator:   intent.NewValidator(registry),
		Registry:    registry,
		Responder:   respond.NewGenerator(cp),
		Synthesizer: synth,
		Metrics:     metrics,
	})
	return &harness{orch: orch, classifier: cp, tts: tp, layer: layer, registry: registry, reader: reader}
}

// activeSessions reads the live-session gauge through the manual reader.
func (h *harness) activeSessions(t *testing.T) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := h.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "vaani.active_sessions" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) == 0 {
				t.Fatalf("vaani.active_sessions has no data points")
			}
			return sum.DataPoints[0].Value
		}
	}
	return 0
}

func TestProcessTurnOpenWebsite(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &classifiermock.Provider{
		ParseIntentResult: types.Intent{
			Action:     "open_website",
			Entities:   map[string]any{"url": "https://youtube.com", "name": "YouTube"},
			Confidence: 0.9,
		},
		GenerateReplyResult: "Opening YouTube for you, boss!",
	})
	ctx := context.Background()

	res := h.orch.ProcessTurn(ctx, "s1", "open youtube", types.LangEnglish)
	if res.State != orchestrator.StateCompleted {
		t.Fatalf("State = %q, want %q", res.State, orchestrator.StateCompleted)
	}
	if res.Text != "Opening YouTube for you, boss!" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.ActionResult == nil || !res.ActionResult.Success {
		t.Fatalf("ActionResult = %+v, want success", res.ActionResult)
	}
	if got := res.ActionResult.Data["url"]; got != "https://youtube.com" {
		t.Errorf("Data[url] = %v, want https://youtube.com", got)
	}
	if got := res.ActionResult.Data["action"]; got != "open_url" {
		t.Errorf("Data[action] = %v, want open_url", got)
	}
	if len(res.Audio) == 0 {
		t.Error("Audio empty, want synthesized reply")
	}

	// Both the user utterance and the assistant reply were persisted.
	convCtx, err := h.layer.Context(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if len(convCtx.Messages) != 2 {
		t.Fatalf("stored messages = %d, want 2", len(convCtx.Messages))
	}
	if convCtx.Messages[0].Role != types.RoleUser || convCtx.Messages[0].Content != "open youtube" {
		t.Errorf("first message = %+v, want user utterance", convCtx.Messages[0])
	}
	if convCtx.Messages[1].Role != types.RoleAssistant {
		t.Errorf("second message role = %q, want assistant", convCtx.Messages[1].Role)
	}
}

func TestProcessTurnGeneralConversation(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &classifiermock.Provider{
		ParseIntentResult: types.Intent{
			Action:     "general_conversation",
			Entities:   map[string]any{},
			Confidence: 0.8,
		},
		GenerateReplyResult: "Haha, no idea about the weather, bhai!",
	})

	res := h.orch.ProcessTurn(context.Background(), "s1", "what's the weather", types.LangEnglish)
	if res.State != orchestrator.StateCompleted {
		t.Fatalf("State = %q, want %q", res.State, orchestrator.StateCompleted)
	}
	if res.ActionResult == nil || !res.ActionResult.Success {
		t.Fatalf("ActionResult = %+v, want success", res.ActionResult)
	}
	if res.Text == "" {
		t.Error("Text empty, want conversational reply")
	}
}

func TestProcessTurnClassificationFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &classifiermock.Provider{
		ParseIntentErr: errors.New("model unavailable"),
	})

	res := h.orch.ProcessTurn(context.Background(), "s1", "mumble", types.LangEnglish)
	if res.State != orchestrator.StateClarification {
		t.Fatalf("State = %q, want %q", res.State, orchestrator.StateClarification)
	}
	if res.Text == "" {
		t.Error("Text empty, want a clarification request")
	}
	if res.Intent != nil {
		t.Errorf("Intent = %+v, want nil", res.Intent)
	}
}

func TestProcessTurnValidationFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &classifiermock.Provider{
		ParseIntentResult: types.Intent{
			Action:     "open_website",
			Entities:   map[string]any{},
			Confidence: 0.9,
		},
	})

	res := h.orch.ProcessTurn(context.Background(), "s1", "open it", types.LangEnglish)
	if res.State != orchestrator.StateInvalid {
		t.Fatalf("State = %q, want %q", res.State, orchestrator.StateInvalid)
	}
	if res.ActionResult == nil || res.ActionResult.Success {
		t.Fatalf("ActionResult = %+v, want failure", res.ActionResult)
	}
	if !strings.Contains(res.ActionResult.Message, "url") {
		t.Errorf("failure message = %q, want it to name the url parameter", res.ActionResult.Message)
	}
	// No action ran.
	if got := len(h.registry.History(10)); got != 0 {
		t.Errorf("action history length = %d, want 0", got)
	}
}

func TestProcessTurnLowConfidenceAsksForConfirmation(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &classifiermock.Provider{
		ParseIntentResult: types.Intent{
			Action:     "open_website",
			Entities:   map[string]any{"url": "https://example.com"},
			Confidence: 0.5,
		},
	})

	res := h.orch.ProcessTurn(context.Background(), "s1", "maybe open example", types.LangEnglish)
	if res.State != orchestrator.StateConfirmationRequired {
		t.Fatalf("State = %q, want %q", res.State, orchestrator.StateConfirmationRequired)
	}
	if res.ActionResult != nil {
		t.Errorf("ActionResult = %+v, want nil (nothing executed)", res.ActionResult)
	}
	if got := len(h.registry.History(10)); got != 0 {
		t.Errorf("action history length = %d, want 0", got)
	}
}

func TestProcessTurnConfirmedSensitiveActionExecutes(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &classifiermock.Provider{
		ParseIntentResult: types.Intent{
			Action:     "get_system_info",
			Entities:   map[string]any{"infoType": "all", "confirmed": true},
			Confidence: 0.95,
		},
		GenerateReplyResult: "Here's your system rundown, bhai.",
	})

	res := h.orch.ProcessTurn(context.Background(), "s1", "yes, show system info", types.LangEnglish)
	if res.State != orchestrator.StateCompleted {
		t.Fatalf("State = %q, want %q", res.State, orchestrator.StateCompleted)
	}
	if res.ActionResult == nil || !res.ActionResult.Success {
		t.Fatalf("ActionResult = %+v, want success", res.ActionResult)
	}
	if got := len(h.registry.History(10)); got != 1 {
		t.Errorf("action history length = %d, want 1", got)
	}
}

func TestProcessTurnSynthesisFailureIsTextOnly(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &classifiermock.Provider{
		ParseIntentResult: types.Intent{
			Action:     "general_conversation",
			Confidence: 0.9,
		},
		GenerateReplyResult: "All good here!",
	})
	h.tts.SynthesizeErr = errors.New("vendor down")

	res := h.orch.ProcessTurn(context.Background(), "s1", "hello", types.LangEnglish)
	if res.State != orchestrator.StateCompleted {
		t.Fatalf("State = %q, want %q", res.State, orchestrator.StateCompleted)
	}
	if res.Text == "" {
		t.Error("Text empty, want reply despite synthesis failure")
	}
	if res.Audio != nil {
		t.Errorf("Audio = %v, want nil", res.Audio)
	}
}

func TestProcessTurnDetectsLanguage(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &classifiermock.Provider{
		ParseIntentResult: types.Intent{
			Action:     "general_conversation",
			Confidence: 0.9,
		},
		GenerateReplyResult: "नमस्ते!",
	})

	res := h.orch.ProcessTurn(context.Background(), "s1", "नमस्ते स्वराज", "")
	if res.Language != types.LangHindi {
		t.Errorf("Language = %q, want %q", res.Language, types.LangHindi)
	}
}

func TestExecuteIntentSkipsClassification(t *testing.T) {
	t.Parallel()

	cp := &classifiermock.Provider{GenerateReplyResult: "Playing it now!"}
	h := newHarness(t, cp)

	res := h.orch.ExecuteIntent(context.Background(), "s1", types.Intent{
		Action:     "play_media",
		Entities:   map[string]any{"query": "lofi beats"},
		Confidence: 1.0,
	}, types.LangEnglish)

	if res.State != orchestrator.StateCompleted {
		t.Fatalf("State = %q, want %q", res.State, orchestrator.StateCompleted)
	}
	if res.ActionResult == nil || !res.ActionResult.Success {
		t.Fatalf("ActionResult = %+v, want success", res.ActionResult)
	}
	if got := len(cp.ParseIntentCalls); got != 0 {
		t.Errorf("ParseIntent calls = %d, want 0", got)
	}
}

func TestGreetAndFarewell(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &classifiermock.Provider{
		ParseIntentResult: types.Intent{Action: "general_conversation", Confidence: 0.9},
		GenerateReplyResult: "Sure!",
	})
	ctx := context.Background()

	greet := h.orch.Greet(ctx, "s1", types.LangEnglish)
	if greet.Text == "" {
		t.Error("greeting empty")
	}

	h.orch.ProcessTurn(ctx, "s1", "hello", types.LangEnglish)

	bye := h.orch.Farewell(ctx, "s1", types.LangEnglish)
	if bye.Text == "" {
		t.Error("goodbye empty")
	}

	// Farewell clears the session's stored state.
	convCtx, err := h.layer.Context(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if len(convCtx.Messages) != 0 {
		t.Errorf("messages after farewell = %d, want 0", len(convCtx.Messages))
	}
}

func TestDisconnectReleasesSessionGauge(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &classifiermock.Provider{})
	ctx := context.Background()

	h.orch.Greet(ctx, "s1", types.LangEnglish)
	if got := h.activeSessions(t); got != 1 {
		t.Fatalf("active sessions after greet = %d, want 1", got)
	}

	h.orch.Disconnect(ctx, "s1")
	if got := h.activeSessions(t); got != 0 {
		t.Errorf("active sessions after disconnect = %d, want 0", got)
	}

	// Unlike Farewell, the stored conversation survives for reconnection.
	convCtx, err := h.layer.Context(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if len(convCtx.Messages) == 0 {
		t.Error("stored conversation lost on disconnect")
	}
}

func TestSummaryDelegatesToMemory(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &classifiermock.Provider{})
	got, err := h.orch.Summary(context.Background(), "fresh")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if got != "Short conversation, no summary needed" {
		t.Errorf("Summary = %q", got)
	}
}
