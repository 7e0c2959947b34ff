package transport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/swarajlabs/vaani/internal/action"
	"github.com/swarajlabs/vaani/internal/health"
	"github.com/swarajlabs/vaani/internal/intent"
	"github.com/swarajlabs/vaani/internal/observe"
	"github.com/swarajlabs/vaani/internal/orchestrator"
	"github.com/swarajlabs/vaani/internal/respond"
	"github.com/swarajlabs/vaani/internal/speech"
	"github.com/swarajlabs/vaani/internal/transport"
	"github.com/swarajlabs/vaani/pkg/memory"
	"github.com/swarajlabs/vaani/pkg/memory/memstore"
	classifiermock "github.com/swarajlabs/vaani/pkg/provider/classifier/mock"
	ttsmock "github.com/swarajlabs/vaani/pkg/provider/tts/mock"
	"github.com/swarajlabs/vaani/pkg/types"
)

// newTestServer builds a full server over in-process fakes.
func newTestServer(t *testing.T, cp *classifiermock.Provider) *httptest.Server {
	t.Helper()
	ts, _ := newTestServerWithMetrics(t, cp)
	return ts
}

// newTestServerWithMetrics additionally exposes a manual reader for asserting
// on recorded metrics.
func newTestServerWithMetrics(t *testing.T, cp *classifiermock.Provider) (*httptest.Server, *sdkmetric.ManualReader) {
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

	synth := speech.NewSynthesizer(&ttsmock.Provider{SynthesizeResult: []byte("mp3")}, metrics)

	orch := orchestrator.New(orchestrator.Config{
		Memory:      layer,
		Classifier:  cp,
		Validator:   intent.NewValidator(registry),
		Registry:    registry,
		Responder:   respond.NewGenerator(cp),
		Synthesizer: synth,
		Metrics:     metrics,
	})

	srv := transport.NewServer(transport.Config{
		Orchestrator: orch,
		Registry:     registry,
		Synthesizer:  synth,
		Health:       health.New(),
		Metrics:      metrics,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, reader
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestChatEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &classifiermock.Provider{
		ParseIntentResult: types.Intent{
			Action:     "open_website",
			Entities:   map[string]any{"url": "https://youtube.com", "name": "YouTube"},
			Confidence: 0.9,
		},
		GenerateReplyResult: "Opening YouTube, boss!",
	})

	resp := postJSON(t, ts.URL+"/api/chat", map[string]any{
		"sessionId": "s1",
		"text":      "open youtube",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	if body["text"] != "Opening YouTube, boss!" {
		t.Errorf("text = %v", body["text"])
	}
	if body["state"] != string(orchestrator.StateCompleted) {
		t.Errorf("state = %v, want %q", body["state"], orchestrator.StateCompleted)
	}
	if body["audioBase64"] == "" || body["audioBase64"] == nil {
		t.Error("audioBase64 missing")
	}
	result, ok := body["actionResult"].(map[string]any)
	if !ok {
		t.Fatalf("actionResult missing: %v", body)
	}
	if result["success"] != true {
		t.Errorf("actionResult.success = %v, want true", result["success"])
	}
}

func TestChatEndpointRejectsMissingFields(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &classifiermock.Provider{})

	resp := postJSON(t, ts.URL+"/api/chat", map[string]any{"text": "hi"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if _, ok := body["error"]; !ok {
		t.Errorf("error payload missing: %v", body)
	}
}

func TestChatEndpointRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &classifiermock.Provider{})

	resp := postJSON(t, ts.URL+"/api/chat", map[string]any{
		"sessionId": "s1",
		"text":      "hi",
		"bogus":     true,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTTSEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &classifiermock.Provider{})

	resp := postJSON(t, ts.URL+"/api/tts", map[string]any{
		"text":     "Got it, bhai.",
		"language": "mixed",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["audioBase64"] == "" || body["audioBase64"] == nil {
		t.Error("audioBase64 missing")
	}
	if _, ok := body["cacheStats"].(map[string]any); !ok {
		t.Errorf("cacheStats missing: %v", body)
	}
}

func TestToolsExecuteEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &classifiermock.Provider{GenerateReplyResult: "Showing the time!"})

	resp := postJSON(t, ts.URL+"/api/tools/execute", map[string]any{
		"sessionId": "s1",
		"intent": map[string]any{
			"action":     "show_time",
			"entities":   map[string]any{},
			"confidence": 1.0,
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	result, ok := body["actionResult"].(map[string]any)
	if !ok {
		t.Fatalf("actionResult missing: %v", body)
	}
	if result["success"] != true {
		t.Errorf("actionResult.success = %v, want true", result["success"])
	}
}

func TestSystemActionsEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &classifiermock.Provider{})

	resp, err := http.Get(ts.URL + "/api/system/actions")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	actions, ok := body["actions"].([]any)
	if !ok {
		t.Fatalf("actions missing: %v", body)
	}
	if len(actions) != 9 {
		t.Errorf("actions count = %d, want 9", len(actions))
	}
}

func TestSystemInfoEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &classifiermock.Provider{})

	resp, err := http.Get(ts.URL + "/api/system/info")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
	if _, ok := body["data"].(map[string]any); !ok {
		t.Errorf("data missing: %v", body)
	}
}

func TestSystemHistoryEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &classifiermock.Provider{
		ParseIntentResult: types.Intent{
			Action:     "show_time",
			Confidence: 0.9,
		},
		GenerateReplyResult: "Time's shown!",
	})

	postJSON(t, ts.URL+"/api/chat", map[string]any{"sessionId": "s1", "text": "what time is it"})

	resp, err := http.Get(ts.URL + "/api/system/history?limit=5")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	body := decodeBody(t, resp)
	if got, _ := body["count"].(float64); got != 1 {
		t.Errorf("count = %v, want 1", body["count"])
	}
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &classifiermock.Provider{})

	for _, path := range []string{"/health", "/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := transport.NewServer(transport.Config{Addr: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	cancel()

	if err := <-done; err != nil {
		t.Errorf("Run returned %v, want nil", err)
	}
}
