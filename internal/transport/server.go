// Package transport exposes the assistant over HTTP and WebSocket.
//
// The HTTP surface is a thin request/response wrapper around the
// orchestrator: /api/chat runs a full turn, /api/tts synthesizes arbitrary
// text, /api/tools/execute dispatches an already-parsed intent, and the
// /api/system routes expose introspection (registered actions, execution
// history, host info). The WebSocket endpoint at /ws carries the event-based
// session protocol used by voice clients.
package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/swarajlabs/vaani/internal/action"
	"github.com/swarajlabs/vaani/internal/health"
	"github.com/swarajlabs/vaani/internal/observe"
	"github.com/swarajlabs/vaani/internal/orchestrator"
	"github.com/swarajlabs/vaani/internal/speech"
	"github.com/swarajlabs/vaani/pkg/types"
)

const shutdownTimeout = 15 * time.Second

// maxBodyBytes caps request bodies; turns are short utterances, not uploads.
const maxBodyBytes = 1 << 20

// Config carries the server's collaborators and listen settings.
type Config struct {
	// Addr is the TCP listen address, e.g. ":8080".
	Addr string

	// CertFile and KeyFile enable TLS when both are set.
	CertFile string
	KeyFile  string

	Orchestrator *orchestrator.Orchestrator
	Registry     *action.Registry
	Synthesizer  *speech.Synthesizer
	Health       *health.Handler
	Metrics      *observe.Metrics
}

// Server is the HTTP/WebSocket front of the assistant.
type Server struct {
	orch     *orchestrator.Orchestrator
	registry *action.Registry
	synth    *speech.Synthesizer
	hub      *hub

	httpSrv  *http.Server
	certFile string
	keyFile  string
}

// NewServer builds the server and its route table. A nil Metrics falls back
// to [observe.DefaultMetrics]; a nil Health handler registers no health
// routes.
func NewServer(cfg Config) *Server {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	s := &Server{
		orch:     cfg.Orchestrator,
		registry: cfg.Registry,
		synth:    cfg.Synthesizer,
		hub:      newHub(cfg.Orchestrator),
		certFile: cfg.CertFile,
		keyFile:  cfg.KeyFile,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/tts", s.handleTTS)
	mux.HandleFunc("POST /api/tools/execute", s.handleToolsExecute)
	mux.HandleFunc("GET /api/system/info", s.handleSystemInfo)
	mux.HandleFunc("GET /api/system/actions", s.handleSystemActions)
	mux.HandleFunc("GET /api/system/history", s.handleSystemHistory)
	mux.HandleFunc("GET /ws", s.hub.handleSocket)
	mux.Handle("GET /metrics", promhttp.Handler())
	if cfg.Health != nil {
		cfg.Health.Register(mux)
	}

	s.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the full route table, including middleware. Useful for
// embedding the server under a parent mux and for httptest.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.certFile != "" && s.keyFile != "" {
			err = s.httpSrv.ListenAndServeTLS(s.certFile, s.keyFile)
		} else {
			err = s.httpSrv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

// turnResponse is the JSON shape shared by /api/chat and /api/tools/execute.
type turnResponse struct {
	Text         string              `json:"text"`
	Language     types.Language      `json:"language"`
	AudioBase64  string              `json:"audioBase64,omitempty"`
	Intent       *types.Intent       `json:"intent,omitempty"`
	ActionResult *types.ActionResult `json:"actionResult,omitempty"`
	State        orchestrator.State  `json:"state"`
}

func toTurnResponse(res *orchestrator.TurnResult) turnResponse {
	out := turnResponse{
		Text:         res.Text,
		Language:     res.Language,
		Intent:       res.Intent,
		ActionResult: res.ActionResult,
		State:        res.State,
	}
	if len(res.Audio) > 0 {
		out.AudioBase64 = base64.StdEncoding.EncodeToString(res.Audio)
	}
	return out
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string         `json:"sessionId"`
		Text      string         `json:"text"`
		Language  types.Language `json:"language"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SessionID == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "sessionId and text are required")
		return
	}

	res := s.orch.ProcessTurn(r.Context(), req.SessionID, req.Text, req.Language)
	writeJSON(w, http.StatusOK, toTurnResponse(res))
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	if s.synth == nil {
		writeError(w, http.StatusServiceUnavailable, "tts_disabled", "no speech provider is configured")
		return
	}

	var req struct {
		Text     string         `json:"text"`
		Language types.Language `json:"language"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}

	audio, err := s.synth.Synthesize(r.Context(), req.Text, req.Language)
	if err != nil {
		slog.Warn("tts request failed", "error", err)
		writeError(w, http.StatusBadGateway, "synthesis_failed", "speech synthesis is currently unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"audioBase64": base64.StdEncoding.EncodeToString(audio),
		"cacheStats":  s.synth.Stats(),
	})
}

func (s *Server) handleToolsExecute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string         `json:"sessionId"`
		Language  types.Language `json:"language"`
		Intent    *types.Intent  `json:"intent"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SessionID == "" || req.Intent == nil || req.Intent.Action == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "sessionId and intent.action are required")
		return
	}

	res := s.orch.ExecuteIntent(r.Context(), req.SessionID, *req.Intent, req.Language)
	writeJSON(w, http.StatusOK, toTurnResponse(res))
}

// handleSystemInfo answers with the host snapshot the get_system_info action
// produces, without going through a conversation turn.
func (s *Server) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	result := s.registry.Execute(r.Context(), "system", types.Intent{
		Action:     "get_system_info",
		Entities:   map[string]any{"infoType": "all", "confirmed": true},
		Confidence: 1.0,
	})
	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, result)
}

func (s *Server) handleSystemActions(w http.ResponseWriter, _ *http.Request) {
	defs := s.registry.Definitions()
	out := make([]map[string]any, 0, len(defs))
	for _, d := range defs {
		out = append(out, map[string]any{
			"name":                 d.Name,
			"description":          d.Description,
			"parameters":           d.Parameters,
			"requiresConfirmation": d.RequiresConfirmation,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": out, "count": len(out)})
}

func (s *Server) handleSystemHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries := s.registry.History(limit)
	writeJSON(w, http.StatusOK, map[string]any{"history": entries, "count": len(entries)})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
