package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/swarajlabs/vaani/internal/orchestrator"
	"github.com/swarajlabs/vaani/pkg/types"
)

// inboundEvent is the envelope for every client-to-server message.
type inboundEvent struct {
	Type string `json:"type"`

	// session:start
	SessionID string         `json:"sessionId,omitempty"`
	Language  types.Language `json:"language,omitempty"`

	// voice:transcript
	Text string `json:"text,omitempty"`

	// action:execute
	Intent *types.Intent `json:"intent,omitempty"`
}

type statusEvent struct {
	Type    string `json:"type"`
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
}

type voiceResponseEvent struct {
	Type        string         `json:"type"`
	Text        string         `json:"text"`
	AudioBase64 string         `json:"audioBase64,omitempty"`
	Language    types.Language `json:"language"`
}

type actionResultEvent struct {
	Type    string         `json:"type"`
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// hub owns the WebSocket session protocol: one connection maps to at most
// one session id. A disconnect without session:end releases the session's
// live resources, but its stored conversation survives for reconnection.
type hub struct {
	orch *orchestrator.Orchestrator

	mu       sync.Mutex
	sessions map[*websocket.Conn]string
}

func newHub(orch *orchestrator.Orchestrator) *hub {
	return &hub{
		orch:     orch,
		sessions: make(map[*websocket.Conn]string),
	}
}

// handleSocket upgrades the request and runs the connection's event loop.
// Each connection is served by a single goroutine, so writes never interleave.
func (h *hub) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer func() {
		// A connection that drops without session:end still opened a session:
		// release its live resources so the active-session gauge stays honest.
		if sessionID, ok := h.takeSession(conn); ok {
			h.orch.Disconnect(context.Background(), sessionID)
		}
		conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				slog.Debug("websocket read ended", "error", err)
			}
			return
		}

		var ev inboundEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			h.send(ctx, conn, errorEvent{Type: "error", Code: "invalid_json", Message: "event is not valid JSON"})
			continue
		}

		if done := h.dispatch(ctx, conn, ev); done {
			return
		}
	}
}

// dispatch handles one inbound event. Returns true when the session ended
// and the connection should close.
func (h *hub) dispatch(ctx context.Context, conn *websocket.Conn, ev inboundEvent) bool {
	switch ev.Type {
	case "session:start":
		h.startSession(ctx, conn, ev)

	case "voice:transcript":
		sessionID, ok := h.sessionFor(conn)
		if !ok {
			h.send(ctx, conn, errorEvent{Type: "error", Code: "no_session", Message: "send session:start first"})
			return false
		}
		if ev.Text == "" {
			h.send(ctx, conn, errorEvent{Type: "error", Code: "invalid_event", Message: "voice:transcript requires text"})
			return false
		}
		h.send(ctx, conn, statusEvent{Type: "status", State: "processing"})
		res := h.orch.ProcessTurn(ctx, sessionID, ev.Text, ev.Language)
		h.sendTurn(ctx, conn, res)

	case "action:execute":
		sessionID, ok := h.sessionFor(conn)
		if !ok {
			h.send(ctx, conn, errorEvent{Type: "error", Code: "no_session", Message: "send session:start first"})
			return false
		}
		if ev.Intent == nil || ev.Intent.Action == "" {
			h.send(ctx, conn, errorEvent{Type: "error", Code: "invalid_event", Message: "action:execute requires intent.action"})
			return false
		}
		res := h.orch.ExecuteIntent(ctx, sessionID, *ev.Intent, ev.Language)
		h.sendTurn(ctx, conn, res)

	case "session:end":
		// Take the mapping so the connection teardown does not double-release
		// the session Farewell already closed.
		if sessionID, ok := h.takeSession(conn); ok {
			res := h.orch.Farewell(ctx, sessionID, ev.Language)
			h.sendVoice(ctx, conn, res)
			h.send(ctx, conn, statusEvent{Type: "status", State: "ended"})
		}
		return true

	default:
		h.send(ctx, conn, errorEvent{Type: "error", Code: "unknown_event", Message: "unknown event type " + ev.Type})
	}
	return false
}

func (h *hub) startSession(ctx context.Context, conn *websocket.Conn, ev inboundEvent) {
	sessionID := ev.SessionID
	if sessionID == "" {
		sessionID = "sess_" + uuid.NewString()
	}
	h.mu.Lock()
	h.sessions[conn] = sessionID
	h.mu.Unlock()

	h.send(ctx, conn, statusEvent{Type: "status", State: "ready", Message: sessionID})
	res := h.orch.Greet(ctx, sessionID, ev.Language)
	h.sendVoice(ctx, conn, res)
}

func (h *hub) sessionFor(conn *websocket.Conn) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.sessions[conn]
	return id, ok
}

// takeSession removes and returns the connection's session mapping.
func (h *hub) takeSession(conn *websocket.Conn) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.sessions[conn]
	delete(h.sessions, conn)
	return id, ok
}

// sendTurn relays a completed turn: the spoken response, plus the action
// outcome when one was produced.
func (h *hub) sendTurn(ctx context.Context, conn *websocket.Conn, res *orchestrator.TurnResult) {
	h.sendVoice(ctx, conn, res)
	if res.ActionResult != nil {
		h.send(ctx, conn, actionResultEvent{
			Type:    "action:result",
			Success: res.ActionResult.Success,
			Message: res.ActionResult.Message,
			Data:    res.ActionResult.Data,
		})
	}
	h.send(ctx, conn, statusEvent{Type: "status", State: string(res.State)})
}

func (h *hub) sendVoice(ctx context.Context, conn *websocket.Conn, res *orchestrator.TurnResult) {
	ev := voiceResponseEvent{
		Type:     "voice:response",
		Text:     res.Text,
		Language: res.Language,
	}
	if len(res.Audio) > 0 {
		ev.AudioBase64 = base64.StdEncoding.EncodeToString(res.Audio)
	}
	h.send(ctx, conn, ev)
}

func (h *hub) send(ctx context.Context, conn *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("failed to marshal event", "error", err)
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("websocket write failed", "error", err)
	}
}
