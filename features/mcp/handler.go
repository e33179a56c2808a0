package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"interviewprep/internal/middleware"
)

const keepAliveInterval = 15 * time.Second

// Handler serves question sets to MCP clients, over plain POST or over
// an SSE session with a companion message endpoint.
type Handler struct {
	sets         QuestionSetService
	sessions     map[string]chan string // sessionId -> serialized JSON-RPC responses
	sessionsLock sync.RWMutex
}

func NewHandler(sets QuestionSetService) *Handler {
	return &Handler{
		sets:     sets,
		sessions: make(map[string]chan string),
	}
}

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      interface{}     `json:"id"`
}

type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   interface{} `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

const (
	ErrParse          = -32700
	ErrInvalidRequest = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternal       = -32603
)

// processRequest returns nil for notifications.
func (h *Handler) processRequest(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	switch req.Method {
	case "initialize":
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: map[string]interface{}{
				"protocolVersion": "2024-11-05",
				"capabilities": map[string]interface{}{
					"tools": map[string]interface{}{},
				},
				"serverInfo": map[string]interface{}{
					"name":    "interviewprep-mcp",
					"version": "1.0.0",
				},
			},
		}
	case "notifications/initialized":
		return nil
	case "ping":
		return &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: map[string]interface{}{}}
	case "tools/list":
		return &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: ListToolsResult{Tools: tools}}
	case "tools/call":
		return h.callTool(ctx, req)
	}

	slog.WarnContext(ctx, "unknown jsonrpc method", "method", req.Method)
	resp := makeErrorResponse(req.ID, ErrMethodNotFound, "Method not found")
	return &resp
}

func makeErrorResponse(id interface{}, code int, message string) JSONRPCResponse {
	return JSONRPCResponse{
		JSONRPC: "2.0",
		Error: map[string]interface{}{
			"code":    code,
			"message": message,
		},
		ID: id,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, nil, ErrParse, "Parse error")
		return
	}

	resp := h.processRequest(r.Context(), req)
	if resp == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode mcp response", "error", err)
	}
}

// HandleSSE opens a session and streams its responses until the client
// disconnects.
func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeHTTPError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Streaming unsupported", middleware.GetCorrelationID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sessionID := uuid.New().String()
	msgChan := make(chan string, 100)

	h.sessionsLock.Lock()
	h.sessions[sessionID] = msgChan
	h.sessionsLock.Unlock()

	defer func() {
		h.sessionsLock.Lock()
		delete(h.sessions, sessionID)
		close(msgChan)
		h.sessionsLock.Unlock()
		slog.Info("sse session ended", "session_id", sessionID)
	}()

	slog.Info("sse session started", "session_id", sessionID)

	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	endpoint := fmt.Sprintf("%s://%s/mcp/messages?sessionId=%s", scheme, r.Host, sessionID)

	fmt.Fprintf(w, "event: endpoint\ndata: %s\n\n", html.EscapeString(endpoint))
	fmt.Fprintf(w, "event: id\ndata: %s\n\n", html.EscapeString(sessionID))
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-msgChan:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// HandleMessage accepts a JSON-RPC request for an SSE session, answers 202
// and delivers the response on the session stream.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		h.writeHTTPError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Missing sessionId", correlationID)
		return
	}

	h.sessionsLock.RLock()
	_, exists := h.sessions[sessionID]
	h.sessionsLock.RUnlock()
	if !exists {
		slog.WarnContext(r.Context(), "session not found", "session_id", sessionID)
		h.writeHTTPError(w, http.StatusNotFound, "NOT_FOUND", "Session not found", correlationID)
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeHTTPError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON", correlationID)
		return
	}

	w.WriteHeader(http.StatusAccepted)

	// Keep the correlation id, drop the request's cancellation.
	ctx := context.WithoutCancel(r.Context())
	go h.respond(ctx, sessionID, req)
}

func (h *Handler) respond(ctx context.Context, sessionID string, req JSONRPCRequest) {
	resp := h.processRequest(ctx, req)
	if resp == nil {
		return
	}

	body, err := json.Marshal(resp)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal response", "error", err)
		return
	}

	// Holding the read lock keeps HandleSSE from closing the channel under us.
	h.sessionsLock.RLock()
	defer h.sessionsLock.RUnlock()

	msgChan, ok := h.sessions[sessionID]
	if !ok {
		slog.WarnContext(ctx, "session closed before response", "session_id", sessionID)
		return
	}
	select {
	case msgChan <- string(body):
	default:
		slog.WarnContext(ctx, "session channel full, dropping message", "session_id", sessionID)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	// JSON-RPC errors travel in a 200 response.
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(makeErrorResponse(id, code, message)); err != nil {
		slog.Error("failed to encode mcp error", "error", err)
	}
}

func (h *Handler) writeHTTPError(w http.ResponseWriter, status int, code, message, correlationID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"correlationId": correlationID,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
