package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dpshade/wakatime-mcp/internal/jsonrpc"
)

// maxMessageSize bounds a single JSON-RPC message body.
const maxMessageSize = 1 << 20

// RequestProcessor processes JSON-RPC requests.
// Implemented by the MCP handler.
type RequestProcessor interface {
	ProcessRequest(ctx context.Context, req *jsonrpc.Request) (interface{}, *jsonrpc.Error)
}

// session represents an SSE connection session.
type session struct {
	id       string
	done     chan struct{}
	messages chan []byte
}

// transport manages SSE/Inline transport for MCP.
type transport struct {
	processor RequestProcessor
	logger    *zap.Logger
	endpoint  string
	sessions  map[string]*session
	mu        sync.RWMutex
}

// Transport creates an http.Handler that manages SSE and Inline JSON-RPC transport.
// It delegates request processing to the given RequestProcessor. endpoint is
// the path advertised to SSE clients for posting messages.
func Transport(processor RequestProcessor, logger *zap.Logger, endpoint string) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &transport{
		processor: processor,
		logger:    logger,
		endpoint:  endpoint,
		sessions:  make(map[string]*session),
	}
}

func (t *transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		t.handleSSE(w, r)
	case http.MethodPost:
		t.handleMessage(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (t *transport) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	s := &session{
		id:       uuid.NewString(),
		done:     make(chan struct{}),
		messages: make(chan []byte, 100),
	}

	t.mu.Lock()
	t.sessions[s.id] = s
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.sessions, s.id)
		t.mu.Unlock()
		close(s.done)
	}()

	// Send endpoint event (MCP SSE protocol)
	fmt.Fprintf(w, "event: endpoint\ndata: %s?sessionId=%s\n\n", t.endpoint, s.id)
	flusher.Flush()
	t.logger.Info("SSE connection established", zap.String("session", s.id))

	// Keep connection open and send messages
	for {
		select {
		case msg := <-s.messages:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		case <-r.Context().Done():
			t.logger.Info("SSE connection closed", zap.String("session", s.id))
			return
		}
	}
}

func (t *transport) handleMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		t.handleInlineMessage(w, r)
		return
	}

	t.mu.RLock()
	s, ok := t.sessions[sessionID]
	t.mu.RUnlock()

	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	req, rpcErr := readRequest(r)
	if rpcErr != nil {
		t.send(s, jsonrpc.Response{JSONRPC: jsonrpc.Version, Error: rpcErr})
		w.WriteHeader(http.StatusAccepted)
		return
	}

	t.logger.Debug("received request",
		zap.String("method", req.Method),
		zap.Any("id", req.ID),
		zap.String("session", sessionID),
		zap.String("request_id", GetRequestID(r.Context())),
	)

	result, rpcErr := t.processor.ProcessRequest(r.Context(), req)
	if req.IsNotification() {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	if rpcErr != nil {
		t.send(s, jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: req.ID, Error: rpcErr})
	} else {
		t.send(s, jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: req.ID, Result: result})
	}

	w.WriteHeader(http.StatusAccepted)
}

func (t *transport) handleInlineMessage(w http.ResponseWriter, r *http.Request) {
	req, rpcErr := readRequest(r)
	if rpcErr != nil {
		writeJSON(w, jsonrpc.Response{JSONRPC: jsonrpc.Version, Error: rpcErr})
		return
	}

	t.logger.Debug("received inline request",
		zap.String("method", req.Method),
		zap.Any("id", req.ID),
		zap.String("request_id", GetRequestID(r.Context())),
	)

	result, rpcErr := t.processor.ProcessRequest(r.Context(), req)
	if req.IsNotification() {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if rpcErr != nil {
		writeJSON(w, jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: req.ID, Error: rpcErr})
		return
	}
	writeJSON(w, jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: req.ID, Result: result})
}

func readRequest(r *http.Request) (*jsonrpc.Request, *jsonrpc.Error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageSize+1))
	if err != nil {
		return nil, &jsonrpc.Error{Code: jsonrpc.ParseError, Message: "Failed to read body"}
	}
	if len(body) > maxMessageSize {
		return nil, &jsonrpc.Error{Code: jsonrpc.InvalidRequest, Message: "Request too large"}
	}

	var req jsonrpc.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &jsonrpc.Error{Code: jsonrpc.ParseError, Message: "Parse error"}
	}
	if req.JSONRPC != jsonrpc.Version || req.Method == "" {
		return nil, &jsonrpc.Error{Code: jsonrpc.InvalidRequest, Message: "Invalid Request"}
	}
	return &req, nil
}

func writeJSON(w http.ResponseWriter, resp jsonrpc.Response) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (t *transport) send(s *session, resp jsonrpc.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		t.logger.Error("failed to marshal response", zap.Error(err))
		return
	}
	select {
	case s.messages <- data:
	case <-s.done:
	default:
		t.logger.Warn("session message buffer full", zap.String("session", s.id))
	}
}
