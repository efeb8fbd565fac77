package server

import (
	"bufio"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/CuriosityQuantified/tandemai/internal/event"
	"github.com/CuriosityQuantified/tandemai/pkg/types"
)

// ChatRequest is the body of the chat endpoint (spec.md §6).
type ChatRequest struct {
	Message     string `json:"message"`
	SessionID   string `json:"session_id"`
	AutoApprove *bool  `json:"auto_approve,omitempty"`
	PlanMode    *bool  `json:"plan_mode,omitempty"`
}

// wireEvent is one line of the chat endpoint's NDJSON stream. Type
// values are exactly the event vocabulary of §4.7 (llm_thinking,
// tool_call, tool_result, plan_update, worker_transition,
// approval_request, approval_resolved, error, stream_complete).
type wireEvent struct {
	Type event.EventType `json:"type"`
	Data any             `json:"data"`
}

// chat handles POST /chat: it starts or continues the session's
// supervisor-rooted run and streams every event published for that
// session as newline-delimited JSON until the run's guaranteed
// stream_complete event fires.
func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}
	if req.Message == "" || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "message and session_id are required")
		return
	}

	directory := getDirectory(r.Context())
	sess, err := s.proc.Sessions().GetOrCreate(r.Context(), req.SessionID, directory)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	s.proc.SetAutoApprove(sess.ID, req.AutoApprove != nil && *req.AutoApprove)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "Streaming not supported")
		return
	}
	w.WriteHeader(http.StatusOK)

	writer := bufio.NewWriter(w)
	encoder := json.NewEncoder(writer)

	done := make(chan struct{})
	unsub := event.SubscribeAll(func(e event.Event) {
		if !s.eventBelongsToSession(e, sess.ID) {
			return
		}
		encoder.Encode(wireEvent{Type: e.Type, Data: e.Data})
		writer.Flush()
		flusher.Flush()
		if e.Type == event.StreamComplete {
			close(done)
		}
	})
	defer unsub()

	// Process runs the supervisor loop to completion (or abort/error);
	// its own run() always publishes a terminal StreamComplete event, so
	// runDone only unblocks this handler once that event has also been
	// observed by the subscriber above.
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		s.proc.Process(r.Context(), sess, req.Message)
	}()

	<-runDone
	select {
	case <-done:
	case <-r.Context().Done():
	}
}

// getMessages handles GET /session/{sessionID}/message
func (s *Server) getMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	messages, err := s.proc.Sessions().GetMessages(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	result := make([]MessageResponse, 0, len(messages))
	for _, msg := range messages {
		parts, _ := s.proc.Sessions().GetParts(r.Context(), msg.ID)
		if parts == nil {
			parts = []types.Part{}
		}
		result = append(result, MessageResponse{Info: msg, Parts: parts})
	}

	writeJSON(w, http.StatusOK, result)
}

// getMessage handles GET /session/{sessionID}/message/{messageID}
func (s *Server) getMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	messageID := chi.URLParam(r, "messageID")

	msg, err := s.proc.Sessions().GetMessage(r.Context(), sessionID, messageID)
	if err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "Message not found")
		return
	}

	parts, _ := s.proc.Sessions().GetParts(r.Context(), messageID)
	if parts == nil {
		parts = []types.Part{}
	}

	writeJSON(w, http.StatusOK, MessageResponse{Info: msg, Parts: parts})
}

// MessageResponse represents a message with its parts.
type MessageResponse struct {
	Info  *types.Message `json:"info"`
	Parts []types.Part   `json:"parts"`
}
