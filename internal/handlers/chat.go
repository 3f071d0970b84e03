package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"converse-backend/internal/middleware"
	"converse-backend/internal/models"
	"converse-backend/internal/provider"
	"converse-backend/internal/services"
)

type ChatHandler struct {
	chatService *services.ChatService
	history     *services.HistoryService
	governor    *middleware.Governor
}

func NewChatHandler(chatService *services.ChatService, history *services.HistoryService, governor *middleware.Governor) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		history:     history,
		governor:    governor,
	}
}

// Send streams a generated reply back as server-sent events. Failures before
// the first write are ordinary JSON errors; failures after that are in-band
// error frames, because the status line is already committed.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message is required", r))
		return
	}

	userID := middleware.GetUserID(r.Context())

	allowed, retryAfter := h.governor.Admit(userID.String(), time.Now())
	if !allowed {
		msg := fmt.Sprintf("Too many requests. Try again in %d seconds.", retryAfter)
		writeJSON(w, http.StatusTooManyRequests, errorResp("RATE_LIMITED", msg, r))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Streaming unsupported", r))
		return
	}

	stream, err := h.chatService.Start(r.Context(), userID, req.Message)
	if err != nil {
		writeStartError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := &sseSink{w: w, flusher: flusher}
	h.chatService.Relay(r.Context(), stream, sink, userID, req.Message)
}

// writeStartError maps pre-stream failures onto the error taxonomy.
func writeStartError(w http.ResponseWriter, r *http.Request, err error) {
	var timeoutErr *provider.TimeoutError
	if errors.As(err, &timeoutErr) {
		writeJSON(w, http.StatusGatewayTimeout, errorResp("GATEWAY_TIMEOUT", "Inference provider timed out", r))
		return
	}

	var provErr *provider.Error
	if errors.As(err, &provErr) {
		status := provErr.Status
		if status < 400 {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, errorResp("PROVIDER_ERROR", "Inference provider request failed", r))
		return
	}

	writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to start chat stream", r))
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	page := queryInt(r, "page", services.DefaultPage)
	limit := queryInt(r, "limit", services.DefaultPageSize)

	result, err := h.history.GetHistory(r.Context(), userID, page, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch chat history", r))
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 1 {
		return defaultVal
	}
	return n
}

// sseSink writes stream events to the HTTP response, flushing every frame so
// fragments reach the caller without buffering delay. The terminal frame,
// sentinel or error, is written at most once.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

func (s *sseSink) Delta(content string) error {
	if s.closed {
		return nil
	}
	frame, err := json.Marshal(models.StreamDelta{
		Choices: []models.StreamChoice{{Delta: models.DeltaContent{Content: content}}},
	})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", frame); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSink) Fail(message string) error {
	if s.closed {
		return nil
	}
	s.closed = true
	frame, _ := json.Marshal(models.StreamError{Error: message})
	_, err := fmt.Fprintf(s.w, "data: %s\n\n", frame)
	s.flusher.Flush()
	return err
}

func (s *sseSink) Done() error {
	if s.closed {
		return nil
	}
	s.closed = true
	_, err := fmt.Fprint(s.w, "data: [DONE]\n\n")
	s.flusher.Flush()
	return err
}
