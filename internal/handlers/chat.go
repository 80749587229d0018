package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"courseta-backend/internal/models"
)

type answerer interface {
	Answer(ctx context.Context, clientKey, query string) (string, error)
}

// ChatHandler owns the relay endpoint the chat page talks to.
type ChatHandler struct {
	assistant answerer
}

func NewChatHandler(assistant answerer) *ChatHandler {
	return &ChatHandler{assistant: assistant}
}

// Ask handles POST /api/chat: {"query": ...} in, {"response": ...} or
// {"error": ...} out.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "No query provided")
		return
	}

	reply, err := h.assistant.Answer(r.Context(), clientKey(r), req.Query)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{Response: reply})
}
