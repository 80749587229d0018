package models

// Message roles used across the assistant pipeline and the wire contract.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage represents a single turn sent to the conversational model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the payload the chat page posts to /api/chat.
type ChatRequest struct {
	Query string `json:"query"`
}

// ChatResponse is the relay's success payload.
type ChatResponse struct {
	Response string `json:"response"`
}

// ErrorResponse is the relay's error payload. The chat page checks for the
// "error" field regardless of HTTP status, so it must stay top-level.
type ErrorResponse struct {
	Error string `json:"error"`
}
