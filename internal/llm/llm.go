package llm

import (
	"context"

	"courseta-backend/internal/models"
)

// ChatOptions tunes a single completion call. The assistant uses tight
// settings (MaxTokens=5, Temperature=0) for its Yes/No classifier calls and
// provider defaults for full answers.
type ChatOptions struct {
	MaxTokens   int
	Temperature *float64
}

// Client is the conversational model boundary. Both the OpenAI-compatible
// and the Gemini implementations satisfy it; the assistant pipeline and the
// ingest worker only ever see this interface.
type Client interface {
	Chat(ctx context.Context, messages []models.ChatMessage, opts *ChatOptions) (string, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Close()
}
