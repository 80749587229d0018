package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"courseta-backend/internal/models"
)

// GeminiClient adapts the Gemini SDK to the Client interface.
type GeminiClient struct {
	client     *genai.Client
	chatModel  string
	embedModel string
}

func NewGeminiClient(ctx context.Context, apiKey, chatModel, embedModel string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key must not be empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiClient{
		client:     client,
		chatModel:  chatModel,
		embedModel: embedModel,
	}, nil
}

func (c *GeminiClient) Chat(ctx context.Context, messages []models.ChatMessage, opts *ChatOptions) (string, error) {
	// A fresh model handle per call so per-call options never race.
	model := c.client.GenerativeModel(c.chatModel)
	if opts != nil {
		if opts.MaxTokens > 0 {
			model.SetMaxOutputTokens(int32(opts.MaxTokens))
		}
		if opts.Temperature != nil {
			model.SetTemperature(float32(*opts.Temperature))
		}
	}

	// Gemini carries the system prompt separately from the user turns.
	var userParts []genai.Part
	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(m.Content)}}
		default:
			userParts = append(userParts, genai.Text(m.Content))
		}
	}
	if len(userParts) == 0 {
		return "", errors.New("gemini: no user content in messages")
	}

	resp, err := model.GenerateContent(ctx, userParts...)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}

	text := extractText(resp)
	if text == "" {
		return "", errors.New("gemini: empty completion")
	}
	return text, nil
}

func (c *GeminiClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if c.embedModel == "" {
		return nil, errors.New("gemini: embed model must not be empty")
	}

	em := c.client.EmbeddingModel(c.embedModel)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini: batch embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini: expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

func (c *GeminiClient) Close() {
	c.client.Close()
}

func extractText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return strings.TrimSpace(b.String())
}
