package models

import (
	"time"

	"github.com/google/uuid"
)

// Document is one ingested course material: an uploaded file or a lecture
// video transcript.
type Document struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"` // "file" | "youtube"
	Title      string    `json:"title"`
	SourceURL  *string   `json:"source_url,omitempty"`
	FilePath   *string   `json:"file_path,omitempty"`
	Status     string    `json:"status"` // "pending" | "processing" | "indexed" | "failed"
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Chunk is an overlapping slice of a document's text together with its
// embedding vector.
type Chunk struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`
	Index      int       `json:"index"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"-"`
}

// ScoredChunk is a retrieval hit with its L2 distance to the query vector.
type ScoredChunk struct {
	Chunk    Chunk
	Distance float32
}
