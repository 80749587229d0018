package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"courseta-backend/internal/llm"
	"courseta-backend/internal/models"
)

// embedBatchSize keeps one embedding request comfortably under API input
// limits for long documents.
const embedBatchSize = 64

type documentStore interface {
	ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []models.Chunk) error
}

type materialIndex interface {
	RemoveDocument(documentID uuid.UUID)
	Add(chunks []models.Chunk) error
}

// Ingestor runs the extract -> chunk -> embed -> store -> index pipeline for
// one course material. The worker pool drives it and reports progress.
type Ingestor struct {
	llm     llm.Client
	extract *ExtractService
	youtube *YouTubeService
	chunker *Chunker
	docs    documentStore
	index   materialIndex
}

func NewIngestor(client llm.Client, extract *ExtractService, youtube *YouTubeService, chunker *Chunker, docs documentStore, ix materialIndex) *Ingestor {
	return &Ingestor{
		llm:     client,
		extract: extract,
		youtube: youtube,
		chunker: chunker,
		docs:    docs,
		index:   ix,
	}
}

// Ingest processes one document end to end and returns the chunk count.
// progress is invoked at each pipeline step; pass nil to skip reporting.
func (ing *Ingestor) Ingest(ctx context.Context, doc *models.Document, progress func(step int, name string)) (int, error) {
	report := func(step int, name string) {
		if progress != nil {
			progress(step, name)
		}
	}

	report(1, "Extracting text")
	text, err := ing.extractText(doc)
	if err != nil {
		return 0, fmt.Errorf("extract %s: %w", doc.Title, err)
	}

	report(2, "Chunking")
	pieces := ing.chunker.Split(text, doc.Title)
	if len(pieces) == 0 {
		return 0, fmt.Errorf("document %s produced no chunks", doc.Title)
	}

	report(3, "Embedding")
	chunks := make([]models.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = models.Chunk{DocumentID: doc.ID, Index: i, Text: p}
	}
	for start := 0; start < len(pieces); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(pieces) {
			end = len(pieces)
		}
		vectors, err := ing.llm.Embed(ctx, pieces[start:end])
		if err != nil {
			return 0, fmt.Errorf("embed chunks %d-%d of %s: %w", start, end, doc.Title, err)
		}
		for i, v := range vectors {
			chunks[start+i].Embedding = v
		}
	}

	report(4, "Storing chunks")
	if err := ing.docs.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return 0, fmt.Errorf("store chunks for %s: %w", doc.Title, err)
	}

	report(5, "Refreshing index")
	ing.index.RemoveDocument(doc.ID)
	if err := ing.index.Add(chunks); err != nil {
		return 0, fmt.Errorf("index chunks for %s: %w", doc.Title, err)
	}

	return len(chunks), nil
}

func (ing *Ingestor) extractText(doc *models.Document) (string, error) {
	switch doc.Type {
	case "youtube":
		if doc.SourceURL == nil {
			return "", fmt.Errorf("youtube document has no source URL")
		}
		videoID := ExtractVideoID(*doc.SourceURL)
		if videoID == "" {
			return "", fmt.Errorf("invalid YouTube URL: %s", *doc.SourceURL)
		}
		return ing.youtube.GetTranscript(videoID)
	default:
		if doc.FilePath == nil {
			return "", fmt.Errorf("file document has no stored path")
		}
		return ing.extract.ExtractTextFromPath(*doc.FilePath)
	}
}
