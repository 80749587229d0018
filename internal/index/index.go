// Package index holds the retrieval index: a flat L2 index over all chunk
// embeddings, kept in memory and rebuilt from Postgres whenever the material
// set changes. Corpus sizes here are a single course's readings, so brute
// force search is well within budget.
package index

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"courseta-backend/internal/models"
)

type Index struct {
	mu     sync.RWMutex
	chunks []models.Chunk
	dim    int
}

func New() *Index {
	return &Index{}
}

// Load replaces the index contents wholesale. Chunks without embeddings or
// with a mismatched dimension are rejected.
func (ix *Index) Load(chunks []models.Chunk) error {
	dim := 0
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("index: chunk %s has no embedding", c.ID)
		}
		if dim == 0 {
			dim = len(c.Embedding)
		} else if len(c.Embedding) != dim {
			return fmt.Errorf("index: chunk %s has dimension %d, want %d", c.ID, len(c.Embedding), dim)
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.chunks = chunks
	ix.dim = dim
	return nil
}

// Add appends chunks for a newly ingested document.
func (ix *Index) Add(chunks []models.Chunk) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("index: chunk %s has no embedding", c.ID)
		}
		if ix.dim == 0 {
			ix.dim = len(c.Embedding)
		} else if len(c.Embedding) != ix.dim {
			return fmt.Errorf("index: chunk %s has dimension %d, want %d", c.ID, len(c.Embedding), ix.dim)
		}
		ix.chunks = append(ix.chunks, c)
	}
	return nil
}

// RemoveDocument drops all chunks belonging to one document.
func (ix *Index) RemoveDocument(documentID uuid.UUID) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	kept := ix.chunks[:0]
	for _, c := range ix.chunks {
		if c.DocumentID != documentID {
			kept = append(kept, c)
		}
	}
	ix.chunks = kept
	if len(ix.chunks) == 0 {
		ix.dim = 0
	}
}

// Search returns the k chunks nearest to the query vector by L2 distance,
// closest first.
func (ix *Index) Search(query []float32, k int) ([]models.ScoredChunk, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.chunks) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("index: query dimension %d, want %d", len(query), ix.dim)
	}

	scored := make([]models.ScoredChunk, 0, len(ix.chunks))
	for _, c := range ix.chunks {
		scored = append(scored, models.ScoredChunk{
			Chunk:    c,
			Distance: squaredL2(query, c.Embedding),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Distance < scored[j].Distance
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

// Size reports the number of indexed chunks.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

// Squared distance preserves L2 ordering without the sqrt.
func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
