package services

import (
	"fmt"
	"regexp"
	"strings"
)

var whitespacePattern = regexp.MustCompile(`\s+`)

// Chunker splits extracted document text into overlapping word windows.
// Overlap keeps a sentence that straddles a boundary retrievable from both
// sides.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 200
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 2
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split breaks text into chunks of roughly c.size words stepping by
// size-overlap. Each chunk is prefixed with the document title so retrieval
// hits carry their provenance into the prompt.
func (c *Chunker) Split(text, title string) []string {
	text = strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
	if text == "" {
		return nil
	}

	words := strings.Fields(text)
	step := c.size - c.overlap

	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + c.size
		if end > len(words) {
			end = len(words)
		}
		chunk := strings.Join(words[start:end], " ")
		if title != "" {
			chunk = fmt.Sprintf("This text comes from the document %s. %s", title, chunk)
		}
		chunks = append(chunks, chunk)
		if end == len(words) {
			break
		}
	}
	return chunks
}
