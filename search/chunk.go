package search

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

var noteSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", "; ", " ", ""}

// Chunker splits note content into sentence-aligned pieces for indexing.
type Chunker struct {
	splitter textsplitter.TextSplitter
}

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 200
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators(noteSeparators),
		),
	}
}

// Split never returns an empty slice for non-blank text; very short or
// unsplittable content comes back as a single chunk.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	parts, err := c.splitter.SplitText(text)
	if err != nil {
		return []string{text}
	}

	chunks := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			chunks = append(chunks, p)
		}
	}
	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}
