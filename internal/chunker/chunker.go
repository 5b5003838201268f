// Package chunker splits document text into overlapping, fixed-size pieces.
package chunker

import (
	"fmt"
	"strings"

	"widgetrag/internal/domain"
)

// Chunk is one slice of a document. Start and End are rune offsets into the
// original text, End exclusive.
type Chunk struct {
	Index int
	Text  string
	Start int
	End   int
}

// Validate reports whether size/overlap can ever produce a chunk sequence.
func Validate(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d: %w", size, domain.ErrInvalidConfiguration)
	}
	if overlap < 0 {
		return fmt.Errorf("chunk overlap must not be negative, got %d: %w", overlap, domain.ErrInvalidConfiguration)
	}
	if overlap >= size {
		return fmt.Errorf("chunk overlap %d must be less than chunk size %d: %w", overlap, size, domain.ErrInvalidConfiguration)
	}
	return nil
}

// Split cuts text into chunks of at most size runes. Consecutive chunks share
// exactly overlap runes and the last chunk always ends at the end of text.
// Whitespace-only text yields no chunks.
func Split(text string, size, overlap int) ([]Chunk, error) {
	if err := Validate(size, overlap); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	runes := []rune(text)
	step := size - overlap
	chunks := make([]Chunk, 0, len(runes)/step+1)
	for start := 0; ; start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  string(runes[start:end]),
			Start: start,
			End:   end,
		})
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}

// Chunker holds a fixed size/overlap pair validated once at construction.
type Chunker struct {
	size    int
	overlap int
}

// New returns a Chunker or ErrInvalidConfiguration.
func New(size, overlap int) (*Chunker, error) {
	if err := Validate(size, overlap); err != nil {
		return nil, err
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split applies the configured size and overlap.
func (c *Chunker) Split(text string) ([]Chunk, error) {
	return Split(text, c.size, c.overlap)
}

// Size returns the configured chunk size in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap in runes.
func (c *Chunker) Overlap() int { return c.overlap }
