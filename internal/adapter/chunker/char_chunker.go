package chunker

import (
	"fmt"
	"strings"

	"finrag/internal/domain"
)

// boundaryWindow caps how far back from a tentative cut the chunker looks
// for a sentence terminator or a space.
const boundaryWindow = 200

// CharChunker splits text into overlapping, boundary-aware chunks measured in characters.
type CharChunker struct {
	size    int
	overlap int
}

// NewCharChunker validates the parameters once so Chunk never fails on them.
func NewCharChunker(size, overlap int) (*CharChunker, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	return &CharChunker{size: size, overlap: overlap}, nil
}

func (c *CharChunker) Chunk(text string) ([]string, error) {
	return Split(text, c.size, c.overlap)
}

func (c *CharChunker) Size() int    { return c.size }
func (c *CharChunker) Overlap() int { return c.overlap }

// Split slides a chunkSize window over text with a fixed advance of
// chunkSize-overlap characters, snapping each cut back to the nearest
// sentence terminator or space when one is close enough.
func Split(text string, chunkSize, overlap int) ([]string, error) {
	if err := validate(chunkSize, overlap); err != nil {
		return nil, err
	}
	return split([]rune(text), chunkSize, overlap), nil
}

func validate(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidParameter, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return fmt.Errorf("%w: overlap must be in [0, %d), got %d", domain.ErrInvalidParameter, chunkSize, overlap)
	}
	return nil
}

type span struct{ start, end int }

func split(text []rune, chunkSize, overlap int) []string {
	var chunks []string
	for _, w := range windows(text, chunkSize, overlap) {
		if piece := strings.TrimSpace(string(text[w.start:w.end])); piece != "" {
			chunks = append(chunks, piece)
		}
	}
	return chunks
}

// windows returns every visited [start, end) window, including those whose
// text trims to nothing.
func windows(text []rune, chunkSize, overlap int) []span {
	n := len(text)
	if n == 0 {
		return nil
	}
	if n <= chunkSize {
		return []span{{0, n}}
	}

	step := chunkSize - overlap
	// Snapping back further than the overlap would leave text between
	// two windows that no chunk covers.
	lookback := min(boundaryWindow, overlap)

	var out []span
	start := 0
	for start < n {
		end := min(start+chunkSize, n)
		if end < n {
			end = snap(text, start, end, lookback)
		}
		out = append(out, span{start, end})
		if end >= n {
			break
		}

		next := max(start+step, end-overlap)
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return out
}

// snap moves end back to just after a sentence terminator, else onto a
// space, searching at most lookback runes. It returns end unchanged when
// neither is found.
func snap(text []rune, start, end, lookback int) int {
	from := max(start, end-lookback)
	for i := end - 1; i >= from; i-- {
		switch text[i] {
		case '.', '!', '?':
			return i + 1
		}
	}
	for i := end - 1; i >= from; i-- {
		if text[i] == ' ' {
			return i
		}
	}
	return end
}
