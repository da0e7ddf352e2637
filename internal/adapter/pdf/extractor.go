package pdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"

	"finrag/internal/domain"
)

// PageSource is the subset of a parsed PDF the extractor reads from.
// *fitz.Document satisfies it.
type PageSource interface {
	NumPage() int
	Text(page int) (string, error)
	Close() error
}

// OpenFunc opens a document for reading.
type OpenFunc func(path string) (PageSource, error)

// Extractor pulls plain text out of PDF files using MuPDF.
type Extractor struct {
	open OpenFunc
}

func NewExtractor() *Extractor {
	return &Extractor{open: openFitz}
}

// NewExtractorWithOpener replaces the MuPDF backend, mainly for tests.
func NewExtractorWithOpener(open OpenFunc) *Extractor {
	return &Extractor{open: open}
}

func openFitz(path string) (PageSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Extract returns the document text with a "--- Page N ---" marker ahead of
// every non-blank page. A document whose pages are all blank yields "".
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	doc, err := e.open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", domain.ErrExtraction, path, err)
	}
	defer doc.Close()

	n := doc.NumPage()
	pages := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("%w: %s page %d: %v", domain.ErrExtraction, path, i+1, err)
		}
		pages = append(pages, text)
	}

	return AssemblePages(pages), nil
}

// AssemblePages joins page texts in order. Pages that are empty after
// trimming are skipped along with their marker; page numbers stay 1-indexed
// against the document page order.
func AssemblePages(pages []string) string {
	var sb strings.Builder
	for i, text := range pages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		fmt.Fprintf(&sb, "\n--- Page %d ---\n", i+1)
		sb.WriteString(text)
	}
	return sb.String()
}
