package port

import "context"

// TextExtractor pulls the text of a PDF, page by page.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}
