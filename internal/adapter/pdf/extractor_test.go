package pdf

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finrag/internal/domain"
)

type fakeDoc struct {
	pages  []string
	failAt int
	closed bool
}

func (d *fakeDoc) NumPage() int { return len(d.pages) }

func (d *fakeDoc) Text(i int) (string, error) {
	if d.failAt > 0 && i+1 == d.failAt {
		return "", errors.New("broken content stream")
	}
	return d.pages[i], nil
}

func (d *fakeDoc) Close() error {
	d.closed = true
	return nil
}

func opener(doc *fakeDoc) OpenFunc {
	return func(string) (PageSource, error) { return doc, nil }
}

func TestAssemblePagesSkipsBlankPages(t *testing.T) {
	text := AssemblePages([]string{"Revenue 10", "  \n ", "", "Net income 3"})

	assert.Equal(t, "\n--- Page 1 ---\nRevenue 10\n--- Page 4 ---\nNet income 3", text)
	assert.NotContains(t, text, "Page 2")
	assert.NotContains(t, text, "Page 3")
}

func TestAssemblePagesAllBlank(t *testing.T) {
	assert.Equal(t, "", AssemblePages([]string{" ", "\n\t"}))
	assert.Equal(t, "", AssemblePages(nil))
}

func TestExtractPreservesPageOrder(t *testing.T) {
	doc := &fakeDoc{pages: []string{"first", "second", "third"}}
	e := NewExtractorWithOpener(opener(doc))

	text, err := e.Extract(context.Background(), "report.pdf")
	require.NoError(t, err)

	first := indexOf(t, text, "--- Page 1 ---")
	second := indexOf(t, text, "--- Page 2 ---")
	third := indexOf(t, text, "--- Page 3 ---")
	assert.Less(t, first, second)
	assert.Less(t, second, third)
	assert.True(t, doc.closed)
}

func TestExtractPageFailureIsFatal(t *testing.T) {
	doc := &fakeDoc{pages: []string{"ok", "broken"}, failAt: 2}
	e := NewExtractorWithOpener(opener(doc))

	text, err := e.Extract(context.Background(), "report.pdf")
	assert.ErrorIs(t, err, domain.ErrExtraction)
	assert.Empty(t, text)
	assert.True(t, doc.closed)
}

func TestExtractOpenFailure(t *testing.T) {
	e := NewExtractorWithOpener(func(string) (PageSource, error) {
		return nil, errors.New("not a pdf")
	})

	_, err := e.Extract(context.Background(), "report.pdf")
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestExtractCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.pdf")
	require.NoError(t, os.WriteFile(path, []byte("this is not a pdf"), 0o644))

	_, err := NewExtractor().Extract(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func indexOf(t *testing.T, s, sub string) int {
	t.Helper()
	i := strings.Index(s, sub)
	require.GreaterOrEqual(t, i, 0, "%q not found", sub)
	return i
}
