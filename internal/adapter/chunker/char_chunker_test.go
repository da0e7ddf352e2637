package chunker

import (
	"math/rand"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finrag/internal/domain"
)

func TestSplitUniformText(t *testing.T) {
	text := strings.Repeat("A", 1800)

	chunks, err := Split(text, 1000, 200)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, text[:1000], chunks[0])
	assert.Equal(t, text[800:], chunks[1])
}

func TestSplitEmptyAndShort(t *testing.T) {
	chunks, err := Split("", 1000, 200)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = Split("   \n\t  ", 1000, 200)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	short := "  " + strings.Repeat("word ", 99) + "end.  "
	chunks, err = Split(short, 1000, 200)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, strings.TrimSpace(short), chunks[0])
}

func TestSplitInvalidParameters(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -5, 0},
		{"negative overlap", 100, -1},
		{"overlap equals size", 100, 100},
		{"overlap above size", 100, 150},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Split("some text", tc.size, tc.overlap)
			assert.ErrorIs(t, err, domain.ErrInvalidParameter)

			_, err = NewCharChunker(tc.size, tc.overlap)
			assert.ErrorIs(t, err, domain.ErrInvalidParameter)
		})
	}
}

func TestSplitSnapsToSentenceEnd(t *testing.T) {
	sentence := "Revenue grew by twelve percent. "
	text := strings.Repeat(sentence, 10)

	chunks, err := Split(text, 100, 40)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks[:len(chunks)-1] {
		assert.True(t, strings.HasSuffix(c, "."), "chunk %q should end on a sentence", c)
	}
}

func TestSplitSnapsToSpace(t *testing.T) {
	text := strings.Repeat("lorem ", 50)

	chunks, err := Split(text, 64, 16)
	require.NoError(t, err)
	for _, c := range chunks {
		assert.False(t, strings.HasPrefix(c, "orem"), "chunk %q starts mid-word", c)
		assert.True(t, strings.HasSuffix(c, "lorem"), "chunk %q ends mid-word", c)
	}
}

func TestSplitWithoutOverlapCutsAtSize(t *testing.T) {
	text := []rune(strings.Repeat("Revenue grew by twelve percent. ", 10))
	require.Len(t, text, 320)

	spans := windows(text, 50, 0)
	want := []span{{0, 50}, {50, 100}, {100, 150}, {150, 200}, {200, 250}, {250, 300}, {300, 320}}
	assert.Equal(t, want, spans)

	chunks, err := Split(string(text), 50, 0)
	require.NoError(t, err)
	require.Len(t, chunks, len(want))
	assert.Equal(t, "Revenue grew by twelve percent. Revenue grew by tw", chunks[0])
	assert.Equal(t, "elve percent. Revenue grew by twelve percent. Reve", chunks[1])
}

func TestSplitTerminatesOnAdversarialInput(t *testing.T) {
	text := []rune(strings.Repeat("x", 5000))
	size, overlap := 50, 49

	spans := windows(text, size, overlap)
	step := size - overlap
	bound := (len(text)+step-1)/step + 1
	assert.LessOrEqual(t, len(spans), bound)
	assert.Equal(t, len(text), spans[len(spans)-1].end)
}

func TestSplitChunkInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	alphabet := []rune("abc def. gh! ij?\n  kl mnö")

	for trial := 0; trial < 200; trial++ {
		n := rng.Intn(3000)
		text := make([]rune, n)
		for i := range text {
			text[i] = alphabet[rng.Intn(len(alphabet))]
		}
		size := 1 + rng.Intn(400)
		overlap := rng.Intn(size)

		chunks, err := Split(string(text), size, overlap)
		require.NoError(t, err)
		step := size - overlap
		bound := (n+step-1)/step + 1
		spans := windows(text, size, overlap)
		assert.LessOrEqual(t, len(spans), bound, "trial %d: %d windows for %d runes (size=%d overlap=%d)", trial, len(spans), n, size, overlap)
		for _, c := range chunks {
			assert.NotEmpty(t, c)
			assert.Equal(t, strings.TrimSpace(c), c)
			assert.LessOrEqual(t, len([]rune(c)), size)
		}

		covered := make([]bool, n)
		prev := -1
		for _, w := range spans {
			assert.Greater(t, w.start, prev, "windows must advance")
			prev = w.start
			for i := w.start; i < w.end; i++ {
				covered[i] = true
			}
		}
		for i, r := range text {
			if !unicode.IsSpace(r) {
				require.True(t, covered[i], "trial %d: rune %d (%q) not covered (size=%d overlap=%d)", trial, i, r, size, overlap)
			}
		}
	}
}

func TestCharChunker(t *testing.T) {
	c, err := NewCharChunker(1000, 200)
	require.NoError(t, err)
	assert.Equal(t, 1000, c.Size())
	assert.Equal(t, 200, c.Overlap())

	chunks, err := c.Chunk(strings.Repeat("A", 1800))
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}
