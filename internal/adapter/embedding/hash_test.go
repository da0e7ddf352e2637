package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestHashEmbedderDeterministicAndNormalised(t *testing.T) {
	e := NewHashEmbedder(128)
	a, err := e.Embed(context.Background(), []string{"Diluted earnings per share rose to 6.13"})
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), []string{"Diluted earnings per share rose to 6.13"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a[0], 128)
	assert.InDelta(t, 1.0, math.Sqrt(cosine(a[0], a[0])), 1e-5)
}

func TestHashEmbedderSimilarity(t *testing.T) {
	e := NewHashEmbedder(0)
	vectors, err := e.Embed(context.Background(), []string{
		"earnings per share EPS net income",
		"EPS earnings per share diluted",
		"office lease obligations in Cupertino",
	})
	require.NoError(t, err)

	related := cosine(vectors[0], vectors[1])
	unrelated := cosine(vectors[0], vectors[2])
	assert.Greater(t, related, unrelated)
	assert.Equal(t, DefaultHashDimension, e.Dimension())
	assert.Equal(t, "hash", e.ModelName())
}

func TestHashEmbedderBlankText(t *testing.T) {
	e := NewHashEmbedder(16)
	vectors, err := e.Embed(context.Background(), []string{"   "})
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 16), vectors[0])
}
