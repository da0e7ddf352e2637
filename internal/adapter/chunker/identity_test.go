package chunker

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocHash(t *testing.T) {
	h := DocHash("/data/reports/aapl_10k.pdf")
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{8}$`), h)
	assert.Equal(t, h, DocHash("/data/reports/aapl_10k.pdf"))
	assert.NotEqual(t, h, DocHash("/data/reports/msft_10k.pdf"))
}

func TestChunkID(t *testing.T) {
	assert.Equal(t, "68bcb9f8_chunk_0013", ChunkID("68bcb9f8", 13))
	assert.Equal(t, "68bcb9f8_chunk_0000", ChunkID("68bcb9f8", 0))
	assert.Equal(t, "68bcb9f8_chunk_12345", ChunkID("68bcb9f8", 12345))
	assert.Equal(t, "68bcb9f8_chunk_", ChunkIDPrefix("68bcb9f8"))
}
