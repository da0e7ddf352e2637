package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DocHash derives the 8-hex-character id prefix shared by every chunk of a document.
func DocHash(path string) string {
	hash := sha256.Sum256([]byte(path))
	return hex.EncodeToString(hash[:4])
}

// ChunkID formats the persisted chunk identifier, e.g. "68bcb9f8_chunk_0013".
func ChunkID(docHash string, index int) string {
	return fmt.Sprintf("%s_chunk_%04d", docHash, index)
}

// ChunkIDPrefix is the id prefix DeleteDocument matches on.
func ChunkIDPrefix(docHash string) string {
	return docHash + "_chunk_"
}
