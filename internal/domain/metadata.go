package domain

import "strconv"

const (
	MetaSource      = "source"
	MetaChunkIndex  = "chunk_index"
	MetaTotalChunks = "total_chunks"
	MetaSize        = "size"
)

// Flatten encodes the metadata as the flat string map backends store.
// Caller tags never override the fixed fields.
func (m ChunkMetadata) Flatten() map[string]string {
	out := make(map[string]string, len(m.Extra)+4)
	for k, v := range m.Extra {
		out[k] = v
	}
	out[MetaSource] = m.Source
	out[MetaChunkIndex] = strconv.Itoa(m.ChunkIndex)
	out[MetaTotalChunks] = strconv.Itoa(m.TotalChunks)
	out[MetaSize] = strconv.Itoa(m.Size)
	return out
}

// ParseChunkMetadata is the inverse of Flatten. Malformed numeric fields decode as zero.
func ParseChunkMetadata(flat map[string]string) ChunkMetadata {
	var m ChunkMetadata
	for k, v := range flat {
		switch k {
		case MetaSource:
			m.Source = v
		case MetaChunkIndex:
			m.ChunkIndex, _ = strconv.Atoi(v)
		case MetaTotalChunks:
			m.TotalChunks, _ = strconv.Atoi(v)
		case MetaSize:
			m.Size, _ = strconv.Atoi(v)
		default:
			if m.Extra == nil {
				m.Extra = make(map[string]string)
			}
			m.Extra[k] = v
		}
	}
	return m
}
