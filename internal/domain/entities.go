package domain

import (
	"strconv"
	"strings"
	"time"
)

// Document is an ingestible PDF identified by its source path.
type Document struct {
	Path string
	Hash string
}

// Chunk is a contiguous, trimmed slice of a document's extracted text.
type Chunk struct {
	ID       string
	Text     string
	Metadata ChunkMetadata
}

// ChunkMetadata is the fixed metadata record stored with every chunk.
// Extra carries caller-supplied tags.
type ChunkMetadata struct {
	Source      string            `json:"source"`
	ChunkIndex  int               `json:"chunk_index"`
	TotalChunks int               `json:"total_chunks"`
	Size        int               `json:"size"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// EmbeddingSpace identifies the embedding function a collection was created with.
type EmbeddingSpace struct {
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
}

func (s EmbeddingSpace) String() string {
	return s.Model + "/" + strconv.Itoa(s.Dimension)
}

// Collection is a named set of chunks sharing one embedding space.
type Collection struct {
	Name      string         `json:"name"`
	Space     EmbeddingSpace `json:"space"`
	Count     int            `json:"count"`
	CreatedAt time.Time      `json:"created_at"`
}

// Filter restricts a query to chunks whose text contains a substring.
type Filter struct {
	Contains string `json:"contains,omitempty"`
}

// Match is one ranked query hit.
type Match struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Distance float64       `json:"distance"`
	Metadata ChunkMetadata `json:"metadata"`
}

// QueryResult holds matches ordered by ascending distance.
type QueryResult struct {
	Matches []Match `json:"matches"`
}

// ContextSeparator joins chunk texts in a retrieval context.
const ContextSeparator = "\n\n"

// Context concatenates the ranked chunk texts.
func (r QueryResult) Context() string {
	texts := make([]string, len(r.Matches))
	for i, m := range r.Matches {
		texts[i] = m.Text
	}
	return strings.Join(texts, ContextSeparator)
}

// Sources returns the chunk ids in ranked order, parallel to Context's segments.
func (r QueryResult) Sources() []string {
	ids := make([]string, len(r.Matches))
	for i, m := range r.Matches {
		ids[i] = m.ID
	}
	return ids
}

// DocumentResult describes one successfully ingested document.
type DocumentResult struct {
	Path   string `json:"path"`
	Hash   string `json:"hash"`
	Chunks int    `json:"chunks"`
	Pruned int    `json:"pruned"`
}

// FileFailure records a document that could not be ingested.
type FileFailure struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

// IngestReport summarises a folder ingestion.
type IngestReport struct {
	RunID    string           `json:"run_id"`
	Ingested []DocumentResult `json:"ingested"`
	Failed   []FileFailure    `json:"failed"`
}

// TotalChunks returns the number of chunks written during the run.
func (r *IngestReport) TotalChunks() int {
	n := 0
	for _, d := range r.Ingested {
		n += d.Chunks
	}
	return n
}
