package port

// Chunker splits extracted document text into ordered chunk texts.
type Chunker interface {
	Chunk(text string) ([]string, error)
}
