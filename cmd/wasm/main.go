//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"syscall/js"

	"finrag/internal/adapter/chunker"
	"finrag/internal/adapter/embedding"
	"finrag/internal/adapter/memstore"
	"finrag/internal/adapter/vectorindex"
	"finrag/internal/domain"
	"finrag/internal/logger"
)

const collection = "browser"

var (
	chk   *chunker.CharChunker
	index *vectorindex.Index
)

func init() {
	chk, _ = chunker.NewCharChunker(1000, 200)
	reset()
}

func reset() {
	index = vectorindex.New(memstore.NewMemoryStore(), embedding.NewHashEmbedder(0), 64, logger.Discard())
}

func main() {
	c := make(chan struct{})

	js.Global().Set("finragIndex", js.FuncOf(indexContent))
	js.Global().Set("finragQuery", js.FuncOf(queryContent))
	js.Global().Set("finragClear", js.FuncOf(clearIndex))
	js.Global().Set("finragStats", js.FuncOf(getStats))

	<-c
}

// indexContent ingests already-extracted text under a file name. Indexing
// the same name again replaces its chunks.
func indexContent(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return makeError("usage: finragIndex(filename, text)")
	}

	filename := args[0].String()
	pieces, err := chk.Chunk(args[1].String())
	if err != nil {
		return makeError("chunking failed: " + err.Error())
	}

	hash := chunker.DocHash(filename)
	chunks := make([]domain.Chunk, len(pieces))
	for i, text := range pieces {
		chunks[i] = domain.Chunk{
			ID:   chunker.ChunkID(hash, i),
			Text: text,
			Metadata: domain.ChunkMetadata{
				Source:      filename,
				ChunkIndex:  i,
				TotalChunks: len(pieces),
				Size:        len([]rune(text)),
			},
		}
	}

	ctx := context.Background()
	if _, err := index.Replace(ctx, collection, hash, chunks); err != nil {
		return makeError("indexing failed: " + err.Error())
	}

	return makeResult(map[string]interface{}{
		"success":  true,
		"chunks":   len(chunks),
		"filename": filename,
	})
}

func queryContent(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: finragQuery(query, [topK])")
	}

	query := args[0].String()
	topK := 5
	if len(args) > 1 {
		topK = args[1].Int()
	}

	res, err := index.Query(context.Background(), collection, query, topK, domain.Filter{})
	if err != nil {
		return makeResult(map[string]interface{}{
			"results": []interface{}{},
			"query":   query,
		})
	}

	return makeResult(map[string]interface{}{
		"results": res.Matches,
		"context": res.Context(),
		"query":   query,
	})
}

func clearIndex(this js.Value, args []js.Value) interface{} {
	reset()
	return makeResult(map[string]interface{}{
		"success": true,
	})
}

func getStats(this js.Value, args []js.Value) interface{} {
	cols, _ := index.Collections(context.Background())
	total := 0
	for _, c := range cols {
		total += c.Count
	}
	return makeResult(map[string]interface{}{
		"totalChunks": total,
		"embedding":   index.Space().String(),
	})
}

func makeError(msg string) interface{} {
	result, _ := json.Marshal(map[string]interface{}{
		"error": msg,
	})
	return string(result)
}

func makeResult(data map[string]interface{}) interface{} {
	result, _ := json.Marshal(data)
	return string(result)
}
