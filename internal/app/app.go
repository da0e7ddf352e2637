// Package app assembles the object graph shared by the finrag commands from
// a loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"finrag/config"
	"finrag/internal/adapter/cache"
	"finrag/internal/adapter/chunker"
	"finrag/internal/adapter/embedding"
	"finrag/internal/adapter/fs"
	"finrag/internal/adapter/llm"
	"finrag/internal/adapter/memstore"
	"finrag/internal/adapter/pdf"
	"finrag/internal/adapter/pgstore"
	"finrag/internal/adapter/store"
	"finrag/internal/adapter/vectorindex"
	"finrag/internal/domain"
	"finrag/internal/port"
	"finrag/internal/usecase"
)

type App struct {
	Config    *config.Config
	Dir       string
	Store     port.VectorStore
	Embedder  port.Embedder
	Index     *vectorindex.Index
	Retriever *usecase.Retriever
	Walker    *fs.Walker

	logger  *slog.Logger
	closers []io.Closer
}

// Open connects the configured store and embedder. dir is the project
// directory relative store paths resolve against.
func Open(ctx context.Context, cfg *config.Config, dir string, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Dir: dir, logger: logger}

	st, err := OpenStore(ctx, cfg, dir)
	if err != nil {
		return nil, err
	}
	a.Store = st
	a.closers = append(a.closers, st)

	a.Embedder, err = NewEmbedder(cfg.Embedding)
	if err != nil {
		a.Close()
		return nil, err
	}

	ch, err := chunker.NewCharChunker(cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Index = vectorindex.New(st, a.Embedder, cfg.Embedding.BatchSize, logger)
	var index port.VectorIndex = a.Index
	if cfg.Cache.Enabled {
		backend, err := a.openCache(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		index = cache.NewCachedIndex(a.Index, backend, logger)
	}

	a.Walker = fs.NewWalker(cfg.Index.Includes, cfg.Index.Excludes)
	a.Retriever = usecase.NewRetriever(usecase.RetrieverDeps{
		Extractor: pdf.NewExtractor(),
		Chunker:   ch,
		Index:     index,
		Walker:    a.Walker,
		Logger:    logger,
	}, cfg.Index.Collection, cfg.Retrieve.TopK)

	logger.Debug("app ready",
		"store", cfg.Store.Backend,
		"embedding", a.Index.Space().String(),
		"cache", cfg.Cache.Enabled)
	return a, nil
}

func (a *App) openCache(ctx context.Context) (cache.Backend, error) {
	c := a.Config.Cache
	switch c.Backend {
	case "redis":
		rc, err := cache.NewRedisCache(ctx, c.RedisAddr, c.RedisDB, c.TTL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, rc)
		return rc, nil
	default:
		return cache.NewQueryCache(c.MaxSize, c.TTL), nil
	}
}

// Close releases the store and cache connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

// Analyzer builds the metric analyzer backed by the configured LLM.
func (a *App) Analyzer(topK int) *usecase.Analyzer {
	l := a.Config.LLM
	client := llm.NewOpenAIClient(llm.Options{
		BaseURL:     l.BaseURL,
		APIKey:      os.Getenv(l.APIKeyEnv),
		Model:       l.Model,
		Temperature: l.Temperature,
		MaxTokens:   l.MaxTokens,
		Timeout:     l.Timeout,
		MaxRetries:  l.MaxRetries,
	})
	return usecase.NewAnalyzer(a.Retriever, client, topK, a.logger)
}

// Collection returns the configured collection without creating it. An
// absent collection yields domain.ErrCollectionNotFound.
func (a *App) Collection(ctx context.Context) (domain.Collection, error) {
	return a.Store.Collection(ctx, a.Config.Index.Collection)
}

// StoreDescription names the backend for status output.
func (a *App) StoreDescription() string {
	if a.Config.Store.Backend == "bolt" {
		return "bolt " + a.Config.StorePath(a.Dir)
	}
	return a.Config.Store.Backend
}

func OpenStore(ctx context.Context, cfg *config.Config, dir string) (port.VectorStore, error) {
	switch cfg.Store.Backend {
	case "postgres":
		st, err := pgstore.Open(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return st, nil
	case "memory":
		return memstore.NewMemoryStore(), nil
	default:
		if err := cfg.EnsureDataDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		st, err := store.NewBoltStore(cfg.StorePath(dir))
		if err != nil {
			return nil, fmt.Errorf("failed to open vector store: %w", err)
		}
		return st, nil
	}
}

func NewEmbedder(c config.EmbeddingConfig) (port.Embedder, error) {
	switch c.Provider {
	case "hash":
		return embedding.NewHashEmbedder(c.Dimension), nil
	case "openai":
		key := os.Getenv(c.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("environment variable %s is not set", c.APIKeyEnv)
		}
		return newOpenAIEmbedder(c, key)
	default:
		return newOpenAIEmbedder(c, os.Getenv(c.APIKeyEnv))
	}
}

func newOpenAIEmbedder(c config.EmbeddingConfig, key string) (port.Embedder, error) {
	e, err := embedding.NewOpenAIEmbedder(embedding.Options{
		BaseURL:           c.BaseURL,
		APIKey:            key,
		Model:             c.Model,
		Dimension:         c.Dimension,
		BatchSize:         c.BatchSize,
		Timeout:           c.Timeout,
		RequestsPerSecond: c.RequestsPerSecond,
		MaxRetries:        c.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return e, nil
}
