package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for finrag.
type Config struct {
	Index     IndexConfig     `yaml:"index"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
	Cache     CacheConfig     `yaml:"cache"`
	LLM       LLMConfig       `yaml:"llm"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// IndexConfig controls how PDFs are found and chunked.
type IndexConfig struct {
	Collection   string   `yaml:"collection"`
	Includes     []string `yaml:"includes"`
	Excludes     []string `yaml:"excludes"`
	ChunkSize    int      `yaml:"chunk_size"`    // characters
	ChunkOverlap int      `yaml:"chunk_overlap"` // characters
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK int `yaml:"top_k"`
}

// EmbeddingConfig selects the embedding function bound to a collection.
type EmbeddingConfig struct {
	Provider          string        `yaml:"provider"` // "ollama", "openai", "hash"
	BaseURL           string        `yaml:"base_url"`
	Model             string        `yaml:"model"`
	APIKeyEnv         string        `yaml:"api_key_env"`
	Dimension         int           `yaml:"dimension"` // 0 = known default for the model
	BatchSize         int           `yaml:"batch_size"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"` // 0 = unlimited
	MaxRetries        int           `yaml:"max_retries"`
}

// StoreConfig selects the vector backend.
type StoreConfig struct {
	Backend     string `yaml:"backend"` // "bolt", "postgres", "memory"
	Path        string `yaml:"path"`    // bolt file, relative to the project dir
	PostgresDSN string `yaml:"postgres_dsn"`
}

// CacheConfig holds query cache configuration.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Backend   string        `yaml:"backend"` // "memory", "redis"
	MaxSize   int           `yaml:"max_size"`
	TTL       time.Duration `yaml:"ttl"`
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
}

// LLMConfig configures the completion service used by analyze.
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Collection:   "docs",
			Includes:     []string{"*.pdf"},
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		Retrieve: RetrieveConfig{
			TopK: 10,
		},
		Embedding: EmbeddingConfig{
			Provider:   "ollama",
			BaseURL:    "http://localhost:11434/v1",
			Model:      "nomic-embed-text",
			APIKeyEnv:  "OPENAI_API_KEY",
			BatchSize:  32,
			Timeout:    120 * time.Second,
			MaxRetries: 2,
		},
		Store: StoreConfig{
			Backend: "bolt",
			Path:    filepath.Join(".finrag", "vectors.db"),
		},
		Cache: CacheConfig{
			Enabled: false,
			Backend: "memory",
			MaxSize: 256,
			TTL:     10 * time.Minute,
		},
		LLM: LLMConfig{
			BaseURL:     "http://localhost:11434/v1",
			Model:       "llama3",
			APIKeyEnv:   "OPENAI_API_KEY",
			Temperature: 0.5,
			MaxTokens:   512,
			Timeout:     120 * time.Second,
			MaxRetries:  2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads finrag.yaml or .finrag/config.yaml from dir.
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "finrag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".finrag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// ApplyEnv overrides connection settings from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		base := strings.TrimRight(v, "/")
		if !strings.HasSuffix(base, "/v1") {
			base += "/v1"
		}
		c.Embedding.BaseURL = base
		c.LLM.BaseURL = base
	}
	if v := os.Getenv("FINRAG_POSTGRES_DSN"); v != "" {
		c.Store.PostgresDSN = v
	}
	if v := os.Getenv("FINRAG_REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
}

// Validate reports every setting that cannot work.
func (c *Config) Validate() error {
	var errs []error

	if c.Index.Collection == "" {
		errs = append(errs, errors.New("index.collection must not be empty"))
	}
	if c.Index.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("index.chunk_size must be positive, got %d", c.Index.ChunkSize))
	}
	if c.Index.ChunkOverlap < 0 || c.Index.ChunkOverlap >= c.Index.ChunkSize {
		errs = append(errs, fmt.Errorf("index.chunk_overlap must be in [0, chunk_size), got %d", c.Index.ChunkOverlap))
	}
	if len(c.Index.Includes) == 0 {
		errs = append(errs, errors.New("index.includes must list at least one pattern"))
	}
	if c.Retrieve.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieve.top_k must be positive, got %d", c.Retrieve.TopK))
	}

	switch c.Embedding.Provider {
	case "ollama", "openai", "hash":
	default:
		errs = append(errs, fmt.Errorf("unknown embedding.provider %q", c.Embedding.Provider))
	}

	switch c.Store.Backend {
	case "bolt", "memory":
	case "postgres":
		if c.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("store.postgres_dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.backend %q", c.Store.Backend))
	}

	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case "memory":
		case "redis":
			if c.Cache.RedisAddr == "" {
				errs = append(errs, errors.New("cache.redis_addr is required for the redis cache"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown cache.backend %q", c.Cache.Backend))
		}
	}

	return errors.Join(errs...)
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// StorePath resolves the bolt file against the project dir.
func (c *Config) StorePath(dir string) string {
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(dir, c.Store.Path)
}

// EnsureDataDir creates the directory holding the bolt file.
func (c *Config) EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Dir(c.StorePath(dir)), 0755)
}
