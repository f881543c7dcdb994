package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/poiesic/stratum/ai"
	"github.com/poiesic/stratum/budget"
	"github.com/poiesic/stratum/core"
	"github.com/poiesic/stratum/engine"
	"github.com/poiesic/stratum/ingestion"
	"github.com/poiesic/stratum/reembed"
	"github.com/poiesic/stratum/visualize"
)

// Vector index backends.
const (
	VectorBackendBadger   = "badger"
	VectorBackendPgvector = "pgvector"
)

// Environment variables that override file values.
const (
	EnvAPIKey      = "STRATUM_API_KEY"
	EnvPostgresDSN = "STRATUM_POSTGRES_DSN"
	EnvRedisAddr   = "STRATUM_REDIS_ADDR"
	EnvRedisPass   = "STRATUM_REDIS_PASSWORD"
)

// Config is the complete configuration of a stratum deployment.
type Config struct {
	AI        *ai.Config      `yaml:"ai" validate:"required"`
	Engine    engine.Config   `yaml:"engine"`
	Budget    Budget          `yaml:"budget"`
	Storage   Storage         `yaml:"storage"`
	Cache     Cache           `yaml:"cache"`
	Highlight Highlight       `yaml:"highlight"`
	Ingest    Ingest          `yaml:"ingest"`
	Reembed   *reembed.Config `yaml:"reembed" validate:"required"`
	Server    Server          `yaml:"server"`
}

// Budget bounds the context handed to the generator.
type Budget struct {
	MaxEntities int `yaml:"max_entities" validate:"gte=1"`
	MaxChars    int `yaml:"max_chars" validate:"gte=1"`
	// MaxTokens enables token counting when positive
	MaxTokens int    `yaml:"max_tokens" validate:"gte=0"`
	Encoding  string `yaml:"encoding" validate:"required_with=MaxTokens"`
}

// Core returns the budget as the pipeline uses it.
func (b Budget) Core() core.Budget {
	return core.Budget{MaxEntities: b.MaxEntities, MaxChars: b.MaxChars, MaxTokens: b.MaxTokens}
}

// Storage selects where voxels and embeddings live.
type Storage struct {
	// Path is the Badger directory. Empty with InMemory false is invalid.
	Path     string `yaml:"path" validate:"required_without=InMemory"`
	InMemory bool   `yaml:"in_memory"`

	VectorBackend string `yaml:"vector_backend" validate:"oneof=badger pgvector"`
	PostgresDSN   string `yaml:"postgres_dsn" validate:"required_if=VectorBackend pgvector"`
	Dimensions    int    `yaml:"dimensions" validate:"required_if=VectorBackend pgvector,gte=0"`
	Table         string `yaml:"table"`
}

// Cache configures the Redis query-embedding cache. An empty address
// disables it.
type Cache struct {
	RedisAddr string        `yaml:"redis_addr" validate:"omitempty,hostname_port"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db" validate:"gte=0"`
	TTL       time.Duration `yaml:"ttl" validate:"gte=0"`
}

// Enabled reports whether a cache is configured.
func (c Cache) Enabled() bool {
	return c.RedisAddr != ""
}

// Highlight configures where cited voxels are sent for display.
// An empty Path logs the marks instead.
type Highlight struct {
	Path     string        `yaml:"path"`
	PoolSize int           `yaml:"pool_size" validate:"gte=0"`
	Timeout  time.Duration `yaml:"timeout" validate:"gte=0"`
}

// Ingest tunes the ingestion pipeline.
type Ingest struct {
	PoolSize           int     `yaml:"pool_size" validate:"gte=0"`
	BatchSize          int     `yaml:"batch_size" validate:"gte=1"`
	AdjacencyThreshold float64 `yaml:"adjacency_threshold" validate:"gt=0"`
}

// Server configures the HTTP API.
type Server struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	b := budget.DefaultBudget()
	return &Config{
		AI:     ai.DefaultConfig(),
		Engine: engine.DefaultConfig(),
		Budget: Budget{
			MaxEntities: b.MaxEntities,
			MaxChars:    b.MaxChars,
			Encoding:    budget.DefaultEncoding,
		},
		Storage: Storage{
			Path:          "stratum.db",
			VectorBackend: VectorBackendBadger,
			Table:         "voxel_embeddings",
		},
		Cache: Cache{TTL: 24 * time.Hour},
		Highlight: Highlight{
			PoolSize: 2,
			Timeout:  visualize.DefaultTimeout,
		},
		Ingest: Ingest{
			BatchSize:          ingestion.DefaultBatchSize,
			AdjacencyThreshold: ingestion.DefaultAdjacencyThreshold,
		},
		Reembed: reembed.DefaultConfig(),
		Server: Server{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads a YAML configuration file over the defaults, applies
// environment overrides and validates the result. An empty path returns
// the validated defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		cfg.ApplyEnv()
		return cfg, cfg.Validate()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML from r over the defaults. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides secrets and endpoints from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAPIKey); v != "" && c.AI != nil {
		c.AI.APIKey = v
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv(EnvRedisPass); v != "" {
		c.Cache.Password = v
	}
}

// Validate checks struct constraints and then the cross-field rules of the
// AI and engine sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
