// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package stratum

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/poiesic/stratum/ai"
	"github.com/poiesic/stratum/ai/cache"
	"github.com/poiesic/stratum/ai/openai"
	"github.com/poiesic/stratum/budget"
	"github.com/poiesic/stratum/config"
	"github.com/poiesic/stratum/engine"
	"github.com/poiesic/stratum/ingestion"
	"github.com/poiesic/stratum/reembed"
	"github.com/poiesic/stratum/storage"
	"github.com/poiesic/stratum/storage/badger"
	"github.com/poiesic/stratum/storage/pgvector"
)

// Database is an open voxel dataset: the Badger store, the vector index
// and the AI provider that serves it. It is opened once and shared by the
// engine, ingestion and re-embedding.
type Database struct {
	backend     *badger.Backend
	store       *badger.VoxelStore
	index       storage.VectorIndex
	checkpoints storage.CheckpointRepository
	provider    ai.AIProvider
	closers     []io.Closer
	config      *config.Config
	logger      *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig   *ai.Config
	provider   ai.AIProvider
	inMemory   bool
	index      storage.VectorIndex
	cache      redis.Cmdable
	cacheTTL   time.Duration
	config     *config.Config
	logger     *slog.Logger
	extraClose []io.Closer
}

// WithAIConfig sets the configuration of the OpenAI-compatible provider.
func WithAIConfig(cfg *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = cfg
	}
}

// WithProvider uses provider instead of creating one. The database closes
// it on Close.
func WithProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// InMemory keeps the store in memory. The file path is ignored.
func InMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// WithVectorIndex stores embeddings in index instead of Badger.
func WithVectorIndex(index storage.VectorIndex) DatabaseOption {
	return func(o *databaseOptions) {
		o.index = index
	}
}

// WithEmbeddingCache caches embeddings in Redis.
func WithEmbeddingCache(client redis.Cmdable, ttl time.Duration) DatabaseOption {
	return func(o *databaseOptions) {
		o.cache = client
		o.cacheTTL = ttl
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		closeAll(options.extraClose, options.logger)
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			closeAll(options.extraClose, options.logger)
			backend.Close()
			return nil, err
		}
	}
	if options.cache != nil {
		model := options.aiConfig.EmbeddingModel
		provider = &cachedProvider{
			AIProvider: provider,
			embedder:   cache.NewEmbedder(provider.Embedder(), options.cache, model, options.cacheTTL),
		}
	}

	index := options.index
	if index == nil {
		index = badger.NewVectorIndex(backend)
	}

	return &Database{
		backend:     backend,
		store:       badger.NewVoxelStore(backend),
		index:       index,
		checkpoints: badger.NewCheckpointRepository(backend),
		provider:    provider,
		closers:     options.extraClose,
		config:      options.config,
		logger:      options.logger.With("component", "database"),
	}, nil
}

// Open opens the database described by cfg, connecting the pgvector index
// and the Redis cache when they are configured.
func Open(ctx context.Context, cfg *config.Config, opts ...DatabaseOption) (*Database, error) {
	options := []DatabaseOption{
		WithAIConfig(cfg.AI),
		func(o *databaseOptions) { o.config = cfg },
	}
	if cfg.Storage.InMemory {
		options = append(options, InMemory())
	}

	var closers []io.Closer
	if cfg.Storage.VectorBackend == config.VectorBackendPgvector {
		ix, err := pgvector.Open(ctx, cfg.Storage.PostgresDSN, cfg.Storage.Dimensions, pgvector.WithTable(cfg.Storage.Table))
		if err != nil {
			return nil, err
		}
		if err := ix.EnsureSchema(ctx); err != nil {
			ix.Close()
			return nil, err
		}
		closers = append(closers, ix)
		options = append(options, WithVectorIndex(ix))
	}
	if cfg.Cache.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		closers = append(closers, client)
		options = append(options, WithEmbeddingCache(client, cfg.Cache.TTL))
	}
	options = append(options, func(o *databaseOptions) { o.extraClose = closers })

	return NewDatabase(cfg.Storage.Path, append(options, opts...)...)
}

// Close releases the provider, the external index and cache connections,
// and finally the store.
func (db *Database) Close() error {
	var errs []error
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
		errs = append(errs, err)
	}
	if err := closeAll(db.closers, db.logger); err != nil {
		errs = append(errs, err)
	}
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func closeAll(closers []io.Closer, logger *slog.Logger) error {
	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error("error closing connection", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (db *Database) Store() storage.VoxelStore {
	return db.store
}

func (db *Database) VectorIndex() storage.VectorIndex {
	return db.index
}

func (db *Database) CheckpointRepository() storage.CheckpointRepository {
	return db.checkpoints
}

func (db *Database) Provider() ai.AIProvider {
	return db.provider
}

// NewEngine creates a query engine over the database. When the database
// was opened from a configuration, its engine and budget settings are
// applied before opts.
func (db *Database) NewEngine(opts ...engine.Option) (*engine.Engine, error) {
	var base []engine.Option
	if db.config != nil {
		budgetOpts := []budget.Option{budget.WithBudget(db.config.Budget.Core())}
		if db.config.Budget.MaxTokens > 0 {
			budgetOpts = append(budgetOpts, budget.WithTokenCounter(budget.NewTiktokenCounter(db.config.Budget.Encoding)))
		}
		b, err := budget.New(budgetOpts...)
		if err != nil {
			return nil, err
		}
		base = append(base, engine.WithConfig(db.config.Engine), engine.WithBudgeter(b))
	}
	return engine.New(db.store, db.index, db.provider, append(base, opts...)...)
}

func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	var base []ingestion.Option
	if db.config != nil {
		base = append(base,
			ingestion.WithBatchSize(db.config.Ingest.BatchSize),
			ingestion.WithAdjacencyThreshold(db.config.Ingest.AdjacencyThreshold),
		)
		if db.config.Ingest.PoolSize > 0 {
			base = append(base, ingestion.WithPoolSize(db.config.Ingest.PoolSize))
		}
	}
	return ingestion.NewPipeline(db.store, db.index, db.provider, append(base, opts...)...)
}

// NewReembedder creates a reembedder writing progress to progress. A nil
// cfg uses the database configuration or the defaults.
func (db *Database) NewReembedder(cfg *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	if cfg == nil && db.config != nil {
		cfg = db.config.Reembed
	}
	return reembed.NewReembedder(db.store, db.index, db.checkpoints, db.provider.Embedder(), cfg, progress)
}

// cachedProvider serves embeddings through a cache.
type cachedProvider struct {
	ai.AIProvider
	embedder ai.Embedder
}

func (p *cachedProvider) Embedder() ai.Embedder {
	return p.embedder
}
