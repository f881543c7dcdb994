// Package pgvector implements storage.VectorIndex on PostgreSQL with the
// pgvector extension.
package pgvector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/poiesic/stratum/core"
	"github.com/poiesic/stratum/storage"
)

const defaultTable = "voxel_embeddings"

// Index stores voxel embeddings in a PostgreSQL table and searches them
// with the cosine distance operator.
type Index struct {
	db         *sql.DB
	table      string
	dimensions int
	logger     *slog.Logger
}

var _ storage.VectorIndex = (*Index)(nil)

// Option configures an Index.
type Option func(*Index) error

// WithTable overrides the embeddings table name.
func WithTable(name string) Option {
	return func(ix *Index) error {
		if name == "" {
			return errors.New("table name cannot be empty")
		}
		ix.table = name
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Index) error {
		ix.logger = logger
		return nil
	}
}

// Open connects to PostgreSQL and returns an Index over the connection.
// The caller owns the returned index and must Close it.
func Open(ctx context.Context, dsn string, dimensions int, opts ...Option) (*Index, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	ix, err := New(db, dimensions, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return ix, nil
}

// New wraps an existing connection pool.
func New(db *sql.DB, dimensions int, opts ...Option) (*Index, error) {
	if db == nil {
		return nil, errors.New("database connection is nil")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	ix := &Index{
		db:         db,
		table:      defaultTable,
		dimensions: dimensions,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(ix); err != nil {
			return nil, err
		}
	}
	ix.logger = ix.logger.With("component", "pgvector", "table", ix.table)
	return ix, nil
}

// EnsureSchema creates the extension, table and HNSW index if missing.
func (ix *Index) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	voxel_id TEXT PRIMARY KEY,
	embedding vector(%d) NOT NULL,
	content_hash BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`, ix.table, ix.dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`, ix.table, ix.table),
	}
	for _, stmt := range statements {
		if _, err := ix.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	ix.logger.Info("checked/created embeddings table", "dimensions", ix.dimensions)
	return nil
}

func (ix *Index) Upsert(ctx context.Context, embeddings ...*core.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (voxel_id, embedding, content_hash, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (voxel_id) DO UPDATE SET embedding = EXCLUDED.embedding, content_hash = EXCLUDED.content_hash, updated_at = EXCLUDED.updated_at`, ix.table))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range embeddings {
		if len(e.Vector) != ix.dimensions {
			return fmt.Errorf("%w: %s has %d dimensions, index has %d",
				storage.ErrDimensionMismatch, e.VoxelID, len(e.Vector), ix.dimensions)
		}
		updated := e.UpdatedAt
		if updated.IsZero() {
			updated = time.Now().UTC()
		}
		_, err := stmt.ExecContext(ctx, e.VoxelID, pgvector.NewVector(e.Vector), int64(e.ContentHash), updated)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", e.VoxelID, err)
		}
	}
	return tx.Commit()
}

func (ix *Index) GetEmbedding(ctx context.Context, voxelID string) (*core.Embedding, error) {
	row := ix.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT embedding, content_hash, updated_at FROM %s WHERE voxel_id = $1`, ix.table),
		voxelID,
	)

	var (
		vec  pgvector.Vector
		hash int64
		e    = &core.Embedding{VoxelID: voxelID}
	)
	if err := row.Scan(&vec, &hash, &e.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: embedding %s", storage.ErrNotFound, voxelID)
		}
		return nil, err
	}
	e.Vector = vec.Slice()
	e.ContentHash = core.ID(hash)
	return e, nil
}

// Search ranks by cosine distance; similarity is reported as 1 - distance.
func (ix *Index) Search(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]storage.Similarity, error) {
	if limit <= 0 {
		return nil, nil
	}
	if len(vector) != ix.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			storage.ErrDimensionMismatch, len(vector), ix.dimensions)
	}

	rows, err := ix.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT voxel_id, 1 - (embedding <=> $1) AS similarity
FROM %s
WHERE 1 - (embedding <=> $1) >= $2
ORDER BY embedding <=> $1, voxel_id
LIMIT $3`, ix.table),
		pgvector.NewVector(vector), minSimilarity, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var results []storage.Similarity
	for rows.Next() {
		var (
			id    string
			score float64
		)
		if err := rows.Scan(&id, &score); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		results = append(results, storage.Similarity{VoxelID: id, Score: float32(score)})
	}
	return results, rows.Err()
}

// Close closes the underlying connection pool.
func (ix *Index) Close() error {
	return ix.db.Close()
}
