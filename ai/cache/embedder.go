// Package cache provides a Redis read-through cache for ai.Embedder.
//
// Query embeddings repeat often (the same question asked twice, or the
// same voxel description re-embedded), so cached vectors are keyed by
// embedding model and a content hash of the text. Redis failures are
// logged and fall through to the wrapped embedder; the cache never makes
// an embedding call fail.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/stratum/ai"
	"github.com/poiesic/stratum/core"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a cached vector lives when no TTL is given.
const DefaultTTL = 24 * time.Hour

// Embedder wraps an ai.Embedder with a Redis cache.
type Embedder struct {
	next   ai.Embedder
	client redis.Cmdable
	model  string
	ttl    time.Duration
	logger *slog.Logger
}

// NewEmbedder wraps next. model namespaces keys so vectors from different
// embedding models never mix. A non-positive ttl selects DefaultTTL.
func NewEmbedder(next ai.Embedder, client redis.Cmdable, model string, ttl time.Duration) *Embedder {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Embedder{
		next:   next,
		client: client,
		model:  model,
		ttl:    ttl,
		logger: slog.Default().With("component", "embedding-cache"),
	}
}

func (e *Embedder) key(text string) string {
	return fmt.Sprintf("stratum:emb:%s:%016x", e.model, uint64(core.IDFromContent(text)))
}

// EmbedText returns the cached vector for text, embedding and caching it
// on a miss.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	key := e.key(text)
	if vec, ok := e.lookup(ctx, key); ok {
		return vec, nil
	}

	vec, err := e.next.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	e.store(ctx, key, vec)
	return vec, nil
}

// EmbedTexts resolves every text from the cache in one round trip and
// embeds only the misses, preserving input order.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = e.key(text)
	}

	out := make([][]float32, len(texts))
	values, err := e.client.MGet(ctx, keys...).Result()
	if err != nil {
		e.logger.Warn("cache lookup failed", "count", len(keys), "err", err)
		values = nil
	}

	var missing []int
	for i := range texts {
		if i < len(values) {
			if s, ok := values[i].(string); ok {
				if vec, err := decode([]byte(s)); err == nil {
					out[i] = vec
					continue
				}
			}
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	pending := make([]string, len(missing))
	for j, i := range missing {
		pending[j] = texts[i]
	}
	vecs, err := e.next.EmbedTexts(ctx, pending)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(pending) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d",
			ai.ErrEmptyResponse, len(pending), len(vecs))
	}

	pipe := e.client.Pipeline()
	for j, i := range missing {
		out[i] = vecs[j]
		pipe.Set(ctx, keys[i], encode(vecs[j]), e.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		e.logger.Warn("cache store failed", "count", len(missing), "err", err)
	}
	return out, nil
}

func (e *Embedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	data, err := e.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		e.logger.Warn("cache lookup failed", "key", key, "err", err)
		return nil, false
	}
	vec, err := decode(data)
	if err != nil {
		e.logger.Warn("discarding corrupt cache entry", "key", key, "err", err)
		return nil, false
	}
	return vec, true
}

func (e *Embedder) store(ctx context.Context, key string, vec []float32) {
	if err := e.client.Set(ctx, key, encode(vec), e.ttl).Err(); err != nil {
		e.logger.Warn("cache store failed", "key", key, "err", err)
	}
}

func encode(vec []float32) []byte {
	buf := make([]byte, core.VectorMUS.Size(vec))
	core.VectorMUS.Marshal(vec, buf)
	return buf
}

func decode(data []byte) ([]float32, error) {
	vec, _, err := core.VectorMUS.Unmarshal(data)
	return vec, err
}
