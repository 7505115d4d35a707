package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/blueberrycongee/recall/internal/observability"
)

const cacheKeyPrefix = "recall:emb:"

// Cache wraps an Embedder with a Redis read-through cache. Cache failures
// are fail-open: a Redis outage degrades to direct embedding calls, never
// to an error.
type Cache struct {
	inner  Embedder
	rdb    redis.UniversalClient
	model  string
	ttl    time.Duration
	logger *observability.Logger
}

// NewCache creates a read-through embedding cache. The model name is part
// of the cache key so vectors from different models never collide.
func NewCache(inner Embedder, rdb redis.UniversalClient, model string, ttl time.Duration, logger *observability.Logger) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{inner: inner, rdb: rdb, model: model, ttl: ttl, logger: logger}
}

// Embed returns the cached vector when present, otherwise embeds and
// stores the result.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var vec []float32
		if err := json.Unmarshal(raw, &vec); err == nil {
			observability.EmbeddingCacheHits.WithLabelValues("hit").Inc()
			return vec, nil
		}
		// Unreadable entry; fall through and overwrite it.
	} else if err != redis.Nil {
		c.logger.WarnContext(ctx, "embedding cache read failed", "error", err)
	}
	observability.EmbeddingCacheHits.WithLabelValues("miss").Inc()

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	// Empty vectors mark degraded embeds; caching one would pin the
	// degradation past the outage.
	if len(vec) == 0 {
		return vec, nil
	}

	if raw, err := json.Marshal(vec); err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "embedding cache write failed", "error", err)
		}
	}
	return vec, nil
}

// Dimensions returns the inner embedder's vector size.
func (c *Cache) Dimensions() int {
	return c.inner.Dimensions()
}

func (c *Cache) key(text string) string {
	sum := sha256.Sum256([]byte(c.model + "|" + text))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
