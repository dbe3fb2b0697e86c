package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// CacheKey derives the cache identity of a section-text batch. Hashing the
// texts themselves, not the rule, means two rules differing only in fields
// that are not embedded still share an entry.
func CacheKey(texts []string) string {
	sum := sha256.Sum256([]byte(strings.Join(texts, "\x00")))
	return hex.EncodeToString(sum[:])
}

// VectorCache caches section vectors in Redis keyed by the SHA-256 of the
// section texts. Embeddings are expensive and the text hash is a safe cache
// key: if it matches, the batch sent to the embedding service matches.
type VectorCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	logger    *zap.SugaredLogger
}

// NewVectorCache creates a Redis-backed vector cache.
func NewVectorCache(client *redis.Client, ttl time.Duration, logger *zap.SugaredLogger) *VectorCache {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &VectorCache{
		client:    client,
		keyPrefix: "embed:sections:",
		ttl:       ttl,
		logger:    logger,
	}
}

// Get retrieves cached section vectors. A miss returns (nil, false, nil);
// cache failures are returned so the caller can decide to re-embed.
func (c *VectorCache) Get(ctx context.Context, key string) (map[string][]float32, bool, error) {
	data, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("vector cache get failed: %w", err)
	}

	var vectors map[string][]float32
	if err := msgpack.Unmarshal(data, &vectors); err != nil {
		// A corrupt entry is treated as a miss so it gets overwritten.
		c.logger.Warnw("Dropping corrupt vector cache entry",
			"key", key,
			"error", err)
		return nil, false, nil
	}
	return vectors, true, nil
}

// Set stores section vectors with the configured TTL.
func (c *VectorCache) Set(ctx context.Context, key string, vectors map[string][]float32) error {
	data, err := msgpack.Marshal(vectors)
	if err != nil {
		return fmt.Errorf("failed to encode section vectors: %w", err)
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("vector cache set failed: %w", err)
	}
	return nil
}

// Delete removes a cached entry.
func (c *VectorCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.keyPrefix+key).Err()
}
