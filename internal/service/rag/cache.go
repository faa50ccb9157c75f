package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/ahmadnazif/AiChatBackendDemo/internal/redis"
)

const (
	embeddingCachePrefix = "embedding:"
	embeddingCacheTTL    = time.Hour
)

// QueryCache memoizes embedding vectors in redis so repeated queries skip the
// embedding call. Cache failures degrade to a recompute, never to an error.
type QueryCache struct {
	client *redis.Client
}

func NewQueryCache(client *redis.Client) *QueryCache {
	if client == nil {
		return nil
	}
	return &QueryCache{client: client}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return embeddingCachePrefix + hex.EncodeToString(sum[:])
}

func (c *QueryCache) Get(ctx context.Context, text string) ([]float32, bool) {
	data, err := c.client.Get(ctx, cacheKey(text))
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			log.Printf("embedding cache read failed: %v", err)
		}
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal([]byte(data), &vec); err != nil {
		log.Printf("embedding cache entry corrupt: %v", err)
		return nil, false
	}
	return vec, true
}

func (c *QueryCache) Put(ctx context.Context, text string, vec []float32) {
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(text), data, embeddingCacheTTL); err != nil {
		log.Printf("embedding cache write failed: %v", err)
	}
}
