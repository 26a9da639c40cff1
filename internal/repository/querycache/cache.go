// Package querycache is the cache-aside store for query embeddings. Two
// queries differing only in case or whitespace share one entry.
package querycache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/arcadia-shop/persona/internal/db"
	"github.com/arcadia-shop/persona/internal/domain"
	"github.com/arcadia-shop/persona/internal/metrics"
)

var cacheKeyPrefix = domain.KeyPrefix + "query_emb:"

// store is the consumer interface for the query embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits    int64
	Misses  int64
	HitRate float64
}

// Cache stores query embeddings in a key-value store with a TTL.
type Cache struct {
	store  store
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
	logger *zap.Logger
}

// New creates a query embedding cache.
func New(s store, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{store: s, ttl: ttl, logger: logger}
}

// Get returns the cached vector for a query, counting the hit or miss.
// Store errors degrade to a miss; the cache never fails a lookup.
func (c *Cache) Get(ctx context.Context, query string) ([]float64, bool) {
	key := c.key(query)

	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached query embedding", zap.String("key", key), zap.Error(err))
		}
		c.miss()
		return nil, false
	}

	vec, err := bytesToVector(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached query embedding", zap.String("key", key), zap.Error(err))
		c.miss()
		return nil, false
	}

	c.hits.Add(1)
	metrics.QueryCacheTotal.WithLabelValues("hit").Inc()
	return vec, true
}

// Set stores a query vector with the configured TTL. Failures are logged,
// not surfaced: the caller already has the vector.
func (c *Cache) Set(ctx context.Context, query string, vec []float64) {
	key := c.key(query)
	if err := c.store.SetWithTTL(ctx, key, vectorToBytes(vec), c.ttl); err != nil {
		c.logger.Warn("Failed to cache query embedding", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes one query's entry.
func (c *Cache) Delete(ctx context.Context, query string) error {
	if err := c.store.Del(ctx, c.key(query)); err != nil {
		return fmt.Errorf("delete cached query: %w", err)
	}
	return nil
}

// Clear removes every cached query embedding.
func (c *Cache) Clear(ctx context.Context) error {
	keys, err := c.store.Scan(ctx, cacheKeyPrefix+"*")
	if err != nil {
		return fmt.Errorf("scan cache keys: %w", err)
	}
	for _, key := range keys {
		if err := c.store.Del(ctx, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}

// Stats returns hit/miss counters since process start.
func (c *Cache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{Hits: hits, Misses: misses, HitRate: rate}
}

func (c *Cache) miss() {
	c.misses.Add(1)
	metrics.QueryCacheTotal.WithLabelValues("miss").Inc()
}

func (c *Cache) key(query string) string {
	h := sha256.Sum256([]byte(NormalizeQuery(query)))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

// NormalizeQuery trims, lowercases, and collapses internal whitespace so that
// equivalent queries share a cache entry.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

func vectorToBytes(v []float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float64, error) {
	if len(data) == 0 || len(data)%8 != 0 {
		return nil, fmt.Errorf("invalid cached embedding: len=%d (not multiple of 8)", len(data))
	}
	vec := make([]float64, len(data)/8)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return vec, nil
}
