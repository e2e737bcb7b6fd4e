package agent

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// SchemaProvider describes the warehouse for the generation prompt.
type SchemaProvider interface {
	Name() string
	DescribeSchema(ctx context.Context) (string, error)
}

type schemaCacheEntry struct {
	schema    string
	expiresAt time.Time
}

// schemaCache holds schema descriptions keyed by backend name. Concurrent
// misses for the same backend share one fetch.
type schemaCache struct {
	ttl   time.Duration
	mu    sync.RWMutex
	store map[string]schemaCacheEntry
	sf    singleflight.Group
}

func newSchemaCache(ttl time.Duration) *schemaCache {
	return &schemaCache{ttl: ttl, store: make(map[string]schemaCacheEntry)}
}

func (c *schemaCache) get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.store[key]
	if !ok || time.Now().After(e.expiresAt) {
		return "", false
	}
	return e.schema, true
}

func (c *schemaCache) set(key, schema string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = schemaCacheEntry{schema: schema, expiresAt: time.Now().Add(c.ttl)}
}

func (c *schemaCache) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
}

// load returns the cached schema of p, fetching it on a miss. A failed
// fetch returns "" and is not cached.
func (c *schemaCache) load(ctx context.Context, p SchemaProvider) string {
	key := p.Name()
	if schema, ok := c.get(key); ok {
		log.Debug().Str("backend", key).Msg("schema cache hit")
		return schema
	}

	v, _, _ := c.sf.Do(key, func() (interface{}, error) {
		if schema, ok := c.get(key); ok {
			return schema, nil
		}
		start := time.Now()
		schema, err := p.DescribeSchema(ctx)
		if err != nil {
			log.Warn().Err(err).Str("backend", key).Msg("schema fetch failed")
			return "", nil
		}
		c.set(key, schema)
		log.Info().Str("backend", key).Dur("fetch_ms", time.Since(start)).Msg("schema cached")
		return schema, nil
	})
	return v.(string)
}
