package ai

import (
	"sync"
	"time"

	"github.com/kapu/blockext-go/internal/util"
)

// ResultCache is a small TTL map for model answers keyed by normalized input.
type ResultCache[T any] struct {
	mu      sync.RWMutex
	entries map[string]resultEntry[T]
	ttl     time.Duration
	clock   util.Clock
}

type resultEntry[T any] struct {
	value     T
	metadata  *GenerateMetadata
	timestamp time.Time
}

func NewResultCache[T any](ttl time.Duration, clock util.Clock) *ResultCache[T] {
	if clock == nil {
		clock = util.SystemClock
	}
	return &ResultCache[T]{
		entries: make(map[string]resultEntry[T]),
		ttl:     ttl,
		clock:   clock,
	}
}

func (c *ResultCache[T]) Get(key string) (T, *GenerateMetadata, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		var zero T
		return zero, nil, false
	}

	if c.clock.Now().Sub(entry.timestamp) >= c.ttl {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		var zero T
		return zero, nil, false
	}

	return entry.value, entry.metadata, true
}

func (c *ResultCache[T]) Set(key string, value T, metadata *GenerateMetadata) {
	c.mu.Lock()
	c.entries[key] = resultEntry[T]{
		value:     value,
		metadata:  metadata,
		timestamp: c.clock.Now(),
	}
	c.mu.Unlock()
}

func (c *ResultCache[T]) Clear(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *ResultCache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
