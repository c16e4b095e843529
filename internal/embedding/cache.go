package embedding

import (
	"container/list"
	"context"
	"sync"
)

// lruCache maps input text to its vector, evicting the least recently used entry.
type lruCache struct {
	capacity int
	entries  map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key   string
	value []float32
}

func newLRUCache(capacity int) *lruCache {
	return &lruCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
	}
}

func (c *lruCache) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).value, true
	}
	return nil, false
}

func (c *lruCache) set(key string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = value
		return
	}
	c.entries[key] = c.lru.PushFront(&cacheEntry{key: key, value: value})
	if c.lru.Len() > c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Cached wraps a provider with an LRU cache keyed by input text.
// Misses are sent to the wrapped provider in a single request.
type Cached struct {
	next  Provider
	cache *lruCache
}

// NewCached wraps next with a cache holding up to capacity vectors.
func NewCached(next Provider, capacity int) *Cached {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Cached{next: next, cache: newLRUCache(capacity)}
}

// MaxTokens returns the wrapped provider's request budget.
func (c *Cached) MaxTokens() int {
	return c.next.MaxTokens()
}

// Len returns the number of cached vectors.
func (c *Cached) Len() int {
	return c.cache.len()
}

// CreateEmbeddings serves cached inputs locally and forwards the rest.
// A non-success response from the wrapped provider is returned as is.
func (c *Cached) CreateEmbeddings(ctx context.Context, inputs []string) (*Response, error) {
	vectors := make([][]float32, len(inputs))
	var missing []string
	var missingAt []int
	for i, in := range inputs {
		if v, ok := c.cache.get(in); ok {
			vectors[i] = v
			continue
		}
		missing = append(missing, in)
		missingAt = append(missingAt, i)
	}
	if len(missing) > 0 {
		resp, err := c.next.CreateEmbeddings(ctx, missing)
		if err != nil {
			return nil, err
		}
		if resp.Status != StatusSuccess {
			return resp, nil
		}
		fetched, err := resp.Vectors(len(missing))
		if err != nil {
			return &Response{Status: StatusError, Message: err.Error()}, nil
		}
		for j, v := range fetched {
			vectors[missingAt[j]] = v
			c.cache.set(missing[j], v)
		}
	}
	return Success(vectors), nil
}
