package cache

import (
	"sync"
	"time"
)

// MemoryCache is the in-process L1. Entries carry their own expiration and a
// background sweep evicts stale ones once a minute.
type MemoryCache struct {
	store  sync.Map
	stopCh chan struct{}
}

type memoryItem struct {
	value      interface{}
	expiration time.Time
}

func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{stopCh: make(chan struct{})}
	go c.sweep()
	return c
}

func (c *MemoryCache) Set(key string, value interface{}, ttl time.Duration) error {
	c.store.Store(key, &memoryItem{
		value:      value,
		expiration: time.Now().Add(ttl),
	})
	return nil
}

func (c *MemoryCache) Get(key string) (interface{}, bool) {
	v, exists := c.store.Load(key)
	if !exists {
		return nil, false
	}

	item := v.(*memoryItem)
	if time.Now().After(item.expiration) {
		c.store.Delete(key)
		return nil, false
	}

	return item.value, true
}

func (c *MemoryCache) Exists(key string) (bool, error) {
	_, exists := c.Get(key)
	return exists, nil
}

func (c *MemoryCache) Delete(key string) error {
	c.store.Delete(key)
	return nil
}

func (c *MemoryCache) DeletePattern(pattern string) error {
	c.store.Range(func(key, _ interface{}) bool {
		if matchPattern(key.(string), pattern) {
			c.store.Delete(key)
		}
		return true
	})
	return nil
}

func (c *MemoryCache) Clear() error {
	c.store = sync.Map{}
	return nil
}

func (c *MemoryCache) Stats() map[string]interface{} {
	count := 0
	c.store.Range(func(_, _ interface{}) bool {
		count++
		return true
	})

	return map[string]interface{}{
		"items": count,
		"type":  "memory",
	}
}

func (c *MemoryCache) Close() error {
	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}
	return nil
}

func (c *MemoryCache) sweep() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			c.store.Range(func(key, value interface{}) bool {
				if now.After(value.(*memoryItem).expiration) {
					c.store.Delete(key)
				}
				return true
			})
		}
	}
}

// matchPattern supports the "*" and "prefix*" forms used by cache keys.
func matchPattern(text, pattern string) bool {
	if pattern == "*" {
		return true
	}

	if len(pattern) > 0 && pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(text) >= len(prefix) && text[:len(prefix)] == prefix
	}

	return text == pattern
}
