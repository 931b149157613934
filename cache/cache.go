package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type entry[V any] struct {
	data      V
	expiresAt time.Time
}

// Cache is a size-bounded LRU whose entries also expire after a per-entry TTL.
type Cache[V any] struct {
	lru *lru.Cache[string, *entry[V]]
	now func() time.Time
}

func New[V any](size int) (*Cache[V], error) {
	l, err := lru.New[string, *entry[V]](size)
	if err != nil {
		return nil, err
	}
	return &Cache[V]{lru: l, now: time.Now}, nil
}

func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	e, ok := c.lru.Get(key)
	if !ok {
		return zero, false
	}
	if c.now().After(e.expiresAt) {
		c.lru.Remove(key)
		return zero, false
	}
	return e.data, true
}

func (c *Cache[V]) Set(key string, val V, ttl time.Duration) {
	if c == nil || ttl <= 0 {
		return
	}
	c.lru.Add(key, &entry[V]{
		data:      val,
		expiresAt: c.now().Add(ttl),
	})
}

func (c *Cache[V]) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
