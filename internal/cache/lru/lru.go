// Package lru is an in-process cache backend on top of an expiring LRU.
package lru

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Backend stores entries in a size-bounded LRU. The LRU's own TTL is the
// ceiling; each entry also carries its own expiry so shorter TTLs apply.
type Backend struct {
	cache *expirable.LRU[string, entry]
	now   func() time.Time
}

// New creates a Backend holding at most size entries for at most maxTTL each.
func New(size int, maxTTL time.Duration) *Backend {
	return &Backend{
		cache: expirable.NewLRU[string, entry](size, nil, maxTTL),
		now:   time.Now,
	}
}

func (b *Backend) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := b.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !b.now().Before(e.expiresAt) {
		b.cache.Remove(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (b *Backend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	b.cache.Add(key, entry{value: value, expiresAt: b.now().Add(ttl)})
	return nil
}

func (b *Backend) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		b.cache.Remove(key)
	}
	return nil
}

// DeletePrefix walks a snapshot of the keys, bounded by the LRU capacity.
func (b *Backend) DeletePrefix(_ context.Context, prefix string) (int, error) {
	removed := 0
	for _, key := range b.cache.Keys() {
		if strings.HasPrefix(key, prefix) && b.cache.Remove(key) {
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of live entries.
func (b *Backend) Len() int {
	return b.cache.Len()
}
