package testutil

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// MemCache is an in-memory statistics cache that counts its operations.
// TTLs are ignored.
type MemCache struct {
	mu     sync.Mutex
	values map[string][]byte

	Hits    int
	Misses  int
	Deletes int
}

func NewMemCache() *MemCache {
	return &MemCache{values: map[string][]byte{}}
}

func (c *MemCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, ok := c.values[key]
	if !ok {
		c.Misses++
		return false, nil
	}
	c.Hits++
	return true, json.Unmarshal(raw, dst)
}

func (c *MemCache) SetJSON(_ context.Context, key string, v any, _ time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = raw
	return nil
}

func (c *MemCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k := range c.values {
		if strings.HasPrefix(k, prefix) {
			delete(c.values, k)
			c.Deletes++
		}
	}
	return nil
}

// Len returns the number of cached entries.
func (c *MemCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}
