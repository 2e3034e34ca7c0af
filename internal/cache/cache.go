package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DayScope prefixes every entry that depends on the current day. Day-control
// transitions drop the whole scope.
const DayScope = "day:"

const (
	CurrentDayKey = DayScope + "current"
)

// LeaderboardKey is the day-scoped key for a leaderboard of the given size.
func LeaderboardKey(limit int) string {
	return fmt.Sprintf("%sleaderboard:%d", DayScope, limit)
}

// Cache is the get/set/invalidate contract used by the public read path.
//
// Generation changes on every InvalidatePrefix. A reader that computed a value
// from storage stores it with SetIfGeneration, passing the generation it saw
// before reading, so a value computed before an invalidation is never cached
// after it.
type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration)
	SetIfGeneration(key string, value interface{}, ttl time.Duration, generation uint64) bool
	Generation() uint64
	Invalidate(key string)
	InvalidatePrefix(prefix string)
}

// TTLCache is an in-process Cache with per-entry expiry.
type TTLCache struct {
	mu         sync.Mutex
	generation uint64
	store      *gocache.Cache
}

// NewTTLCache creates a cache whose expired entries are swept every cleanupInterval.
func NewTTLCache(defaultTTL, cleanupInterval time.Duration) *TTLCache {
	return &TTLCache{store: gocache.New(defaultTTL, cleanupInterval)}
}

func (c *TTLCache) Get(key string) (interface{}, bool) {
	return c.store.Get(key)
}

func (c *TTLCache) Set(key string, value interface{}, ttl time.Duration) {
	c.store.Set(key, value, ttl)
}

// SetIfGeneration stores value only if no prefix invalidation happened since
// generation was read. It reports whether the value was stored.
func (c *TTLCache) SetIfGeneration(key string, value interface{}, ttl time.Duration, generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation {
		return false
	}
	c.store.Set(key, value, ttl)
	return true
}

// Generation returns the current invalidation generation.
func (c *TTLCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *TTLCache) Invalidate(key string) {
	c.store.Delete(key)
}

func (c *TTLCache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	for key := range c.store.Items() {
		if strings.HasPrefix(key, prefix) {
			c.store.Delete(key)
		}
	}
}

func (c *TTLCache) Len() int {
	return c.store.ItemCount()
}
