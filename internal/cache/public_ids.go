package cache

import (
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"

	"routing-node/internal/types"
)

type publicIDEntry struct {
	id    types.PublicID
	stamp time.Time
}

// PublicIDs caches peer credentials by name. It is bounded both by age and
// by count; when full, the least recently accessed entry is evicted
// regardless of its age.
type PublicIDs struct {
	clock  clock.Clock
	window time.Duration
	lru    *lru.Cache[types.Name, publicIDEntry]
}

func NewPublicIDs(clk clock.Clock, window time.Duration, capacity int) *PublicIDs {
	if clk == nil {
		clk = clock.New()
	}
	if window <= 0 {
		window = DefaultPublicIDExpiry
	}
	if capacity <= 0 {
		capacity = DefaultPublicIDCapacity
	}
	c, err := lru.New[types.Name, publicIDEntry](capacity)
	if err != nil {
		// only returned for size <= 0
		panic(err)
	}
	return &PublicIDs{clock: clk, window: window, lru: c}
}

// Add inserts or refreshes id. It reports whether another entry was evicted
// to make room.
func (c *PublicIDs) Add(id types.PublicID) (evicted bool) {
	return c.lru.Add(id.Name, publicIDEntry{id: id, stamp: c.clock.Now()})
}

// Get returns the credential for name if present and unexpired. A hit counts
// as an access for eviction order.
func (c *PublicIDs) Get(name types.Name) (types.PublicID, bool) {
	e, ok := c.lru.Get(name)
	if !ok {
		return types.PublicID{}, false
	}
	if expired(c.clock.Now(), e.stamp, c.window) {
		c.lru.Remove(name)
		return types.PublicID{}, false
	}
	return e.id, true
}

func (c *PublicIDs) Remove(name types.Name) { c.lru.Remove(name) }

// Len counts stored entries, including expired ones not yet looked up.
func (c *PublicIDs) Len() int { return c.lru.Len() }

// Sweep drops expired entries without touching recency.
func (c *PublicIDs) Sweep() int {
	now := c.clock.Now()
	n := 0
	for _, k := range c.lru.Keys() {
		if e, ok := c.lru.Peek(k); ok && expired(now, e.stamp, c.window) {
			c.lru.Remove(k)
			n++
		}
	}
	return n
}
