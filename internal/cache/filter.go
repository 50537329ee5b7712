package cache

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/emirpasic/gods/maps/linkedhashmap"

	"routing-node/internal/proto"
)

// MessageFilter remembers message fingerprints for a fixed window so
// retransmissions can be dropped.
type MessageFilter struct {
	mu     sync.Mutex
	clock  clock.Clock
	window time.Duration
	items  *linkedhashmap.Map // proto.Fingerprint -> time.Time, insertion ordered
}

func NewMessageFilter(clk clock.Clock, window time.Duration) *MessageFilter {
	if clk == nil {
		clk = clock.New()
	}
	if window <= 0 {
		window = DefaultFilterExpiry
	}
	return &MessageFilter{
		clock:  clk,
		window: window,
		items:  linkedhashmap.New(),
	}
}

// Seen returns true if fp was seen within the window. If not, it records it
// and returns false.
func (f *MessageFilter) Seen(fp proto.Fingerprint) bool {
	now := f.clock.Now()

	f.mu.Lock()
	defer f.mu.Unlock()

	f.sweepLocked(now)
	if _, ok := f.items.Get(fp); ok {
		return true
	}
	f.items.Put(fp, now)
	return false
}

// Add records fp, refreshing nothing if it is already present.
func (f *MessageFilter) Add(fp proto.Fingerprint) {
	_ = f.Seen(fp)
}

func (f *MessageFilter) Contains(fp proto.Fingerprint) bool {
	now := f.clock.Now()

	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.items.Get(fp)
	return ok && !expired(now, v.(time.Time), f.window)
}

// Sweep drops expired entries and returns how many were removed.
func (f *MessageFilter) Sweep() int {
	now := f.clock.Now()

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sweepLocked(now)
}

// Entries are in insertion order and stamps never decrease, so the sweep
// stops at the first live entry.
func (f *MessageFilter) sweepLocked(now time.Time) int {
	var dead []interface{}
	it := f.items.Iterator()
	for it.Next() {
		if !expired(now, it.Value().(time.Time), f.window) {
			break
		}
		dead = append(dead, it.Key())
	}
	for _, k := range dead {
		f.items.Remove(k)
	}
	return len(dead)
}

func (f *MessageFilter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items.Size()
}
