package cache

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/emirpasic/gods/maps/treemap"

	"routing-node/internal/types"
)

func nameComparator(a, b interface{}) int {
	return a.(types.Name).Compare(b.(types.Name))
}

// Freshness records when each peer was last seen alive, ordered by name.
type Freshness struct {
	mu     sync.Mutex
	clock  clock.Clock
	window time.Duration
	seen   *treemap.Map // types.Name -> time.Time
}

func NewFreshness(clk clock.Clock, window time.Duration) *Freshness {
	if clk == nil {
		clk = clock.New()
	}
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	return &Freshness{clock: clk, window: window, seen: treemap.NewWith(nameComparator)}
}

func (f *Freshness) Touch(name types.Name) {
	now := f.clock.Now()
	f.mu.Lock()
	f.seen.Put(name, now)
	f.mu.Unlock()
}

// Fresh reports whether name was touched within the window.
func (f *Freshness) Fresh(name types.Name) bool {
	now := f.clock.Now()
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.seen.Get(name)
	return ok && !expired(now, v.(time.Time), f.window)
}

func (f *Freshness) Remove(name types.Name) {
	f.mu.Lock()
	f.seen.Remove(name)
	f.mu.Unlock()
}

// Stale returns, in name order, the peers whose last sighting is outside the
// window. They stay in the map until removed.
func (f *Freshness) Stale() []types.Name {
	now := f.clock.Now()
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []types.Name
	it := f.seen.Iterator()
	for it.Next() {
		if expired(now, it.Value().(time.Time), f.window) {
			out = append(out, it.Key().(types.Name))
		}
	}
	return out
}

// Names returns every tracked peer in name order.
func (f *Freshness) Names() []types.Name {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Name, 0, f.seen.Size())
	for _, k := range f.seen.Keys() {
		out = append(out, k.(types.Name))
	}
	return out
}

func (f *Freshness) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen.Size()
}
