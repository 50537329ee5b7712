// Package relay tracks peers that are connected to us but not admitted to
// the routing table. We forward their traffic until they are promoted.
package relay

import (
	"errors"
	"slices"
	"sync"

	"golang.org/x/time/rate"

	"routing-node/internal/types"
)

const (
	DefaultCapacity = 100

	// Per-peer forwarding budget.
	DefaultRate  rate.Limit = 50
	DefaultBurst            = 100
)

var (
	ErrFull = errors.New("relay: map full")
	ErrSelf = errors.New("relay: cannot relay for ourselves")
)

type entry struct {
	endpoints []types.Endpoint
	limiter   *rate.Limiter
}

// Map is the set of peers we relay for, keyed by name.
type Map struct {
	self     types.Name
	capacity int
	limit    rate.Limit
	burst    int

	mu      sync.RWMutex
	entries map[types.Name]*entry
}

type Option func(*Map)

func WithCapacity(n int) Option { return func(m *Map) { m.capacity = n } }

func WithRate(limit rate.Limit, burst int) Option {
	return func(m *Map) { m.limit, m.burst = limit, burst }
}

func New(self types.Name, opts ...Option) *Map {
	m := &Map{
		self:     self,
		capacity: DefaultCapacity,
		limit:    DefaultRate,
		burst:    DefaultBurst,
		entries:  make(map[types.Name]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add records ep for name. Adding another endpoint for a known peer always
// succeeds; a new peer is refused once the map is full.
func (m *Map) Add(name types.Name, ep types.Endpoint) error {
	if name == m.self {
		return ErrSelf
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[name]; ok {
		if !slices.Contains(e.endpoints, ep) {
			e.endpoints = append(e.endpoints, ep)
		}
		return nil
	}
	if len(m.entries) >= m.capacity {
		return ErrFull
	}
	m.entries[name] = &entry{
		endpoints: []types.Endpoint{ep},
		limiter:   rate.NewLimiter(m.limit, m.burst),
	}
	return nil
}

func (m *Map) Contains(name types.Name) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[name]
	return ok
}

func (m *Map) Endpoints(name types.Name) []types.Endpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[name]; ok {
		return slices.Clone(e.endpoints)
	}
	return nil
}

// Drop removes name and returns the endpoints it had.
func (m *Map) Drop(name types.Name) []types.Endpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	if !ok {
		return nil
	}
	delete(m.entries, name)
	return e.endpoints
}

// DropEndpoint removes ep from whichever peer has it. A peer left with no
// endpoints is removed; its name is returned.
func (m *Map) DropEndpoint(ep types.Endpoint) (types.Name, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, e := range m.entries {
		i := slices.Index(e.endpoints, ep)
		if i < 0 {
			continue
		}
		e.endpoints = slices.Delete(e.endpoints, i, i+1)
		if len(e.endpoints) == 0 {
			delete(m.entries, name)
			return name, true
		}
		return types.Name{}, false
	}
	return types.Name{}, false
}

// Allow spends one unit of name's forwarding budget.
func (m *Map) Allow(name types.Name) bool {
	m.mu.RLock()
	e, ok := m.entries[name]
	m.mu.RUnlock()
	return ok && e.limiter.Allow()
}

// Names returns a snapshot of relayed peers.
func (m *Map) Names() []types.Name {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Name, 0, len(m.entries))
	for n := range m.entries {
		out = append(out, n)
	}
	return out
}

func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
