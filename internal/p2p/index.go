package p2p

import (
	"fmt"
	"slices"
	"sync"

	"github.com/emirpasic/gods/maps/treemap"

	"routing-node/internal/types"
)

// ConnectionIndex maps live connections to peer names in both directions.
// The two sides only change together, through Add and the Remove methods.
type ConnectionIndex struct {
	mu     sync.RWMutex
	byEP   map[types.Endpoint]types.Name
	byName *treemap.Map // types.Name -> []types.Endpoint
}

func NewConnectionIndex() *ConnectionIndex {
	return &ConnectionIndex{
		byEP: make(map[types.Endpoint]types.Name),
		byName: treemap.NewWith(func(a, b interface{}) int {
			return a.(types.Name).Compare(b.(types.Name))
		}),
	}
}

// Add maps ep to name. It reports false, and changes nothing, when ep
// already belongs to a different name.
func (ci *ConnectionIndex) Add(ep types.Endpoint, name types.Name) bool {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	if old, ok := ci.byEP[ep]; ok {
		return old == name
	}
	ci.byEP[ep] = name
	eps := ci.endpointsLocked(name)
	ci.byName.Put(name, append(eps, ep))
	return true
}

// RemoveEndpoint forgets ep. It reports the owning name and how many
// endpoints that name still has.
func (ci *ConnectionIndex) RemoveEndpoint(ep types.Endpoint) (types.Name, int, bool) {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	name, ok := ci.byEP[ep]
	if !ok {
		return types.Name{}, 0, false
	}
	left := ci.unlinkLocked(ep, name)
	return name, left, true
}

// RemoveName forgets every endpoint of name and returns them.
func (ci *ConnectionIndex) RemoveName(name types.Name) []types.Endpoint {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	eps := ci.endpointsLocked(name)
	for _, ep := range eps {
		delete(ci.byEP, ep)
	}
	ci.byName.Remove(name)
	return eps
}

func (ci *ConnectionIndex) Lookup(ep types.Endpoint) (types.Name, bool) {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	name, ok := ci.byEP[ep]
	return name, ok
}

func (ci *ConnectionIndex) Endpoints(name types.Name) []types.Endpoint {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	return slices.Clone(ci.endpointsLocked(name))
}

// Names returns connected names in ascending order.
func (ci *ConnectionIndex) Names() []types.Name {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	out := make([]types.Name, 0, ci.byName.Size())
	for _, k := range ci.byName.Keys() {
		out = append(out, k.(types.Name))
	}
	return out
}

func (ci *ConnectionIndex) Len() int {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	return len(ci.byEP)
}

// Check verifies that both directions describe the same relation.
func (ci *ConnectionIndex) Check() error {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	count := 0
	it := ci.byName.Iterator()
	for it.Next() {
		name := it.Key().(types.Name)
		eps := it.Value().([]types.Endpoint)
		if len(eps) == 0 {
			return fmt.Errorf("connection index: %s has no endpoints", name)
		}
		for _, ep := range eps {
			if got, ok := ci.byEP[ep]; !ok || got != name {
				return fmt.Errorf("connection index: %s listed under %s but maps to %s", ep, name, got)
			}
		}
		count += len(eps)
	}
	if count != len(ci.byEP) {
		return fmt.Errorf("connection index: %d forward entries, %d reverse", len(ci.byEP), count)
	}
	return nil
}

func (ci *ConnectionIndex) endpointsLocked(name types.Name) []types.Endpoint {
	v, ok := ci.byName.Get(name)
	if !ok {
		return nil
	}
	return v.([]types.Endpoint)
}

func (ci *ConnectionIndex) unlinkLocked(ep types.Endpoint, name types.Name) int {
	delete(ci.byEP, ep)
	eps := slices.DeleteFunc(slices.Clone(ci.endpointsLocked(name)), func(e types.Endpoint) bool { return e == ep })
	if len(eps) == 0 {
		ci.byName.Remove(name)
	} else {
		ci.byName.Put(name, eps)
	}
	return len(eps)
}
