package routing

import (
	"slices"
	"sync"
	"time"

	"routing-node/internal/types"
)

const (
	// GroupSize is the number of closest peers treated as authoritative for
	// a region of the address space.
	GroupSize = 23
	// BucketSize bounds every bucket, and so the whole table.
	BucketSize = 8
)

// NodeInfo is a peer admitted to the table.
type NodeInfo struct {
	Public    types.PublicID
	Endpoints []types.Endpoint
	LastSeen  time.Time
}

func (ni NodeInfo) Name() types.Name { return ni.Public.Name }

type bucket struct {
	nodes []NodeInfo // index 0 = most recently seen; end = least
}

// Table holds the peers close to us under the XOR metric.
type Table struct {
	self types.Name
	k    int

	mu      sync.RWMutex
	buckets [types.NameBytes * 8]bucket
}

func New(self types.Name) *Table {
	return NewWithBucketSize(self, BucketSize)
}

func NewWithBucketSize(self types.Name, k int) *Table {
	if k <= 0 {
		k = BucketSize
	}
	return &Table{self: self, k: k}
}

func (t *Table) Self() types.Name { return t.self }

// AddNode admits ni or refreshes it when already present. It returns false
// when ni is ourselves or its bucket is full; full buckets never evict, the
// caller decides what to do with a peer that was not admitted.
func (t *Table) AddNode(ni NodeInfo) bool {
	id := ni.Name()
	bi := types.BucketIndex(t.self, id)
	if bi < 0 {
		return false
	}
	if ni.LastSeen.IsZero() {
		ni.LastSeen = time.Now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	b := &t.buckets[bi]

	for i := range b.nodes {
		if b.nodes[i].Name() != id {
			continue
		}
		cur := b.nodes[i]
		cur.LastSeen = ni.LastSeen
		for _, ep := range ni.Endpoints {
			if !slices.Contains(cur.Endpoints, ep) {
				cur.Endpoints = append(cur.Endpoints, ep)
			}
		}
		b.nodes = slices.Delete(b.nodes, i, i+1)
		b.nodes = slices.Insert(b.nodes, 0, cur)
		return true
	}

	if len(b.nodes) >= t.k {
		return false
	}
	ni.Endpoints = slices.Clone(ni.Endpoints)
	b.nodes = slices.Insert(b.nodes, 0, ni)
	return true
}

// WouldAdmit reports whether AddNode would succeed for name right now.
func (t *Table) WouldAdmit(name types.Name) bool {
	bi := types.BucketIndex(t.self, name)
	if bi < 0 {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	b := &t.buckets[bi]
	if len(b.nodes) < t.k {
		return true
	}
	return slices.ContainsFunc(b.nodes, func(n NodeInfo) bool { return n.Name() == name })
}

// DropNode removes name and returns what was stored for it.
func (t *Table) DropNode(name types.Name) (NodeInfo, bool) {
	bi := types.BucketIndex(t.self, name)
	if bi < 0 {
		return NodeInfo{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	b := &t.buckets[bi]
	for i := range b.nodes {
		if b.nodes[i].Name() == name {
			ni := b.nodes[i]
			b.nodes = slices.Delete(b.nodes, i, i+1)
			return ni, true
		}
	}
	return NodeInfo{}, false
}

// DropEndpoint forgets ep for name. The node stays admitted; callers drop it
// once it has no connections left.
func (t *Table) DropEndpoint(name types.Name, ep types.Endpoint) {
	bi := types.BucketIndex(t.self, name)
	if bi < 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	b := &t.buckets[bi]
	for i := range b.nodes {
		if b.nodes[i].Name() == name {
			b.nodes[i].Endpoints = slices.DeleteFunc(b.nodes[i].Endpoints, func(e types.Endpoint) bool { return e == ep })
			return
		}
	}
}

func (t *Table) Get(name types.Name) (NodeInfo, bool) {
	bi := types.BucketIndex(t.self, name)
	if bi < 0 {
		return NodeInfo{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, n := range t.buckets[bi].nodes {
		if n.Name() == name {
			n.Endpoints = slices.Clone(n.Endpoints)
			return n, true
		}
	}
	return NodeInfo{}, false
}

func (t *Table) Has(name types.Name) bool {
	_, ok := t.Get(name)
	return ok
}

// Closest returns up to n admitted peers sorted by XOR distance to target.
func (t *Table) Closest(target types.Name, n int) []NodeInfo {
	if n <= 0 {
		n = GroupSize
	}

	t.mu.RLock()
	all := make([]NodeInfo, 0, t.sizeLocked())
	for i := range t.buckets {
		for _, ni := range t.buckets[i].nodes {
			ni.Endpoints = slices.Clone(ni.Endpoints)
			all = append(all, ni)
		}
	}
	t.mu.RUnlock()

	SortByDistance(all, target)
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// OurGroup returns the GroupSize peers closest to us.
func (t *Table) OurGroup() []NodeInfo { return t.Closest(t.self, GroupSize) }

// InOurGroup reports whether name is at least as close to us as the
// furthest member of our group, or the group is not yet full.
func (t *Table) InOurGroup(name types.Name) bool {
	group := t.OurGroup()
	if len(group) < GroupSize {
		return true
	}
	furthest := group[len(group)-1].Name()
	return !types.Closer(t.self, furthest, name)
}

// SortByDistance sorts nodes by XOR distance to target.
func SortByDistance(nodes []NodeInfo, target types.Name) {
	slices.SortFunc(nodes, func(a, b NodeInfo) int {
		da := types.Xor(a.Name(), target)
		db := types.Xor(b.Name(), target)
		return da.Compare(db)
	})
}

// Size returns total number of nodes in the table.
func (t *Table) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sizeLocked()
}

func (t *Table) sizeLocked() int {
	n := 0
	for i := range t.buckets {
		n += len(t.buckets[i].nodes)
	}
	return n
}

// BucketSize returns number of nodes in a bucket.
func (t *Table) BucketSize(bucket int) int {
	if bucket < 0 || bucket >= len(t.buckets) {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.buckets[bucket].nodes)
}

// SortPublicIDs sorts credentials by XOR distance of their names to target.
func SortPublicIDs(ids []types.PublicID, target types.Name) {
	slices.SortFunc(ids, func(a, b types.PublicID) int {
		return types.Xor(a.Name, target).Compare(types.Xor(b.Name, target))
	})
}
