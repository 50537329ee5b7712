package p2p

import (
	"go.uber.org/zap"

	"routing-node/internal/proto"
)

// refresh runs on every tick of the refresh interval. Peers we have not
// heard from within the freshness window are disconnected, the caches are
// swept and every connected peer is asked for our group, which doubles as
// a keepalive.
func (n *Node) refresh() {
	for _, name := range n.fresh.Stale() {
		eps := n.index.Endpoints(name)
		n.log.Debug("peer stale", zap.Stringer("peer", name), zap.Int("connections", len(eps)))
		n.fresh.Remove(name)
		for _, ep := range eps {
			n.transport.Drop(ep)
		}
	}

	swept := n.filter.Sweep()
	expired := n.publicIDs.Sweep()
	if swept > 0 || expired > 0 {
		n.log.Debug("caches swept", zap.Int("filter", swept), zap.Int("public_ids", expired))
	}

	req := &proto.FindGroup{Target: n.id.Name}
	for _, name := range n.index.Names() {
		eps := n.index.Endpoints(name)
		if len(eps) == 0 {
			continue
		}
		if err := n.sendHop(eps[0], req); err != nil {
			n.drop("group refresh", eps[0], err)
		}
	}
}
