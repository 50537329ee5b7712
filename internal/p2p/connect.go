package p2p

import (
	"slices"

	"go.uber.org/zap"

	"routing-node/internal/proto"
	"routing-node/internal/routing"
	"routing-node/internal/types"
)

func (n *Node) sendConnectRequest(ep types.Endpoint) {
	req := &proto.ConnectRequest{Requester: n.id.Public(), Endpoints: n.AcceptingOn()}
	if err := n.sendHop(ep, req); err != nil {
		n.drop("connect request", ep, err)
	}
}

// handleConnect processes both halves of the introduction. The peer's
// credential is verified against the key it proved in the handshake and
// cached, the connection is indexed and the peer is admitted to the table,
// or failing that to the relay map. A peer that fits in neither is
// disconnected.
func (n *Node) handleConnect(ep types.Endpoint, pub types.PublicID, advertised []types.Endpoint, isRequest bool) {
	if err := pub.Validate(); err != nil {
		n.drop("invalid credential", ep, err)
		n.transport.Drop(ep)
		return
	}
	if pub.Name == n.id.Name {
		n.drop("connected to ourselves", ep, nil)
		n.transport.Drop(ep)
		return
	}

	if l, ok := n.links[ep]; !ok || l.remote != pub.EncryptKey {
		n.drop("credential does not match connection key", ep, nil)
		n.transport.Drop(ep)
		return
	}
	if !n.index.Add(ep, pub.Name) {
		n.drop("connection already introduced as another peer", ep, nil)
		n.transport.Drop(ep)
		return
	}
	n.publicIDs.Add(pub)
	n.fresh.Touch(pub.Name)
	n.advertised[pub.Name] = slices.Clone(advertised)

	if !n.admit(pub, ep) {
		n.log.Debug("no room for peer", zap.Stringer("peer", pub.Name))
		if _, left, _ := n.index.RemoveEndpoint(ep); left == 0 {
			n.fresh.Remove(pub.Name)
			delete(n.advertised, pub.Name)
		}
		n.transport.Drop(ep)
		return
	}

	n.metrics.SetViewSizes(n.table.Size(), n.relays.Len())

	if isRequest {
		rsp := &proto.ConnectResponse{Responder: n.id.Public(), Endpoints: n.AcceptingOn()}
		if err := n.sendHop(ep, rsp); err != nil {
			n.drop("connect response", ep, err)
		}
	}
}

func (n *Node) admit(pub types.PublicID, ep types.Endpoint) bool {
	name := pub.Name
	if n.table.Has(name) || n.table.WouldAdmit(name) {
		ni := routing.NodeInfo{Public: pub, Endpoints: n.tableEndpoints(name, ep), LastSeen: n.clock.Now()}
		if n.table.AddNode(ni) {
			n.relays.Drop(name)
			n.log.Debug("peer admitted", zap.Stringer("peer", name), zap.Int("table", n.table.Size()))
			return true
		}
	}
	if err := n.relays.Add(name, ep); err != nil {
		return false
	}
	n.log.Debug("relaying for peer", zap.Stringer("peer", name))
	return true
}

// promoteRelays moves relayed peers into the table where room opened up.
// A relay entry is only removed once its table admission succeeded.
func (n *Node) promoteRelays() {
	names := n.relays.Names()
	slices.SortFunc(names, func(a, b types.Name) int {
		return types.Xor(n.id.Name, a).Compare(types.Xor(n.id.Name, b))
	})
	for _, name := range names {
		if !n.table.WouldAdmit(name) {
			continue
		}
		pub, ok := n.publicIDs.Get(name)
		if !ok {
			continue
		}
		ni := routing.NodeInfo{Public: pub, Endpoints: n.tableEndpoints(name, n.relays.Endpoints(name)...), LastSeen: n.clock.Now()}
		if !n.table.AddNode(ni) {
			continue
		}
		n.relays.Drop(name)
		n.log.Debug("relay promoted", zap.Stringer("peer", name))
	}
}

// tableEndpoints is what the table records for name: the endpoints the peer
// advertised plus any of conns we dialed ourselves. The source address of an
// inbound connection is not a place the peer can be reached.
func (n *Node) tableEndpoints(name types.Name, conns ...types.Endpoint) []types.Endpoint {
	eps := slices.Clone(n.advertised[name])
	for _, ep := range conns {
		if n.links[ep].outbound && !slices.Contains(eps, ep) {
			eps = append(eps, ep)
		}
	}
	return eps
}
