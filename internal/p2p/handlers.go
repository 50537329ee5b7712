package p2p

import (
	"slices"

	"go.uber.org/zap"

	"routing-node/internal/membrane"
	"routing-node/internal/netx"
	"routing-node/internal/proto"
	"routing-node/internal/types"
)

func (n *Node) handleEvent(e netx.Event) {
	switch e.Kind {
	case netx.EventNewConnection:
		n.mu.Lock()
		if n.bootstrap == nil {
			ep := e.Endpoint
			n.bootstrap = &ep
		}
		n.mu.Unlock()
		n.addLink(e, true)
		n.sendConnectRequest(e.Endpoint)
	case netx.EventAccepted:
		n.addLink(e, false)
		n.sendConnectRequest(e.Endpoint)
	case netx.EventLostConnection:
		n.handleLostConnection(e.Endpoint)
	case netx.EventNewMessage:
		n.handleData(e.Endpoint, e.Data)
	case netx.EventDialFailed:
		n.log.Debug("dial failed", zap.Stringer("endpoint", e.Endpoint))
		if n.cfg.DialFailed != nil {
			n.cfg.DialFailed(e.Endpoint)
		}
	default:
		n.drop("unknown event", e.Endpoint, nil)
	}
}

// addLink remembers the key the peer proved during the handshake. Without a
// well-formed key no link is kept and the introduction on ep is refused.
func (n *Node) addLink(e netx.Event, outbound bool) {
	l := link{outbound: outbound}
	if len(e.RemoteStatic) != len(l.remote) {
		delete(n.links, e.Endpoint)
		return
	}
	copy(l.remote[:], e.RemoteStatic)
	n.links[e.Endpoint] = l
}

func (n *Node) handleData(ep types.Endpoint, data []byte) {
	n.metrics.IncFrame(FrameReceived)
	tag, err := proto.PeekTag(data)
	if err != nil {
		n.malformed("undecodable frame", ep, err)
		return
	}
	if tag != proto.TagRoutingMessage {
		n.malformed("not a routing message", ep, nil)
		return
	}
	var rm proto.RoutingMessage
	if err := proto.Decode(data, &rm); err != nil {
		n.malformed("undecodable frame", ep, err)
		return
	}
	fp, err := rm.Fingerprint()
	if err != nil {
		n.malformed("undecodable payload", ep, err)
		return
	}
	if n.filter.Seen(fp) {
		n.metrics.IncFrame(FrameDuplicate)
		n.drop("duplicate", ep, nil)
		return
	}
	if from, ok := n.index.Lookup(ep); ok {
		n.fresh.Touch(from)
	}

	if !rm.Destination.IsZero() && rm.Destination != n.id.Name {
		if n.forward(ep, &rm, data) {
			return
		}
	}

	inner, err := proto.PeekTag(rm.Payload)
	if err != nil {
		n.malformed("undecodable payload", ep, err)
		return
	}
	switch inner {
	case proto.TagConnectRequest:
		var req proto.ConnectRequest
		if err := rm.Open(&req); err != nil {
			n.drop("bad connect request", ep, err)
			return
		}
		n.handleConnect(ep, req.Requester, req.Endpoints, true)
	case proto.TagConnectResponse:
		var rsp proto.ConnectResponse
		if err := rm.Open(&rsp); err != nil {
			n.drop("bad connect response", ep, err)
			return
		}
		n.handleConnect(ep, rsp.Responder, rsp.Endpoints, false)
	case proto.TagFindGroup:
		var fg proto.FindGroup
		if err := rm.Open(&fg); err != nil {
			n.drop("bad find group", ep, err)
			return
		}
		n.handleFindGroup(ep, &rm, fg)
	case proto.TagFindGroupResponse:
		var rsp proto.FindGroupResponse
		if err := rm.Open(&rsp); err != nil {
			n.drop("bad find group response", ep, err)
			return
		}
		if err := rsp.Verify(); err != nil {
			n.drop("unverifiable group", ep, err)
			return
		}
		for _, member := range rsp.Group {
			if member.Name != n.id.Name {
				n.publicIDs.Add(member)
			}
		}
		n.deliver(ep, &rm, inner)
	default:
		n.deliver(ep, &rm, inner)
	}
}

// handleFindGroup answers with our view of the group around the target.
// Hop-level requests are answered on the connection they arrived on.
func (n *Node) handleFindGroup(ep types.Endpoint, rm *proto.RoutingMessage, fg proto.FindGroup) {
	rsp := &proto.FindGroupResponse{Target: fg.Target, Group: n.groupFor(fg.Target)}
	var err error
	if rm.Destination.IsZero() {
		err = n.sendHop(ep, rsp)
	} else {
		_, err = n.SendTo(rm.Source, rsp)
	}
	if err != nil {
		n.drop("find group reply", ep, err)
	}
}

func (n *Node) deliver(ep types.Endpoint, rm *proto.RoutingMessage, tag uint64) {
	n.mu.Lock()
	inbox := n.inbox
	n.mu.Unlock()
	if inbox == nil {
		n.drop("no membrane", ep, nil)
		return
	}
	d := membrane.Delivery{
		Source:    rm.Source,
		MessageID: rm.MessageID,
		Tag:       tag,
		Payload:   append([]byte(nil), rm.Payload...),
	}
	select {
	case inbox <- d:
		n.metrics.IncFrame(FrameDelivered)
	default:
		n.metrics.IncFrame(FrameOverflow)
		n.drop("membrane inbox full", ep, nil)
	}
}

func (n *Node) handleLostConnection(ep types.Endpoint) {
	n.mu.Lock()
	if n.bootstrap != nil && *n.bootstrap == ep {
		n.bootstrap = nil
	}
	n.mu.Unlock()
	delete(n.links, ep)

	name, left, ok := n.index.RemoveEndpoint(ep)
	if !ok {
		return
	}
	n.relays.DropEndpoint(ep)
	if !slices.Contains(n.advertised[name], ep) {
		n.table.DropEndpoint(name, ep)
	}
	if left > 0 {
		return
	}
	n.log.Debug("peer gone", zap.Stringer("peer", name))
	_, inTable := n.table.DropNode(name)
	n.relays.Drop(name)
	n.fresh.Remove(name)
	delete(n.advertised, name)
	if inTable {
		n.promoteRelays()
	}
	n.metrics.SetViewSizes(n.table.Size(), n.relays.Len())
}
