package p2p

import (
	"fmt"

	"routing-node/internal/proto"
	"routing-node/internal/routing"
	"routing-node/internal/types"
)

// sendHop sends inner to the peer on ep, addressed to nobody in particular.
func (n *Node) sendHop(ep types.Endpoint, inner proto.Message) error {
	data, err := n.seal(types.Name{}, inner)
	if err != nil {
		return err
	}
	return n.transport.Send(ep, data)
}

// SendTo routes inner towards dest and returns the message id used.
func (n *Node) SendTo(dest types.Name, inner proto.Message) (types.MessageID, error) {
	ep, err := n.route(dest, types.Endpoint{})
	if err != nil {
		return 0, err
	}
	rm := proto.RoutingMessage{MessageID: n.nextMessageID(), Source: n.id.Name, Destination: dest}
	data, err := n.encode(&rm, inner)
	if err != nil {
		return 0, err
	}
	return rm.MessageID, n.transport.Send(ep, data)
}

// FindGroup asks the network for the group around target. Answers are
// cached and handed to the membrane.
func (n *Node) FindGroup(target types.Name) (types.MessageID, error) {
	return n.SendTo(target, &proto.FindGroup{Target: target})
}

func (n *Node) seal(dest types.Name, inner proto.Message) ([]byte, error) {
	rm := proto.RoutingMessage{MessageID: n.nextMessageID(), Source: n.id.Name, Destination: dest}
	return n.encode(&rm, inner)
}

// encode frames inner and records the frame in our own filter so echoes of
// it are dropped.
func (n *Node) encode(rm *proto.RoutingMessage, inner proto.Message) ([]byte, error) {
	if err := rm.Seal(inner); err != nil {
		return nil, fmt.Errorf("seal %T: %w", inner, err)
	}
	if fp, err := rm.Fingerprint(); err == nil {
		n.filter.Add(fp)
	}
	return proto.Encode(rm)
}

// route picks the endpoint to send a message for dest on: a direct
// connection, then the connected table peer closest to dest that is closer
// than we are, then the bootstrap connection while the table is empty.
// from is never chosen.
func (n *Node) route(dest types.Name, from types.Endpoint) (types.Endpoint, error) {
	for _, ep := range n.index.Endpoints(dest) {
		if ep != from {
			return ep, nil
		}
	}
	for _, ni := range n.table.Closest(dest, routing.GroupSize) {
		if !types.Closer(dest, ni.Name(), n.id.Name) {
			break
		}
		for _, ep := range n.index.Endpoints(ni.Name()) {
			if ep != from {
				return ep, nil
			}
		}
	}
	if n.table.Size() == 0 {
		n.mu.Lock()
		b := n.bootstrap
		n.mu.Unlock()
		if b != nil && *b != from {
			return *b, nil
		}
	}
	return types.Endpoint{}, fmt.Errorf("%w: %s", ErrNoRoute, dest)
}

// forward passes a message addressed to someone else one hop on. Traffic
// from relayed peers spends their rate budget. It returns false when nobody
// is closer to the destination than we are, so the caller handles the
// message itself.
func (n *Node) forward(ep types.Endpoint, rm *proto.RoutingMessage, data []byte) bool {
	if from, ok := n.index.Lookup(ep); ok && n.relays.Contains(from) && !n.relays.Allow(from) {
		n.drop("relay rate limit", ep, nil)
		return true
	}
	next, err := n.route(rm.Destination, ep)
	if err != nil {
		return false
	}
	if err := n.transport.Send(next, data); err != nil {
		n.drop("forward", next, err)
		return true
	}
	n.metrics.IncFrame(FrameForwarded)
	return true
}

// groupFor returns our view of the GroupSize peers closest to target,
// ourselves included.
func (n *Node) groupFor(target types.Name) []types.PublicID {
	closest := n.table.Closest(target, routing.GroupSize)
	group := make([]types.PublicID, 0, len(closest)+1)
	group = append(group, n.id.Public())
	for _, ni := range closest {
		group = append(group, ni.Public)
	}
	routing.SortPublicIDs(group, target)
	if len(group) > routing.GroupSize {
		group = group[:routing.GroupSize]
	}
	return group
}
