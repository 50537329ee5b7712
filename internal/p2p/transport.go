package p2p

import (
	"go.uber.org/zap"

	"routing-node/internal/crypto/noiseconn"
	"routing-node/internal/netx"
	"routing-node/internal/types"
)

// Transport is everything the node needs from the connection layer.
type Transport interface {
	StartListening(endpoints []types.Endpoint, beaconPort *uint16) (netx.Listening, error)
	Connect(ep types.Endpoint)
	Send(ep types.Endpoint, data []byte) error
	Drop(ep types.Endpoint)
	Close() error
}

// TCPTransport is the default TransportFactory.
func TCPTransport(key noiseconn.Keypair, events chan<- netx.Event, log *zap.Logger) Transport {
	return netx.NewTCPManager(key, events, log)
}

var _ Transport = (*netx.TCPManager)(nil)
