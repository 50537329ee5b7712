package bootstrap

import (
	"context"
	"time"

	"routing-node/internal/netx"
	"routing-node/internal/types"
)

// BeaconSource finds peers answering the UDP beacon on the local network.
type BeaconSource struct {
	Port    uint16
	Timeout time.Duration
}

func (s BeaconSource) Name() string { return "beacon" }

func (s BeaconSource) Discover(ctx context.Context) ([]types.Endpoint, error) {
	port := s.Port
	if port == 0 {
		port = netx.DefaultBeaconPort
	}
	return netx.DiscoverBeacon(ctx, port, s.Timeout)
}
