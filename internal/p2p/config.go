package p2p

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"routing-node/internal/cache"
	"routing-node/internal/crypto/noiseconn"
	"routing-node/internal/membrane"
	"routing-node/internal/netx"
	"routing-node/internal/relay"
	"routing-node/internal/routing"
	"routing-node/internal/types"
)

// TransportFactory builds the node's transport. The transport becomes the
// only producer on events and must close it when it is closed.
type TransportFactory func(key noiseconn.Keypair, events chan<- netx.Event, log *zap.Logger) Transport

type Config struct {
	Listen     []types.Endpoint // empty: one ephemeral tcp port
	BeaconPort *uint16          // nil: no beacon
	Bootstrap  []types.Endpoint // dialed when Run starts

	Transport TransportFactory
	Genesis   membrane.Factory
	Logger    *zap.Logger
	Clock     clock.Clock
	Metrics   Metrics

	// DialFailed, if set, is called from the event loop for every endpoint
	// the transport could not connect to.
	DialFailed func(types.Endpoint)

	EventBuffer int
	// InboxBuffer bounds the membrane inbox. Deliveries that find it full
	// are dropped and counted as FrameOverflow.
	InboxBuffer int

	FilterExpiry     time.Duration
	PublicIDExpiry   time.Duration
	PublicIDCapacity int
	FreshnessWindow  time.Duration
	RefreshInterval  time.Duration

	BucketSize    int
	RelayCapacity int
}

func DefaultConfig() Config {
	port := netx.DefaultBeaconPort
	return Config{
		BeaconPort:       &port,
		Transport:        TCPTransport,
		Logger:           zap.NewNop(),
		Metrics:          NoopMetrics{},
		Clock:            clock.New(),
		EventBuffer:      128,
		InboxBuffer:      64,
		FilterExpiry:     cache.DefaultFilterExpiry,
		PublicIDExpiry:   cache.DefaultPublicIDExpiry,
		PublicIDCapacity: cache.DefaultPublicIDCapacity,
		FreshnessWindow:  cache.DefaultFreshnessWindow,
		RefreshInterval:  30 * time.Second,
		BucketSize:       routing.BucketSize,
		RelayCapacity:    relay.DefaultCapacity,
	}
}

// withDefaults fills zero fields so callers can pass a partial Config.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Transport == nil {
		c.Transport = d.Transport
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
	if c.Metrics == nil {
		c.Metrics = d.Metrics
	}
	if c.Clock == nil {
		c.Clock = d.Clock
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = d.EventBuffer
	}
	if c.InboxBuffer <= 0 {
		c.InboxBuffer = d.InboxBuffer
	}
	if c.FilterExpiry <= 0 {
		c.FilterExpiry = d.FilterExpiry
	}
	if c.PublicIDExpiry <= 0 {
		c.PublicIDExpiry = d.PublicIDExpiry
	}
	if c.PublicIDCapacity <= 0 {
		c.PublicIDCapacity = d.PublicIDCapacity
	}
	if c.FreshnessWindow <= 0 {
		c.FreshnessWindow = d.FreshnessWindow
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = d.RefreshInterval
	}
	if c.BucketSize <= 0 {
		c.BucketSize = d.BucketSize
	}
	if c.RelayCapacity <= 0 {
		c.RelayCapacity = d.RelayCapacity
	}
	return c
}
