// Package p2p is the routing node: it owns the transport, the routing and
// relay views and the expiring caches, and hands application messages to a
// membrane-isolated persona.
package p2p

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"routing-node/internal/cache"
	"routing-node/internal/crypto"
	"routing-node/internal/crypto/noiseconn"
	"routing-node/internal/membrane"
	"routing-node/internal/netx"
	"routing-node/internal/relay"
	"routing-node/internal/routing"
	"routing-node/internal/types"
)

var (
	ErrMembraneRunning = errors.New("p2p: membrane already running")
	ErrNoPersona       = errors.New("p2p: no persona factory configured")
	ErrAlreadyRunning  = errors.New("p2p: node already running")
	ErrNoRoute         = errors.New("p2p: no route to destination")
)

type State int32

const (
	StateConstructed State = iota
	StateListening
	StateMembraneSpawned
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateListening:
		return "listening"
	case StateMembraneSpawned:
		return "membrane_spawned"
	default:
		return "unknown"
	}
}

type Node struct {
	cfg     Config
	log     *zap.Logger
	clock   clock.Clock
	metrics Metrics
	id      types.ID

	transport Transport
	events    chan netx.Event

	table     *routing.Table
	relays    *relay.Map
	index     *ConnectionIndex
	filter    *cache.MessageFilter
	publicIDs *cache.PublicIDs
	fresh     *cache.Freshness

	// links and advertised are only touched by the Run goroutine.
	links      map[types.Endpoint]link
	advertised map[types.Name][]types.Endpoint

	nextID atomic.Uint32

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	accepting  []types.Endpoint
	beaconPort *uint16
	bootstrap  *types.Endpoint
	spawned    bool
	inbox      chan<- membrane.Delivery
	running    bool
	runDone    chan struct{}
	closed     bool
}

// link is what the transport told us about one live connection.
type link struct {
	remote   [32]byte
	outbound bool
}

// New builds a node and starts listening. A nil crypto context is a
// programming error and panics. A transport that cannot listen is logged and
// the node carries on with no accepting endpoints.
func New(cc *crypto.Context, cfg Config) (*Node, error) {
	if cc == nil {
		panic("p2p: New called without a crypto context")
	}
	cfg = cfg.withDefaults()

	id, err := cc.NewIdentity()
	if err != nil {
		return nil, err
	}

	log := cfg.Logger.With(zap.String("node", id.Name.Short()))
	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{
		cfg:       cfg,
		log:       log,
		clock:     cfg.Clock,
		metrics:   cfg.Metrics,
		id:        id,
		events:    make(chan netx.Event, cfg.EventBuffer),
		table:     routing.NewWithBucketSize(id.Name, cfg.BucketSize),
		relays:    relay.New(id.Name, relay.WithCapacity(cfg.RelayCapacity)),
		index:     NewConnectionIndex(),
		filter:    cache.NewMessageFilter(cfg.Clock, cfg.FilterExpiry),
		publicIDs: cache.NewPublicIDs(cfg.Clock, cfg.PublicIDExpiry, cfg.PublicIDCapacity),
		fresh:     cache.NewFreshness(cfg.Clock, cfg.FreshnessWindow),

		links:      make(map[types.Endpoint]link),
		advertised: make(map[types.Name][]types.Endpoint),

		ctx:     ctx,
		cancel:  cancel,
		runDone: make(chan struct{}),
	}
	n.nextID.Store(rand.Uint32())

	key := noiseconn.Keypair{Private: id.EncryptKey(), Public: id.EncryptPub}
	n.transport = cfg.Transport(key, n.events, log)

	l, err := n.transport.StartListening(cfg.Listen, cfg.BeaconPort)
	if err != nil {
		log.Warn("failed to start listening",
			zap.Stringers("endpoints", cfg.Listen),
			zap.Error(err))
		return n, nil
	}
	n.accepting = l.Endpoints
	n.beaconPort = l.BeaconPort
	n.state = StateListening
	log.Info("listening", zap.Stringers("endpoints", l.Endpoints))
	return n, nil
}

// Name returns this node's name.
func (n *Node) Name() types.Name { return n.id.Name }

// PublicID returns this node's public credential.
func (n *Node) PublicID() types.PublicID { return n.id.Public() }

func (n *Node) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// AcceptingOn returns the endpoints the transport bound; empty when
// listening failed.
func (n *Node) AcceptingOn() []types.Endpoint {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.accepting)
}

// BeaconPort returns the bound beacon port, or nil.
func (n *Node) BeaconPort() *uint16 {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.beaconPort == nil {
		return nil
	}
	p := *n.beaconPort
	return &p
}

// RunMembrane creates the persona from the configured factory and starts it
// in its own goroutine. It can only succeed once per node. The factory runs
// without the node lock held, so it may call back into the node.
func (n *Node) RunMembrane() error {
	n.mu.Lock()
	if n.spawned {
		n.mu.Unlock()
		return ErrMembraneRunning
	}
	if n.cfg.Genesis == nil {
		n.mu.Unlock()
		return ErrNoPersona
	}
	if n.closed {
		n.mu.Unlock()
		return netx.ErrClosed
	}
	n.spawned = true
	n.mu.Unlock()

	persona := n.cfg.Genesis.CreatePersona(n.id.Clone())
	inbox := make(chan membrane.Delivery, n.cfg.InboxBuffer)
	m := membrane.New(persona, inbox, n.log)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return netx.ErrClosed
	}
	n.inbox = inbox
	n.state = StateMembraneSpawned
	go m.Run(n.ctx)
	n.log.Info("membrane spawned", zap.Stringer("membrane", m.ID()))
	return nil
}

// Run consumes transport events until ctx is done, the node is closed or
// the transport closes its channel. Bootstrap endpoints are dialed first.
func (n *Node) Run(ctx context.Context) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return netx.ErrClosed
	}
	if n.running {
		n.mu.Unlock()
		return ErrAlreadyRunning
	}
	n.running = true
	n.mu.Unlock()
	defer close(n.runDone)

	for _, ep := range n.cfg.Bootstrap {
		n.transport.Connect(ep)
	}

	ticker := n.clock.Ticker(n.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-n.ctx.Done():
			return nil
		case e, ok := <-n.events:
			if !ok {
				return nil
			}
			n.handleEvent(e)
		case <-ticker.C:
			n.refresh()
		}
	}
}

// Close shuts the transport down first so it stops producing, then stops the
// node and finally closes the membrane inbox.
func (n *Node) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	running := n.running
	n.mu.Unlock()

	err := n.transport.Close()
	n.cancel()
	if running {
		<-n.runDone
	}

	n.mu.Lock()
	if n.inbox != nil {
		close(n.inbox)
	}
	n.mu.Unlock()

	if err != nil {
		return fmt.Errorf("p2p: close transport: %w", err)
	}
	return nil
}

// Connect asks the transport to dial ep.
func (n *Node) Connect(ep types.Endpoint) { n.transport.Connect(ep) }

// Contacts returns the routing table entries, closest first.
func (n *Node) Contacts() []routing.NodeInfo {
	return n.table.Closest(n.id.Name, n.table.Size())
}

// Relayed returns the names we currently relay for.
func (n *Node) Relayed() []types.Name { return n.relays.Names() }

// Connected returns the names with at least one live connection.
func (n *Node) Connected() []types.Name { return n.index.Names() }

// KnownPublicID returns a cached credential.
func (n *Node) KnownPublicID(name types.Name) (types.PublicID, bool) {
	return n.publicIDs.Get(name)
}

func (n *Node) nextMessageID() types.MessageID {
	return types.MessageID(n.nextID.Add(1))
}
