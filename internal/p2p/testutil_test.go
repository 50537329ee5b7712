package p2p

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"routing-node/internal/crypto"
	"routing-node/internal/crypto/noiseconn"
	"routing-node/internal/membrane"
	"routing-node/internal/netx"
	"routing-node/internal/proto"
	"routing-node/internal/types"
)

type sent struct {
	ep   types.Endpoint
	data []byte
}

// stubTransport records what the node sends and lets the test inject events.
type stubTransport struct {
	events    chan<- netx.Event
	listenErr error

	mu      sync.Mutex
	sent    []sent
	dropped []types.Endpoint
	dialed  []types.Endpoint
	closed  bool
}

func (s *stubTransport) StartListening(eps []types.Endpoint, beacon *uint16) (netx.Listening, error) {
	if s.listenErr != nil {
		return netx.Listening{}, s.listenErr
	}
	return netx.Listening{Endpoints: []types.Endpoint{types.TCP("127.0.0.1:7000")}}, nil
}

func (s *stubTransport) Connect(ep types.Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialed = append(s.dialed, ep)
}

func (s *stubTransport) Send(ep types.Endpoint, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sent{ep: ep, data: data})
	return nil
}

func (s *stubTransport) Drop(ep types.Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped = append(s.dropped, ep)
}

func (s *stubTransport) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

func (s *stubTransport) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *stubTransport) inject(e netx.Event) { s.events <- e }

func (s *stubTransport) sentTo(ep types.Endpoint) []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sent
	for _, m := range s.sent {
		if m.ep == ep {
			out = append(out, m)
		}
	}
	return out
}

func (s *stubTransport) wasDropped(ep types.Endpoint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.dropped {
		if d == ep {
			return true
		}
	}
	return false
}

type nodeTestOpt func(*Config)

func withLogger(l *zap.Logger) nodeTestOpt {
	return func(cfg *Config) { cfg.Logger = l }
}

func withListenErr(err error) nodeTestOpt {
	return func(cfg *Config) {
		inner := cfg.Transport
		cfg.Transport = func(key noiseconn.Keypair, events chan<- netx.Event, log *zap.Logger) Transport {
			t := inner(key, events, log).(*stubTransport)
			t.listenErr = err
			return t
		}
	}
}

func withBucketSize(k int) nodeTestOpt {
	return func(cfg *Config) { cfg.BucketSize = k }
}

func withMetrics(m Metrics) nodeTestOpt {
	return func(cfg *Config) { cfg.Metrics = m }
}

func withGenesis(f membrane.Factory) nodeTestOpt {
	return func(cfg *Config) { cfg.Genesis = f }
}

type testNode struct {
	*Node
	stub  *stubTransport
	clock *clock.Mock
}

// newTestNode builds a node on a stub transport and a mock clock and closes
// it when the test ends. Run is not started.
func newTestNode(t *testing.T, opts ...nodeTestOpt) *testNode {
	t.Helper()
	var stub *stubTransport
	mock := clock.NewMock()
	cfg := DefaultConfig()
	cfg.BeaconPort = nil
	cfg.Clock = mock
	cfg.Transport = func(_ noiseconn.Keypair, events chan<- netx.Event, _ *zap.Logger) Transport {
		stub = &stubTransport{events: events}
		return stub
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	n, err := New(crypto.MustInit(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })
	return &testNode{Node: n, stub: stub, clock: mock}
}

// run starts the event loop in the background.
func (tn *testNode) run(t *testing.T) {
	t.Helper()
	go func() { _ = tn.Run(context.Background()) }()
}

// recorder is a persona that keeps every delivery.
type recorder struct {
	mu  sync.Mutex
	got []membrane.Delivery
	id  types.ID
}

func (r *recorder) Handle(_ context.Context, d membrane.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, d)
	return nil
}

func (r *recorder) deliveries() []membrane.Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]membrane.Delivery(nil), r.got...)
}

// peer is a remote identity driven by hand from the test. It advertises
// listen, or ep when listen is empty.
type peer struct {
	id     types.ID
	ep     types.Endpoint
	listen []types.Endpoint
}

func newPeer(t *testing.T, ep string) peer {
	t.Helper()
	id, err := crypto.MustInit().NewIdentity()
	require.NoError(t, err)
	return peer{id: id, ep: types.TCP(ep)}
}

func (p peer) frame(t *testing.T, id types.MessageID, dest types.Name, inner proto.Message) []byte {
	t.Helper()
	rm := proto.RoutingMessage{MessageID: id, Source: p.id.Name, Destination: dest}
	require.NoError(t, rm.Seal(inner))
	data, err := proto.Encode(&rm)
	require.NoError(t, err)
	return data
}

func (p peer) advertises() []types.Endpoint {
	if len(p.listen) > 0 {
		return p.listen
	}
	return []types.Endpoint{p.ep}
}

func (p peer) connectRequest(t *testing.T, id types.MessageID) []byte {
	return p.frame(t, id, types.Name{}, &proto.ConnectRequest{Requester: p.id.Public(), Endpoints: p.advertises()})
}

// connection is the event the transport reports once p finished the
// handshake on ep.
func (p peer) connection(kind netx.EventKind, ep types.Endpoint) netx.Event {
	return netx.Event{Kind: kind, Endpoint: ep, RemoteStatic: p.id.EncryptPub[:]}
}

// introduce connects p to tn and waits until the node has answered the
// introduction or dropped the connection.
func introduce(t *testing.T, tn *testNode, p peer, id types.MessageID) {
	t.Helper()
	tn.stub.inject(p.connection(netx.EventAccepted, p.ep))
	tn.stub.inject(netx.Event{Kind: netx.EventNewMessage, Endpoint: p.ep, Data: p.connectRequest(t, id)})
	require.Eventually(t, func() bool {
		return len(tn.stub.sentTo(p.ep)) >= 2 || tn.stub.wasDropped(p.ep)
	}, 2*time.Second, 5*time.Millisecond)
}

func decodeInner(t *testing.T, data []byte) (proto.RoutingMessage, uint64) {
	t.Helper()
	var rm proto.RoutingMessage
	require.NoError(t, proto.Decode(data, &rm))
	tag, err := proto.PeekTag(rm.Payload)
	require.NoError(t, err)
	return rm, tag
}

var errListen = errors.New("bind: address in use")
