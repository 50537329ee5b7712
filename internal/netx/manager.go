// Package netx is the connection manager: it listens, dials, secures every
// stream with noise and reports connection and data events on one channel.
package netx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"routing-node/internal/crypto/noiseconn"
	"routing-node/internal/types"
)

const (
	DefaultBeaconPort uint16 = 5483

	handshakeTimeout = 5 * time.Second
	dialTimeout      = 5 * time.Second
)

var (
	ErrClosed          = errors.New("netx: manager closed")
	ErrUnknownEndpoint = errors.New("netx: no connection to endpoint")
	ErrListen          = errors.New("netx: listen failed")
)

// TCPManager owns listeners and connections. It is the only producer on its
// event channel and closes the channel once Close has drained everything.
type TCPManager struct {
	key    noiseconn.Keypair
	events chan<- Event
	log    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	closed    bool
	listeners []net.Listener
	beacon    *beacon
	conns     map[types.Endpoint]*noiseconn.SecureConn
}

func NewTCPManager(key noiseconn.Keypair, events chan<- Event, log *zap.Logger) *TCPManager {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TCPManager{
		key:    key,
		events: events,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[types.Endpoint]*noiseconn.SecureConn),
	}
}

// StartListening binds every tcp endpoint (":0" when none are given) and, if
// beaconPort is set, a UDP beacon that advertises the first listener. A
// beacon failure is logged and reported as a nil BeaconPort; a listener
// failure closes what was bound and returns ErrListen.
func (m *TCPManager) StartListening(endpoints []types.Endpoint, beaconPort *uint16) (Listening, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Listening{}, ErrClosed
	}

	if len(endpoints) == 0 {
		endpoints = []types.Endpoint{types.TCP(":0")}
	}

	var bound []net.Listener
	for _, ep := range endpoints {
		if ep.Protocol != "tcp" {
			closeAll(bound)
			return Listening{}, fmt.Errorf("%w: %s: unsupported protocol", ErrListen, ep)
		}
		l, err := net.Listen("tcp", ep.Addr)
		if err != nil {
			closeAll(bound)
			return Listening{}, fmt.Errorf("%w: %s: %v", ErrListen, ep, err)
		}
		bound = append(bound, l)
	}

	out := Listening{Endpoints: make([]types.Endpoint, 0, len(bound))}
	for _, l := range bound {
		m.listeners = append(m.listeners, l)
		out.Endpoints = append(out.Endpoints, types.TCP(l.Addr().String()))
		m.wg.Add(1)
		go m.acceptLoop(l)
	}

	if beaconPort != nil {
		tcpPort := uint16(bound[0].Addr().(*net.TCPAddr).Port)
		b, err := startBeacon(*beaconPort, tcpPort)
		if err != nil {
			m.log.Warn("beacon disabled", zap.Uint16("port", *beaconPort), zap.Error(err))
		} else {
			m.beacon = b
			port := b.port()
			out.BeaconPort = &port
			m.wg.Add(1)
			go func() {
				defer m.wg.Done()
				b.serve(m.ctx)
			}()
		}
	}
	return out, nil
}

func closeAll(ls []net.Listener) {
	for _, l := range ls {
		_ = l.Close()
	}
}

func (m *TCPManager) acceptLoop(l net.Listener) {
	defer m.wg.Done()
	for {
		raw, err := l.Accept()
		if err != nil {
			if m.ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				m.log.Debug("accept error", zap.Error(err))
			}
			return
		}
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.setup(raw, false)
		}()
	}
}

// Connect dials ep in the background. Success is reported as
// EventNewConnection, failure of the dial or the handshake as
// EventDialFailed.
func (m *TCPManager) Connect(ep types.Endpoint) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		d := net.Dialer{Timeout: dialTimeout}
		raw, err := d.DialContext(m.ctx, "tcp", ep.Addr)
		if err != nil {
			m.log.Debug("dial failed", zap.Stringer("endpoint", ep), zap.Error(err))
			m.emit(Event{Kind: EventDialFailed, Endpoint: ep})
			return
		}
		if !m.setup(raw, true) {
			m.emit(Event{Kind: EventDialFailed, Endpoint: ep})
		}
	}()
}

// setup secures raw and serves it until it fails. It returns false only
// when the handshake did not complete.
func (m *TCPManager) setup(raw net.Conn, outbound bool) bool {
	_ = raw.SetDeadline(time.Now().Add(handshakeTimeout))
	sc, err := noiseconn.Handshake(raw, m.key, outbound)
	if err != nil {
		m.log.Debug("handshake failed", zap.String("remote", raw.RemoteAddr().String()), zap.Error(err))
		_ = raw.Close()
		return false
	}
	_ = raw.SetDeadline(time.Time{})

	ep := types.TCP(raw.RemoteAddr().String())
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = sc.Close()
		return true
	}
	if old, ok := m.conns[ep]; ok {
		_ = old.Close()
	}
	m.conns[ep] = sc
	m.mu.Unlock()

	kind := EventAccepted
	if outbound {
		kind = EventNewConnection
	}
	if !m.emit(Event{Kind: kind, Endpoint: ep, RemoteStatic: sc.RemoteStatic()}) {
		return true
	}
	m.readLoop(ep, sc)
	return true
}

func (m *TCPManager) readLoop(ep types.Endpoint, sc *noiseconn.SecureConn) {
	for {
		data, err := sc.ReadFrame()
		if err != nil {
			m.mu.Lock()
			owned := m.conns[ep] == sc
			if owned {
				delete(m.conns, ep)
			}
			m.mu.Unlock()
			_ = sc.Close()
			if owned {
				m.emit(Event{Kind: EventLostConnection, Endpoint: ep})
			}
			return
		}
		if !m.emit(Event{Kind: EventNewMessage, Endpoint: ep, Data: data}) {
			return
		}
	}
}

// emit blocks until the consumer takes the event or the manager closes.
func (m *TCPManager) emit(e Event) bool {
	select {
	case m.events <- e:
		return true
	case <-m.ctx.Done():
		return false
	}
}

// Send writes one frame to ep.
func (m *TCPManager) Send(ep types.Endpoint, data []byte) error {
	m.mu.Lock()
	sc, ok := m.conns[ep]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEndpoint, ep)
	}
	return sc.WriteFrame(data)
}

// Drop closes the connection to ep; the read loop reports the loss.
func (m *TCPManager) Drop(ep types.Endpoint) {
	m.mu.Lock()
	sc, ok := m.conns[ep]
	m.mu.Unlock()
	if ok {
		_ = sc.Close()
	}
}

// Close stops listening, closes every connection, waits for all goroutines
// and then closes the event channel.
func (m *TCPManager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.cancel()

	var err error
	for _, l := range m.listeners {
		if cerr := l.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = multierr.Append(err, cerr)
		}
	}
	if m.beacon != nil {
		err = multierr.Append(err, m.beacon.close())
	}
	for ep, sc := range m.conns {
		_ = sc.Close()
		delete(m.conns, ep)
	}
	m.mu.Unlock()

	m.wg.Wait()
	close(m.events)
	return err
}
