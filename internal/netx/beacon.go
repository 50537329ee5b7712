package netx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/fxamacker/cbor/v2"

	"routing-node/internal/types"
)

const (
	beaconPing = "ping"
	beaconPong = "pong"

	DefaultBeaconTimeout = 1 * time.Second
)

// beaconMessage is what travels over UDP. Pongs carry the responder's TCP
// listening port; the host is taken from the datagram source.
type beaconMessage struct {
	_    struct{} `cbor:",toarray"`
	Kind string
	Port uint16
}

type beacon struct {
	conn    *net.UDPConn
	tcpPort uint16
}

func startBeacon(udpPort, tcpPort uint16) (*beacon, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var ctrlErr error
			if network == "udp4" || network == "udp" {
				ctrlErr = c.Control(func(fd uintptr) {
					// Allow several nodes on one host to share the beacon port.
					_ = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
				})
			}
			return ctrlErr
		},
	}
	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", udpPort))
	if err != nil {
		return nil, fmt.Errorf("beacon listen: %w", err)
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close()
		return nil, errors.New("beacon: not a UDPConn")
	}
	return &beacon{conn: conn, tcpPort: tcpPort}, nil
}

func (b *beacon) port() uint16 {
	return uint16(b.conn.LocalAddr().(*net.UDPAddr).Port)
}

// serve answers pings until ctx is done or the socket is closed.
func (b *beacon) serve(ctx context.Context) {
	buf := make([]byte, 512)
	reply, _ := cbor.Marshal(beaconMessage{Kind: beaconPong, Port: b.tcpPort})
	for {
		if ctx.Err() != nil {
			return
		}
		_ = b.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, addr, err := b.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return
		}
		var msg beaconMessage
		if err := cbor.Unmarshal(buf[:n], &msg); err != nil || msg.Kind != beaconPing {
			continue
		}
		_, _ = b.conn.WriteToUDP(reply, addr)
	}
}

func (b *beacon) close() error { return b.conn.Close() }

// DiscoverBeacon broadcasts a ping to port on every local IPv4 network and on
// loopback, and returns the tcp endpoints of peers that answer within
// timeout. It does not connect; the caller decides what to do with them.
func DiscoverBeacon(ctx context.Context, port uint16, timeout time.Duration) ([]types.Endpoint, error) {
	if timeout <= 0 {
		timeout = DefaultBeaconTimeout
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero})
	if err != nil {
		return nil, fmt.Errorf("beacon discover listen: %w", err)
	}
	defer conn.Close()

	ping, _ := cbor.Marshal(beaconMessage{Kind: beaconPing})

	targets := interfaceBroadcastAddrs(int(port))
	targets = append(targets, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: int(port)})
	for _, dst := range targets {
		// unreachable broadcast domains are expected; loopback is enough
		_, _ = conn.WriteToUDP(ping, dst)
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("beacon discover set deadline: %w", err)
	}

	seen := make(map[types.Endpoint]struct{})
	var out []types.Endpoint
	buf := make([]byte, 512)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			break
		}
		var msg beaconMessage
		if err := cbor.Unmarshal(buf[:n], &msg); err != nil || msg.Kind != beaconPong || msg.Port == 0 {
			continue
		}
		ep := types.TCP(net.JoinHostPort(from.IP.String(), fmt.Sprint(msg.Port)))
		if _, dup := seen[ep]; dup {
			continue
		}
		seen[ep] = struct{}{}
		out = append(out, ep)
	}
	return out, nil
}

func interfaceBroadcastAddrs(port int) []*net.UDPAddr {
	out := make([]*net.UDPAddr, 0, 8)

	ifaces, err := net.Interfaces()
	if err != nil {
		return out
	}
	for _, it := range ifaces {
		if it.Flags&net.FlagUp == 0 || it.Flags&net.FlagPointToPoint != 0 {
			continue
		}
		addrs, err := it.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok || ipnet.IP == nil {
				continue
			}
			ip4 := ipnet.IP.To4()
			mask := ipnet.Mask
			if ip4 == nil || len(mask) != 4 {
				continue
			}
			// broadcast = ip | ^mask
			b := net.IPv4(ip4[0]|^mask[0], ip4[1]|^mask[1], ip4[2]|^mask[2], ip4[3]|^mask[3])
			out = append(out, &net.UDPAddr{IP: b, Port: port})
		}
	}
	return out
}
