package types

import (
	"fmt"
	"strings"
)

// MessageID correlates requests and responses.
type MessageID uint32

// Endpoint is a transport address a peer can be reached at.
type Endpoint struct {
	_        struct{} `cbor:",toarray"`
	Protocol string
	Addr     string // host:port
}

func TCP(addr string) Endpoint { return Endpoint{Protocol: "tcp", Addr: addr} }

func (e Endpoint) String() string { return e.Protocol + ":" + e.Addr }

// ParseEndpoint accepts "proto:host:port" or a bare "host:port" (tcp).
func ParseEndpoint(s string) (Endpoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Endpoint{}, fmt.Errorf("empty endpoint")
	}
	if proto, rest, ok := strings.Cut(s, ":"); ok && (proto == "tcp" || proto == "udp") {
		if rest == "" {
			return Endpoint{}, fmt.Errorf("endpoint %q: missing address", s)
		}
		return Endpoint{Protocol: proto, Addr: rest}, nil
	}
	return TCP(s), nil
}
