package main

import (
	"net"
	"strings"

	"routing-node/internal/types"
)

// parseEndpoints splits a comma-separated list of endpoints.
func parseEndpoints(s string) ([]types.Endpoint, error) {
	var out []types.Endpoint
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ep, err := types.ParseEndpoint(part)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, nil
}

// dialable reports whether ep names a concrete host another node could dial.
func dialable(ep types.Endpoint) bool {
	host, _, err := net.SplitHostPort(ep.Addr)
	if err != nil || host == "" {
		return false
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		return false
	}
	return true
}
