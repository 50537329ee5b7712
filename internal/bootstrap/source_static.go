package bootstrap

import (
	"context"

	"routing-node/internal/types"
)

type StaticSource struct {
	Endpoints []types.Endpoint
	Label     string
}

func (s StaticSource) Name() string {
	if s.Label != "" {
		return s.Label
	}
	return "static"
}

func (s StaticSource) Discover(ctx context.Context) ([]types.Endpoint, error) {
	return append([]types.Endpoint(nil), s.Endpoints...), nil
}
