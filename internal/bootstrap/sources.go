package bootstrap

import (
	"context"

	"routing-node/internal/types"
)

type PeerSource interface {
	// Discover returns candidate endpoints to connect to.
	Discover(ctx context.Context) ([]types.Endpoint, error)
	Name() string
}
