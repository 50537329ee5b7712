// Package bootstrap gathers candidate endpoints from several sources and
// asks the node to dial them.
package bootstrap

import (
	"context"
	"math/rand"
	"slices"
	"time"

	"go.uber.org/zap"

	"routing-node/internal/types"
)

// Dialer is the part of the node bootstrap drives.
type Dialer interface {
	Connect(ep types.Endpoint)
	AcceptingOn() []types.Endpoint
}

type Config struct {
	MaxConnectPerRound int
	PerSourceTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxConnectPerRound: 12,
		PerSourceTimeout:   2 * time.Second,
	}
}

// RunOnce gathers candidates from sources and dials them. It returns the
// endpoints it dialed.
func RunOnce(ctx context.Context, d Dialer, cfg Config, log *zap.Logger, sources ...PeerSource) []types.Endpoint {
	if log == nil {
		log = zap.NewNop()
	}
	cands := make([]types.Endpoint, 0, 64)

	for _, s := range sources {
		sctx, cancel := context.WithTimeout(ctx, cfg.PerSourceTimeout)
		eps, err := s.Discover(sctx)
		cancel()
		if err != nil {
			log.Warn("bootstrap source failed", zap.String("source", s.Name()), zap.Error(err))
			continue
		}
		log.Debug("bootstrap candidates", zap.String("source", s.Name()), zap.Int("count", len(eps)))
		cands = append(cands, eps...)
	}

	// Shuffle to avoid everyone hitting the same bootstrap in the same order.
	rand.Shuffle(len(cands), func(i, j int) { cands[i], cands[j] = cands[j], cands[i] })

	own := d.AcceptingOn()
	seen := make(map[types.Endpoint]struct{}, len(cands))
	var dialed []types.Endpoint

	for _, ep := range cands {
		if len(dialed) >= cfg.MaxConnectPerRound {
			break
		}
		if _, ok := seen[ep]; ok || slices.Contains(own, ep) {
			continue
		}
		seen[ep] = struct{}{}
		d.Connect(ep)
		dialed = append(dialed, ep)
	}
	return dialed
}
