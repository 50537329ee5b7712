// Package persona holds the example persona shipped with the node. It makes
// no decisions; it records what the node hands it.
package persona

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"routing-node/internal/membrane"
	"routing-node/internal/proto"
	"routing-node/internal/types"
)

// Observer logs every delivery and remembers the latest group seen for
// each target.
type Observer struct {
	name types.Name
	log  *zap.Logger

	mu     sync.Mutex
	count  int
	groups map[types.Name][]types.Name
}

// NewFactory returns a membrane.Factory that builds Observers logging to log.
func NewFactory(log *zap.Logger) membrane.Factory {
	if log == nil {
		log = zap.NewNop()
	}
	return membrane.FactoryFunc(func(id types.ID) membrane.Persona {
		return NewObserver(id.Name, log)
	})
}

func NewObserver(name types.Name, log *zap.Logger) *Observer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Observer{
		name:   name,
		log:    log.Named("persona").With(zap.Stringer("self", name)),
		groups: make(map[types.Name][]types.Name),
	}
}

func (o *Observer) Handle(_ context.Context, d membrane.Delivery) error {
	o.mu.Lock()
	o.count++
	o.mu.Unlock()

	if d.Tag == proto.TagFindGroupResponse {
		var rsp proto.FindGroupResponse
		if err := proto.Decode(d.Payload, &rsp); err != nil {
			return err
		}
		names := make([]types.Name, 0, len(rsp.Group))
		for _, m := range rsp.Group {
			names = append(names, m.Name)
		}
		o.mu.Lock()
		o.groups[rsp.Target] = names
		o.mu.Unlock()
		o.log.Debug("group", zap.Stringer("target", rsp.Target), zap.Stringers("members", names))
		return nil
	}

	o.log.Info("message",
		zap.Stringer("source", d.Source),
		zap.Uint32("id", uint32(d.MessageID)),
		zap.Uint64("tag", d.Tag),
		zap.Int("bytes", len(d.Payload)))
	return nil
}

// Count returns the number of deliveries handled.
func (o *Observer) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.count
}

// Group returns the last group reported for target.
func (o *Observer) Group(target types.Name) ([]types.Name, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	g, ok := o.groups[target]
	return append([]types.Name(nil), g...), ok
}
