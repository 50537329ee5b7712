// Package membrane isolates the persona from the routing node. The node and
// the persona share nothing but a delivery channel and a cloned identity.
package membrane

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"routing-node/internal/types"
)

// Delivery is one application message that passed the node's filters.
type Delivery struct {
	Source    types.Name
	MessageID types.MessageID
	Tag       uint64
	Payload   []byte
}

type Persona interface {
	Handle(ctx context.Context, d Delivery) error
}

// Factory builds the persona for a node. It receives a deep copy of the
// node identity and may keep it.
type Factory interface {
	CreatePersona(id types.ID) Persona
}

type FactoryFunc func(id types.ID) Persona

func (f FactoryFunc) CreatePersona(id types.ID) Persona { return f(id) }

// PersonaFunc adapts a plain function.
type PersonaFunc func(ctx context.Context, d Delivery) error

func (f PersonaFunc) Handle(ctx context.Context, d Delivery) error { return f(ctx, d) }

type Membrane struct {
	id      uuid.UUID
	persona Persona
	inbox   <-chan Delivery
	log     *zap.Logger
}

func New(p Persona, inbox <-chan Delivery, log *zap.Logger) *Membrane {
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.New()
	return &Membrane{
		id:      id,
		persona: p,
		inbox:   inbox,
		log:     log.With(zap.String("membrane", id.String())),
	}
}

func (m *Membrane) ID() uuid.UUID { return m.id }

// Run hands deliveries to the persona in arrival order until the inbox is
// closed or ctx is done. Persona errors are logged and do not stop the loop.
func (m *Membrane) Run(ctx context.Context) {
	m.log.Debug("membrane started")
	defer m.log.Debug("membrane stopped")
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-m.inbox:
			if !ok {
				return
			}
			if err := m.persona.Handle(ctx, d); err != nil {
				m.log.Debug("persona rejected delivery",
					zap.String("source", d.Source.Short()),
					zap.Uint32("id", uint32(d.MessageID)),
					zap.Error(err))
			}
		}
	}
}
