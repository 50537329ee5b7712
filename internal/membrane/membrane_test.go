package membrane

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"routing-node/internal/types"
)

func TestMembrane_DeliversInOrderAndStopsOnClose(t *testing.T) {
	inbox := make(chan Delivery, 8)
	var got []types.MessageID
	p := PersonaFunc(func(_ context.Context, d Delivery) error {
		got = append(got, d.MessageID)
		return nil
	})
	m := New(p, inbox, nil)
	assert.NotEqual(t, uuid.Nil, m.ID())

	done := make(chan struct{})
	go func() {
		m.Run(context.Background())
		close(done)
	}()

	for i := 1; i <= 5; i++ {
		inbox <- Delivery{MessageID: types.MessageID(i)}
	}
	close(inbox)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("membrane did not stop after inbox close")
	}
	assert.Equal(t, []types.MessageID{1, 2, 3, 4, 5}, got)
}

func TestMembrane_StopsOnContextCancel(t *testing.T) {
	inbox := make(chan Delivery)
	m := New(PersonaFunc(func(context.Context, Delivery) error { return nil }), inbox, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("membrane did not stop after cancel")
	}
}

func TestMembrane_PersonaErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	inbox := make(chan Delivery, 2)
	calls := 0
	p := PersonaFunc(func(context.Context, Delivery) error {
		calls++
		return errors.New("nope")
	})
	m := New(p, inbox, zap.New(core))

	inbox <- Delivery{MessageID: 1}
	inbox <- Delivery{MessageID: 2}
	close(inbox)
	m.Run(context.Background())

	assert.Equal(t, 2, calls)
	require.Equal(t, 2, logs.FilterMessage("persona rejected delivery").Len())
}

func TestFactoryFunc(t *testing.T) {
	var seen types.Name
	f := FactoryFunc(func(id types.ID) Persona {
		seen = id.Name
		return PersonaFunc(func(context.Context, Delivery) error { return nil })
	})
	id := types.ID{Name: types.Name{1}}
	require.NotNil(t, f.CreatePersona(id))
	assert.Equal(t, id.Name, seen)
}
