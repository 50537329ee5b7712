package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routing-node/internal/types"
)

func TestMap_AddAndDrop(t *testing.T) {
	m := New(types.RandomName())
	peer := types.RandomName()
	ep1, ep2 := types.TCP("127.0.0.1:1"), types.TCP("127.0.0.1:2")

	require.NoError(t, m.Add(peer, ep1))
	require.NoError(t, m.Add(peer, ep2))
	require.NoError(t, m.Add(peer, ep2))
	assert.True(t, m.Contains(peer))
	assert.Equal(t, []types.Endpoint{ep1, ep2}, m.Endpoints(peer))

	_, gone := m.DropEndpoint(ep1)
	assert.False(t, gone)
	name, gone := m.DropEndpoint(ep2)
	assert.True(t, gone)
	assert.Equal(t, peer, name)
	assert.False(t, m.Contains(peer))
}

func TestMap_RejectsSelf(t *testing.T) {
	self := types.RandomName()
	m := New(self)
	assert.ErrorIs(t, m.Add(self, types.TCP("127.0.0.1:1")), ErrSelf)
}

func TestMap_Capacity(t *testing.T) {
	m := New(types.RandomName(), WithCapacity(2))
	a, b := types.RandomName(), types.RandomName()
	require.NoError(t, m.Add(a, types.TCP("h:1")))
	require.NoError(t, m.Add(b, types.TCP("h:2")))
	assert.ErrorIs(t, m.Add(types.RandomName(), types.TCP("h:3")), ErrFull)
	// known peer can still gain endpoints
	assert.NoError(t, m.Add(a, types.TCP("h:4")))

	assert.Len(t, m.Drop(a), 2)
	assert.NoError(t, m.Add(types.RandomName(), types.TCP("h:3")))
}

func TestMap_Allow(t *testing.T) {
	m := New(types.RandomName(), WithRate(0, 2))
	peer := types.RandomName()
	assert.False(t, m.Allow(peer), "unknown peers are never forwarded")

	require.NoError(t, m.Add(peer, types.TCP("h:1")))
	assert.True(t, m.Allow(peer))
	assert.True(t, m.Allow(peer))
	assert.False(t, m.Allow(peer), "burst exhausted with zero refill")
}
