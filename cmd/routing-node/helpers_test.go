package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"routing-node/internal/storage/contactsbolt"
	"routing-node/internal/types"
)

func TestParseEndpoints(t *testing.T) {
	got, err := parseEndpoints(" tcp:10.0.0.1:4000, 10.0.0.2:4001 ,,")
	require.NoError(t, err)
	assert.Equal(t, []types.Endpoint{types.TCP("10.0.0.1:4000"), types.TCP("10.0.0.2:4001")}, got)

	got, err = parseEndpoints("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDialable(t *testing.T) {
	assert.True(t, dialable(types.TCP("10.0.0.1:4000")))
	assert.True(t, dialable(types.TCP("example.org:4000")))
	assert.False(t, dialable(types.TCP("[::]:4000")))
	assert.False(t, dialable(types.TCP("0.0.0.0:4000")))
	assert.False(t, dialable(types.TCP(":4000")))
	assert.False(t, dialable(types.TCP("garbage")))
}

func TestNewNodeConfig(t *testing.T) {
	o := options{Listen: "tcp:127.0.0.1:0", Bootstrap: "tcp:10.0.0.1:1", BeaconPort: 6000}
	cfg, err := newNodeConfig(o, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []types.Endpoint{types.TCP("127.0.0.1:0")}, cfg.Listen)
	assert.Equal(t, []types.Endpoint{types.TCP("10.0.0.1:1")}, cfg.Bootstrap)
	require.NotNil(t, cfg.BeaconPort)
	assert.Equal(t, uint16(6000), *cfg.BeaconPort)
	assert.NotNil(t, cfg.Genesis)
	assert.Nil(t, cfg.DialFailed)

	o.NoBeacon = true
	cfg, err = newNodeConfig(o, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, cfg.BeaconPort)
}

func TestNewNodeConfig_DialFailuresReachContacts(t *testing.T) {
	store, err := contactsbolt.Open(filepath.Join(t.TempDir(), "contacts.db"))
	require.NoError(t, err)
	defer store.Close()
	ep := types.TCP("10.0.0.1:4000")
	require.NoError(t, store.Record(ep, types.RandomName(), time.Unix(1_700_000_000, 0)))

	cfg, err := newNodeConfig(options{NoBeacon: true}, store, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, cfg.DialFailed)
	cfg.DialFailed(ep)

	got, err := store.Candidates(0, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
	got, err = store.Candidates(1, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Failures)
}
