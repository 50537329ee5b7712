package bootstrap

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"routing-node/internal/storage/contactsbolt"
	"routing-node/internal/types"
)

type fakeDialer struct {
	own    []types.Endpoint
	dialed []types.Endpoint
}

func (f *fakeDialer) Connect(ep types.Endpoint)     { f.dialed = append(f.dialed, ep) }
func (f *fakeDialer) AcceptingOn() []types.Endpoint { return f.own }

type failingSource struct{}

func (failingSource) Name() string { return "broken" }
func (failingSource) Discover(context.Context) ([]types.Endpoint, error) {
	return nil, errors.New("no network")
}

func TestRunOnce_DedupesAndSkipsSelf(t *testing.T) {
	self := types.TCP("127.0.0.1:9000")
	a, b := types.TCP("10.0.0.1:1"), types.TCP("10.0.0.2:1")
	d := &fakeDialer{own: []types.Endpoint{self}}

	core, logs := observer.New(zapcore.WarnLevel)
	got := RunOnce(context.Background(), d, DefaultConfig(), zap.New(core),
		StaticSource{Endpoints: []types.Endpoint{a, self, b}},
		StaticSource{Endpoints: []types.Endpoint{a}, Label: "seeds"},
		failingSource{},
	)

	assert.ElementsMatch(t, []types.Endpoint{a, b}, got)
	assert.ElementsMatch(t, got, d.dialed)
	require.Equal(t, 1, logs.FilterMessage("bootstrap source failed").Len())
}

func TestRunOnce_RespectsRoundLimit(t *testing.T) {
	var eps []types.Endpoint
	for i := 0; i < 20; i++ {
		eps = append(eps, types.TCP(types.RandomName().Short()+":1"))
	}
	d := &fakeDialer{}
	cfg := DefaultConfig()
	cfg.MaxConnectPerRound = 5
	got := RunOnce(context.Background(), d, cfg, nil, StaticSource{Endpoints: eps})
	assert.Len(t, got, 5)
}

func TestStaticSource_Name(t *testing.T) {
	assert.Equal(t, "static", StaticSource{}.Name())
	assert.Equal(t, "seeds", StaticSource{Label: "seeds"}.Name())
}

func TestContactsSource(t *testing.T) {
	store, err := contactsbolt.Open(filepath.Join(t.TempDir(), "c.db"))
	require.NoError(t, err)
	defer store.Close()

	old, recent := types.TCP("10.0.0.1:1"), types.TCP("10.0.0.2:1")
	require.NoError(t, store.Record(old, types.RandomName(), time.Unix(1, 0)))
	require.NoError(t, store.Record(recent, types.RandomName(), time.Unix(2, 0)))

	got, err := ContactsSource{Store: store, Limit: 10}.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.Endpoint{recent, old}, got)
}
