package contactsbolt

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routing-node/internal/types"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "contacts.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("")
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestCandidates_OrderedByRecency(t *testing.T) {
	s, _ := openTemp(t)
	base := time.Unix(1_700_000_000, 0)
	a, b, c := types.TCP("10.0.0.1:1"), types.TCP("10.0.0.2:1"), types.TCP("10.0.0.3:1")

	require.NoError(t, s.Record(a, types.RandomName(), base))
	require.NoError(t, s.Record(b, types.RandomName(), base.Add(2*time.Second)))
	require.NoError(t, s.Record(c, types.RandomName(), base.Add(time.Second)))

	got, err := s.Candidates(0, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []types.Endpoint{b, c, a}, []types.Endpoint{got[0].Endpoint, got[1].Endpoint, got[2].Endpoint})

	// re-recording moves the contact to the front without duplicating it
	require.NoError(t, s.Record(a, got[2].Name, base.Add(time.Minute)))
	got, err = s.Candidates(0, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a, got[0].Endpoint)

	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMarkFailure_FiltersAndRecordResets(t *testing.T) {
	s, _ := openTemp(t)
	ep := types.TCP("10.0.0.4:1")
	name := types.RandomName()
	require.NoError(t, s.Record(ep, name, time.Unix(10, 0)))

	require.NoError(t, s.MarkFailure(ep))
	require.NoError(t, s.MarkFailure(ep))
	require.NoError(t, s.MarkFailure(types.TCP("10.9.9.9:1")))

	got, err := s.Candidates(1, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.Candidates(2, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Failures)
	assert.Equal(t, name, got[0].Name)

	require.NoError(t, s.Record(ep, name, time.Unix(20, 0)))
	got, err = s.Candidates(0, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Failures)
}

func TestRemove(t *testing.T) {
	s, _ := openTemp(t)
	ep := types.TCP("10.0.0.5:1")
	require.NoError(t, s.Record(ep, types.RandomName(), time.Unix(5, 0)))
	require.NoError(t, s.Remove(ep))
	require.NoError(t, s.Remove(ep))

	got, err := s.Candidates(0, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReopen_Persists(t *testing.T) {
	s, path := openTemp(t)
	ep := types.TCP("10.0.0.6:1")
	require.NoError(t, s.Record(ep, types.RandomName(), time.Unix(7, 0)))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.Candidates(0, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ep, got[0].Endpoint)
}
