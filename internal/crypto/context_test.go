package crypto

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestInit_Idempotent(t *testing.T) {
	a, err := Init()
	require.NoError(t, err)
	b, err := Init()
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestInit_FailsWithoutEntropy(t *testing.T) {
	cc, err := initWith(failingReader{})
	assert.Nil(t, cc)
	assert.ErrorContains(t, err, "random source")
}

func TestContext_NewIdentity(t *testing.T) {
	cc := MustInit()
	a, err := cc.NewIdentity()
	require.NoError(t, err)
	b, err := cc.NewIdentity()
	require.NoError(t, err)
	assert.NotEqual(t, a.Name, b.Name)
	require.NoError(t, a.Public().Validate())
}
