package proto

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"routing-node/internal/types"
)

func randomPublicID(t *testing.T) types.PublicID {
	t.Helper()
	id, err := types.NewID(rand.Reader)
	require.NoError(t, err)
	return id.Public()
}

func randomFindGroupResponse(t *testing.T, size int) FindGroupResponse {
	t.Helper()
	group := make([]types.PublicID, 0, size)
	for i := 0; i < size; i++ {
		group = append(group, randomPublicID(t))
	}
	return FindGroupResponse{Target: types.RandomName(), Group: group}
}
