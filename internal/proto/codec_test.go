package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routing-node/internal/types"
)

func TestFindGroupResponse_RoundTrip(t *testing.T) {
	for _, size := range []int{1, 23, 99} {
		before := randomFindGroupResponse(t, size)

		b, err := Encode(before)
		require.NoError(t, err)

		var after FindGroupResponse
		require.NoError(t, Decode(b, &after))
		assert.Equal(t, before, after, "size=%d", size)
		require.NoError(t, after.Verify())
	}
}

func TestFindGroupResponse_EmptyGroup(t *testing.T) {
	before := FindGroupResponse{Target: types.RandomName()}
	b, err := Encode(before)
	require.NoError(t, err)

	var after FindGroupResponse
	require.NoError(t, Decode(b, &after))
	assert.Equal(t, before, after)

	before.Group = []types.PublicID{}
	b, err = Encode(before)
	require.NoError(t, err)
	after = FindGroupResponse{}
	require.NoError(t, Decode(b, &after))
	assert.Equal(t, before, after)
}

func TestEncode_TagFirst(t *testing.T) {
	b, err := Encode(FindGroupResponse{Target: types.RandomName()})
	require.NoError(t, err)

	tag, err := PeekTag(b)
	require.NoError(t, err)
	assert.Equal(t, uint64(5483001), tag)
}

func TestEncode_Deterministic(t *testing.T) {
	v := randomFindGroupResponse(t, 5)
	a, err := Encode(v)
	require.NoError(t, err)
	b, err := Encode(v)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDecode_Empty(t *testing.T) {
	var v FindGroupResponse
	err := Decode(nil, &v)
	require.ErrorIs(t, err, ErrUnexpectedEOF)
	assert.NotErrorIs(t, err, ErrMalformed)

	_, err = PeekTag([]byte{})
	assert.ErrorIs(t, err, ErrUnexpectedEOF)
}

func TestDecode_TruncatedPrefix(t *testing.T) {
	b, err := Encode(randomFindGroupResponse(t, 3))
	require.NoError(t, err)

	for _, n := range []int{1, 5, len(b) / 2, len(b) - 1} {
		var v FindGroupResponse
		err := Decode(b[:n], &v)
		assert.ErrorIs(t, err, ErrMalformed, "prefix %d", n)
	}
}

func TestDecode_TrailingBytes(t *testing.T) {
	b, err := Encode(FindGroup{Target: types.RandomName()})
	require.NoError(t, err)

	var v FindGroup
	assert.ErrorIs(t, Decode(append(b, 0x00), &v), ErrMalformed)
}

func TestDecode_NotATag(t *testing.T) {
	var v FindGroup
	// CBOR unsigned int 1
	assert.ErrorIs(t, Decode([]byte{0x01}, &v), ErrMalformed)
}

func TestDecode_WrongShape(t *testing.T) {
	b, err := Encode(FindGroup{Target: types.RandomName()})
	require.NoError(t, err)

	var v ConnectRequest
	assert.ErrorIs(t, Decode(b, &v), ErrMalformed)
}

// The tag is read and discarded: a same-shaped message under another tag
// still decodes.
func TestDecode_TagNotChecked(t *testing.T) {
	req := ConnectRequest{Requester: randomPublicID(t), Endpoints: []types.Endpoint{types.TCP("127.0.0.1:1")}}
	b, err := Encode(req)
	require.NoError(t, err)

	var resp ConnectResponse
	require.NoError(t, Decode(b, &resp))
	assert.Equal(t, req.Requester, resp.Responder)
	assert.Equal(t, req.Endpoints, resp.Endpoints)
}

func TestRoutingMessage_SealOpen(t *testing.T) {
	inner := FindGroup{Target: types.RandomName()}
	msg := RoutingMessage{MessageID: 7, Source: types.RandomName(), Destination: types.RandomName()}
	require.NoError(t, msg.Seal(inner))

	b, err := Encode(msg)
	require.NoError(t, err)

	var got RoutingMessage
	require.NoError(t, Decode(b, &got))
	assert.Equal(t, msg.MessageID, got.MessageID)
	assert.Equal(t, msg.Source, got.Source)
	assert.Equal(t, msg.Destination, got.Destination)

	tag, err := PeekTag(got.Payload)
	require.NoError(t, err)
	assert.Equal(t, TagFindGroup, tag)

	var out FindGroup
	require.NoError(t, got.Open(&out))
	assert.Equal(t, inner, out)
}
