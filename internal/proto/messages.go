package proto

import (
	"github.com/fxamacker/cbor/v2"

	"routing-node/internal/types"
)

// Wire tags. Values are part of the protocol and must never be reused.
const (
	TagFindGroup         uint64 = 5483_000
	TagFindGroupResponse uint64 = 5483_001
	TagConnectRequest    uint64 = 5483_002
	TagConnectResponse   uint64 = 5483_003
	TagRoutingMessage    uint64 = 5483_100
)

// RoutingMessage is the outer frame of every transmission. Payload holds
// another encoded Message.
type RoutingMessage struct {
	_           struct{} `cbor:",toarray"`
	MessageID   types.MessageID
	Source      types.Name
	Destination types.Name // zero for hop-level messages
	Payload     cbor.RawMessage
}

func (RoutingMessage) Tag() uint64 { return TagRoutingMessage }

// FindGroup asks for the peers responsible for Target.
type FindGroup struct {
	_      struct{} `cbor:",toarray"`
	Target types.Name
}

func (FindGroup) Tag() uint64 { return TagFindGroup }

// ConnectRequest introduces a freshly connected peer.
type ConnectRequest struct {
	_         struct{} `cbor:",toarray"`
	Requester types.PublicID
	Endpoints []types.Endpoint
}

func (ConnectRequest) Tag() uint64 { return TagConnectRequest }

// ConnectResponse answers a ConnectRequest with the responder's credential.
type ConnectResponse struct {
	_         struct{} `cbor:",toarray"`
	Responder types.PublicID
	Endpoints []types.Endpoint
}

func (ConnectResponse) Tag() uint64 { return TagConnectResponse }
