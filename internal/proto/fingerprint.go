package proto

import (
	"github.com/fxamacker/cbor/v2"
	"lukechampine.com/blake3"

	"routing-node/internal/types"
)

// Fingerprint identifies a message for replay detection.
type Fingerprint [32]byte

// MessageFingerprint derives a fingerprint from (source, id, payload). The
// payload is decoded and re-encoded canonically first, so two encodings of
// the same content map to the same fingerprint.
func MessageFingerprint(source types.Name, id types.MessageID, payload []byte) (Fingerprint, error) {
	var content any
	if err := decMode.Unmarshal(payload, &content); err != nil {
		return Fingerprint{}, &CodecError{Kind: Malformed, Err: err}
	}
	b, err := canonical.Marshal([]any{source[:], uint64(id), content})
	if err != nil {
		return Fingerprint{}, err
	}
	return blake3.Sum256(b), nil
}

// Fingerprint of an outer frame.
func (m *RoutingMessage) Fingerprint() (Fingerprint, error) {
	return MessageFingerprint(m.Source, m.MessageID, m.Payload)
}

// Open decodes the inner payload into inner.
func (m *RoutingMessage) Open(inner Message) error {
	return Decode(m.Payload, inner)
}

// Seal encodes inner into the payload.
func (m *RoutingMessage) Seal(inner Message) error {
	b, err := Encode(inner)
	if err != nil {
		return err
	}
	m.Payload = cbor.RawMessage(b)
	return nil
}
