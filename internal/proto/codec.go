package proto

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Message is any payload that travels between nodes. Tag is the stable
// numeric discriminator written in front of the encoded fields.
type Message interface {
	Tag() uint64
}

type ErrorKind int

const (
	// Malformed covers truncated, corrupt or trailing-garbage frames.
	Malformed ErrorKind = iota + 1
	// UnexpectedEOF means no bytes were available where a frame was expected.
	UnexpectedEOF
)

func (k ErrorKind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case UnexpectedEOF:
		return "unexpected eof"
	default:
		return "unknown"
	}
}

var (
	ErrMalformed     = &CodecError{Kind: Malformed}
	ErrUnexpectedEOF = &CodecError{Kind: UnexpectedEOF}
)

// CodecError is returned by Decode and PeekTag. Match it with errors.Is
// against ErrMalformed or ErrUnexpectedEOF.
type CodecError struct {
	Kind ErrorKind
	Err  error
}

func (e *CodecError) Error() string {
	if e.Err == nil {
		return "codec: " + e.Kind.String()
	}
	return fmt.Sprintf("codec: %s: %v", e.Kind, e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }

func (e *CodecError) Is(target error) bool {
	t, ok := target.(*CodecError)
	return ok && t.Kind == e.Kind
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
	// canonical is used only for fingerprints.
	canonical cbor.EncMode
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if canonical, err = cbor.CanonicalEncOptions().EncMode(); err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		MaxArrayElements: 1 << 16,
		MaxMapPairs:      1 << 16,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Encode frames m as CBOR tag(m.Tag(), fields...).
func Encode(m Message) ([]byte, error) {
	return encMode.Marshal(cbor.Tag{Number: m.Tag(), Content: m})
}

// MustEncode panics on error. For messages built in-process only.
func MustEncode(m Message) []byte {
	b, err := Encode(m)
	if err != nil {
		panic(err)
	}
	return b
}

// Decode reconstructs m from a frame produced by Encode. The leading tag is
// read and discarded without comparing it to m.Tag(); dispatchers that need
// the tag call PeekTag first.
func Decode(data []byte, m Message) error {
	raw, err := readTag(data)
	if err != nil {
		return err
	}
	if err := decMode.Unmarshal(raw.Content, m); err != nil {
		return &CodecError{Kind: Malformed, Err: err}
	}
	return nil
}

// PeekTag returns the tag of a frame without decoding its fields.
func PeekTag(data []byte) (uint64, error) {
	raw, err := readTag(data)
	if err != nil {
		return 0, err
	}
	return raw.Number, nil
}

func readTag(data []byte) (cbor.RawTag, error) {
	var raw cbor.RawTag
	if len(data) == 0 {
		return raw, &CodecError{Kind: UnexpectedEOF}
	}
	if err := decMode.Unmarshal(data, &raw); err != nil {
		if errors.Is(err, io.EOF) {
			return raw, &CodecError{Kind: UnexpectedEOF, Err: err}
		}
		return raw, &CodecError{Kind: Malformed, Err: err}
	}
	return raw, nil
}
