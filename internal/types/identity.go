package types

import (
	"crypto/ed25519"
	"errors"
	"io"

	"golang.org/x/crypto/nacl/box"
	"lukechampine.com/blake3"
)

// ErrNameMismatch is returned when a public identity's name is not derived
// from its keys.
var ErrNameMismatch = errors.New("public id: name does not match keys")

// PublicID is the public credential of a node. The name is derived from the
// keys, so any holder can verify the binding without asking the node.
type PublicID struct {
	_          struct{} `cbor:",toarray"`
	Name       Name
	SignKey    ed25519.PublicKey
	EncryptKey [32]byte
}

// ID is the full identity of a node: signing and encryption keypairs plus
// the derived name.
type ID struct {
	Name       Name
	SignPub    ed25519.PublicKey
	SignPriv   ed25519.PrivateKey
	EncryptPub [32]byte
	encryptKey [32]byte
}

// DeriveName binds a name to a node's public keys.
func DeriveName(signKey ed25519.PublicKey, encryptKey [32]byte) Name {
	h := blake3.New(NameBytes, nil)
	_, _ = h.Write(signKey)
	_, _ = h.Write(encryptKey[:])
	var n Name
	copy(n[:], h.Sum(nil))
	return n
}

// NewID generates a fresh identity from r.
func NewID(r io.Reader) (ID, error) {
	signPub, signPriv, err := ed25519.GenerateKey(r)
	if err != nil {
		return ID{}, err
	}
	encPub, encPriv, err := box.GenerateKey(r)
	if err != nil {
		return ID{}, err
	}
	return ID{
		Name:       DeriveName(signPub, *encPub),
		SignPub:    signPub,
		SignPriv:   signPriv,
		EncryptPub: *encPub,
		encryptKey: *encPriv,
	}, nil
}

// EncryptKey returns the curve25519 private key. It doubles as the static
// key of the transport's noise handshake.
func (id *ID) EncryptKey() [32]byte { return id.encryptKey }

// Public returns the shareable part of the identity.
func (id *ID) Public() PublicID {
	return PublicID{
		Name:       id.Name,
		SignKey:    append(ed25519.PublicKey(nil), id.SignPub...),
		EncryptKey: id.EncryptPub,
	}
}

// Clone returns a deep copy. Callers that hand an identity to another
// goroutine must hand over a clone.
func (id *ID) Clone() ID {
	return ID{
		Name:       id.Name,
		SignPub:    append(ed25519.PublicKey(nil), id.SignPub...),
		SignPriv:   append(ed25519.PrivateKey(nil), id.SignPriv...),
		EncryptPub: id.EncryptPub,
		encryptKey: id.encryptKey,
	}
}

func (p PublicID) Validate() error {
	if len(p.SignKey) != ed25519.PublicKeySize {
		return errors.New("public id: bad sign key length")
	}
	if DeriveName(p.SignKey, p.EncryptKey) != p.Name {
		return ErrNameMismatch
	}
	return nil
}
