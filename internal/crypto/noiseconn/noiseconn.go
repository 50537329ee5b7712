// Package noiseconn secures a byte stream with a Noise_XX handshake and
// frames every payload as one length-prefixed ciphertext.
package noiseconn

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/flynn/noise"
)

// MaxPayload is the largest plaintext a single frame can carry.
const MaxPayload = noise.MaxMsgLen - 16

var ErrFrameTooLarge = errors.New("noiseconn: frame too large")

var suite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashBLAKE2s)

// Keypair is a curve25519 static key.
type Keypair struct {
	Private [32]byte
	Public  [32]byte
}

// SecureConn wraps an underlying stream with Noise cipher states.
type SecureConn struct {
	underlying io.ReadWriteCloser

	readMu sync.Mutex
	readCS *noise.CipherState

	writeMu sync.Mutex
	writeCS *noise.CipherState

	remoteStatic []byte
}

// Handshake runs Noise_XX over underlying. The initiator sends the first
// message; each side learns the other's static key.
func Handshake(underlying io.ReadWriteCloser, key Keypair, initiator bool) (*SecureConn, error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   suite,
		Random:        rand.Reader,
		Pattern:       noise.HandshakeXX,
		Initiator:     initiator,
		StaticKeypair: noise.DHKey{Private: key.Private[:], Public: key.Public[:]},
	})
	if err != nil {
		return nil, err
	}

	var cs1, cs2 *noise.CipherState
	if initiator {
		// -> e
		if err := writeStep(underlying, hs); err != nil {
			return nil, err
		}
		// <- e, ee, s, es
		if _, _, err := readStep(underlying, hs); err != nil {
			return nil, err
		}
		// -> s, se
		msg, c1, c2, err := hs.WriteMessage(nil, nil)
		if err != nil {
			return nil, err
		}
		if err := writePrefixed(underlying, handshakePrefix, msg); err != nil {
			return nil, err
		}
		cs1, cs2 = c1, c2
	} else {
		// <- e
		if _, _, err := readStep(underlying, hs); err != nil {
			return nil, err
		}
		// -> e, ee, s, es
		if err := writeStep(underlying, hs); err != nil {
			return nil, err
		}
		// <- s, se
		c1, c2, err := readStep(underlying, hs)
		if err != nil {
			return nil, err
		}
		cs1, cs2 = c1, c2
	}
	if cs1 == nil || cs2 == nil {
		return nil, fmt.Errorf("noiseconn: handshake incomplete")
	}

	// cs1 encrypts initiator->responder traffic.
	sc := &SecureConn{underlying: underlying, remoteStatic: hs.PeerStatic()}
	if initiator {
		sc.writeCS, sc.readCS = cs1, cs2
	} else {
		sc.writeCS, sc.readCS = cs2, cs1
	}
	return sc, nil
}

func writeStep(w io.Writer, hs *noise.HandshakeState) error {
	msg, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return err
	}
	return writePrefixed(w, handshakePrefix, msg)
}

func readStep(r io.Reader, hs *noise.HandshakeState) (*noise.CipherState, *noise.CipherState, error) {
	msg, err := readPrefixed(r, handshakePrefix, noise.MaxMsgLen)
	if err != nil {
		return nil, nil, err
	}
	_, c1, c2, err := hs.ReadMessage(nil, msg)
	return c1, c2, err
}

// RemoteStatic returns the peer's static public key.
func (c *SecureConn) RemoteStatic() []byte { return append([]byte(nil), c.remoteStatic...) }

// ReadFrame reads a single length-prefixed encrypted frame and decrypts it.
func (c *SecureConn) ReadFrame() ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	ct, err := readPrefixed(c.underlying, framePrefix, noise.MaxMsgLen)
	if err != nil {
		return nil, err
	}
	return c.readCS.Decrypt(nil, nil, ct)
}

// WriteFrame encrypts p as a single frame and writes it with a length prefix.
func (c *SecureConn) WriteFrame(p []byte) error {
	if len(p) > MaxPayload {
		return ErrFrameTooLarge
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ct, err := c.writeCS.Encrypt(nil, nil, p)
	if err != nil {
		return err
	}
	return writePrefixed(c.underlying, framePrefix, ct)
}

func (c *SecureConn) Close() error {
	return c.underlying.Close()
}
