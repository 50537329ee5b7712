// Package crypto holds the process-wide cryptographic context.
//
// Init must run once before any node is constructed; the returned *Context is
// the evidence of initialisation that p2p.New requires.
package crypto

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/nacl/box"

	"routing-node/internal/types"
)

// Context proves the primitives passed their self test and the random
// source is usable. It has no teardown.
type Context struct {
	rand io.Reader
}

var (
	initOnce sync.Once
	global   *Context
	initErr  error
)

// Init initialises the process-wide context. It is safe to call any number of
// times from any goroutine; every call returns the same result.
func Init() (*Context, error) {
	initOnce.Do(func() {
		global, initErr = initWith(rand.Reader)
	})
	return global, initErr
}

// MustInit panics if Init fails.
func MustInit() *Context {
	cc, err := Init()
	if err != nil {
		panic(err)
	}
	return cc
}

func initWith(r io.Reader) (*Context, error) {
	var sample [32]byte
	if _, err := io.ReadFull(r, sample[:]); err != nil {
		return nil, fmt.Errorf("crypto init: random source: %w", err)
	}

	pub, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return nil, fmt.Errorf("crypto init: sign keygen: %w", err)
	}
	if !ed25519.Verify(pub, sample[:], ed25519.Sign(priv, sample[:])) {
		return nil, fmt.Errorf("crypto init: sign self test failed")
	}

	aPub, aPriv, err := box.GenerateKey(r)
	if err != nil {
		return nil, fmt.Errorf("crypto init: box keygen: %w", err)
	}
	bPub, bPriv, err := box.GenerateKey(r)
	if err != nil {
		return nil, fmt.Errorf("crypto init: box keygen: %w", err)
	}
	var nonce [24]byte
	copy(nonce[:], sample[:])
	sealed := box.Seal(nil, sample[:], &nonce, bPub, aPriv)
	opened, ok := box.Open(nil, sealed, &nonce, aPub, bPriv)
	if !ok || !bytes.Equal(opened, sample[:]) {
		return nil, fmt.Errorf("crypto init: box self test failed")
	}

	return &Context{rand: r}, nil
}

// NewIdentity generates a node identity from the context's random source.
func (c *Context) NewIdentity() (types.ID, error) {
	return types.NewID(c.rand)
}
