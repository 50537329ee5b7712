package types

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const NameBytes = 32

// Name identifies a node or a region of the overlay address space.
type Name [NameBytes]byte

func ParseName(s string) (Name, error) {
	var n Name
	b, err := hex.DecodeString(s)
	if err != nil {
		return n, err
	}
	if len(b) != NameBytes {
		return n, fmt.Errorf("name must be %d bytes, got %d", NameBytes, len(b))
	}
	copy(n[:], b)
	return n, nil
}

// RandomName returns a uniformly random name. Used for lookup targets.
func RandomName() Name {
	var n Name
	_, _ = rand.Read(n[:])
	return n
}

func (n Name) Hex() string { return hex.EncodeToString(n[:]) }

// Short is the 8-char prefix used in logs.
func (n Name) Short() string { return n.Hex()[:8] }

func (n Name) String() string { return n.Short() }

func (n Name) IsZero() bool { return n == Name{} }

// Compare orders names lexicographically.
func (n Name) Compare(o Name) int { return bytes.Compare(n[:], o[:]) }

// Xor distance: d = a ^ b
func Xor(a, b Name) (out Name) {
	for i := 0; i < NameBytes; i++ {
		out[i] = a[i] ^ b[i]
	}
	return
}

// Closer reports whether a is strictly closer to target than b.
func Closer(target, a, b Name) bool {
	da := Xor(a, target)
	db := Xor(b, target)
	return bytes.Compare(da[:], db[:]) < 0
}

// BucketIndex returns [0..255] for 256-bit names.
// It's the index of the first differing bit (MSB-first).
// If identical, returns -1.
func BucketIndex(self, other Name) int {
	d := Xor(self, other)
	for byteIdx := 0; byteIdx < NameBytes; byteIdx++ {
		x := d[byteIdx]
		if x == 0 {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			if x&(1<<(7-bit)) != 0 {
				return byteIdx*8 + bit
			}
		}
	}
	return -1
}
