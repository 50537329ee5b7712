package noiseconn

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Handshake messages carry a 2-byte length prefix, transport frames a
// 4-byte one. Both are big-endian and never empty.
const (
	handshakePrefix = 2
	framePrefix     = 4
)

// writePrefixed writes msg behind a width-byte length in a single Write, so
// concurrent writers under a lock never interleave a prefix with a body.
func writePrefixed(w io.Writer, width int, msg []byte) error {
	limit := maxForWidth(width)
	if len(msg) == 0 || uint64(len(msg)) > limit {
		return fmt.Errorf("noiseconn: message length %d outside 1..%d", len(msg), limit)
	}
	buf := make([]byte, width+len(msg))
	putLen(buf[:width], len(msg))
	copy(buf[width:], msg)
	_, err := w.Write(buf)
	return err
}

// readPrefixed reads one message written by writePrefixed, refusing
// lengths above max.
func readPrefixed(r io.Reader, width int, max uint64) ([]byte, error) {
	var lenBuf [framePrefix]byte
	if _, err := io.ReadFull(r, lenBuf[:width]); err != nil {
		return nil, err
	}
	n := getLen(lenBuf[:width])
	if n == 0 || n > max {
		return nil, fmt.Errorf("noiseconn: invalid length %d", n)
	}
	msg := make([]byte, n)
	if _, err := io.ReadFull(r, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func maxForWidth(width int) uint64 {
	if width == handshakePrefix {
		return 0xffff
	}
	return 0xffffffff
}

func putLen(b []byte, n int) {
	if len(b) == handshakePrefix {
		binary.BigEndian.PutUint16(b, uint16(n))
		return
	}
	binary.BigEndian.PutUint32(b, uint32(n))
}

func getLen(b []byte) uint64 {
	if len(b) == handshakePrefix {
		return uint64(binary.BigEndian.Uint16(b))
	}
	return uint64(binary.BigEndian.Uint32(b))
}
