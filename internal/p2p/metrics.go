package p2p

import "sync/atomic"

// Frame outcomes counted by Metrics.
const (
	FrameReceived  = "received"
	FrameMalformed = "malformed"
	FrameDuplicate = "duplicate"
	FrameForwarded = "forwarded"
	FrameDelivered = "delivered"
	FrameOverflow  = "overflow"
)

// Metrics is intentionally tiny and dependency-free.
// Implementations must be thread-safe.
type Metrics interface {
	IncFrame(outcome string)
	SetViewSizes(table, relays int)
}

// NoopMetrics is the default.
type NoopMetrics struct{}

func (NoopMetrics) IncFrame(string)                {}
func (NoopMetrics) SetViewSizes(table, relays int) {}

type AtomicMetrics struct {
	received  atomic.Uint64
	malformed atomic.Uint64
	duplicate atomic.Uint64
	forwarded atomic.Uint64
	delivered atomic.Uint64
	overflow  atomic.Uint64
	table     atomic.Int64
	relays    atomic.Int64
}

func (m *AtomicMetrics) IncFrame(outcome string) {
	switch outcome {
	case FrameReceived:
		m.received.Add(1)
	case FrameMalformed:
		m.malformed.Add(1)
	case FrameDuplicate:
		m.duplicate.Add(1)
	case FrameForwarded:
		m.forwarded.Add(1)
	case FrameDelivered:
		m.delivered.Add(1)
	case FrameOverflow:
		m.overflow.Add(1)
	}
}

func (m *AtomicMetrics) SetViewSizes(table, relays int) {
	m.table.Store(int64(table))
	m.relays.Store(int64(relays))
}

func (m *AtomicMetrics) Snapshot() map[string]uint64 {
	return map[string]uint64{
		FrameReceived:  m.received.Load(),
		FrameMalformed: m.malformed.Load(),
		FrameDuplicate: m.duplicate.Load(),
		FrameForwarded: m.forwarded.Load(),
		FrameDelivered: m.delivered.Load(),
		FrameOverflow:  m.overflow.Load(),
		"table":        uint64(m.table.Load()),
		"relays":       uint64(m.relays.Load()),
	}
}
