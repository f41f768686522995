package tcp

import "time"

// Flags is the 8-bit TCP control-flag set. Segments are always a subset of
// {FIN, SYN, RST, PSH, ACK, URG}.
type Flags uint8

const (
	FlagFIN Flags = 1 << 0
	FlagSYN Flags = 1 << 1
	FlagRST Flags = 1 << 2
	FlagPSH Flags = 1 << 3
	FlagACK Flags = 1 << 4
	FlagURG Flags = 1 << 5

	// FlagNoDelay and FlagWaitAck are send()-only flags, spec.md §6's
	// send(bytes, flags) with flags NO_DELAY/WAIT_ACK/PUSH. They never
	// appear on a wire Segment, so they're safe to share the Flags bitmask
	// with the wire flags above: PUSH is FlagPSH itself, reused as-is.
	FlagNoDelay Flags = 1 << 6
	FlagWaitAck Flags = 1 << 7
)

func (f Flags) Has(bit Flags) bool { return f&bit == bit }

// Tunable constants, bit-exact with spec.md §6.
const (
	DefaultMSS = 536
	MaxMSS     = 1430

	InitialWindow = 3 // TCP_INITIAL_WINDOW, in units of SMSS

	InitialRTO      = 1000 * time.Millisecond
	OverrideTimeout = 500 * time.Millisecond

	DefaultSynQueueSize = 4
	MaxSynQueueSize     = 16

	MaxTxBufferSize = 22880
	MaxRxBufferSize = 22880

	MaxChunkCount = 15

	// EphemeralMin/EphemeralMax bound the dynamic port range used by
	// get_dynamic_port and by connect()'s implicit local-port allocation.
	EphemeralMin = 32768
	EphemeralMax = 60999

	// TimeWaitDuration is 2MSL: how long a connection lingers in
	// TIME_WAIT before the reaper reclaims its TCB.
	TimeWaitDuration = 60 * time.Second

	// DefaultSocketTimeout bounds every blocking Socket call that has no
	// caller-supplied deadline.
	DefaultSocketTimeout = 5 * time.Second
)

// clampSynQueueSize applies the backlog clamp from spec.md §4.3.1's LISTEN
// transition: backlog=0 yields the default, anything above the max is
// capped.
func clampSynQueueSize(backlog int) int {
	if backlog <= 0 {
		return DefaultSynQueueSize
	}
	if backlog > MaxSynQueueSize {
		return MaxSynQueueSize
	}
	return backlog
}

// initialCongestionWindow implements the Design Notes' resolution of the
// active-open/accept cwnd discrepancy: compute min(INITIAL_WINDOW*smss,
// tx_buffer_size) in 32-bit space, then saturate to uint16 for storage,
// instead of letting either path overflow independently.
func initialCongestionWindow(smss uint16, txBufferSize int) uint16 {
	w := uint32(InitialWindow) * uint32(smss)
	if cap := uint32(txBufferSize); w > cap {
		w = cap
	}
	if w > 0xFFFF {
		w = 0xFFFF
	}
	return uint16(w)
}
