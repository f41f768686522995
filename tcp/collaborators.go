package tcp

import (
	"net"
	"time"
)

// This file names the narrow collaborator interfaces spec.md §1 declares
// out of scope for the connection engine: IP routing/source-address
// selection, wire encoding/checksumming, the Nagle/override-timer firing
// decision, retransmission-queue scanning, the segment demultiplexer, and
// chunk-pool allocation. The engine only calls through these; it never
// implements one definitively. Modeled on the teacher's
// lib/packet_filter.go PacketFilterer interface plus its
// NewPacketFilterer auto-detecting constructor pattern.

// Segment is the abstract shape of an outgoing TCP segment, matching
// spec.md §6's wire-side signature: (flags, seq, ack, length,
// add_to_retransmit_queue).
type Segment struct {
	Flags           Flags
	Seq             uint32
	Ack             uint32
	Window          uint16
	Payload         []byte
	AddToRetransmit bool
}

func (s Segment) Length() int { return len(s.Payload) }

// AddressSelector picks a local source address compatible with a remote
// address. Routing table lookups belong to the collaborator.
type AddressSelector interface {
	SelectSourceAddr(remote net.IP) (net.IP, error)
}

// Transport hands a segment to the wire. Encoding, checksumming, and the
// actual write belong to the collaborator; SendSegment reports only
// whether the handoff itself failed.
type Transport interface {
	SendSegment(local, remote net.IP, localPort, remotePort uint16, seg Segment) error
}

// NagleController owns the coalescing decision over buffered-but-unsent
// bytes and the override timer's firing action. The engine only arms or
// cancels the timer and tells the controller bytes became available.
//
// BytesQueued is called with NET_MUTEX held, so it may mutate c's sequence
// fields directly, but it must never call Transport.SendSegment
// synchronously from within it — that needs the same mutex and would
// deadlock. Defer any actual send to a new goroutine.
type NagleController interface {
	BytesQueued(c *TCB)
	ArmOverrideTimer(c *TCB, d time.Duration)
	CancelOverrideTimer(c *TCB)
}

// RetransmitQueue tracks sent segments awaiting acknowledgment and scans
// for retransmission on RTO. The engine sets AddToRetransmit on the SYN,
// SYN|ACK and FIN segments it builds, but does not call Track or Ack
// itself; scanning and resending are the collaborator's job.
type RetransmitQueue interface {
	Track(c *TCB, seg Segment)
	Ack(c *TCB, ackNum uint32)
}

// SegmentSink is the received-segment demultiplexer and reassembler. It
// owns delivering in-order payload bytes into a connection's receive
// buffer and raising RX_READY; Receive() only waits on that event.
type SegmentSink interface {
	Attach(c *TCB)
	Detach(c *TCB)
}

// BufferChunk is one fixed-capacity byte region backing a side-buffer or a
// SYN-queue item.
type BufferChunk interface {
	Bytes() []byte
}

// ChunkPool allocates and frees the fixed-size chunks that back
// side-buffers and SYN-queue items. Exhaustion is reported as
// ErrOutOfResources, never silently grown past the pool's capacity.
type ChunkPool interface {
	Alloc() (BufferChunk, error)
	Free(BufferChunk)
}
