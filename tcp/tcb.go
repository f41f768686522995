package tcp

import (
	"net"
	"time"

	"github.com/pkg/errors"
)

// TCB is the per-connection control block: the state spec.md §3 requires
// every socket operation and state transition to read or mutate. All
// mutation happens under the process-wide NET_MUTEX (spec.md §5); TCB
// itself holds no lock.
type TCB struct {
	state State

	localAddr  net.IP
	localPort  uint16
	remoteAddr net.IP
	remotePort uint16

	// sequence and window variables
	iss, irs           uint32
	sndUna, sndNxt      uint32
	sndUser             int
	rcvNxt              uint32
	rcvWnd              uint32
	rcvUser             int

	smss, rmss uint16

	// congestion-control variables
	cwnd         uint16
	ssthresh     uint16
	recover      uint32
	congestState CongestState

	rto             time.Duration
	overrideTimer   *time.Timer
	timeWaitTimer   *time.Timer
	timeWaitStarted time.Time

	txBuffer     *Buffer
	rxBuffer     *Buffer
	txBufferSize int
	rxBufferSize int

	// listener-only
	synQueue     *synQueue
	synQueueSize int

	ownedFlag bool
	resetFlag bool

	events *EventBus

	// collaborators (narrow interfaces, spec.md §1)
	transport    Transport
	addrSelector AddressSelector
	pool         ChunkPool
	nagle        NagleController
	retransmit   RetransmitQueue
	sink         SegmentSink

	table *Table
	key   string
}

// newTCB allocates a zero-value, CLOSED control block, matching
// initialize(tcb) in spec.md §4.1: state=CLOSED, sequence/window vars
// zeroed, rto=INITIAL_RTO, ssthresh=UINT16_MAX, no buffers allocated.
func newTCB(collab collaboratorSet) *TCB {
	return &TCB{
		state:        StateClosed,
		rto:          InitialRTO,
		ssthresh:     0xFFFF,
		events:       NewEventBus(),
		transport:    collab.transport,
		addrSelector: collab.addrSelector,
		pool:         collab.pool,
		nagle:        collab.nagle,
		retransmit:   collab.retransmit,
		sink:         collab.sink,
	}
}

// collaboratorSet bundles the external collaborators a TCB needs. It
// exists so Socket/Listener construction doesn't thread six separate
// parameters through every constructor.
type collaboratorSet struct {
	transport    Transport
	addrSelector AddressSelector
	pool         ChunkPool
	nagle        NagleController
	retransmit   RetransmitQueue
	sink         SegmentSink
}

// allocateBuffers materializes the TX and RX side-buffers, spec.md §4.1.
// On failure the TCB is left in the CLOSED/unused state, with neither
// buffer allocated.
func (c *TCB) allocateBuffers(txSize, rxSize int) error {
	tx, err := NewBuffer(c.pool, txSize)
	if err != nil {
		return errors.Wrap(ErrOutOfResources, "allocating tx buffer")
	}
	rx, err := NewBuffer(c.pool, rxSize)
	if err != nil {
		tx.Close()
		return errors.Wrap(ErrOutOfResources, "allocating rx buffer")
	}
	c.txBuffer = tx
	c.rxBuffer = rx
	c.txBufferSize = txSize
	c.rxBufferSize = rxSize
	return nil
}

// deleteControlBlock releases buffers and resets transient state, per
// spec.md §4.1. The TCB's state becomes CLOSED; it is reclaimable once
// ownedFlag is also false.
func (c *TCB) deleteControlBlock() {
	if c.txBuffer != nil {
		c.txBuffer.Close()
		c.txBuffer = nil
	}
	if c.rxBuffer != nil {
		c.rxBuffer.Close()
		c.rxBuffer = nil
	}
	if c.overrideTimer != nil {
		c.overrideTimer.Stop()
		c.overrideTimer = nil
	}
	if c.timeWaitTimer != nil {
		c.timeWaitTimer.Stop()
		c.timeWaitTimer = nil
	}
	c.synQueue = nil
	c.remoteAddr = nil
	c.remotePort = 0
	c.state = StateClosed
}

// setCongestionDefaults initializes cwnd/ssthresh/recover/congestState the
// way connect() and accept() both do right after SMSS is known, per
// spec.md §4.3.1/§4.3.2 and the Design Notes' 32-bit-then-saturate fix.
func (c *TCB) setCongestionDefaults() {
	c.cwnd = initialCongestionWindow(c.smss, c.txBufferSize)
	c.ssthresh = 0xFFFF
	c.recover = c.sndUna
	c.congestState = CongestIdle
}

// freeTxSpace computes the sender-side free space invariant from spec.md
// §3: tx_buffer_size - (snd_user + (snd_nxt - snd_una)).
func (c *TCB) freeTxSpace() int {
	outstanding := int(c.sndNxt - c.sndUna)
	free := c.txBufferSize - (c.sndUser + outstanding)
	if free < 0 {
		free = 0
	}
	return free
}

// EnterTimeWait transitions c into TIME_WAIT and arms the 2MSL reaper,
// spec.md §4.6. The segment-processing collaborator (external to this
// engine, spec.md §1) calls this when it observes the segment that ends a
// close sequence (the peer's FIN in FIN_WAIT_2, or the ACK of our FIN in
// CLOSING); the engine only owns what happens once that observation is
// reported. Raises TX_SHUTDOWN along with CLOSED, since reaching
// TIME_WAIT means the close sequence this connection's shutdown() waits on
// has fully resolved.
func (c *TCB) EnterTimeWait() {
	c.state = StateTimeWait
	c.timeWaitStarted = time.Now()
	if c.timeWaitTimer != nil {
		c.timeWaitTimer.Stop()
	}
	c.timeWaitTimer = time.AfterFunc(TimeWaitDuration, func() {
		if c.table == nil {
			return
		}
		c.table.lock()
		defer c.table.unlock()
		if c.state == StateTimeWait {
			c.deleteControlBlock()
			c.ownedFlag = false
			c.table.unregister(c)
		}
	})
	c.events.Set(EventClosed)
	c.events.Set(EventTxShutdown)
}
