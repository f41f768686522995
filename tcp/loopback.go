package tcp

import (
	"net"
	"time"
)

// Loopback is a demonstration Transport/NagleController that delivers
// segments directly between sockets registered in the same Table, driving
// the state machine the way an external segment-processing collaborator
// would (spec.md §1 places wire encode/decode and the override-timer
// firing decision outside this engine; Loopback plays that role in-process
// for the cmd demos and tests, the way the teacher's
// lib/packet_filter_iptables.go plays PacketFilterer for a real host).
// There is no packet loss, reordering, or real retransmission: every send
// is delivered synchronously to whichever socket the Table shows as the
// destination.
type Loopback struct {
	table *Table
}

// NewLoopback creates a Loopback wired to table. Install it with
// Table.SetTransport and Table.SetNagle before creating any sockets that
// should use it.
func NewLoopback(table *Table) *Loopback {
	return &Loopback{table: table}
}

// SendSegment implements Transport: find the socket in the table bound to
// (remote, remotePort) — an exact 4-tuple match with any non-listening
// connection, else the LISTEN socket on that port — and feed the segment into
// its state machine.
func (lb *Loopback) SendSegment(local, remote net.IP, localPort, remotePort uint16, seg Segment) error {
	t := lb.table
	t.mu.Lock()
	var dest *TCB
	for _, c := range t.sockets {
		if c.localPort != remotePort {
			continue
		}
		if c.localAddr != nil && remote != nil && !c.localAddr.Equal(remote) {
			continue
		}
		if c.state == StateListen {
			if dest == nil {
				dest = c
			}
			continue
		}
		if c.remoteAddr != nil && c.remoteAddr.Equal(local) && c.remotePort == localPort {
			dest = c
			break
		}
	}
	t.mu.Unlock()

	if dest == nil {
		return nil // no listener, no matching connection: dropped, same as an unreachable peer
	}
	lb.deliver(dest, local, localPort, seg)
	return nil
}

func (lb *Loopback) deliver(dest *TCB, srcAddr net.IP, srcPort uint16, seg Segment) {
	t := lb.table
	t.lock()
	defer t.unlock()

	if seg.Flags.Has(FlagRST) {
		dest.resetFlag = true
		dest.deleteControlBlock()
		dest.ownedFlag = false
		t.unregister(dest)
		dest.events.Set(EventClosed)
		return
	}

	switch dest.state {
	case StateListen:
		if !seg.Flags.Has(FlagSYN) {
			return
		}
		item := &synItem{
			srcAddr:  srcAddr,
			srcPort:  srcPort,
			destAddr: dest.localAddr,
			isn:      seg.Seq,
			mss:      DefaultMSS,
		}
		if admitted, err := dest.synQueue.enqueue(item); admitted && err == nil {
			dest.events.Set(EventRxReady)
		}

	case StateSynSent:
		if seg.Flags.Has(FlagSYN) && seg.Flags.Has(FlagACK) {
			dest.irs = seg.Seq
			dest.rcvNxt = seg.Seq + 1
			dest.sndUna = seg.Ack
			dest.state = StateEstablished
			dest.events.Set(EventConnected)

			ack := Segment{Flags: FlagACK, Seq: dest.sndNxt, Ack: dest.rcvNxt, Window: uint16(dest.rcvWnd)}
			go func() { _ = lb.SendSegment(dest.localAddr, dest.remoteAddr, dest.localPort, dest.remotePort, ack) }()
		}

	case StateSynReceived:
		if seg.Flags.Has(FlagACK) && !seg.Flags.Has(FlagSYN) {
			dest.sndUna = seg.Ack
			dest.state = StateEstablished
			dest.events.Set(EventConnected)
		}

	case StateEstablished:
		lb.deliverData(dest, seg)

	case StateCloseWait:
		lb.ackOnly(dest, seg)

	case StateFinWait1:
		if seg.Flags.Has(FlagACK) {
			dest.sndUna = seg.Ack
			dest.state = StateFinWait2
		}
		if seg.Flags.Has(FlagFIN) {
			dest.rcvNxt = seg.Seq + 1
			if dest.state == StateFinWait2 {
				dest.EnterTimeWait()
				lb.sendFinalAck(dest)
			} else {
				dest.state = StateClosing
			}
		}

	case StateFinWait2:
		if seg.Flags.Has(FlagFIN) {
			dest.rcvNxt = seg.Seq + 1
			dest.EnterTimeWait()
			lb.sendFinalAck(dest)
		} else {
			lb.deliverData(dest, seg)
		}

	case StateClosing:
		if seg.Flags.Has(FlagACK) {
			dest.EnterTimeWait()
		}

	case StateLastAck:
		if seg.Flags.Has(FlagACK) {
			dest.events.Set(EventTxShutdown)
			dest.deleteControlBlock()
			dest.ownedFlag = false
			t.unregister(dest)
		}
	}
}

// sendFinalAck acks the peer's FIN from FIN_WAIT_1/FIN_WAIT_2, mirroring
// the plain-ACK hand-off StateSynSent uses for the handshake's last leg.
// Without it a peer sitting in LAST_ACK would never see its FIN acked and
// its shutdown() would block until timeout.
func (lb *Loopback) sendFinalAck(dest *TCB) {
	ack := Segment{Flags: FlagACK, Seq: dest.sndNxt, Ack: dest.rcvNxt, Window: uint16(dest.rcvWnd)}
	localAddr, localPort := dest.localAddr, dest.localPort
	remoteAddr, remotePort := dest.remoteAddr, dest.remotePort
	go func() { _ = lb.SendSegment(localAddr, remoteAddr, localPort, remotePort, ack) }()
}

func (lb *Loopback) ackOnly(dest *TCB, seg Segment) {
	if seg.Flags.Has(FlagACK) {
		dest.sndUna = seg.Ack
		dest.events.Set(EventTxAcked)
		if dest.freeTxSpace() > 0 {
			dest.events.Set(EventTxReady)
		}
	}
}

func (lb *Loopback) deliverData(dest *TCB, seg Segment) {
	lb.ackOnly(dest, seg)

	if len(seg.Payload) > 0 && dest.rxBuffer != nil {
		if err := dest.rxBuffer.WriteAt(0, seg.Payload); err == nil {
			dest.rcvNxt += uint32(len(seg.Payload))
			dest.rcvUser += len(seg.Payload)
			dest.events.Set(EventRxReady)
		}
	}

	if seg.Flags.Has(FlagFIN) {
		dest.rcvNxt++
		dest.state = StateCloseWait
		dest.events.Set(EventRxReady)
		dest.events.Set(EventClosed)
		dest.events.Set(EventTxShutdown)
	}
}

// BytesQueued implements NagleController: flush whatever is sitting in the
// TX buffer immediately, with no coalescing delay. Called with NET_MUTEX
// already held by the Send() caller, so the actual segment handoff happens
// on a new goroutine that acquires the mutex itself once this call
// returns.
func (lb *Loopback) BytesQueued(c *TCB) {
	n := c.sndUser
	if n <= 0 || c.txBuffer == nil {
		c.events.Set(EventTxDone)
		return
	}
	data := c.txBuffer.ReadAt(0, n)
	c.txBuffer.Advance(n)
	c.sndUser = 0

	seq := c.sndNxt
	c.sndNxt += uint32(n)
	ack := c.rcvNxt
	window := uint16(c.rcvWnd)
	localAddr, localPort := c.localAddr, c.localPort
	remoteAddr, remotePort := c.remoteAddr, c.remotePort

	seg := Segment{Flags: FlagACK | FlagPSH, Seq: seq, Ack: ack, Window: window, Payload: data}
	go func() { _ = lb.SendSegment(localAddr, remoteAddr, localPort, remotePort, seg) }()
	c.events.Set(EventTxDone)
}

// ArmOverrideTimer and CancelOverrideTimer implement NagleController.
// Loopback never coalesces, so there is never a timer to arm.
func (lb *Loopback) ArmOverrideTimer(c *TCB, d time.Duration) {}
func (lb *Loopback) CancelOverrideTimer(c *TCB)               {}
