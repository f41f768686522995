package tcp

import (
	"net"
	"time"

	"github.com/pkg/errors"
)

// Socket is the user-facing handle onto a TCB, spec.md §6. Every method
// acquires the owning Table's NET_MUTEX before touching the TCB and
// releases it before any blocking wait or Transport call, per the
// Design Notes' mutex discipline: a Transport implementation is free to
// call back into the engine (Loopback does, for the in-process demo), so
// NET_MUTEX must never be held across a SendSegment call. A Socket is not
// safe for concurrent use by multiple goroutines calling the same blocking
// method at once, mirroring the teacher's one-owner-per-connection model
// (lib/pconn.go).
type Socket struct {
	tcb     *TCB
	table   *Table
	timeout time.Duration
}

// NewSocket allocates a fresh, CLOSED socket registered in table, ready for
// Connect or Listen.
func NewSocket(table *Table) *Socket {
	c := newTCB(table.collab)
	table.lock()
	table.register(c)
	table.unlock()
	return &Socket{tcb: c, table: table, timeout: DefaultSocketTimeout}
}

// SetTimeout overrides the default wait bound used by every blocking call.
func (s *Socket) SetTimeout(d time.Duration) { s.timeout = d }

// GetState returns the socket's current connection state.
func (s *Socket) GetState() State {
	s.table.lock()
	defer s.table.unlock()
	return s.tcb.state
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Bind fixes the socket's local address and port ahead of Listen or
// Connect. Duplicate-binding detection is explicitly the bind layer's
// concern, spec.md §4.2, and is not enforced here; callers that need it
// supply their own AddressSelector/port-allocation policy.
func (s *Socket) Bind(addr net.IP, port uint16) error {
	t := s.table
	t.lock()
	defer t.unlock()

	c := s.tcb
	if c.state != StateClosed {
		return errors.Wrap(ErrFailure, "bind: socket already in use")
	}
	c.localAddr = addr
	c.localPort = port
	t.rekey(c)
	return nil
}

// Connect implements connect(), spec.md §4.3.1: active open. Re-invoking
// Connect on a socket that is already SYN_SENT/SYN_RECEIVED is treated as
// idempotent per the Design Notes and simply re-joins the same wait; a
// socket already ESTABLISHED returns immediately with no error.
func (s *Socket) Connect(remoteAddr net.IP, remotePort uint16) error {
	c := s.tcb
	t := s.table

	t.lock()
	switch c.state {
	case StateSynSent, StateSynReceived:
		t.unlock()
		return s.awaitConnect()
	case StateEstablished:
		t.unlock()
		return nil
	case StateClosed:
		// fall through to the active-open path below
	default:
		t.unlock()
		return errors.Wrap(ErrAlreadyConnected, "connect: socket already in use")
	}

	if c.transport == nil {
		t.unlock()
		return errors.Wrap(ErrNotConfigured, "connect: no Transport collaborator")
	}

	localAddr := c.localAddr
	if localAddr == nil {
		var err error
		localAddr, err = c.addrSelector.SelectSourceAddr(remoteAddr)
		if err != nil {
			t.unlock()
			return err
		}
	}
	localPort := c.localPort
	if localPort == 0 {
		var err error
		localPort, err = t.GetDynamicPort()
		if err != nil {
			t.unlock()
			return err
		}
	}
	if err := c.allocateBuffers(MaxTxBufferSize, MaxRxBufferSize); err != nil {
		t.unlock()
		return err
	}
	iss, err := generateISN()
	if err != nil {
		t.unlock()
		return errors.Wrap(ErrFailure, "connect: generating ISS: "+err.Error())
	}

	c.localAddr = localAddr
	c.localPort = localPort
	c.remoteAddr = remoteAddr
	c.remotePort = remotePort
	c.iss = iss
	c.sndUna = iss
	c.sndNxt = iss + 1
	c.sndUser = 0
	c.rcvWnd = uint32(c.rxBufferSize)
	c.smss = DefaultMSS
	c.rmss = uint16(minInt(MaxMSS, c.rxBufferSize))
	c.setCongestionDefaults()
	c.ownedFlag = true
	c.state = StateSynSent
	t.rekey(c)

	seg := Segment{Flags: FlagSYN, Seq: c.iss, Window: uint16(c.rcvWnd), AddToRetransmit: true}
	transport := c.transport
	t.unlock()

	// SendSegment runs without NET_MUTEX held: a Transport is free to call
	// back into the engine, as Loopback does for the in-process demo.
	if err := transport.SendSegment(localAddr, remoteAddr, localPort, remotePort, seg); err != nil {
		t.lock()
		c.deleteControlBlock()
		t.unregister(c)
		t.unlock()
		return errors.Wrap(ErrConnectionFailed, "connect: sending SYN: "+err.Error())
	}

	return s.awaitConnect()
}

// awaitConnect blocks on the outcome of an in-flight active or passive
// open, per the Design Notes' fix for connect()'s bitmask comparison bug:
// the returned signaled bits are checked individually, never compared for
// equality against the whole wait mask.
func (s *Socket) awaitConnect() error {
	c := s.tcb
	signaled, err := c.events.Wait(EventConnected|EventClosed, s.timeout)
	if err != nil {
		return err
	}

	s.table.lock()
	defer s.table.unlock()

	if signaled&EventConnected != 0 {
		c.events.Clear(EventConnected)
		return nil
	}
	return errors.Wrap(ErrConnectionFailed, "connect: connection did not establish")
}

// Listen implements listen(), spec.md §4.3.1/§4.3.2: the socket becomes a
// passive-open listener with a bounded SYN queue. A socket that is already
// connected or connecting is rejected with ALREADY_CONNECTED, resolving
// the Design Notes' commented-out guard as an enforced check.
func (s *Socket) Listen(backlog int) error {
	t := s.table
	t.lock()
	defer t.unlock()

	c := s.tcb
	switch c.state {
	case StateClosed, StateListen:
		// ok
	case StateSynSent, StateSynReceived, StateEstablished:
		return errors.Wrap(ErrAlreadyConnected, "listen: socket already connected")
	default:
		return errors.Wrap(ErrAlreadyConnected, "listen: invalid state "+c.state.String())
	}

	if c.localPort == 0 {
		port, err := t.GetDynamicPort()
		if err != nil {
			return err
		}
		c.localPort = port
	}

	c.synQueueSize = clampSynQueueSize(backlog)
	c.synQueue = newSynQueue(c.synQueueSize, c.pool)
	c.state = StateListen
	c.ownedFlag = true
	t.rekey(c)
	return nil
}

// Accept implements accept(), spec.md §4.3.2: pop the oldest admitted SYN,
// allocate and initialize a child TCB, and send SYN-ACK. On success the
// child is returned in SYN_RECEIVED immediately — the handshake's final
// ACK is handled later by the segment-handler collaborator, outside
// accept's blocking scope (spec.md §4.3, testable scenario 4). If SYN-ACK
// emission fails, the child is aborted and draining continues with the
// next queued item rather than failing the whole call. Mutex hand-off
// discipline per the Design Notes: NET_MUTEX is released around child
// allocation (which may block on the pool or generate randomness) and
// around the SYN-ACK send itself, and re-acquired only to finish
// initialization, register the child, and clean up on failure.
func (s *Socket) Accept() (*Socket, error) {
	listener := s.tcb
	t := s.table

	for {
		t.lock()
		if listener.state != StateListen {
			t.unlock()
			return nil, errors.Wrap(ErrInvalidSocket, "accept: socket is not listening")
		}
		item := listener.synQueue.dequeue()
		t.unlock()

		if item == nil {
			if _, err := listener.events.Wait(EventRxReady, s.timeout); err != nil {
				return nil, err
			}
			continue
		}

		child := newTCB(collaboratorSet{
			transport:    listener.transport,
			addrSelector: listener.addrSelector,
			pool:         listener.pool,
			nagle:        listener.nagle,
			retransmit:   listener.retransmit,
			sink:         listener.sink,
		})
		if err := child.allocateBuffers(MaxTxBufferSize, MaxRxBufferSize); err != nil {
			return nil, err
		}
		iss, err := generateISN()
		if err != nil {
			return nil, errors.Wrap(ErrFailure, "accept: generating ISS: "+err.Error())
		}

		t.lock()
		child.localAddr = listener.localAddr
		child.localPort = listener.localPort
		child.remoteAddr = item.srcAddr
		child.remotePort = item.srcPort
		child.iss = iss
		child.irs = item.isn
		child.sndUna = iss
		child.sndNxt = iss + 1
		child.rcvNxt = item.isn + 1
		child.rcvWnd = uint32(child.rxBufferSize)
		child.smss = item.mss
		if child.smss == 0 {
			child.smss = DefaultMSS
		}
		if child.smss > MaxMSS {
			child.smss = MaxMSS
		}
		child.rmss = uint16(minInt(MaxMSS, child.rxBufferSize))
		child.setCongestionDefaults()
		child.ownedFlag = true
		child.state = StateSynReceived
		t.register(child)
		transport := child.transport
		t.unlock()

		var sendErr error
		if transport != nil {
			seg := Segment{
				Flags:           FlagSYN | FlagACK,
				Seq:             child.iss,
				Ack:             child.rcvNxt,
				Window:          uint16(child.rcvWnd),
				AddToRetransmit: true,
			}
			sendErr = transport.SendSegment(child.localAddr, child.remoteAddr, child.localPort, child.remotePort, seg)
		}

		if sendErr != nil {
			t.lock()
			child.deleteControlBlock()
			t.unregister(child)
			t.unlock()
			continue
		}

		return &Socket{tcb: child, table: t, timeout: s.timeout}, nil
	}
}

// Send implements send(), spec.md §4.4: copy caller bytes into the TX
// side-buffer in SMSS-sized, free-space-bounded slices, handing each slice
// to the NagleController collaborator once queued. Blocks on TX_READY
// whenever the buffer has no room, and returns the count actually queued
// if the connection stops accepting writes mid-call. BytesQueued is
// invoked with NET_MUTEX held, so a NagleController that sends segments
// (Loopback does) hands each send to its own goroutine.
//
// If flags has WAIT_ACK set, Send blocks on TX_ACKED once every byte has
// been queued, per spec.md §4.4 step 7, returning NOT_CONNECTED if the
// connection is no longer in ESTABLISHED or CLOSE_WAIT once the ACK
// arrives. NO_DELAY and PUSH are accepted but take effect only inside the
// NagleController collaborator, which Send does not interpret directly.
func (s *Socket) Send(data []byte, flags Flags) (int, error) {
	c := s.tcb
	t := s.table
	sent := 0

	for sent < len(data) {
		t.lock()
		switch c.state {
		case StateEstablished, StateCloseWait:
		default:
			t.unlock()
			if sent > 0 {
				return sent, nil
			}
			return 0, errors.Wrap(ErrNotConnected, "send")
		}

		free := c.freeTxSpace()
		if free <= 0 {
			t.unlock()
			if _, err := c.events.Wait(EventTxReady, s.timeout); err != nil {
				return sent, err
			}
			continue
		}

		chunkLen := minInt(len(data)-sent, free)
		chunkLen = minInt(chunkLen, int(c.smss))

		// A Nagle-SWS escape hatch (RFC 1122 §4.2.3.4): arm the override
		// timer whenever this copy transitions snd_user from zero to
		// nonzero, per spec.md §4.4 step 5.
		if c.sndUser == 0 && c.nagle != nil {
			c.nagle.ArmOverrideTimer(c, OverrideTimeout)
		}

		if err := c.txBuffer.WriteAt(0, data[sent:sent+chunkLen]); err != nil {
			t.unlock()
			return sent, err
		}
		c.sndUser += chunkLen
		nagle := c.nagle
		// BytesQueued is called with NET_MUTEX still held: a
		// NagleController must mutate TCB sequence state synchronously but
		// is required to defer any actual SendSegment call to its own
		// goroutine, since SendSegment itself needs the mutex.
		if nagle != nil {
			nagle.BytesQueued(c)
		}
		t.unlock()
		sent += chunkLen
	}

	if flags.Has(FlagWaitAck) && sent > 0 {
		if _, err := c.events.Wait(EventTxAcked, s.timeout); err != nil {
			return sent, err
		}
		t.lock()
		c.events.Clear(EventTxAcked)
		state := c.state
		t.unlock()
		if state != StateEstablished && state != StateCloseWait {
			return sent, errors.Wrap(ErrNotConnected, "send: wait_ack")
		}
	}
	return sent, nil
}

// Receive implements receive(), spec.md §4.5: drain bytes already
// delivered into the RX side-buffer by the SegmentSink collaborator,
// blocking on RX_READY when the buffer is empty and the connection is
// still capable of delivering more. Returns ErrEndOfStream once the peer's
// FIN has been processed and the buffer has drained completely.
func (s *Socket) Receive(buf []byte) (int, error) {
	c := s.tcb
	t := s.table

	for {
		t.lock()
		if c.rxBuffer != nil && c.rxBuffer.Used() > 0 {
			n := minInt(len(buf), c.rxBuffer.Used())
			copy(buf, c.rxBuffer.ReadAt(0, n))
			c.rxBuffer.Advance(n)
			c.rcvUser -= n
			if c.rxBuffer.Used() == 0 {
				c.events.Clear(EventRxReady)
			}
			t.unlock()
			return n, nil
		}

		switch c.state {
		case StateCloseWait, StateClosing, StateLastAck, StateTimeWait, StateClosed:
			t.unlock()
			return 0, ErrEndOfStream
		}
		t.unlock()

		if _, err := c.events.Wait(EventRxReady|EventClosed, s.timeout); err != nil {
			return 0, err
		}
	}
}

// Shutdown implements shutdown(), spec.md §4.3.4: SEND, RECEIVE, or BOTH
// (SEND followed by RECEIVE).
func (s *Socket) Shutdown(how ShutdownHow) error {
	switch how {
	case ShutdownSend:
		return s.shutdownSend()
	case ShutdownReceive:
		return s.shutdownReceive()
	case ShutdownBoth:
		if err := s.shutdownSend(); err != nil {
			return err
		}
		return s.shutdownReceive()
	default:
		return errors.Wrap(ErrFailure, "shutdown: invalid how")
	}
}

// shutdownSend implements the SEND half of shutdown(), spec.md §4.3.4:
// from SYN_RECEIVED/ESTABLISHED or CLOSE_WAIT, flush outstanding TX and
// wait TX_DONE, send FIN|ACK, advance the send-side state, then wait
// TX_SHUTDOWN. From FIN_WAIT_1/FIN_WAIT_2/CLOSING/LAST_ACK a FIN was
// already sent by a prior call; just join the TX_SHUTDOWN wait. The FIN
// send itself happens without NET_MUTEX held, for the same reason Connect
// releases it around SYN.
func (s *Socket) shutdownSend() error {
	t := s.table
	c := s.tcb

	t.lock()
	switch c.state {
	case StateSynReceived, StateEstablished, StateCloseWait:
		toLastAck := c.state == StateCloseWait
		nagle := c.nagle
		t.unlock()

		// Flush outstanding TX with an implicit NO_DELAY hand-off, then
		// wait for the collaborator to report the flush complete.
		if nagle != nil {
			t.lock()
			nagle.BytesQueued(c)
			t.unlock()
			if _, err := c.events.Wait(EventTxDone, s.timeout); err != nil {
				return err
			}
			c.events.Clear(EventTxDone)
		}

		t.lock()
		if c.transport == nil {
			t.unlock()
			return errors.Wrap(ErrNotConfigured, "shutdown: no Transport collaborator")
		}
		seg := Segment{
			Flags:           FlagFIN | FlagACK,
			Seq:             c.sndNxt,
			Ack:             c.rcvNxt,
			Window:          uint16(c.rcvWnd),
			AddToRetransmit: true,
		}
		c.sndNxt++
		if toLastAck {
			c.state = StateLastAck
		} else {
			c.state = StateFinWait1
		}
		transport := c.transport
		localAddr, localPort := c.localAddr, c.localPort
		remoteAddr, remotePort := c.remoteAddr, c.remotePort
		t.unlock()

		if err := transport.SendSegment(localAddr, remoteAddr, localPort, remotePort, seg); err != nil {
			return errors.Wrap(ErrConnectionFailed, "shutdown: sending FIN: "+err.Error())
		}

	case StateFinWait1, StateFinWait2, StateClosing, StateLastAck:
		t.unlock()

	case StateClosed, StateListen:
		t.unlock()
		return errors.Wrap(ErrNotConnected, "shutdown: socket not connected")

	default:
		t.unlock()
		return errors.Wrap(ErrNotConnected, "shutdown: socket not connected")
	}

	if _, err := c.events.Wait(EventTxShutdown, s.timeout); err != nil {
		return err
	}
	return nil
}

// shutdownReceive implements the RECEIVE half of shutdown(), spec.md
// §4.3.4: detach the SegmentSink, then wait TX_SHUTDOWN — the acceptable
// terminal state is whatever the peer's FIN arrival (an external
// transition) leaves the connection in.
func (s *Socket) shutdownReceive() error {
	t := s.table
	c := s.tcb

	t.lock()
	if c.sink != nil {
		c.sink.Detach(c)
	}
	t.unlock()

	if _, err := c.events.Wait(EventTxShutdown, s.timeout); err != nil {
		return err
	}
	return nil
}

// Abort implements abort(), spec.md §4.3.3: send RST from the five
// RST-eligible states, tear down the TCB immediately without waiting for
// TIME_WAIT, and release it back to the table. TIME_WAIT is special-cased:
// abort only relinquishes ownership, leaving the 2MSL reaper to reclaim the
// TCB on its own schedule.
func (s *Socket) Abort() error {
	t := s.table
	c := s.tcb

	t.lock()
	switch c.state {
	case StateClosed:
		t.unlock()
		return nil
	case StateTimeWait:
		c.ownedFlag = false
		t.unlock()
		return nil
	}

	var transport Transport
	var seg Segment
	localAddr, localPort := c.localAddr, c.localPort
	remoteAddr, remotePort := c.remoteAddr, c.remotePort
	if c.transport != nil {
		switch c.state {
		case StateSynReceived, StateEstablished, StateFinWait1, StateFinWait2, StateCloseWait:
			transport = c.transport
			seg = Segment{Flags: FlagRST, Seq: c.sndNxt}
		}
	}

	c.resetFlag = true
	c.deleteControlBlock()
	c.ownedFlag = false
	t.unregister(c)
	c.events.Set(EventClosed)
	t.unlock()

	if transport != nil {
		_ = transport.SendSegment(localAddr, remoteAddr, localPort, remotePort, seg)
	}
	return nil
}

// Close is a convenience wrapper that shuts down both halves of the
// connection, mirroring the graceful-close path a caller otherwise builds
// from Shutdown(ShutdownBoth).
func (s *Socket) Close() error {
	return s.Shutdown(ShutdownBoth)
}
