package tcp

// State is one of the 11 canonical TCP connection states, spec.md §3.
type State int

const (
	StateClosed State = iota
	StateListen
	StateSynSent
	StateSynReceived
	StateEstablished
	StateFinWait1
	StateFinWait2
	StateCloseWait
	StateClosing
	StateLastAck
	StateTimeWait
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateListen:
		return "LISTEN"
	case StateSynSent:
		return "SYN_SENT"
	case StateSynReceived:
		return "SYN_RECEIVED"
	case StateEstablished:
		return "ESTABLISHED"
	case StateFinWait1:
		return "FIN_WAIT_1"
	case StateFinWait2:
		return "FIN_WAIT_2"
	case StateCloseWait:
		return "CLOSE_WAIT"
	case StateClosing:
		return "CLOSING"
	case StateLastAck:
		return "LAST_ACK"
	case StateTimeWait:
		return "TIME_WAIT"
	default:
		return "UNKNOWN"
	}
}

// CongestState is the TCB's congestion-control phase, spec.md §3.
type CongestState int

const (
	CongestIdle CongestState = iota
	CongestRecovery
	CongestLossRecovery
)

func (c CongestState) String() string {
	switch c {
	case CongestIdle:
		return "IDLE"
	case CongestRecovery:
		return "RECOVERY"
	case CongestLossRecovery:
		return "LOSS_RECOVERY"
	default:
		return "UNKNOWN"
	}
}

// ShutdownHow selects which half of a connection shutdown() closes,
// spec.md §4.3.4.
type ShutdownHow int

const (
	ShutdownSend ShutdownHow = iota
	ShutdownReceive
	ShutdownBoth
)
