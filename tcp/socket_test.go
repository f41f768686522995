package tcp

import (
	"net"
	"testing"
	"time"
)

func newTestTable(t *testing.T) *Table {
	pool := newMemPool(256, 2048)
	table := NewTable(NewCollaborators(pool))
	lb := NewLoopback(table)
	table.SetTransport(lb)
	table.SetNagle(lb)
	return table
}

func waitForState(t *testing.T, s *Socket, want State, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for {
		if got := s.GetState(); got == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("state = %v, want %v before timeout", s.GetState(), want)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// TestConnectAcceptHappyPath exercises the full active-open/passive-open
// handshake: a client's Connect and a listener's Accept both resolve to
// ESTABLISHED sockets bound to each other.
func TestConnectAcceptHappyPath(t *testing.T) {
	table := newTestTable(t)
	serverIP := net.ParseIP("127.0.0.2")
	clientIP := net.ParseIP("127.0.0.3")

	server := NewSocket(table)
	server.SetTimeout(2 * time.Second)
	if err := server.Bind(serverIP, 9000); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := server.Listen(4); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	type acceptResult struct {
		conn *Socket
		err  error
	}
	accepted := make(chan acceptResult, 1)
	go func() {
		conn, err := server.Accept()
		accepted <- acceptResult{conn, err}
	}()

	client := NewSocket(table)
	client.SetTimeout(2 * time.Second)
	if err := client.Bind(clientIP, 0); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := client.Connect(serverIP, 9000); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got := client.GetState(); got != StateEstablished {
		t.Errorf("client state = %v, want ESTABLISHED", got)
	}

	res := <-accepted
	if res.err != nil {
		t.Fatalf("Accept: %v", res.err)
	}
	if got := res.conn.GetState(); got != StateEstablished {
		t.Errorf("accepted state = %v, want ESTABLISHED", got)
	}
}

// TestSendReceiveEcho exercises send()/receive() across an established
// connection: bytes written on one end arrive intact on the other.
func TestSendReceiveEcho(t *testing.T) {
	table := newTestTable(t)
	serverIP := net.ParseIP("127.0.0.2")
	clientIP := net.ParseIP("127.0.0.3")

	server := NewSocket(table)
	server.SetTimeout(2 * time.Second)
	_ = server.Bind(serverIP, 9001)
	_ = server.Listen(4)

	accepted := make(chan *Socket, 1)
	go func() {
		conn, err := server.Accept()
		if err != nil {
			t.Errorf("Accept: %v", err)
			return
		}
		accepted <- conn
	}()

	client := NewSocket(table)
	client.SetTimeout(2 * time.Second)
	_ = client.Bind(clientIP, 0)
	if err := client.Connect(serverIP, 9001); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	conn := <-accepted

	msg := []byte("hello, established connection")
	n, err := client.Send(msg, 0)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n != len(msg) {
		t.Fatalf("Send returned %d, want %d", n, len(msg))
	}

	buf := make([]byte, 256)
	n, err = conn.Receive(buf)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if string(buf[:n]) != string(msg) {
		t.Errorf("Receive = %q, want %q", buf[:n], msg)
	}
}

// TestGracefulShutdownReachesTimeWait exercises the SEND-side shutdown from
// ESTABLISHED: the active closer passes through FIN_WAIT_1/FIN_WAIT_2 into
// TIME_WAIT once the peer's FIN and final ACK are observed, and the peer
// passes through CLOSE_WAIT/LAST_ACK and is reclaimed.
func TestGracefulShutdownReachesTimeWait(t *testing.T) {
	table := newTestTable(t)
	serverIP := net.ParseIP("127.0.0.2")
	clientIP := net.ParseIP("127.0.0.3")

	server := NewSocket(table)
	server.SetTimeout(2 * time.Second)
	_ = server.Bind(serverIP, 9002)
	_ = server.Listen(4)

	accepted := make(chan *Socket, 1)
	go func() {
		conn, _ := server.Accept()
		accepted <- conn
	}()

	client := NewSocket(table)
	client.SetTimeout(2 * time.Second)
	_ = client.Bind(clientIP, 0)
	if err := client.Connect(serverIP, 9002); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	conn := <-accepted

	// client.Shutdown blocks on TX_SHUTDOWN, which only fires once the peer
	// has acked the client's FIN from LAST_ACK — so it must run concurrently
	// with the peer's own Shutdown call below, not before it.
	clientShutdown := make(chan error, 1)
	go func() { clientShutdown <- client.Shutdown(ShutdownBoth) }()

	// The peer observes the FIN, moves to CLOSE_WAIT, and must itself call
	// Shutdown to send its own FIN before the handshake can complete.
	waitForState(t, conn, StateCloseWait, time.Second)
	if err := conn.Shutdown(ShutdownBoth); err != nil {
		t.Fatalf("peer Shutdown: %v", err)
	}

	select {
	case err := <-clientShutdown:
		if err != nil {
			t.Fatalf("Shutdown: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client Shutdown did not return")
	}

	waitForState(t, client, StateTimeWait, time.Second)
}

// TestAbortResetsImmediately exercises abort() from ESTABLISHED: the
// connection drops straight to CLOSED without lingering in TIME_WAIT.
func TestAbortResetsImmediately(t *testing.T) {
	table := newTestTable(t)
	serverIP := net.ParseIP("127.0.0.2")
	clientIP := net.ParseIP("127.0.0.3")

	server := NewSocket(table)
	server.SetTimeout(2 * time.Second)
	_ = server.Bind(serverIP, 9003)
	_ = server.Listen(4)

	accepted := make(chan *Socket, 1)
	go func() {
		conn, _ := server.Accept()
		accepted <- conn
	}()

	client := NewSocket(table)
	client.SetTimeout(2 * time.Second)
	_ = client.Bind(clientIP, 0)
	if err := client.Connect(serverIP, 9003); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	<-accepted

	if err := client.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if got := client.GetState(); got != StateClosed {
		t.Errorf("state after Abort = %v, want CLOSED", got)
	}
}

// TestListenRejectsAlreadyConnectedSocket resolves the Design Notes' open
// question: Listen on a socket that is already connecting or connected is
// rejected rather than silently reinterpreted.
func TestListenRejectsAlreadyConnectedSocket(t *testing.T) {
	table := newTestTable(t)
	serverIP := net.ParseIP("127.0.0.2")
	clientIP := net.ParseIP("127.0.0.3")

	server := NewSocket(table)
	server.SetTimeout(2 * time.Second)
	_ = server.Bind(serverIP, 9004)
	_ = server.Listen(4)
	go server.Accept()

	client := NewSocket(table)
	client.SetTimeout(2 * time.Second)
	_ = client.Bind(clientIP, 0)
	if err := client.Connect(serverIP, 9004); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := client.Listen(4); err == nil {
		t.Error("expected Listen on an established socket to fail")
	}
}
