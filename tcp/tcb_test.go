package tcp

import "testing"

func TestNewTCBStartsClosed(t *testing.T) {
	c := newTCB(collaboratorSet{})
	if c.state != StateClosed {
		t.Errorf("state = %v, want CLOSED", c.state)
	}
	if c.rto != InitialRTO {
		t.Errorf("rto = %v, want %v", c.rto, InitialRTO)
	}
	if c.ssthresh != 0xFFFF {
		t.Errorf("ssthresh = %d, want 0xFFFF", c.ssthresh)
	}
}

func TestAllocateBuffersRollsBackOnRxFailure(t *testing.T) {
	pool := newMemPool(20, 16)
	c := newTCB(collaboratorSet{pool: pool})

	// Exhaust the pool after the TX buffer's share so the RX allocation fails.
	pool.capacity = 15

	if err := c.allocateBuffers(160, 160); err == nil {
		t.Fatal("expected allocateBuffers to fail when the pool can't satisfy the rx buffer")
	}
	if pool.used != 0 {
		t.Errorf("pool.used = %d after rollback, want 0", pool.used)
	}
}

func TestAllocateBuffersSucceeds(t *testing.T) {
	pool := newMemPool(30, 16)
	c := newTCB(collaboratorSet{pool: pool})

	if err := c.allocateBuffers(160, 160); err != nil {
		t.Fatalf("allocateBuffers: %v", err)
	}
	if c.txBuffer == nil || c.rxBuffer == nil {
		t.Fatal("expected both tx and rx buffers to be allocated")
	}
	if c.txBufferSize != 160 || c.rxBufferSize != 160 {
		t.Errorf("txBufferSize/rxBufferSize = %d/%d, want 160/160", c.txBufferSize, c.rxBufferSize)
	}
}

func TestDeleteControlBlockResetsState(t *testing.T) {
	pool := newMemPool(30, 16)
	c := newTCB(collaboratorSet{pool: pool})
	if err := c.allocateBuffers(160, 160); err != nil {
		t.Fatalf("allocateBuffers: %v", err)
	}
	c.state = StateEstablished
	c.remotePort = 4242

	c.deleteControlBlock()

	if c.state != StateClosed {
		t.Errorf("state = %v, want CLOSED", c.state)
	}
	if c.txBuffer != nil || c.rxBuffer != nil {
		t.Error("expected both buffers to be released")
	}
	if c.remotePort != 0 || c.remoteAddr != nil {
		t.Error("expected remote identity to be cleared")
	}
	if pool.used != 0 {
		t.Errorf("pool.used = %d after deleteControlBlock, want 0", pool.used)
	}
}

func TestSetCongestionDefaults(t *testing.T) {
	c := newTCB(collaboratorSet{})
	c.smss = DefaultMSS
	c.txBufferSize = MaxTxBufferSize
	c.sndUna = 1000

	c.setCongestionDefaults()

	if c.congestState != CongestIdle {
		t.Errorf("congestState = %v, want IDLE", c.congestState)
	}
	if c.recover != 1000 {
		t.Errorf("recover = %d, want 1000 (snd_una)", c.recover)
	}
	if c.ssthresh != 0xFFFF {
		t.Errorf("ssthresh = %d, want 0xFFFF", c.ssthresh)
	}
	if want := initialCongestionWindow(DefaultMSS, MaxTxBufferSize); c.cwnd != want {
		t.Errorf("cwnd = %d, want %d", c.cwnd, want)
	}
}

func TestFreeTxSpace(t *testing.T) {
	c := newTCB(collaboratorSet{})
	c.txBufferSize = 1000
	c.sndUna = 100
	c.sndNxt = 150 // 50 bytes outstanding
	c.sndUser = 200

	if got, want := c.freeTxSpace(), 1000-(200+50); got != want {
		t.Errorf("freeTxSpace() = %d, want %d", got, want)
	}
}

func TestFreeTxSpaceNeverNegative(t *testing.T) {
	c := newTCB(collaboratorSet{})
	c.txBufferSize = 10
	c.sndUser = 100

	if got := c.freeTxSpace(); got != 0 {
		t.Errorf("freeTxSpace() = %d, want 0 when oversubscribed", got)
	}
}
