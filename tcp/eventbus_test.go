package tcp

import (
	"testing"
	"time"
)

func TestEventBusSetThenWaitReturnsImmediately(t *testing.T) {
	b := NewEventBus()
	b.Set(EventConnected)

	signaled, err := b.Wait(EventConnected|EventClosed, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if signaled&EventConnected == 0 {
		t.Errorf("signaled = %b, want EventConnected set", signaled)
	}
	if signaled&EventClosed != 0 {
		t.Errorf("signaled = %b, want EventClosed clear", signaled)
	}
}

func TestEventBusWaitWakesOnSet(t *testing.T) {
	b := NewEventBus()
	done := make(chan struct{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		b.Set(EventRxReady)
		close(done)
	}()

	signaled, err := b.Wait(EventRxReady, time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if signaled != EventRxReady {
		t.Errorf("signaled = %b, want EventRxReady", signaled)
	}
	<-done
}

func TestEventBusWaitTimesOut(t *testing.T) {
	b := NewEventBus()
	_, err := b.Wait(EventConnected, 10*time.Millisecond)
	if err != ErrTimeout {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestEventBusClear(t *testing.T) {
	b := NewEventBus()
	b.Set(EventTxReady)
	b.Clear(EventTxReady)
	if got := b.Signaled(EventTxReady); got != 0 {
		t.Errorf("Signaled(EventTxReady) = %b after Clear, want 0", got)
	}
}

func TestEventBusSetIsIdempotent(t *testing.T) {
	b := NewEventBus()
	b.Set(EventClosed)
	b.Set(EventClosed) // must not deadlock by double-closing the gen channel
	if got := b.Signaled(EventClosed); got != EventClosed {
		t.Errorf("Signaled(EventClosed) = %b, want EventClosed", got)
	}
}
