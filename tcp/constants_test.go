package tcp

import "testing"

func TestClampSynQueueSize(t *testing.T) {
	cases := []struct {
		backlog int
		want    int
	}{
		{0, DefaultSynQueueSize},
		{-1, DefaultSynQueueSize},
		{1, 1},
		{MaxSynQueueSize, MaxSynQueueSize},
		{MaxSynQueueSize + 1, MaxSynQueueSize},
	}
	for _, tc := range cases {
		if got := clampSynQueueSize(tc.backlog); got != tc.want {
			t.Errorf("clampSynQueueSize(%d) = %d, want %d", tc.backlog, got, tc.want)
		}
	}
}

func TestInitialCongestionWindowSaturatesAtUint16Max(t *testing.T) {
	got := initialCongestionWindow(60000, 100000)
	if got != 0xFFFF {
		t.Errorf("initialCongestionWindow(60000, 100000) = %d, want 0xFFFF", got)
	}
}

func TestInitialCongestionWindowBoundedByTxBufferSize(t *testing.T) {
	got := initialCongestionWindow(DefaultMSS, 1000)
	if int(got) != 1000 {
		t.Errorf("initialCongestionWindow(%d, 1000) = %d, want 1000", DefaultMSS, got)
	}
}

func TestInitialCongestionWindowNormalCase(t *testing.T) {
	got := initialCongestionWindow(DefaultMSS, MaxTxBufferSize)
	want := uint16(InitialWindow * DefaultMSS)
	if got != want {
		t.Errorf("initialCongestionWindow(%d, %d) = %d, want %d", DefaultMSS, MaxTxBufferSize, got, want)
	}
}

func TestFlagsHas(t *testing.T) {
	f := FlagSYN | FlagACK
	if !f.Has(FlagSYN) {
		t.Error("expected FlagSYN to be set")
	}
	if !f.Has(FlagACK) {
		t.Error("expected FlagACK to be set")
	}
	if f.Has(FlagFIN) {
		t.Error("expected FlagFIN to be clear")
	}
}
