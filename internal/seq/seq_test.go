package seq

import (
	"math"
	"testing"
)

func TestGreater(t *testing.T) {
	testCases := []struct {
		seq1, seq2 uint32
		expected   bool
	}{
		{seq1: 10, seq2: 5, expected: true},
		{seq1: 5, seq2: 10, expected: false},
		{seq1: 5, seq2: 4294967295, expected: true},
		{seq1: 4294967295, seq2: 5, expected: false},
		{seq1: 2147483647, seq2: 2147483646, expected: true},
		{seq1: 2147483646, seq2: 2147483647, expected: false},
		{seq1: 0, seq2: 4294967295, expected: true},
		{seq1: 4294967295, seq2: 0, expected: false},
		{seq1: 100, seq2: 100, expected: false},
	}

	for _, tc := range testCases {
		if got := Greater(tc.seq1, tc.seq2); got != tc.expected {
			t.Errorf("Greater(%d, %d) = %t, want %t", tc.seq1, tc.seq2, got, tc.expected)
		}
	}
}

func TestIncrementWraps(t *testing.T) {
	if got := Increment(math.MaxUint32); got != 0 {
		t.Errorf("Increment(MaxUint32) = %d, want 0", got)
	}
}

func TestLessOrEqual(t *testing.T) {
	if !LessOrEqual(5, 5) {
		t.Error("expected 5 <= 5")
	}
	if !LessOrEqual(5, 10) {
		t.Error("expected 5 <= 10")
	}
	if LessOrEqual(10, 5) {
		t.Error("expected 10 > 5")
	}
}
