// Package seq implements TCP serial-number arithmetic: comparisons on
// 32-bit sequence numbers that wrap around modulo 2^32.
package seq

import "math"

// Increment returns seq+1 with implicit modulo-2^32 wraparound.
func Increment(seq uint32) uint32 {
	return uint32(uint64(seq) + 1)
}

// IncrementBy returns seq+n with implicit modulo-2^32 wraparound.
func IncrementBy(seq, n uint32) uint32 {
	return uint32(uint64(seq) + uint64(n))
}

// Greater reports whether seq1 is ahead of seq2 in sequence space, taking
// wraparound into account.
func Greater(seq1, seq2 uint32) bool {
	if seq1 == seq2 {
		return false
	}

	diff := int64(seq1) - int64(seq2)
	if diff < 0 {
		diff = -diff
	}
	wrapdiff := int64(math.MaxUint32 + 1 - diff)

	distance := diff
	if wrapdiff < distance {
		distance = wrapdiff
	}

	return (distance+int64(seq2))%(math.MaxUint32+1) == int64(seq1)
}

// GreaterOrEqual reports whether seq1 is at or ahead of seq2.
func GreaterOrEqual(seq1, seq2 uint32) bool {
	return Greater(seq1, seq2) || seq1 == seq2
}

// Less reports whether seq1 is behind seq2.
func Less(seq1, seq2 uint32) bool {
	return !GreaterOrEqual(seq1, seq2)
}

// LessOrEqual reports whether seq1 is at or behind seq2.
func LessOrEqual(seq1, seq2 uint32) bool {
	return !Greater(seq1, seq2)
}
