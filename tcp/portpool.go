package tcp

import (
	"crypto/rand"
	"math/big"
	"sync"
)

// PortPool hands out ephemeral port numbers for dynamic (client-side) port
// allocation, spec.md §4.2. Unlike the teacher's lib/portpool.go (a
// pre-shuffled ring buffer of the whole range with allocate/return
// semantics), the spec mandates a simple monotonic counter reseeded by
// cryptographic randomness on first use or overflow, with no collision
// checking — duplicate detection is the bind layer's job. The mutex
// discipline and bounded range are carried over from the teacher; the
// allocation algorithm itself is adapted to match spec.md's invariants
// (get_dynamic_port called K times returns K distinct values modulo the
// ephemeral-range size).
type PortPool struct {
	mu      sync.Mutex
	min     uint16
	max     uint16
	current uint16
	seeded  bool
}

// NewPortPool creates a PortPool bounded to [min, max].
func NewPortPool(min, max uint16) *PortPool {
	return &PortPool{min: min, max: max}
}

// DefaultPortPool is bounded to [EphemeralMin, EphemeralMax].
func DefaultPortPool() *PortPool {
	return NewPortPool(EphemeralMin, EphemeralMax)
}

// Get returns the next dynamic port, advancing the counter by one and
// wrapping to min at max. The counter is seeded from a cryptographic
// random source whenever it falls outside [min, max]; since it wraps from
// max back to min, that happens only on first use.
func (p *PortPool) Get() (uint16, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.seeded || p.current < p.min || p.current > p.max {
		seed, err := p.reseed()
		if err != nil {
			return 0, err
		}
		p.current = seed
		p.seeded = true
	}

	port := p.current
	if p.current == p.max {
		p.current = p.min
	} else {
		p.current++
	}
	return port, nil
}

func (p *PortPool) reseed() (uint16, error) {
	span := int64(p.max) - int64(p.min) + 1
	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return 0, err
	}
	return p.min + uint16(n.Int64()), nil
}
