package tcp

import (
	"crypto/rand"
	"encoding/binary"
)

// generateISN picks a cryptographically random initial sequence number,
// adapted from the teacher's lib/packet.go GenerateISN. Used for both the
// active-open ISS (spec.md §4.3.1) and the child ISS assigned in accept
// (spec.md §4.3.2).
func generateISN() (uint32, error) {
	var isn uint32
	if err := binary.Read(rand.Reader, binary.BigEndian, &isn); err != nil {
		return 0, err
	}
	return isn, nil
}
