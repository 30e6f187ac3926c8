package sched

import (
	crand "crypto/rand"
	"encoding/binary"
	"hash/fnv"
	"math/rand/v2"
)

// newAttemptRand returns a generator private to one scheduling
// attempt, seeded from the OS entropy source. Sharing a locked global
// generator across parallel attempts would serialize them and defeat
// the collision-reduction purpose of the randomized policies.
func newAttemptRand() *rand.Rand {
	var b [16]byte
	// crypto/rand.Read does not fail on supported platforms.
	_, _ = crand.Read(b[:])
	return rand.New(rand.NewPCG(
		binary.LittleEndian.Uint64(b[:8]),
		binary.LittleEndian.Uint64(b[8:]),
	))
}

// hostnameHash maps a hostname to [0, 1) with FNV-1a over its UTF-8
// bytes. The hash family is part of the scheduling behavior: changing
// it shifts tie-break distributions across releases and needs a
// migration note.
func hostnameHash(hostname string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(hostname))
	return float64(h.Sum32()) / float64(1<<32)
}
