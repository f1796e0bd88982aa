package sdc

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"time"
)

// Random is the source of the sampler's draws.
type Random interface {
	Uint64N(n uint64) uint64
	IntN(n int) int
}

var processStart = time.Now()

// newRandom seeds from the OS entropy pool, or from the wall and monotonic
// clocks when that is unavailable. The fallback is predictable, which is fine
// here.
func newRandom() *rand.Rand {
	var seed [16]byte
	if _, err := cryptorand.Read(seed[:]); err == nil {
		return rand.New(rand.NewPCG(binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:])))
	}
	return rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(time.Since(processStart))))
}
