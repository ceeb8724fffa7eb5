// Package entropy supplies non-deterministic seeds for wind fields
// configured with seed 0. Deterministic runs never touch it.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	"time"
)

// ResolveSeed returns seed unchanged when it is non-zero. A zero seed means
// "pick one": a fresh non-zero seed is drawn from crypto/rand.
func ResolveSeed(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	return CryptoSeed()
}

// CryptoSeed returns a random non-zero int64 from crypto/rand, falling back
// to the wall clock if the system source is unavailable.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen but keep the run going.
		return clockSeed()
	}
	s := int64(binary.LittleEndian.Uint64(buf[:]) & math.MaxInt64)
	if s == 0 {
		return clockSeed()
	}
	return s
}

func clockSeed() int64 {
	s := time.Now().UnixNano() & math.MaxInt64
	if s == 0 {
		s = 1
	}
	return s
}
