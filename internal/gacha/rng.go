package gacha

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// RandomSource is the only source of randomness for rarity and card draws.
// Implementations must be safe for concurrent use.
type RandomSource interface {
	Float64() float64 // [0, 1)
	IntN(n int) int   // [0, n), n > 0
}

// crypto random: default generation method
type cryptoRNG struct{}

func (cryptoRNG) uint64() uint64 {
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err != nil {
		// back to math/rand/v2
		return rand.Uint64()
	}
	return binary.BigEndian.Uint64(buf[:])
}

func (c cryptoRNG) Float64() float64 {
	// 53 bits => [0, 1)
	u := c.uint64() >> 11
	return float64(u) / (1 << 53)
}

func (c cryptoRNG) IntN(n int) int {
	if n <= 0 {
		panic("gacha: IntN called with n <= 0")
	}
	// reject the tail so every index is equally likely
	bound := uint64(n)
	limit := ^uint64(0) - (^uint64(0) % bound)
	for {
		u := c.uint64()
		if u < limit {
			return int(u % bound)
		}
	}
}

func DefaultRNG() RandomSource { return cryptoRNG{} }

// Replicable RNG (e.g. Monte Carlo, QA deployments)
type seededRNG struct {
	mu sync.Mutex
	r  *rand.Rand
}

func NewSeededRNG(seed uint64) RandomSource {
	return &seededRNG{r: rand.New(rand.NewPCG(seed, 0))}
}

func (s *seededRNG) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

func (s *seededRNG) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}
