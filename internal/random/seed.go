// Package random provides number sources for dice evaluation.
//
// Production code draws from a seeded pseudo-random generator whose seed
// comes from crypto/rand. Tests use a fixed Sequence so every roll is known
// in advance.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Source draws uniform die faces from a seeded generator. It is safe for
// concurrent use.
type Source struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSource creates a source deterministic with respect to seed.
func NewSource(seed int64) *Source {
	return &Source{rng: rand.New(rand.NewSource(seed))}
}

// NewSeededSource creates a source seeded from crypto/rand.
func NewSeededSource() (*Source, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return NewSource(seed), nil
}

// Roll returns a value in [1, sides].
func (s *Source) Roll(sides int) int {
	if sides <= 1 {
		return 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(sides) + 1
}
