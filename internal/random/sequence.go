package random

import "sync"

// Sequence replays a fixed list of values, starting over when exhausted.
// Values larger than the requested sides are clamped to sides.
type Sequence struct {
	mu     sync.Mutex
	values []int
	next   int
}

// NewSequence creates a sequence source. An empty sequence always rolls 1.
func NewSequence(values ...int) *Sequence {
	return &Sequence{values: append([]int(nil), values...)}
}

// Roll returns the next value of the sequence.
func (s *Sequence) Roll(sides int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 1
	}
	value := s.values[s.next%len(s.values)]
	s.next++
	if value > sides {
		value = sides
	}
	if value < 1 {
		value = 1
	}
	return value
}

// Drawn reports how many values have been consumed.
func (s *Sequence) Drawn() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
