package dice

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidDieID indicates a serialized die id could not be parsed.
var ErrInvalidDieID = errors.New("invalid die id")

const dieIDSeparator = "_"

// DieID identifies one die within an evaluated expression.
//
// Two ids are equal when all fields are equal, so an id read back from
// storage compares equal to the one that was written.
type DieID struct {
	// Position is the offset of the die term in the normalized expression.
	Position int `yaml:"position"`
	// Kind is the die kind tag, for example "d6" or "df".
	Kind string `yaml:"kind"`
	// ReEvaluate increments each time the whole expression is rolled fresh.
	ReEvaluate int `yaml:"reEvaluate"`
	// Index is the die number within its term, starting at 0.
	Index int `yaml:"index"`
	// Reroll increments each time this die alone is rerolled.
	Reroll int `yaml:"reroll"`
}

// String returns the compact form used as button value.
func (id DieID) String() string {
	return strings.Join([]string{
		strconv.Itoa(id.Position),
		id.Kind,
		strconv.Itoa(id.ReEvaluate),
		strconv.Itoa(id.Index),
		strconv.Itoa(id.Reroll),
	}, dieIDSeparator)
}

// Less orders ids by position, re-evaluation, index and reroll count.
func (id DieID) Less(other DieID) bool {
	switch {
	case id.Position != other.Position:
		return id.Position < other.Position
	case id.ReEvaluate != other.ReEvaluate:
		return id.ReEvaluate < other.ReEvaluate
	case id.Index != other.Index:
		return id.Index < other.Index
	case id.Reroll != other.Reroll:
		return id.Reroll < other.Reroll
	default:
		return id.Kind < other.Kind
	}
}

// ParseDieID parses the String form of a die id.
func ParseDieID(value string) (DieID, error) {
	parts := strings.Split(strings.TrimSpace(value), dieIDSeparator)
	if len(parts) != 5 {
		return DieID{}, fmt.Errorf("%w: %q", ErrInvalidDieID, value)
	}
	numbers := make([]int, 0, 4)
	for _, idx := range []int{0, 2, 3, 4} {
		n, err := strconv.Atoi(parts[idx])
		if err != nil || n < 0 {
			return DieID{}, fmt.Errorf("%w: %q", ErrInvalidDieID, value)
		}
		numbers = append(numbers, n)
	}
	if parts[1] == "" {
		return DieID{}, fmt.Errorf("%w: %q", ErrInvalidDieID, value)
	}
	return DieID{
		Position:   numbers[0],
		Kind:       parts[1],
		ReEvaluate: numbers[1],
		Index:      numbers[2],
		Reroll:     numbers[3],
	}, nil
}

// Die is one rolled die and its face value.
type Die struct {
	ID    DieID `yaml:"id"`
	Value int   `yaml:"value"`
}
