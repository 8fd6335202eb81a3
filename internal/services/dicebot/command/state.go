package command

import "github.com/louisbranch/dicebot/internal/reroll"

// StateKind identifies the variant of StateData.
type StateKind string

const (
	StateEmpty        StateKind = "empty"
	StateSumCustomSet StateKind = "sum_custom_set"
	StateReroll       StateKind = "reroll"
)

// StateData is the command-specific part of a state. The variants are
// EmptyState, SumCustomSetState and RerollState.
type StateData interface {
	StateKind() StateKind
}

// EmptyState carries nothing beyond the button value.
type EmptyState struct{}

// SumCustomSetState holds the expressions selected so far.
type SumCustomSetState struct {
	Parts []string `yaml:"parts,omitempty"`
}

// RerollState holds a reroll session.
type RerollState struct {
	Session reroll.Session `yaml:"session"`
}

func (EmptyState) StateKind() StateKind        { return StateEmpty }
func (SumCustomSetState) StateKind() StateKind { return StateSumCustomSet }
func (RerollState) StateKind() StateKind       { return StateReroll }

// State is the mutable interaction payload of one message. A new State
// always replaces the previous one.
type State struct {
	ButtonValue string
	Data        StateData
}

// NewState returns a state with no button value.
func NewState(data StateData) State {
	if data == nil {
		data = EmptyState{}
	}
	return State{Data: data}
}
