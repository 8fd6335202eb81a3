// Package reroll implements the selective reroll workflow over a rolled
// dice result.
//
// A Session starts in PhaseAwaitingSelection with an empty marked set. The
// owner toggles individual dice, rerolls the marked ones, rerolls the whole
// expression, or finishes. Sessions are values: every transition returns a
// new Session and leaves the receiver untouched.
package reroll

import (
	"errors"
	"fmt"
	"slices"

	"github.com/louisbranch/dicebot/internal/dice"
)

// ErrInvalidSelection indicates a toggle for a die that is not part of the
// current roll, for example a stale button from an earlier round.
var ErrInvalidSelection = errors.New("selection no longer valid")

// ErrFinished indicates an action on a finished session.
var ErrFinished = errors.New("reroll session finished")

// Phase is the lifecycle phase of a session.
type Phase string

const (
	PhaseAwaitingSelection Phase = "awaiting_selection"
	PhaseFinished          Phase = "finished"
)

// Evaluator rolls expressions and rerolls individual dice.
type Evaluator interface {
	Evaluate(expression string, reEvaluate int) (dice.Result, error)
	Reroll(prior dice.Result, marked func(dice.DieID) bool) dice.Result
}

// Session is the state of one reroll workflow.
type Session struct {
	Phase Phase `yaml:"phase"`
	// Round counts settled reroll actions.
	Round int `yaml:"round"`
	// ReEvaluate counts full re-evaluations of the expression.
	ReEvaluate int         `yaml:"reEvaluate"`
	Result     dice.Result `yaml:"result"`
	// Marked holds the selected dice in DieID order. Empty is nil.
	Marked []dice.DieID `yaml:"marked,omitempty"`
}

// Start rolls expression and opens a session awaiting selection.
func Start(ev Evaluator, expression string) (Session, error) {
	result, err := ev.Evaluate(expression, 0)
	if err != nil {
		return Session{}, err
	}
	return Session{Phase: PhaseAwaitingSelection, Result: result}, nil
}

// Finished reports whether the session is terminal.
func (s Session) Finished() bool {
	return s.Phase == PhaseFinished
}

// IsMarked reports whether id is selected.
func (s Session) IsMarked(id dice.DieID) bool {
	_, found := slices.BinarySearchFunc(s.Marked, id, compareIDs)
	return found
}

// Toggle flips the selection of id. An unknown id leaves the session
// unchanged and returns ErrInvalidSelection.
func (s Session) Toggle(id dice.DieID) (Session, error) {
	if s.Finished() {
		return s, ErrFinished
	}
	if _, ok := s.Result.Find(id); !ok {
		return s, fmt.Errorf("%w: %s", ErrInvalidSelection, id)
	}

	next := s
	idx, found := slices.BinarySearchFunc(s.Marked, id, compareIDs)
	if found {
		next.Marked = slices.Delete(slices.Clone(s.Marked), idx, idx+1)
	} else {
		next.Marked = slices.Insert(slices.Clone(s.Marked), idx, id)
	}
	if len(next.Marked) == 0 {
		next.Marked = nil
	}
	return next, nil
}

// Reroll draws fresh values for the marked dice and clears the selection.
// With nothing marked the session is returned unchanged and changed is
// false.
func (s Session) Reroll(ev Evaluator) (next Session, changed bool, err error) {
	if s.Finished() {
		return s, false, ErrFinished
	}
	if len(s.Marked) == 0 {
		return s, false, nil
	}
	next = s
	next.Result = ev.Reroll(s.Result, s.IsMarked)
	next.Marked = nil
	next.Round++
	return next, true, nil
}

// RerollAll discards every die and evaluates the expression fresh. All new
// dice carry the incremented re-evaluation counter and a reroll count of 0.
func (s Session) RerollAll(ev Evaluator) (Session, error) {
	if s.Finished() {
		return s, ErrFinished
	}
	reEvaluate := s.ReEvaluate + 1
	result, err := ev.Evaluate(s.Result.Expression, reEvaluate)
	if err != nil {
		return s, err
	}
	next := s
	next.ReEvaluate = reEvaluate
	next.Result = result
	next.Marked = nil
	next.Round++
	return next, nil
}

// Finish closes the session. The final result is kept for display.
func (s Session) Finish() Session {
	next := s
	next.Phase = PhaseFinished
	next.Marked = nil
	return next
}

func compareIDs(a, b dice.DieID) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	default:
		return 0
	}
}
