package command

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/louisbranch/dicebot/internal/dice"
	apperrors "github.com/louisbranch/dicebot/internal/platform/errors"
	"github.com/louisbranch/dicebot/internal/reroll"
)

// Button values that are not configured expressions.
const (
	ValueRoll     = "roll"
	ValueClear    = "clear"
	ValueBack     = "back"
	ValueReroll   = "reroll"
	ValueRollAll  = "roll_all"
	ValueFinish   = "finish"
	maxLabelRunes = 80
)

// Evaluator compiles and rolls dice expressions.
type Evaluator interface {
	reroll.Evaluator
	Compile(expression string) (*dice.Expression, error)
}

// Invoker is the user behind an event.
type Invoker struct {
	ID   string
	Name string
}

func configError(reason string, cause error) error {
	return apperrors.WrapWithMetadata(apperrors.CodeConfigurationInvalid, reason, map[string]string{"Reason": reason}, cause)
}

// validate checks a config before it is stored.
func validate(cfg Config, ev Evaluator) error {
	if cfg == nil {
		return configError("command is not configured", nil)
	}
	switch cfg.base().Interaction {
	case "", InteractionNone, InteractionReroll:
	default:
		return configError(fmt.Sprintf("unknown interaction %q", cfg.base().Interaction), nil)
	}

	switch c := cfg.(type) {
	case *CustomDiceConfig:
		return validateButtons(c.Buttons, MaxCustomDiceButtons, ev)
	case *SumCustomSetConfig:
		return validateButtons(c.Buttons, MaxSumCustomSetButtons, ev)
	case *RerollAnswerConfig:
		if strings.TrimSpace(c.OwnerID) == "" {
			return configError("reroll owner is required", nil)
		}
		if c.Interaction == InteractionReroll {
			return configError("reroll answers cannot start another reroll", nil)
		}
		if _, err := ev.Compile(c.Expression); err != nil {
			return configError(fmt.Sprintf("%s: %v", c.Expression, err), err)
		}
		return nil
	default:
		return configError(fmt.Sprintf("unsupported command %T", cfg), nil)
	}
}

func validateButtons(buttons []ButtonSpec, limit int, ev Evaluator) error {
	if len(buttons) == 0 {
		return configError("at least one button is required", nil)
	}
	if len(buttons) > limit {
		return configError(fmt.Sprintf("at most %d buttons are allowed", limit), nil)
	}
	seen := make(map[string]bool, len(buttons))
	for _, b := range buttons {
		if b.ID == "" || seen[b.ID] {
			return configError(fmt.Sprintf("button id %q is missing or repeated", b.ID), nil)
		}
		seen[b.ID] = true
		if utf8.RuneCountInString(b.Text()) > maxLabelRunes {
			return configError(fmt.Sprintf("button label %q is longer than %d characters", b.Text(), maxLabelRunes), nil)
		}
		if _, err := ev.Compile(b.Expression); err != nil {
			return configError(fmt.Sprintf("%s: %v", b.Expression, err), err)
		}
	}
	return nil
}

// emptyState is the state of a freshly posted button message.
func emptyState(cfg Config) State {
	switch cfg.(type) {
	case *SumCustomSetConfig:
		return NewState(SumCustomSetState{})
	default:
		return NewState(EmptyState{})
	}
}

// apply derives the state that follows prior when value is clicked.
func apply(cfg Config, prior State, value string, user Invoker, ev Evaluator) (State, error) {
	switch c := cfg.(type) {
	case *CustomDiceConfig:
		if _, ok := findButton(c.Buttons, value); !ok {
			return State{}, apperrors.New(apperrors.CodeInvalidSelection, fmt.Sprintf("unknown button %q", value))
		}
		return State{ButtonValue: value, Data: EmptyState{}}, nil

	case *SumCustomSetConfig:
		current, _ := prior.Data.(SumCustomSetState)
		parts := append([]string(nil), current.Parts...)
		switch value {
		case ValueRoll:
		case ValueClear:
			parts = nil
		case ValueBack:
			if len(parts) > 0 {
				parts = parts[:len(parts)-1]
			}
		default:
			b, ok := findButton(c.Buttons, value)
			if !ok {
				return State{}, apperrors.New(apperrors.CodeInvalidSelection, fmt.Sprintf("unknown button %q", value))
			}
			parts = append(parts, b.Expression)
		}
		if len(parts) == 0 {
			parts = nil
		}
		return State{ButtonValue: value, Data: SumCustomSetState{Parts: parts}}, nil

	case *RerollAnswerConfig:
		if user.ID != c.OwnerID {
			return State{}, apperrors.WithMetadata(apperrors.CodeWrongUser, "only the owner may reroll", map[string]string{"Owner": c.OwnerName})
		}
		current, ok := prior.Data.(RerollState)
		if !ok {
			return State{}, apperrors.New(apperrors.CodeUnknownRecordFormat, fmt.Sprintf("reroll message holds %s state", stateKindOf(prior)))
		}
		next, err := applyReroll(current.Session, value, ev)
		if err != nil {
			return State{}, err
		}
		return State{ButtonValue: value, Data: RerollState{Session: next}}, nil

	default:
		return State{}, apperrors.New(apperrors.CodeUnknownRecordFormat, fmt.Sprintf("unsupported command %T", cfg))
	}
}

func applyReroll(session reroll.Session, value string, ev Evaluator) (reroll.Session, error) {
	var (
		next reroll.Session
		err  error
	)
	switch value {
	case ValueReroll:
		var changed bool
		next, changed, err = session.Reroll(ev)
		if err == nil && !changed {
			return session, apperrors.New(apperrors.CodeNothingSelected, "no dice marked for reroll")
		}
	case ValueRollAll:
		next, err = session.RerollAll(ev)
	case ValueFinish:
		next = session.Finish()
	default:
		id, parseErr := dice.ParseDieID(value)
		if parseErr != nil {
			return session, apperrors.Wrap(apperrors.CodeInvalidSelection, "parse die selection", parseErr)
		}
		next, err = session.Toggle(id)
	}
	switch {
	case errors.Is(err, reroll.ErrInvalidSelection), errors.Is(err, reroll.ErrFinished):
		return session, apperrors.Wrap(apperrors.CodeInvalidSelection, "toggle die", err)
	case err != nil:
		return session, apperrors.WithMetadata(apperrors.CodeEvaluationFailed, err.Error(), map[string]string{
			"Expression": session.Result.Expression,
			"Reason":     err.Error(),
		})
	}
	return next, nil
}

func stateKindOf(state State) StateKind {
	if state.Data == nil {
		return StateEmpty
	}
	return state.Data.StateKind()
}

// rollTarget returns the expression and label a click rolls. ok is false
// when the state does not call for a roll.
func rollTarget(cfg Config, state State) (expression, label string, ok bool) {
	switch c := cfg.(type) {
	case *CustomDiceConfig:
		b, found := findButton(c.Buttons, state.ButtonValue)
		if !found {
			return "", "", false
		}
		return b.Expression, b.Label, true
	case *SumCustomSetConfig:
		data, _ := state.Data.(SumCustomSetState)
		if state.ButtonValue != ValueRoll || len(data.Parts) == 0 {
			return "", "", false
		}
		return joinParts(data.Parts), "", true
	default:
		return "", "", false
	}
}

// joinParts sums expressions, keeping explicit signs of later parts.
func joinParts(parts []string) string {
	var b strings.Builder
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if i > 0 && !strings.HasPrefix(part, "-") && !strings.HasPrefix(part, "+") {
			b.WriteString("+")
		}
		b.WriteString(part)
	}
	return b.String()
}
