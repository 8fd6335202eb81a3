// Package command implements the configured button commands of the bot and
// the dispatch flow that turns a click into a persisted state change and a
// platform update.
//
// Configs and states are closed tagged unions. Every operation that depends
// on the command kind switches over the variants in one place, so adding a
// kind means extending Kinds and each switch.
package command

import "fmt"

// Kind identifies a command.
type Kind string

const (
	KindCustomDice   Kind = "custom_dice"
	KindSumCustomSet Kind = "sum_custom_set"
	KindRerollAnswer Kind = "reroll_answer"
)

// Kinds lists every supported kind.
func Kinds() []Kind {
	return []Kind{KindCustomDice, KindSumCustomSet, KindRerollAnswer}
}

// ParseKind validates a stored or encoded kind.
func ParseKind(value string) (Kind, error) {
	for _, kind := range Kinds() {
		if string(kind) == value {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown command kind %q", value)
}
