package command

import (
	"strconv"
	"strings"
)

// Interaction selects what an answer message offers after a roll.
type Interaction string

const (
	InteractionNone   Interaction = "none"
	InteractionReroll Interaction = "reroll"
)

// Base holds the fields shared by every config.
type Base struct {
	// AnswerTargetChannelID posts answers to another channel. The button
	// message then stays in place instead of moving to the channel end.
	AnswerTargetChannelID string      `yaml:"answerTargetChannelId,omitempty"`
	Locale                string      `yaml:"locale,omitempty"`
	Interaction           Interaction `yaml:"interaction,omitempty"`
}

// ButtonSpec maps one button to a dice expression.
type ButtonSpec struct {
	ID         string `yaml:"id"`
	Expression string `yaml:"expression"`
	Label      string `yaml:"label,omitempty"`
}

// Text returns the label shown on the button.
func (b ButtonSpec) Text() string {
	if b.Label != "" {
		return b.Label
	}
	return b.Expression
}

// Config is an immutable command configuration. The variants are
// *CustomDiceConfig, *SumCustomSetConfig and *RerollAnswerConfig.
type Config interface {
	Kind() Kind
	base() Base
}

// CustomDiceConfig rolls the expression of the clicked button.
type CustomDiceConfig struct {
	Base    `yaml:",inline"`
	Buttons []ButtonSpec `yaml:"buttons"`
}

// SumCustomSetConfig collects button expressions and rolls their sum.
type SumCustomSetConfig struct {
	Base    `yaml:",inline"`
	Buttons []ButtonSpec `yaml:"buttons"`
}

// RerollAnswerConfig is created for every answer that offers rerolls. It
// refers back to the config that produced the roll.
type RerollAnswerConfig struct {
	Base           `yaml:",inline"`
	Expression     string `yaml:"expression"`
	Label          string `yaml:"label,omitempty"`
	OwnerID        string `yaml:"ownerId"`
	OwnerName      string `yaml:"ownerName,omitempty"`
	ParentConfigID string `yaml:"parentConfigId"`
}

func (c *CustomDiceConfig) Kind() Kind   { return KindCustomDice }
func (c *SumCustomSetConfig) Kind() Kind { return KindSumCustomSet }
func (c *RerollAnswerConfig) Kind() Kind { return KindRerollAnswer }

func (c *CustomDiceConfig) base() Base   { return c.Base }
func (c *SumCustomSetConfig) base() Base { return c.Base }
func (c *RerollAnswerConfig) base() Base { return c.Base }

// Limits on configured buttons.
const (
	MaxCustomDiceButtons   = 25
	MaxSumCustomSetButtons = 20
	MaxRerollDice          = 20
)

const (
	buttonIDSuffix = "_button"
	labelSeparator = "@"
	specSeparator  = ";"
)

// ButtonID returns the id of the button at index i.
func ButtonID(i int) string {
	return strconv.Itoa(i) + buttonIDSuffix
}

// ParseButtonSpecs parses slash command input such as
// "1d20@Attack;2d6+3@Damage;1d4" into button specs. Blank entries are
// skipped.
func ParseButtonSpecs(text string) []ButtonSpec {
	var specs []ButtonSpec
	for _, raw := range strings.Split(text, specSeparator) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		expression, label, _ := strings.Cut(raw, labelSeparator)
		specs = append(specs, ButtonSpec{
			ID:         ButtonID(len(specs) + 1),
			Expression: strings.TrimSpace(expression),
			Label:      strings.TrimSpace(label),
		})
	}
	return specs
}

func findButton(buttons []ButtonSpec, id string) (ButtonSpec, bool) {
	for _, b := range buttons {
		if b.ID == id {
			return b, true
		}
	}
	return ButtonSpec{}, false
}
