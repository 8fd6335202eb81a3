package command

import (
	"fmt"
	"strconv"

	"github.com/louisbranch/dicebot/internal/dice"
	"github.com/louisbranch/dicebot/internal/reroll"
	"github.com/louisbranch/dicebot/internal/services/dicebot/chat"
)

// Messages formats localized bot texts.
type Messages interface {
	Sprintf(locale string, key string, args ...any) string
}

// Message keys of the bot namespace.
const (
	keyProcessing       = "bot.processing"
	keyCustomDice       = "bot.message.custom_dice"
	keySumCustomSet     = "bot.message.sum_custom_set"
	keySumPending       = "bot.message.sum_custom_set.pending"
	keyReroll           = "bot.message.reroll"
	keyButtonRoll       = "bot.button.roll"
	keyButtonClear      = "bot.button.clear"
	keyButtonBack       = "bot.button.back"
	keyButtonReroll     = "bot.button.reroll"
	keyButtonRerollAll  = "bot.button.reroll_all"
	keyButtonFinish     = "bot.button.finish"
	keyAnswerRound      = "bot.answer.round"
	keyChannelCleared   = "bot.channel_cleared"
	keyStarted          = "bot.command.started"
	keyHelp             = "bot.help"
	dieButtonLabelFrame = "%d ∈ %s"
)

// Renderer builds message content and button layouts. Its output depends
// only on its inputs.
type Renderer struct {
	messages Messages
}

// NewRenderer creates a renderer over messages.
func NewRenderer(messages Messages) Renderer {
	return Renderer{messages: messages}
}

// Content returns the text shown above the buttons.
func (r Renderer) Content(cfg Config, state State) string {
	locale := cfg.base().Locale
	switch cfg.(type) {
	case *CustomDiceConfig:
		return r.messages.Sprintf(locale, keyCustomDice)
	case *SumCustomSetConfig:
		data, _ := state.Data.(SumCustomSetState)
		if len(data.Parts) == 0 {
			return r.messages.Sprintf(locale, keySumCustomSet)
		}
		return r.messages.Sprintf(locale, keySumPending, joinParts(data.Parts))
	case *RerollAnswerConfig:
		data, _ := state.Data.(RerollState)
		if data.Session.Finished() {
			return ""
		}
		return r.messages.Sprintf(locale, keyReroll)
	default:
		return ""
	}
}

// Buttons returns the button layout of a message of configID.
func (r Renderer) Buttons(configID string, cfg Config, state State) chat.Layout {
	locale := cfg.base().Locale
	switch c := cfg.(type) {
	case *CustomDiceConfig:
		return chat.Grid(r.specButtons(KindCustomDice, configID, c.Buttons), chat.MaxButtonsPerRow)

	case *SumCustomSetConfig:
		layout := chat.Grid(r.specButtons(KindSumCustomSet, configID, c.Buttons), chat.MaxButtonsPerRow)
		controls := chat.Row{
			{CustomID: NewCustomID(KindSumCustomSet, ValueRoll, configID).String(), Label: r.messages.Sprintf(locale, keyButtonRoll), Style: chat.StylePrimary},
			{CustomID: NewCustomID(KindSumCustomSet, ValueClear, configID).String(), Label: r.messages.Sprintf(locale, keyButtonClear), Style: chat.StyleDanger},
			{CustomID: NewCustomID(KindSumCustomSet, ValueBack, configID).String(), Label: r.messages.Sprintf(locale, keyButtonBack)},
		}
		return append(layout, controls)

	case *RerollAnswerConfig:
		data, _ := state.Data.(RerollState)
		if data.Session.Finished() {
			return nil
		}
		return r.rerollButtons(configID, locale, data.Session)

	default:
		return nil
	}
}

func (r Renderer) specButtons(kind Kind, configID string, specs []ButtonSpec) []chat.Button {
	buttons := make([]chat.Button, len(specs))
	for i, spec := range specs {
		buttons[i] = chat.Button{
			CustomID: NewCustomID(kind, spec.ID, configID).String(),
			Label:    spec.Text(),
		}
	}
	return buttons
}

func (r Renderer) rerollButtons(configID, locale string, session reroll.Session) chat.Layout {
	dieButtons := make([]chat.Button, 0, MaxRerollDice)
	for _, d := range session.Result.Dice() {
		if len(dieButtons) == MaxRerollDice {
			break
		}
		style := chat.StyleSecondary
		if session.IsMarked(d.ID) {
			style = chat.StylePrimary
		}
		dieButtons = append(dieButtons, chat.Button{
			CustomID: NewCustomID(KindRerollAnswer, d.ID.String(), configID).String(),
			Label:    fmt.Sprintf(dieButtonLabelFrame, d.Value, d.ID.Kind),
			Style:    style,
		})
	}
	layout := chat.Grid(dieButtons, chat.MaxButtonsPerRow)
	controls := chat.Row{
		{CustomID: NewCustomID(KindRerollAnswer, ValueReroll, configID).String(), Label: r.messages.Sprintf(locale, keyButtonReroll), Style: chat.StylePrimary, Disabled: len(session.Marked) == 0},
		{CustomID: NewCustomID(KindRerollAnswer, ValueRollAll, configID).String(), Label: r.messages.Sprintf(locale, keyButtonRerollAll)},
		{CustomID: NewCustomID(KindRerollAnswer, ValueFinish, configID).String(), Label: r.messages.Sprintf(locale, keyButtonFinish), Style: chat.StyleSuccess},
	}
	return append(layout, controls)
}

// ButtonMessage returns the full message for configID in state.
func (r Renderer) ButtonMessage(configID string, cfg Config, state State) chat.Message {
	return chat.Message{
		Content: r.Content(cfg, state),
		Layout:  r.Buttons(configID, cfg, state),
	}
}

// Processing returns the placeholder shown while a click is handled.
func (r Renderer) Processing(cfg Config) chat.Message {
	return chat.Message{Content: r.messages.Sprintf(cfg.base().Locale, keyProcessing)}
}

// ChannelCleared returns the confirmation after clearing a channel.
func (r Renderer) ChannelCleared(locale string, removed int) string {
	return r.messages.Sprintf(locale, keyChannelCleared, removed)
}

// Started returns the confirmation after a button message is posted.
func (r Renderer) Started(locale string) string {
	return r.messages.Sprintf(locale, keyStarted)
}

// Help returns the usage summary of the slash commands.
func (r Renderer) Help(locale string) string {
	return r.messages.Sprintf(locale, keyHelp)
}

// resultAnswer formats one evaluated roll.
func (r Renderer) resultAnswer(locale string, result dice.Result, label string, round int) *chat.Answer {
	title, body := result.Format(label)
	answer := &chat.Answer{Title: title, Body: body}
	if round > 0 {
		answer.Fields = []chat.Field{{Name: r.messages.Sprintf(locale, keyAnswerRound), Value: strconv.Itoa(round)}}
	}
	return answer
}
