// Package chat defines the capability the bot needs from a chat platform and
// the platform-neutral message values passed through it.
package chat

import (
	"context"
	"strings"
)

// ButtonStyle selects the visual emphasis of a button.
type ButtonStyle int

const (
	StyleSecondary ButtonStyle = iota
	StylePrimary
	StyleSuccess
	StyleDanger
)

// Button is one clickable component. CustomID is echoed back in the Event
// when the button is clicked.
type Button struct {
	CustomID string
	Label    string
	Style    ButtonStyle
	Disabled bool
}

// Row is one horizontal group of buttons.
type Row []Button

// Layout is the ordered set of button rows attached to a message.
type Layout []Row

// MaxRows and MaxButtonsPerRow bound a layout.
const (
	MaxRows          = 5
	MaxButtonsPerRow = 5
)

// Buttons returns every button of the layout in order.
func (l Layout) Buttons() []Button {
	var out []Button
	for _, row := range l {
		out = append(out, row...)
	}
	return out
}

// Equal reports whether two layouts render identically.
func (l Layout) Equal(other Layout) bool {
	if len(l) != len(other) {
		return false
	}
	for i := range l {
		if len(l[i]) != len(other[i]) {
			return false
		}
		for j := range l[i] {
			if l[i][j] != other[i][j] {
				return false
			}
		}
	}
	return true
}

// Grid arranges buttons in rows of perRow.
func Grid(buttons []Button, perRow int) Layout {
	if perRow <= 0 {
		perRow = MaxButtonsPerRow
	}
	var layout Layout
	for start := 0; start < len(buttons); start += perRow {
		end := min(start+perRow, len(buttons))
		layout = append(layout, append(Row(nil), buttons[start:end]...))
	}
	return layout
}

// Field is one named value shown below an answer.
type Field struct {
	Name  string
	Value string
}

// Answer is the user-visible result of one command execution.
type Answer struct {
	Title  string
	Body   string
	Fields []Field
	// Author names the user the answer was rolled for.
	Author string
}

// Message is the content of one platform message.
type Message struct {
	Content string
	Answer  *Answer
	Layout  Layout
}

// Event is one inbound button click.
type Event struct {
	GuildID   string
	ChannelID string
	MessageID string
	CustomID  string
	UserID    string
	UserName  string
	Locale    string
	// Pinned reports whether the clicked message is pinned in its channel.
	Pinned bool
	// Reply carries platform data needed to answer the click privately.
	Reply ReplyHandle
}

// ReplyHandle identifies the interaction a private reply belongs to.
type ReplyHandle struct {
	ApplicationID    string
	InteractionToken string
}

// Validate reports whether the event carries the fields the engine needs.
func (e Event) Validate() bool {
	return strings.TrimSpace(e.ChannelID) != "" &&
		strings.TrimSpace(e.MessageID) != "" &&
		e.CustomID != ""
}

// Platform is the set of outbound operations the bot performs.
type Platform interface {
	// CreateMessage posts msg to channelID and returns the new message id.
	CreateMessage(ctx context.Context, channelID string, msg Message) (string, error)
	// EditMessage replaces the content and layout of an existing message.
	EditMessage(ctx context.Context, channelID, messageID string, msg Message) error
	// DeleteMessage removes a message.
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	// Reply answers the user that triggered event with a private message.
	Reply(ctx context.Context, event Event, text string) error
}
