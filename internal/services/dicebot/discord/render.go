package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/louisbranch/dicebot/internal/services/dicebot/chat"
)

// Discord limits on embed text.
const (
	maxEmbedTitle       = 256
	maxEmbedDescription = 4096
)

func messageSend(msg chat.Message) *discordgo.MessageSend {
	send := &discordgo.MessageSend{
		Content:    msg.Content,
		Components: components(msg.Layout),
	}
	if embed := embed(msg.Answer); embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{embed}
	}
	return send
}

// messageEdit always sets every field so stale embeds and components are
// cleared.
func messageEdit(channelID, messageID string, msg chat.Message) *discordgo.MessageEdit {
	edit := discordgo.NewMessageEdit(channelID, messageID)
	content := msg.Content
	edit.Content = &content
	rows := components(msg.Layout)
	if rows == nil {
		rows = []discordgo.MessageComponent{}
	}
	edit.Components = &rows
	embeds := []*discordgo.MessageEmbed{}
	if embed := embed(msg.Answer); embed != nil {
		embeds = append(embeds, embed)
	}
	edit.Embeds = &embeds
	return edit
}

func components(layout chat.Layout) []discordgo.MessageComponent {
	if len(layout) == 0 {
		return nil
	}
	rows := make([]discordgo.MessageComponent, 0, len(layout))
	for _, row := range layout {
		buttons := make([]discordgo.MessageComponent, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, discordgo.Button{
				Label:    b.Label,
				Style:    buttonStyle(b.Style),
				Disabled: b.Disabled,
				CustomID: b.CustomID,
			})
		}
		rows = append(rows, discordgo.ActionsRow{Components: buttons})
	}
	return rows
}

func buttonStyle(style chat.ButtonStyle) discordgo.ButtonStyle {
	switch style {
	case chat.StylePrimary:
		return discordgo.PrimaryButton
	case chat.StyleSuccess:
		return discordgo.SuccessButton
	case chat.StyleDanger:
		return discordgo.DangerButton
	default:
		return discordgo.SecondaryButton
	}
}

func embed(answer *chat.Answer) *discordgo.MessageEmbed {
	if answer == nil {
		return nil
	}
	e := &discordgo.MessageEmbed{
		Title:       truncate(answer.Title, maxEmbedTitle),
		Description: truncate(answer.Body, maxEmbedDescription),
	}
	if answer.Author != "" {
		e.Author = &discordgo.MessageEmbedAuthor{Name: answer.Author}
	}
	for _, f := range answer.Fields {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: true})
	}
	return e
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}
