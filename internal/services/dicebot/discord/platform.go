// Package discord adapts the bot to Discord through discordgo: it renders
// platform-neutral messages as embeds and button rows, and turns gateway
// interactions into engine calls.
package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/louisbranch/dicebot/internal/platform/timeouts"
	"github.com/louisbranch/dicebot/internal/services/dicebot/chat"
)

// Client is the subset of *discordgo.Session the adapter calls.
type Client interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Platform implements chat.Platform over a Discord client.
type Platform struct {
	client Client
}

var _ chat.Platform = (*Platform)(nil)

// NewPlatform creates a platform over client.
func NewPlatform(client Client) (*Platform, error) {
	if client == nil {
		return nil, errors.New("discord client is required")
	}
	return &Platform{client: client}, nil
}

// CreateMessage posts msg and returns the Discord message id.
func (p *Platform) CreateMessage(ctx context.Context, channelID string, msg chat.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.PlatformCall)
	defer cancel()
	sent, err := p.client.ChannelMessageSendComplex(channelID, messageSend(msg), discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("send message to %s: %w", channelID, err)
	}
	return sent.ID, nil
}

// EditMessage replaces content, embed and components of a message.
func (p *Platform) EditMessage(ctx context.Context, channelID, messageID string, msg chat.Message) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.PlatformCall)
	defer cancel()
	if _, err := p.client.ChannelMessageEditComplex(messageEdit(channelID, messageID, msg), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("edit message %s/%s: %w", channelID, messageID, err)
	}
	return nil
}

// DeleteMessage removes a message.
func (p *Platform) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.PlatformCall)
	defer cancel()
	if err := p.client.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete message %s/%s: %w", channelID, messageID, err)
	}
	return nil
}

// Reply sends an ephemeral follow-up to the interaction behind event.
func (p *Platform) Reply(ctx context.Context, event chat.Event, text string) error {
	if event.Reply.InteractionToken == "" {
		return errors.New("event has no interaction to reply to")
	}
	return p.followup(ctx, &discordgo.Interaction{
		AppID: event.Reply.ApplicationID,
		Token: event.Reply.InteractionToken,
	}, text)
}

func (p *Platform) followup(ctx context.Context, interaction *discordgo.Interaction, text string) error {
	return p.followupMessage(ctx, interaction, chat.Message{Content: text}, true)
}

// followupMessage fills in a deferred interaction response. Buttons are not
// sent; follow-ups are never tracked as button messages.
func (p *Platform) followupMessage(ctx context.Context, interaction *discordgo.Interaction, msg chat.Message, ephemeral bool) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.PlatformCall)
	defer cancel()
	params := &discordgo.WebhookParams{Content: msg.Content}
	if embed := embed(msg.Answer); embed != nil {
		params.Embeds = []*discordgo.MessageEmbed{embed}
	}
	if ephemeral {
		params.Flags = discordgo.MessageFlagsEphemeral
	}
	if _, err := p.client.FollowupMessageCreate(interaction, true, params, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send follow-up: %w", err)
	}
	return nil
}
