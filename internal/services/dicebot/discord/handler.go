package discord

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
	apperrors "github.com/louisbranch/dicebot/internal/platform/errors"
	"github.com/louisbranch/dicebot/internal/platform/timeouts"
	"github.com/louisbranch/dicebot/internal/services/dicebot/chat"
	"github.com/louisbranch/dicebot/internal/services/dicebot/command"
)

// Engine is the bot behavior driven by interactions.
type Engine interface {
	HandleClick(ctx context.Context, event chat.Event) error
	Start(ctx context.Context, req command.StartRequest) (command.StartResult, error)
	StartPreset(ctx context.Context, guildID, channelID, name string) (command.StartResult, error)
	ClearChannel(ctx context.Context, channelID string) (int, error)
	ForgetMessage(ctx context.Context, channelID, messageID string) error
	DirectRoll(ctx context.Context, req command.RollRequest) (*chat.Answer, error)
	HelpText(locale string) string
	ErrorText(locale string, err error) string
	StartedText(locale string) string
	ChannelClearedText(locale string, removed int) string
}

// Handler turns gateway interactions into engine calls.
type Handler struct {
	engine   Engine
	client   Client
	platform *Platform
}

// NewHandler creates a handler answering through client.
func NewHandler(engine Engine, client Client) (*Handler, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	platform, err := NewPlatform(client)
	if err != nil {
		return nil, err
	}
	return &Handler{engine: engine, client: client, platform: platform}, nil
}

// OnInteraction is the discordgo event handler.
func (h *Handler) OnInteraction(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Interaction)
	defer cancel()
	h.Handle(ctx, i.Interaction)
}

// OnChannelDelete drops the records of a deleted channel.
func (h *Handler) OnChannelDelete(_ *discordgo.Session, c *discordgo.ChannelDelete) {
	if c.Channel == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Interaction)
	defer cancel()
	if _, err := h.engine.ClearChannel(ctx, c.ID); err != nil {
		log.Printf("clear deleted channel %s: %v", c.ID, err)
	}
}

// OnMessageDelete drops the record of a message deleted by a user.
func (h *Handler) OnMessageDelete(_ *discordgo.Session, m *discordgo.MessageDelete) {
	if m.Message == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Interaction)
	defer cancel()
	h.forget(ctx, m.ChannelID, m.ID)
}

// OnMessageDeleteBulk drops the records of messages removed in bulk.
func (h *Handler) OnMessageDeleteBulk(_ *discordgo.Session, m *discordgo.MessageDeleteBulk) {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Interaction)
	defer cancel()
	for _, messageID := range m.Messages {
		h.forget(ctx, m.ChannelID, messageID)
	}
}

func (h *Handler) forget(ctx context.Context, channelID, messageID string) {
	if err := h.engine.ForgetMessage(ctx, channelID, messageID); err != nil {
		log.Printf("forget deleted message %s/%s: %v", channelID, messageID, err)
	}
}

// Handle processes one interaction. Clicks are acknowledged with a deferred
// update before the engine runs; slash commands with a deferred reply that
// is filled in afterwards. Only /r answers publicly, unless hidden is set.
func (h *Handler) Handle(ctx context.Context, i *discordgo.Interaction) {
	if i == nil {
		return
	}
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		h.handleComponent(ctx, i)
	case discordgo.InteractionApplicationCommand:
		h.handleCommand(ctx, i)
	}
}

func (h *Handler) handleComponent(ctx context.Context, i *discordgo.Interaction) {
	ack := &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate}
	if err := h.client.InteractionRespond(i, ack, discordgo.WithContext(ctx)); err != nil {
		log.Printf("acknowledge click %s: %v", i.ID, err)
		return
	}
	// Faults are logged and answered by the engine.
	_ = h.engine.HandleClick(ctx, clickEvent(i))
}

func (h *Handler) handleCommand(ctx context.Context, i *discordgo.Interaction) {
	data := i.ApplicationCommandData()
	options := optionMap(data.Options)
	ephemeral := data.Name != CommandRoll || boolOption(options, optionHidden)

	ack := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{},
	}
	if ephemeral {
		ack.Data.Flags = discordgo.MessageFlagsEphemeral
	}
	if err := h.client.InteractionRespond(i, ack, discordgo.WithContext(ctx)); err != nil {
		log.Printf("acknowledge command %s: %v", i.ID, err)
		return
	}

	locale := string(i.Locale)
	reply, err := h.runCommand(ctx, i, data.Name, options)
	if err != nil {
		if !apperrors.CodeOf(err).Soft() {
			log.Printf("run command %s: %v", data.Name, err)
		}
		reply = chat.Message{Content: h.engine.ErrorText(locale, err)}
	}
	if err := h.platform.followupMessage(ctx, i, reply, ephemeral); err != nil {
		log.Printf("answer command %s: %v", i.ID, err)
	}
}

func (h *Handler) runCommand(ctx context.Context, i *discordgo.Interaction, name string, options map[string]*discordgo.ApplicationCommandInteractionDataOption) (chat.Message, error) {
	locale := string(i.Locale)

	switch name {
	case CommandRoll:
		answer, err := h.engine.DirectRoll(ctx, command.RollRequest{
			Locale:   locale,
			UserName: displayName(i),
			Input:    stringOption(options, optionExpression),
		})
		if err != nil {
			return chat.Message{}, err
		}
		return chat.Message{Answer: answer}, nil

	case CommandHelp:
		return chat.Message{Content: h.engine.HelpText(locale)}, nil

	case CommandCustomDice, CommandSumCustomSet:
		cfg := configFromOptions(name, options, guildLocale(i))
		_, err := h.engine.Start(ctx, command.StartRequest{
			GuildID:   i.GuildID,
			ChannelID: i.ChannelID,
			UserID:    userID(i),
			Name:      stringOption(options, optionSaveAs),
			Config:    cfg,
		})
		if err != nil {
			return chat.Message{}, err
		}
		return chat.Message{Content: h.engine.StartedText(locale)}, nil

	case CommandPreset:
		if _, err := h.engine.StartPreset(ctx, i.GuildID, i.ChannelID, stringOption(options, optionName)); err != nil {
			return chat.Message{}, err
		}
		return chat.Message{Content: h.engine.StartedText(locale)}, nil

	case CommandClear:
		removed, err := h.engine.ClearChannel(ctx, i.ChannelID)
		if err != nil {
			return chat.Message{}, err
		}
		return chat.Message{Content: h.engine.ChannelClearedText(locale, removed)}, nil

	default:
		return chat.Message{}, fmt.Errorf("unknown command %q", name)
	}
}

func configFromOptions(name string, options map[string]*discordgo.ApplicationCommandInteractionDataOption, locale string) command.Config {
	base := command.Base{Locale: locale, Interaction: command.InteractionNone}
	if opt, ok := options[optionAnswerChannel]; ok && opt.Type == discordgo.ApplicationCommandOptionChannel {
		base.AnswerTargetChannelID = opt.ChannelValue(nil).ID
	}
	if boolOption(options, optionReroll) {
		base.Interaction = command.InteractionReroll
	}
	buttons := command.ParseButtonSpecs(stringOption(options, optionButtons))
	if name == CommandSumCustomSet {
		return &command.SumCustomSetConfig{Base: base, Buttons: buttons}
	}
	return &command.CustomDiceConfig{Base: base, Buttons: buttons}
}

func clickEvent(i *discordgo.Interaction) chat.Event {
	event := chat.Event{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		CustomID:  i.MessageComponentData().CustomID,
		UserID:    userID(i),
		UserName:  displayName(i),
		Locale:    string(i.Locale),
		Reply: chat.ReplyHandle{
			ApplicationID:    i.AppID,
			InteractionToken: i.Token,
		},
	}
	if i.Message != nil {
		event.MessageID = i.Message.ID
		event.Pinned = i.Message.Pinned
	}
	return event
}

func interactionUser(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func userID(i *discordgo.Interaction) string {
	if user := interactionUser(i); user != nil {
		return user.ID
	}
	return ""
}

func displayName(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.Nick != "" {
		return i.Member.Nick
	}
	user := interactionUser(i)
	switch {
	case user == nil:
		return ""
	case user.GlobalName != "":
		return user.GlobalName
	default:
		return user.Username
	}
}

func guildLocale(i *discordgo.Interaction) string {
	if i.GuildLocale != nil && *i.GuildLocale != "" {
		return string(*i.GuildLocale)
	}
	return string(i.Locale)
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		out[opt.Name] = opt
	}
	return out
}

func stringOption(options map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	opt, ok := options[name]
	if !ok || opt.Type != discordgo.ApplicationCommandOptionString {
		return ""
	}
	return opt.StringValue()
}

func boolOption(options map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) bool {
	opt, ok := options[name]
	return ok && opt.Type == discordgo.ApplicationCommandOptionBoolean && opt.BoolValue()
}
