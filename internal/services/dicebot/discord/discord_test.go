package discord

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/bwmarrin/discordgo"
	apperrors "github.com/louisbranch/dicebot/internal/platform/errors"
	"github.com/louisbranch/dicebot/internal/services/dicebot/chat"
	"github.com/louisbranch/dicebot/internal/services/dicebot/command"
)

type fakeClient struct {
	sent      []*discordgo.MessageSend
	edits     []*discordgo.MessageEdit
	deleted   []string
	responses []*discordgo.InteractionResponse
	followups []*discordgo.WebhookParams
	sendErr   error
}

func (c *fakeClient) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if c.sendErr != nil {
		return nil, c.sendErr
	}
	c.sent = append(c.sent, data)
	return &discordgo.Message{ID: "new", ChannelID: channelID}, nil
}

func (c *fakeClient) ChannelMessageEditComplex(m *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	c.edits = append(c.edits, m)
	return &discordgo.Message{ID: m.ID, ChannelID: m.Channel}, nil
}

func (c *fakeClient) ChannelMessageDelete(channelID, messageID string, _ ...discordgo.RequestOption) error {
	c.deleted = append(c.deleted, channelID+"/"+messageID)
	return nil
}

func (c *fakeClient) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	c.responses = append(c.responses, resp)
	return nil
}

func (c *fakeClient) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	c.followups = append(c.followups, data)
	return &discordgo.Message{}, nil
}

type fakeEngine struct {
	clicks    []chat.Event
	starts    []command.StartRequest
	presets   []string
	cleared   []string
	forgotten []string
	rolls     []command.RollRequest
	startErr  error
}

func (e *fakeEngine) HandleClick(_ context.Context, event chat.Event) error {
	e.clicks = append(e.clicks, event)
	return nil
}

func (e *fakeEngine) Start(_ context.Context, req command.StartRequest) (command.StartResult, error) {
	e.starts = append(e.starts, req)
	return command.StartResult{}, e.startErr
}

func (e *fakeEngine) StartPreset(_ context.Context, _, _, name string) (command.StartResult, error) {
	e.presets = append(e.presets, name)
	return command.StartResult{}, nil
}

func (e *fakeEngine) ClearChannel(_ context.Context, channelID string) (int, error) {
	e.cleared = append(e.cleared, channelID)
	return 3, nil
}

func (e *fakeEngine) ForgetMessage(_ context.Context, channelID, messageID string) error {
	e.forgotten = append(e.forgotten, channelID+"/"+messageID)
	return nil
}

func (e *fakeEngine) DirectRoll(_ context.Context, req command.RollRequest) (*chat.Answer, error) {
	e.rolls = append(e.rolls, req)
	if req.Input == "" {
		return nil, apperrors.New(apperrors.CodeConfigurationInvalid, "expression is required")
	}
	return &chat.Answer{Title: req.Input + " = 7", Body: "[3, 4]", Author: req.UserName}, nil
}

func (e *fakeEngine) HelpText(string) string { return "help" }

func (e *fakeEngine) ErrorText(_ string, err error) string { return "error: " + string(apperrors.CodeOf(err)) }
func (e *fakeEngine) StartedText(string) string           { return "started" }
func (e *fakeEngine) ChannelClearedText(_ string, removed int) string {
	if removed == 3 {
		return "cleared 3"
	}
	return "cleared"
}

func TestMessageSendRendersEmbedAndButtons(t *testing.T) {
	send := messageSend(chat.Message{
		Content: "Click",
		Answer: &chat.Answer{
			Title:  "3d6 = 15",
			Body:   "[4, 5, 6]",
			Author: "alice",
			Fields: []chat.Field{{Name: "Round", Value: "1"}},
		},
		Layout: chat.Layout{
			{{CustomID: "a", Label: "1d6"}, {CustomID: "b", Label: "Roll", Style: chat.StylePrimary, Disabled: true}},
		},
	})
	if send.Content != "Click" || len(send.Embeds) != 1 {
		t.Fatalf("send = %+v", send)
	}
	embed := send.Embeds[0]
	if embed.Title != "3d6 = 15" || embed.Description != "[4, 5, 6]" || embed.Author.Name != "alice" || len(embed.Fields) != 1 {
		t.Fatalf("embed = %+v", embed)
	}
	row, ok := send.Components[0].(discordgo.ActionsRow)
	if !ok || len(row.Components) != 2 {
		t.Fatalf("components = %+v", send.Components)
	}
	button := row.Components[1].(discordgo.Button)
	if button.Style != discordgo.PrimaryButton || !button.Disabled || button.CustomID != "b" {
		t.Fatalf("button = %+v", button)
	}
}

func TestMessageEditClearsMissingParts(t *testing.T) {
	edit := messageEdit("c1", "m1", chat.Message{Content: "processing ..."})
	if edit.Channel != "c1" || edit.ID != "m1" {
		t.Fatalf("edit target = %s/%s", edit.Channel, edit.ID)
	}
	if edit.Content == nil || *edit.Content != "processing ..." {
		t.Fatalf("content = %v", edit.Content)
	}
	if edit.Components == nil || len(*edit.Components) != 0 {
		t.Fatalf("components = %v, want empty", edit.Components)
	}
	if edit.Embeds == nil || len(*edit.Embeds) != 0 {
		t.Fatalf("embeds = %v, want empty", edit.Embeds)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abc", 5); got != "abc" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Fatalf("truncate = %q, want %q", got, "abc…")
	}
}

func TestPlatformReplyRequiresInteraction(t *testing.T) {
	client := &fakeClient{}
	platform, err := NewPlatform(client)
	if err != nil {
		t.Fatalf("new platform: %v", err)
	}
	if err := platform.Reply(context.Background(), chat.Event{}, "hi"); err == nil {
		t.Fatal("expected error")
	}
	event := chat.Event{Reply: chat.ReplyHandle{ApplicationID: "app", InteractionToken: "tok"}}
	if err := platform.Reply(context.Background(), event, "hi"); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if len(client.followups) != 1 || client.followups[0].Flags != discordgo.MessageFlagsEphemeral {
		t.Fatalf("followups = %+v", client.followups)
	}
}

func TestPlatformWrapsSendErrors(t *testing.T) {
	want := errors.New("rate limited")
	platform, _ := NewPlatform(&fakeClient{sendErr: want})
	if _, err := platform.CreateMessage(context.Background(), "c1", chat.Message{Content: "x"}); !errors.Is(err, want) {
		t.Fatalf("error = %v, want %v", err, want)
	}
}

func TestHandleComponentDefersAndDispatches(t *testing.T) {
	client := &fakeClient{}
	engine := &fakeEngine{}
	handler, err := NewHandler(engine, client)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	handler.Handle(context.Background(), &discordgo.Interaction{
		Type:      discordgo.InteractionMessageComponent,
		AppID:     "app",
		Token:     "tok",
		GuildID:   "g1",
		ChannelID: "c1",
		Locale:    discordgo.German,
		Message:   &discordgo.Message{ID: "m1", Pinned: true},
		Member:    &discordgo.Member{Nick: "Ali", User: &discordgo.User{ID: "u1", Username: "alice"}},
		Data:      discordgo.MessageComponentInteractionData{CustomID: "custom_dice\x1e1_button\x1ecfg1"},
	})

	if len(client.responses) != 1 || client.responses[0].Type != discordgo.InteractionResponseDeferredMessageUpdate {
		t.Fatalf("responses = %+v", client.responses)
	}
	if len(engine.clicks) != 1 {
		t.Fatalf("clicks = %d, want 1", len(engine.clicks))
	}
	want := chat.Event{
		GuildID:   "g1",
		ChannelID: "c1",
		MessageID: "m1",
		CustomID:  "custom_dice\x1e1_button\x1ecfg1",
		UserID:    "u1",
		UserName:  "Ali",
		Locale:    "de",
		Pinned:    true,
		Reply:     chat.ReplyHandle{ApplicationID: "app", InteractionToken: "tok"},
	}
	if engine.clicks[0] != want {
		t.Fatalf("event = %+v, want %+v", engine.clicks[0], want)
	}
}

func TestHandleSetupCommand(t *testing.T) {
	client := &fakeClient{}
	engine := &fakeEngine{}
	handler, _ := NewHandler(engine, client)
	guildLocale := discordgo.German

	handler.Handle(context.Background(), &discordgo.Interaction{
		Type:        discordgo.InteractionApplicationCommand,
		GuildID:     "g1",
		ChannelID:   "c1",
		GuildLocale: &guildLocale,
		User:        &discordgo.User{ID: "u1", Username: "alice"},
		Data: discordgo.ApplicationCommandInteractionData{
			Name: CommandSumCustomSet,
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: optionButtons, Type: discordgo.ApplicationCommandOptionString, Value: "1d6;2@Bonus"},
				{Name: optionAnswerChannel, Type: discordgo.ApplicationCommandOptionChannel, Value: "log"},
				{Name: optionReroll, Type: discordgo.ApplicationCommandOptionBoolean, Value: true},
				{Name: optionSaveAs, Type: discordgo.ApplicationCommandOptionString, Value: "combat"},
			},
		},
	})

	if len(client.responses) != 1 || client.responses[0].Data.Flags != discordgo.MessageFlagsEphemeral {
		t.Fatalf("responses = %+v", client.responses)
	}
	if len(engine.starts) != 1 {
		t.Fatalf("starts = %d, want 1", len(engine.starts))
	}
	req := engine.starts[0]
	if req.GuildID != "g1" || req.ChannelID != "c1" || req.UserID != "u1" || req.Name != "combat" {
		t.Fatalf("request = %+v", req)
	}
	cfg, ok := req.Config.(*command.SumCustomSetConfig)
	if !ok {
		t.Fatalf("config = %T, want *command.SumCustomSetConfig", req.Config)
	}
	if cfg.AnswerTargetChannelID != "log" || cfg.Interaction != command.InteractionReroll || cfg.Locale != "de" {
		t.Fatalf("base = %+v", cfg.Base)
	}
	if len(cfg.Buttons) != 2 || cfg.Buttons[1].Label != "Bonus" {
		t.Fatalf("buttons = %+v", cfg.Buttons)
	}
	if len(client.followups) != 1 || client.followups[0].Content != "started" {
		t.Fatalf("followups = %+v", client.followups)
	}
}

func TestHandleCommandErrorsAreAnswered(t *testing.T) {
	client := &fakeClient{}
	engine := &fakeEngine{startErr: apperrors.New(apperrors.CodeConfigurationInvalid, "bad")}
	handler, _ := NewHandler(engine, client)

	handler.Handle(context.Background(), &discordgo.Interaction{
		Type:      discordgo.InteractionApplicationCommand,
		ChannelID: "c1",
		Data: discordgo.ApplicationCommandInteractionData{
			Name:    CommandCustomDice,
			Options: []*discordgo.ApplicationCommandInteractionDataOption{{Name: optionButtons, Type: discordgo.ApplicationCommandOptionString, Value: "3x"}},
		},
	})
	if len(client.followups) != 1 || client.followups[0].Content != "error: CONFIGURATION_INVALID" {
		t.Fatalf("followups = %+v", client.followups)
	}
}

func TestHandleClearAndPreset(t *testing.T) {
	client := &fakeClient{}
	engine := &fakeEngine{}
	handler, _ := NewHandler(engine, client)

	handler.Handle(context.Background(), &discordgo.Interaction{
		Type:      discordgo.InteractionApplicationCommand,
		ChannelID: "c1",
		Data:      discordgo.ApplicationCommandInteractionData{Name: CommandClear},
	})
	handler.Handle(context.Background(), &discordgo.Interaction{
		Type:      discordgo.InteractionApplicationCommand,
		ChannelID: "c1",
		Data: discordgo.ApplicationCommandInteractionData{
			Name:    CommandPreset,
			Options: []*discordgo.ApplicationCommandInteractionDataOption{{Name: optionName, Type: discordgo.ApplicationCommandOptionString, Value: "combat"}},
		},
	})

	if len(engine.cleared) != 1 || engine.cleared[0] != "c1" {
		t.Fatalf("cleared = %v", engine.cleared)
	}
	if len(engine.presets) != 1 || engine.presets[0] != "combat" {
		t.Fatalf("presets = %v", engine.presets)
	}
	if len(client.followups) != 2 || client.followups[0].Content != "cleared 3" || client.followups[1].Content != "started" {
		t.Fatalf("followups = %+v", client.followups)
	}
}

func TestCommandsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, cmd := range Commands() {
		if seen[cmd.Name] {
			t.Fatalf("duplicate command %q", cmd.Name)
		}
		seen[cmd.Name] = true
	}
	if len(seen) != 6 {
		t.Fatalf("commands = %d, want 6", len(seen))
	}
}

func rollInteraction(options ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.Interaction {
	return &discordgo.Interaction{
		Type:      discordgo.InteractionApplicationCommand,
		ChannelID: "c1",
		Locale:    discordgo.EnglishUS,
		Member:    &discordgo.Member{User: &discordgo.User{ID: "u1", Username: "alice", GlobalName: "Alice"}},
		Data:      discordgo.ApplicationCommandInteractionData{Name: CommandRoll, Options: options},
	}
}

func TestHandleRollCommand(t *testing.T) {
	tcs := []struct {
		name      string
		hidden    bool
		wantFlags discordgo.MessageFlags
	}{
		{name: "public", wantFlags: 0},
		{name: "hidden", hidden: true, wantFlags: discordgo.MessageFlagsEphemeral},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			client := &fakeClient{}
			engine := &fakeEngine{}
			handler, _ := NewHandler(engine, client)

			options := []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: optionExpression, Type: discordgo.ApplicationCommandOptionString, Value: "2d6@Damage"},
			}
			if tc.hidden {
				options = append(options, &discordgo.ApplicationCommandInteractionDataOption{Name: optionHidden, Type: discordgo.ApplicationCommandOptionBoolean, Value: true})
			}
			handler.Handle(context.Background(), rollInteraction(options...))

			if len(client.responses) != 1 || client.responses[0].Data.Flags != tc.wantFlags {
				t.Fatalf("responses = %+v", client.responses)
			}
			want := command.RollRequest{Locale: "en-US", UserName: "Alice", Input: "2d6@Damage"}
			if len(engine.rolls) != 1 || engine.rolls[0] != want {
				t.Fatalf("rolls = %+v, want %+v", engine.rolls, want)
			}
			if len(client.followups) != 1 {
				t.Fatalf("followups = %d, want 1", len(client.followups))
			}
			followup := client.followups[0]
			if followup.Flags != tc.wantFlags || len(followup.Embeds) != 1 {
				t.Fatalf("followup = %+v", followup)
			}
			if got := followup.Embeds[0]; got.Title != "2d6@Damage = 7" || got.Author.Name != "Alice" {
				t.Fatalf("embed = %+v", got)
			}
		})
	}
}

func TestHandleRollCommandErrorIsAnswered(t *testing.T) {
	client := &fakeClient{}
	handler, _ := NewHandler(&fakeEngine{}, client)

	handler.Handle(context.Background(), rollInteraction())
	if len(client.followups) != 1 || client.followups[0].Content != "error: CONFIGURATION_INVALID" || len(client.followups[0].Embeds) != 0 {
		t.Fatalf("followups = %+v", client.followups)
	}
}

func TestHandleHelpCommand(t *testing.T) {
	client := &fakeClient{}
	handler, _ := NewHandler(&fakeEngine{}, client)

	handler.Handle(context.Background(), &discordgo.Interaction{
		Type: discordgo.InteractionApplicationCommand,
		Data: discordgo.ApplicationCommandInteractionData{Name: CommandHelp},
	})
	if len(client.responses) != 1 || client.responses[0].Data.Flags != discordgo.MessageFlagsEphemeral {
		t.Fatalf("responses = %+v", client.responses)
	}
	if len(client.followups) != 1 || client.followups[0].Content != "help" {
		t.Fatalf("followups = %+v", client.followups)
	}
}

func TestOnMessageDeleteForgetsMessages(t *testing.T) {
	engine := &fakeEngine{}
	handler, _ := NewHandler(engine, &fakeClient{})

	handler.OnMessageDelete(nil, &discordgo.MessageDelete{Message: &discordgo.Message{ID: "m1", ChannelID: "c1"}})
	handler.OnMessageDelete(nil, &discordgo.MessageDelete{})
	handler.OnMessageDeleteBulk(nil, &discordgo.MessageDeleteBulk{ChannelID: "c2", Messages: []string{"m2", "m3"}})

	want := []string{"c1/m1", "c2/m2", "c2/m3"}
	if !reflect.DeepEqual(engine.forgotten, want) {
		t.Fatalf("forgotten = %v, want %v", engine.forgotten, want)
	}
}
