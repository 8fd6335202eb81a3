package command

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	apperrors "github.com/louisbranch/dicebot/internal/platform/errors"
	"github.com/louisbranch/dicebot/internal/services/dicebot/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StartRequest posts a new button message.
type StartRequest struct {
	GuildID   string
	ChannelID string
	UserID    string
	// Name saves the config as a guild preset when set.
	Name   string
	Config Config
}

// StartResult identifies the posted button message.
type StartResult struct {
	ConfigID  string
	MessageID string
}

// Start validates and stores a config, then posts its button message.
func (e *Engine) Start(ctx context.Context, req StartRequest) (StartResult, error) {
	ctx, span := e.tracer.Start(ctx, "command.Start", trace.WithAttributes(
		attribute.String("dicebot.channel_id", req.ChannelID),
	))
	defer span.End()

	if err := validate(req.Config, e.evaluator); err != nil {
		return StartResult{}, err
	}
	name := strings.TrimSpace(req.Name)
	configID, err := e.saveConfig(ctx, req.GuildID, req.ChannelID, req.UserID, name, req.Config)
	if err != nil {
		return StartResult{}, err
	}
	span.SetAttributes(attribute.String("dicebot.command_kind", string(req.Config.Kind())))

	messageID, err := e.postButtonMessage(ctx, req.GuildID, req.ChannelID, configID, req.Config, emptyState(req.Config))
	if err != nil {
		return StartResult{ConfigID: configID}, err
	}
	return StartResult{ConfigID: configID, MessageID: messageID}, nil
}

// StartPreset posts the button message of a named guild preset in
// channelID. Messages of a preset share its config.
func (e *Engine) StartPreset(ctx context.Context, guildID, channelID, name string) (StartResult, error) {
	ctx, span := e.tracer.Start(ctx, "command.StartPreset", trace.WithAttributes(
		attribute.String("dicebot.channel_id", channelID),
		attribute.String("dicebot.preset", name),
	))
	defer span.End()

	record, err := e.store.GetConfigByName(ctx, guildID, strings.TrimSpace(name))
	if errors.Is(err, storage.ErrNotFound) {
		return StartResult{}, configError(fmt.Sprintf("no preset named %q", name), err)
	}
	if err != nil {
		return StartResult{}, apperrors.Wrap(apperrors.CodeStorageFailure, "load preset", err)
	}
	cfg, err := DecodeConfig(record.Blob)
	if err != nil {
		return StartResult{}, err
	}
	messageID, err := e.postButtonMessage(ctx, guildID, channelID, record.ConfigID, cfg, emptyState(cfg))
	if err != nil {
		return StartResult{ConfigID: record.ConfigID}, err
	}
	return StartResult{ConfigID: record.ConfigID, MessageID: messageID}, nil
}

// ClearChannel deletes every button message the bot tracks in channelID
// and returns how many records were removed. Configs left without messages
// are deleted too, except named presets. Platform deletions that fail are
// logged and skipped.
func (e *Engine) ClearChannel(ctx context.Context, channelID string) (int, error) {
	ctx, span := e.tracer.Start(ctx, "command.ClearChannel", trace.WithAttributes(
		attribute.String("dicebot.channel_id", channelID),
	))
	defer span.End()

	records, err := e.store.DeleteChannelMessages(ctx, channelID)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeStorageFailure, "delete channel records", err)
	}
	seen := make(map[string]bool, len(records))
	for _, record := range records {
		if err := e.platform.DeleteMessage(ctx, channelID, record.MessageID); err != nil {
			log.Printf("delete message %s/%s: %v", channelID, record.MessageID, err)
		}
		if seen[record.ConfigID] {
			continue
		}
		seen[record.ConfigID] = true
		if err := e.pruneConfig(ctx, record.ConfigID); err != nil {
			log.Printf("prune config %s: %v", record.ConfigID, err)
		}
	}
	e.live.ForgetChannel(channelID)
	return len(records), nil
}

// ForgetMessage drops the record of a message deleted outside the bot,
// along with its config when nothing else uses it. Unknown messages are
// ignored.
func (e *Engine) ForgetMessage(ctx context.Context, channelID, messageID string) error {
	ctx, span := e.tracer.Start(ctx, "command.ForgetMessage", trace.WithAttributes(
		attribute.String("dicebot.channel_id", channelID),
		attribute.String("dicebot.message_id", messageID),
	))
	defer span.End()

	record, err := e.store.GetMessage(ctx, channelID, messageID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, "load message record", err)
	}
	if err := e.store.DeleteMessage(ctx, channelID, messageID); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, "delete message record", err)
	}
	if cfg, err := e.loadConfig(ctx, record.ConfigID); err == nil {
		e.live.Unregister(channelID, messageID, Fingerprint(cfg))
	}
	return e.pruneConfig(ctx, record.ConfigID)
}
