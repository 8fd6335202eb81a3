// Package storage defines persistence contracts for command configurations
// and the per-message state attached to them.
//
// Blobs are opaque to the store: whatever bytes are written come back
// unchanged.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a config id or preset name is taken.
	ErrAlreadyExists = errors.New("record already exists")
)

// ConfigRecord stores one immutable command configuration.
type ConfigRecord struct {
	ConfigID    string
	GuildID     string
	ChannelID   string
	CommandKind string
	// Name is set for reusable presets and unique per guild.
	Name      string
	CreatedBy string
	Blob      []byte
	CreatedAt time.Time
}

// MessageRecord associates one platform message with a config and the
// serialized state of the interaction on that message.
type MessageRecord struct {
	ConfigID    string
	GuildID     string
	ChannelID   string
	MessageID   string
	CommandKind string
	StateKind   string
	State       []byte
	UpdatedAt   time.Time
}

// ConfigStore persists command configurations.
type ConfigStore interface {
	SaveConfig(ctx context.Context, record ConfigRecord) error
	GetConfig(ctx context.Context, configID string) (ConfigRecord, error)
	GetConfigByName(ctx context.Context, guildID, name string) (ConfigRecord, error)
	DeleteConfig(ctx context.Context, configID string) error
}

// MessageStore persists message associations. SaveMessage replaces any
// existing record for the same channel and message.
type MessageStore interface {
	SaveMessage(ctx context.Context, record MessageRecord) error
	GetMessage(ctx context.Context, channelID, messageID string) (MessageRecord, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	DeleteChannelMessages(ctx context.Context, channelID string) ([]MessageRecord, error)
	ListMessageIDsForConfig(ctx context.Context, configID string) ([]string, error)
}

// Store is the full persistence contract used by the bot.
type Store interface {
	ConfigStore
	MessageStore
	Close() error
}
