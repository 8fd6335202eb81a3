// Package memory provides an in-process bot storage implementation used by
// tests and by runs without a database file.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/dicebot/internal/services/dicebot/storage"
)

type messageKey struct {
	channelID string
	messageID string
}

type presetKey struct {
	guildID string
	name    string
}

// Store keeps records in maps guarded by one mutex.
type Store struct {
	mu       sync.RWMutex
	configs  map[string]storage.ConfigRecord
	presets  map[presetKey]string
	messages map[messageKey]storage.MessageRecord
}

// New creates an empty store.
func New() *Store {
	return &Store{
		configs:  make(map[string]storage.ConfigRecord),
		presets:  make(map[presetKey]string),
		messages: make(map[messageKey]storage.MessageRecord),
	}
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// SaveConfig inserts one config.
func (s *Store) SaveConfig(ctx context.Context, record storage.ConfigRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	record.ConfigID = strings.TrimSpace(record.ConfigID)
	record.GuildID = strings.TrimSpace(record.GuildID)
	record.CommandKind = strings.TrimSpace(record.CommandKind)
	record.Name = strings.TrimSpace(record.Name)
	if record.ConfigID == "" {
		return fmt.Errorf("config id is required")
	}
	if record.CommandKind == "" {
		return fmt.Errorf("command kind is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	record.CreatedAt = record.CreatedAt.UTC().Truncate(time.Millisecond)
	record.Blob = slices.Clone(record.Blob)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[record.ConfigID]; ok {
		return storage.ErrAlreadyExists
	}
	preset := presetKey{guildID: record.GuildID, name: record.Name}
	if record.Name != "" {
		if _, ok := s.presets[preset]; ok {
			return storage.ErrAlreadyExists
		}
		s.presets[preset] = record.ConfigID
	}
	s.configs[record.ConfigID] = record
	return nil
}

// GetConfig returns one config by id.
func (s *Store) GetConfig(ctx context.Context, configID string) (storage.ConfigRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ConfigRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.configs[strings.TrimSpace(configID)]
	if !ok {
		return storage.ConfigRecord{}, storage.ErrNotFound
	}
	record.Blob = slices.Clone(record.Blob)
	return record, nil
}

// GetConfigByName returns the preset named name in guildID.
func (s *Store) GetConfigByName(ctx context.Context, guildID, name string) (storage.ConfigRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ConfigRecord{}, err
	}
	s.mu.RLock()
	configID, ok := s.presets[presetKey{guildID: strings.TrimSpace(guildID), name: strings.TrimSpace(name)}]
	s.mu.RUnlock()
	if !ok {
		return storage.ConfigRecord{}, storage.ErrNotFound
	}
	return s.GetConfig(ctx, configID)
}

// DeleteConfig removes one config.
func (s *Store) DeleteConfig(ctx context.Context, configID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	configID = strings.TrimSpace(configID)
	record, ok := s.configs[configID]
	if !ok {
		return nil
	}
	if record.Name != "" {
		delete(s.presets, presetKey{guildID: record.GuildID, name: record.Name})
	}
	delete(s.configs, configID)
	return nil
}

// SaveMessage writes the whole message record, replacing any prior one.
func (s *Store) SaveMessage(ctx context.Context, record storage.MessageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	record.ChannelID = strings.TrimSpace(record.ChannelID)
	record.MessageID = strings.TrimSpace(record.MessageID)
	record.ConfigID = strings.TrimSpace(record.ConfigID)
	if record.ChannelID == "" || record.MessageID == "" {
		return fmt.Errorf("channel id and message id are required")
	}
	if record.ConfigID == "" {
		return fmt.Errorf("config id is required")
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now()
	}
	record.UpdatedAt = record.UpdatedAt.UTC().Truncate(time.Millisecond)
	record.State = slices.Clone(record.State)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[messageKey{channelID: record.ChannelID, messageID: record.MessageID}] = record
	return nil
}

// GetMessage returns the record for one message.
func (s *Store) GetMessage(ctx context.Context, channelID, messageID string) (storage.MessageRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.MessageRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.messages[messageKey{channelID: strings.TrimSpace(channelID), messageID: strings.TrimSpace(messageID)}]
	if !ok {
		return storage.MessageRecord{}, storage.ErrNotFound
	}
	record.State = slices.Clone(record.State)
	return record, nil
}

// DeleteMessage removes the record for one message.
func (s *Store) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, messageKey{channelID: strings.TrimSpace(channelID), messageID: strings.TrimSpace(messageID)})
	return nil
}

// DeleteChannelMessages removes every record of a channel and returns the
// removed records ordered by message id.
func (s *Store) DeleteChannelMessages(ctx context.Context, channelID string) ([]storage.MessageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, fmt.Errorf("channel id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []storage.MessageRecord
	for key, record := range s.messages {
		if key.channelID == channelID {
			removed = append(removed, record)
			delete(s.messages, key)
		}
	}
	slices.SortFunc(removed, func(a, b storage.MessageRecord) int {
		return strings.Compare(a.MessageID, b.MessageID)
	})
	return removed, nil
}

// ListMessageIDsForConfig returns the ids of messages attached to configID.
func (s *Store) ListMessageIDsForConfig(ctx context.Context, configID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	configID = strings.TrimSpace(configID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for key, record := range s.messages {
		if record.ConfigID == configID {
			ids = append(ids, key.messageID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

var _ storage.Store = (*Store)(nil)
