// Package sqlite provides a SQLite-backed bot storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/dicebot/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/dicebot/internal/services/dicebot/storage"
	"github.com/louisbranch/dicebot/internal/services/dicebot/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists configs and message associations in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite bot store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// SaveConfig inserts one config. Configs are immutable, so an existing id
// or preset name yields storage.ErrAlreadyExists.
func (s *Store) SaveConfig(ctx context.Context, record storage.ConfigRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	configID := strings.TrimSpace(record.ConfigID)
	if configID == "" {
		return fmt.Errorf("config id is required")
	}
	commandKind := strings.TrimSpace(record.CommandKind)
	if commandKind == "" {
		return fmt.Errorf("command kind is required")
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO command_configs (
		   config_id,
		   guild_id,
		   channel_id,
		   command_kind,
		   name,
		   created_by,
		   blob,
		   created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		configID,
		strings.TrimSpace(record.GuildID),
		strings.TrimSpace(record.ChannelID),
		commandKind,
		strings.TrimSpace(record.Name),
		strings.TrimSpace(record.CreatedBy),
		record.Blob,
		toMillis(createdAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// GetConfig returns one config by id.
func (s *Store) GetConfig(ctx context.Context, configID string) (storage.ConfigRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ConfigRecord{}, err
	}
	configID = strings.TrimSpace(configID)
	if configID == "" {
		return storage.ConfigRecord{}, fmt.Errorf("config id is required")
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT config_id, guild_id, channel_id, command_kind, name, created_by, blob, created_at
		   FROM command_configs
		  WHERE config_id = ?`,
		configID,
	)
	return scanConfig(row, "get config")
}

// GetConfigByName returns the preset named name in guildID.
func (s *Store) GetConfigByName(ctx context.Context, guildID, name string) (storage.ConfigRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ConfigRecord{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return storage.ConfigRecord{}, fmt.Errorf("preset name is required")
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT config_id, guild_id, channel_id, command_kind, name, created_by, blob, created_at
		   FROM command_configs
		  WHERE guild_id = ? AND name = ?`,
		strings.TrimSpace(guildID),
		name,
	)
	return scanConfig(row, "get config by name")
}

// DeleteConfig removes one config. Deleting a missing config is not an
// error.
func (s *Store) DeleteConfig(ctx context.Context, configID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	configID = strings.TrimSpace(configID)
	if configID == "" {
		return fmt.Errorf("config id is required")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM command_configs WHERE config_id = ?`, configID); err != nil {
		return fmt.Errorf("delete config: %w", err)
	}
	return nil
}

// SaveMessage writes the whole message record, replacing any prior one.
func (s *Store) SaveMessage(ctx context.Context, record storage.MessageRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	channelID := strings.TrimSpace(record.ChannelID)
	messageID := strings.TrimSpace(record.MessageID)
	configID := strings.TrimSpace(record.ConfigID)
	if channelID == "" || messageID == "" {
		return fmt.Errorf("channel id and message id are required")
	}
	if configID == "" {
		return fmt.Errorf("config id is required")
	}
	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT OR REPLACE INTO message_data (
		   channel_id,
		   message_id,
		   config_id,
		   guild_id,
		   command_kind,
		   state_kind,
		   state,
		   updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		channelID,
		messageID,
		configID,
		strings.TrimSpace(record.GuildID),
		strings.TrimSpace(record.CommandKind),
		strings.TrimSpace(record.StateKind),
		record.State,
		toMillis(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// GetMessage returns the record for one message.
func (s *Store) GetMessage(ctx context.Context, channelID, messageID string) (storage.MessageRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.MessageRecord{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT channel_id, message_id, config_id, guild_id, command_kind, state_kind, state, updated_at
		   FROM message_data
		  WHERE channel_id = ? AND message_id = ?`,
		strings.TrimSpace(channelID),
		strings.TrimSpace(messageID),
	)
	return scanMessage(row, "get message")
}

// DeleteMessage removes the record for one message. Deleting a missing
// record is not an error.
func (s *Store) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM message_data WHERE channel_id = ? AND message_id = ?`,
		strings.TrimSpace(channelID),
		strings.TrimSpace(messageID),
	); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// DeleteChannelMessages removes every record of a channel and returns the
// removed records ordered by message id.
func (s *Store) DeleteChannelMessages(ctx context.Context, channelID string) ([]storage.MessageRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, fmt.Errorf("channel id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete channel messages: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT channel_id, message_id, config_id, guild_id, command_kind, state_kind, state, updated_at
		   FROM message_data
		  WHERE channel_id = ?
		  ORDER BY message_id`,
		channelID,
	)
	if err != nil {
		return nil, fmt.Errorf("list channel messages: %w", err)
	}
	var removed []storage.MessageRecord
	for rows.Next() {
		record, err := scanMessage(rows, "scan channel message")
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		removed = append(removed, record)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close channel messages: %w", err)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channel messages: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM message_data WHERE channel_id = ?`, channelID); err != nil {
		return nil, fmt.Errorf("delete channel messages: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete channel messages: %w", err)
	}
	return removed, nil
}

// ListMessageIDsForConfig returns the ids of messages attached to configID.
func (s *Store) ListMessageIDsForConfig(ctx context.Context, configID string) ([]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	ids, err := queryIDs(ctx, s.sqlDB, `SELECT message_id FROM message_data WHERE config_id = ? ORDER BY message_id`, strings.TrimSpace(configID))
	if err != nil {
		return nil, fmt.Errorf("list config messages: %w", err)
	}
	return ids, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanMessage(row rowScanner, op string) (storage.MessageRecord, error) {
	var record storage.MessageRecord
	var updatedAt int64
	err := row.Scan(
		&record.ChannelID,
		&record.MessageID,
		&record.ConfigID,
		&record.GuildID,
		&record.CommandKind,
		&record.StateKind,
		&record.State,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.MessageRecord{}, storage.ErrNotFound
		}
		return storage.MessageRecord{}, fmt.Errorf("%s: %w", op, err)
	}
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

func scanConfig(row rowScanner, op string) (storage.ConfigRecord, error) {
	var record storage.ConfigRecord
	var createdAt int64
	err := row.Scan(
		&record.ConfigID,
		&record.GuildID,
		&record.ChannelID,
		&record.CommandKind,
		&record.Name,
		&record.CreatedBy,
		&record.Blob,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ConfigRecord{}, storage.ErrNotFound
		}
		return storage.ConfigRecord{}, fmt.Errorf("%s: %w", op, err)
	}
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}

func queryIDs(ctx context.Context, q querier, query string, arg string) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ storage.Store = (*Store)(nil)
