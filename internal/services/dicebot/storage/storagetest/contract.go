// Package storagetest holds the behavior every storage.Store implementation
// must share.
package storagetest

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/louisbranch/dicebot/internal/services/dicebot/storage"
)

// Opener returns a fresh, empty store for one subtest.
type Opener func(t *testing.T) storage.Store

// RunContract exercises the storage.Store contract against open.
func RunContract(t *testing.T, open Opener) {
	t.Helper()

	t.Run("config round trip", func(t *testing.T) {
		t.Parallel()
		store := open(t)
		ctx := context.Background()
		now := time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)
		input := storage.ConfigRecord{
			ConfigID:    "cfg-1",
			GuildID:     "guild-1",
			ChannelID:   "chan-1",
			CommandKind: "custom_dice",
			Name:        "attack",
			CreatedBy:   "user-1",
			Blob:        []byte("kind: custom_dice\n"),
			CreatedAt:   now,
		}
		if err := store.SaveConfig(ctx, input); err != nil {
			t.Fatalf("save config: %v", err)
		}

		got, err := store.GetConfig(ctx, "cfg-1")
		if err != nil {
			t.Fatalf("get config: %v", err)
		}
		if !reflect.DeepEqual(got, input) {
			t.Fatalf("config = %+v, want %+v", got, input)
		}

		byName, err := store.GetConfigByName(ctx, "guild-1", "attack")
		if err != nil {
			t.Fatalf("get config by name: %v", err)
		}
		if byName.ConfigID != "cfg-1" {
			t.Fatalf("config id = %q, want %q", byName.ConfigID, "cfg-1")
		}
		if _, err := store.GetConfigByName(ctx, "guild-2", "attack"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("get config in other guild error = %v, want %v", err, storage.ErrNotFound)
		}
	})

	t.Run("config is immutable", func(t *testing.T) {
		t.Parallel()
		store := open(t)
		ctx := context.Background()
		input := storage.ConfigRecord{ConfigID: "cfg-1", CommandKind: "custom_dice", Blob: []byte("a")}
		if err := store.SaveConfig(ctx, input); err != nil {
			t.Fatalf("save config: %v", err)
		}
		input.Blob = []byte("b")
		if err := store.SaveConfig(ctx, input); !errors.Is(err, storage.ErrAlreadyExists) {
			t.Fatalf("duplicate save error = %v, want %v", err, storage.ErrAlreadyExists)
		}
		got, err := store.GetConfig(ctx, "cfg-1")
		if err != nil {
			t.Fatalf("get config: %v", err)
		}
		if string(got.Blob) != "a" {
			t.Fatalf("blob = %q, want %q", got.Blob, "a")
		}
	})

	t.Run("preset names are unique per guild", func(t *testing.T) {
		t.Parallel()
		store := open(t)
		ctx := context.Background()
		first := storage.ConfigRecord{ConfigID: "cfg-1", GuildID: "g", CommandKind: "custom_dice", Name: "p", Blob: []byte("a")}
		second := storage.ConfigRecord{ConfigID: "cfg-2", GuildID: "g", CommandKind: "custom_dice", Name: "p", Blob: []byte("b")}
		unnamed := storage.ConfigRecord{ConfigID: "cfg-3", GuildID: "g", CommandKind: "custom_dice", Blob: []byte("c")}
		unnamedToo := storage.ConfigRecord{ConfigID: "cfg-4", GuildID: "g", CommandKind: "custom_dice", Blob: []byte("d")}
		if err := store.SaveConfig(ctx, first); err != nil {
			t.Fatalf("save first: %v", err)
		}
		if err := store.SaveConfig(ctx, second); !errors.Is(err, storage.ErrAlreadyExists) {
			t.Fatalf("save second error = %v, want %v", err, storage.ErrAlreadyExists)
		}
		if err := store.SaveConfig(ctx, unnamed); err != nil {
			t.Fatalf("save unnamed: %v", err)
		}
		if err := store.SaveConfig(ctx, unnamedToo); err != nil {
			t.Fatalf("save second unnamed: %v", err)
		}
	})

	t.Run("delete config", func(t *testing.T) {
		t.Parallel()
		store := open(t)
		ctx := context.Background()
		if err := store.SaveConfig(ctx, storage.ConfigRecord{ConfigID: "cfg-1", CommandKind: "reroll_answer", Blob: []byte("x")}); err != nil {
			t.Fatalf("save config: %v", err)
		}
		if err := store.DeleteConfig(ctx, "cfg-1"); err != nil {
			t.Fatalf("delete config: %v", err)
		}
		if _, err := store.GetConfig(ctx, "cfg-1"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("get deleted config error = %v, want %v", err, storage.ErrNotFound)
		}
		if err := store.DeleteConfig(ctx, "cfg-1"); err != nil {
			t.Fatalf("delete missing config: %v", err)
		}
	})

	t.Run("message save replaces whole record", func(t *testing.T) {
		t.Parallel()
		store := open(t)
		ctx := context.Background()
		now := time.Date(2026, time.March, 3, 11, 0, 0, 0, time.UTC)
		first := storage.MessageRecord{
			ConfigID:    "cfg-1",
			GuildID:     "guild-1",
			ChannelID:   "chan-1",
			MessageID:   "msg-1",
			CommandKind: "sum_custom_set",
			StateKind:   "sum_custom_set",
			State:       []byte("parts:\n- 1d6\n"),
			UpdatedAt:   now,
		}
		if err := store.SaveMessage(ctx, first); err != nil {
			t.Fatalf("save message: %v", err)
		}
		second := first
		second.StateKind = "empty"
		second.State = nil
		second.UpdatedAt = now.Add(time.Minute)
		if err := store.SaveMessage(ctx, second); err != nil {
			t.Fatalf("replace message: %v", err)
		}

		got, err := store.GetMessage(ctx, "chan-1", "msg-1")
		if err != nil {
			t.Fatalf("get message: %v", err)
		}
		if got.StateKind != "empty" || len(got.State) != 0 {
			t.Fatalf("message = %+v, want replaced empty state", got)
		}
		if !got.UpdatedAt.Equal(second.UpdatedAt) {
			t.Fatalf("updated at = %v, want %v", got.UpdatedAt, second.UpdatedAt)
		}
	})

	t.Run("message blob comes back unchanged", func(t *testing.T) {
		t.Parallel()
		store := open(t)
		ctx := context.Background()
		blob := []byte{0x00, 0x1e, 'y', 0xff}
		record := storage.MessageRecord{ConfigID: "cfg", ChannelID: "c", MessageID: "m", CommandKind: "k", StateKind: "s", State: blob}
		if err := store.SaveMessage(ctx, record); err != nil {
			t.Fatalf("save message: %v", err)
		}
		blob[0] = 'x'
		got, err := store.GetMessage(ctx, "c", "m")
		if err != nil {
			t.Fatalf("get message: %v", err)
		}
		if !bytes.Equal(got.State, []byte{0x00, 0x1e, 'y', 0xff}) {
			t.Fatalf("state = %v, want original bytes", got.State)
		}
	})

	t.Run("missing message", func(t *testing.T) {
		t.Parallel()
		store := open(t)
		if _, err := store.GetMessage(context.Background(), "chan", "nope"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("get message error = %v, want %v", err, storage.ErrNotFound)
		}
		if err := store.DeleteMessage(context.Background(), "chan", "nope"); err != nil {
			t.Fatalf("delete missing message: %v", err)
		}
	})

	t.Run("delete channel messages", func(t *testing.T) {
		t.Parallel()
		store := open(t)
		ctx := context.Background()
		for _, rec := range []storage.MessageRecord{
			{ConfigID: "cfg-1", ChannelID: "chan-1", MessageID: "m2", CommandKind: "custom_dice"},
			{ConfigID: "cfg-1", ChannelID: "chan-1", MessageID: "m1", CommandKind: "custom_dice"},
			{ConfigID: "cfg-1", ChannelID: "chan-2", MessageID: "m3", CommandKind: "custom_dice"},
		} {
			if err := store.SaveMessage(ctx, rec); err != nil {
				t.Fatalf("save message: %v", err)
			}
		}

		removed, err := store.DeleteChannelMessages(ctx, "chan-1")
		if err != nil {
			t.Fatalf("delete channel messages: %v", err)
		}
		var removedIDs []string
		for _, rec := range removed {
			if rec.ChannelID != "chan-1" || rec.ConfigID != "cfg-1" || rec.CommandKind != "custom_dice" {
				t.Fatalf("removed record = %+v", rec)
			}
			removedIDs = append(removedIDs, rec.MessageID)
		}
		if want := []string{"m1", "m2"}; !reflect.DeepEqual(removedIDs, want) {
			t.Fatalf("removed = %v, want %v", removedIDs, want)
		}
		if _, err := store.GetMessage(ctx, "chan-1", "m1"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("get removed message error = %v, want %v", err, storage.ErrNotFound)
		}
		if _, err := store.GetMessage(ctx, "chan-2", "m3"); err != nil {
			t.Fatalf("get message in other channel: %v", err)
		}

		ids, err := store.ListMessageIDsForConfig(ctx, "cfg-1")
		if err != nil {
			t.Fatalf("list config messages: %v", err)
		}
		if want := []string{"m3"}; !reflect.DeepEqual(ids, want) {
			t.Fatalf("config messages = %v, want %v", ids, want)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()
		store := open(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := store.GetMessage(ctx, "c", "m"); !errors.Is(err, context.Canceled) {
			t.Fatalf("get message error = %v, want %v", err, context.Canceled)
		}
		if err := store.SaveConfig(ctx, storage.ConfigRecord{ConfigID: "x", CommandKind: "k"}); !errors.Is(err, context.Canceled) {
			t.Fatalf("save config error = %v, want %v", err, context.Canceled)
		}
	})
}
