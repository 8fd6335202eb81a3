package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "github.com/louisbranch/dicebot/internal/platform/errors"
	"github.com/louisbranch/dicebot/internal/platform/i18n/catalog"
	"github.com/louisbranch/dicebot/internal/services/dicebot/buttoncache"
	"github.com/louisbranch/dicebot/internal/services/dicebot/chat"
	"github.com/louisbranch/dicebot/internal/services/dicebot/storage"
	"github.com/louisbranch/dicebot/internal/services/dicebot/storage/memory"
)

type sentMessage struct {
	channelID string
	messageID string
	msg       chat.Message
}

type fakePlatform struct {
	mu       sync.Mutex
	next     int
	created  []sentMessage
	edits    []sentMessage
	deleted  []string
	replies  []string
	live     map[string]chat.Message
	createFn func(channelID string) error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{live: map[string]chat.Message{}}
}

func (p *fakePlatform) CreateMessage(_ context.Context, channelID string, msg chat.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createFn != nil {
		if err := p.createFn(channelID); err != nil {
			return "", err
		}
	}
	p.next++
	messageID := fmt.Sprintf("m%d", p.next)
	p.created = append(p.created, sentMessage{channelID: channelID, messageID: messageID, msg: msg})
	p.live[channelID+"/"+messageID] = msg
	return messageID, nil
}

func (p *fakePlatform) EditMessage(_ context.Context, channelID, messageID string, msg chat.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := channelID + "/" + messageID
	if _, ok := p.live[key]; !ok {
		return errors.New("unknown message")
	}
	p.edits = append(p.edits, sentMessage{channelID: channelID, messageID: messageID, msg: msg})
	p.live[key] = msg
	return nil
}

func (p *fakePlatform) DeleteMessage(_ context.Context, channelID, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := channelID + "/" + messageID
	p.deleted = append(p.deleted, key)
	delete(p.live, key)
	return nil
}

func (p *fakePlatform) Reply(_ context.Context, _ chat.Event, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, text)
	return nil
}

func (p *fakePlatform) message(channelID, messageID string) (chat.Message, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg, ok := p.live[channelID+"/"+messageID]
	return msg, ok
}

func (p *fakePlatform) lastCreated() sentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created[len(p.created)-1]
}

type harness struct {
	engine   *Engine
	platform *fakePlatform
	store    *memory.Store
	live     *buttoncache.Cache
}

func newHarness(t *testing.T, values ...int) harness {
	t.Helper()
	live, err := buttoncache.New(0)
	if err != nil {
		t.Fatalf("new button cache: %v", err)
	}
	h := harness{platform: newFakePlatform(), store: memory.New(), live: live}
	ids := 0
	h.engine, err = NewEngine(Options{
		Store:     h.store,
		Platform:  h.platform,
		Evaluator: newEvaluator(t, values...),
		Live:      live,
		Messages:  catalog.Default(),
		NewID: func() (string, error) {
			ids++
			return fmt.Sprintf("cfg%d", ids), nil
		},
		Now: func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return h
}

func (h harness) start(t *testing.T, channelID string, cfg Config) StartResult {
	t.Helper()
	result, err := h.engine.Start(context.Background(), StartRequest{GuildID: "g1", ChannelID: channelID, UserID: "u1", Config: cfg})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return result
}

func click(channelID, messageID string, id CustomID, userID string) chat.Event {
	return chat.Event{
		GuildID:   "g1",
		ChannelID: channelID,
		MessageID: messageID,
		CustomID:  id.String(),
		UserID:    userID,
		UserName:  map[string]string{"u1": "alice", "u2": "bob"}[userID],
	}
}

func TestNewEngineRequiresDependencies(t *testing.T) {
	if _, err := NewEngine(Options{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestCustomDiceClickAnswersAndMovesMessage(t *testing.T) {
	h := newHarness(t, 4, 5, 6)
	ctx := context.Background()
	started := h.start(t, "c1", &CustomDiceConfig{Buttons: ParseButtonSpecs("3d6")})

	event := click("c1", started.MessageID, NewCustomID(KindCustomDice, "1_button", started.ConfigID), "u1")
	if err := h.engine.HandleClick(ctx, event); err != nil {
		t.Fatalf("handle click: %v", err)
	}

	if len(h.platform.created) != 3 {
		t.Fatalf("created = %d, want 3", len(h.platform.created))
	}
	answer := h.platform.created[1].msg.Answer
	if answer == nil {
		t.Fatal("expected answer message")
	}
	if answer.Title != "3d6 = 15" || answer.Body != "[4, 5, 6]" || answer.Author != "alice" {
		t.Fatalf("answer = %+v", answer)
	}
	if h.platform.edits[0].msg.Content != "processing ..." {
		t.Fatalf("first edit = %q, want processing", h.platform.edits[0].msg.Content)
	}

	moved := h.platform.lastCreated()
	if len(moved.msg.Layout) != 1 {
		t.Fatalf("moved layout = %+v", moved.msg.Layout)
	}
	if _, ok := h.platform.message("c1", started.MessageID); ok {
		t.Fatal("expected clicked message to be deleted")
	}
	if _, err := h.store.GetMessage(ctx, "c1", started.MessageID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("old record error = %v, want %v", err, storage.ErrNotFound)
	}
	record, err := h.store.GetMessage(ctx, "c1", moved.messageID)
	if err != nil {
		t.Fatalf("get moved record: %v", err)
	}
	if record.ConfigID != started.ConfigID || record.StateKind != string(StateEmpty) {
		t.Fatalf("moved record = %+v", record)
	}
	if got := h.live.Live("c1", Fingerprint(&CustomDiceConfig{Buttons: ParseButtonSpecs("3d6")})); len(got) != 1 || got[0] != moved.messageID {
		t.Fatalf("live = %v, want [%s]", got, moved.messageID)
	}
}

func TestPinnedMessageIsRefreshedInPlace(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	started := h.start(t, "c1", &CustomDiceConfig{Buttons: ParseButtonSpecs("1d6@Luck")})

	event := click("c1", started.MessageID, NewCustomID(KindCustomDice, "1_button", started.ConfigID), "u1")
	event.Pinned = true
	if err := h.engine.HandleClick(ctx, event); err != nil {
		t.Fatalf("handle click: %v", err)
	}
	if len(h.platform.created) != 2 {
		t.Fatalf("created = %d, want 2", len(h.platform.created))
	}
	if got := h.platform.lastCreated().msg.Answer.Title; got != "Luck: 1d6 = 2" {
		t.Fatalf("title = %q", got)
	}
	msg, ok := h.platform.message("c1", started.MessageID)
	if !ok || len(msg.Layout) != 1 {
		t.Fatalf("pinned message = %+v, %v", msg, ok)
	}
	if len(h.platform.deleted) != 0 {
		t.Fatalf("deleted = %v, want none", h.platform.deleted)
	}
}

func TestAnswerTargetChannel(t *testing.T) {
	h := newHarness(t, 6)
	started := h.start(t, "c1", &CustomDiceConfig{Base: Base{AnswerTargetChannelID: "log"}, Buttons: ParseButtonSpecs("1d6")})

	event := click("c1", started.MessageID, NewCustomID(KindCustomDice, "1_button", started.ConfigID), "u1")
	if err := h.engine.HandleClick(context.Background(), event); err != nil {
		t.Fatalf("handle click: %v", err)
	}
	answer := h.platform.lastCreated()
	if answer.channelID != "log" || answer.msg.Answer == nil {
		t.Fatalf("answer = %+v", answer)
	}
	if _, ok := h.platform.message("c1", started.MessageID); !ok {
		t.Fatal("expected button message to stay in place")
	}
}

func TestStartRetiresDuplicateMessages(t *testing.T) {
	h := newHarness(t)
	first := h.start(t, "c1", &CustomDiceConfig{Buttons: ParseButtonSpecs("1d20")})
	other := h.start(t, "c1", &CustomDiceConfig{Buttons: ParseButtonSpecs("1d8")})
	second := h.start(t, "c1", &CustomDiceConfig{Buttons: ParseButtonSpecs("1d20")})

	if _, ok := h.platform.message("c1", first.MessageID); ok {
		t.Fatal("expected duplicate message to be deleted")
	}
	if _, err := h.store.GetMessage(context.Background(), "c1", first.MessageID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("duplicate record error = %v", err)
	}
	for _, id := range []string{other.MessageID, second.MessageID} {
		if _, ok := h.platform.message("c1", id); !ok {
			t.Fatalf("expected message %s to remain", id)
		}
	}
}

func TestStartRejectsInvalidConfig(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Start(context.Background(), StartRequest{ChannelID: "c1", Config: &CustomDiceConfig{Buttons: ParseButtonSpecs("3x")}})
	if got := apperrors.CodeOf(err); got != apperrors.CodeConfigurationInvalid {
		t.Fatalf("code = %v, want %v", got, apperrors.CodeConfigurationInvalid)
	}
	if len(h.platform.created) != 0 {
		t.Fatal("expected nothing posted")
	}
	if msg := h.engine.ErrorText("en-US", err); !strings.HasPrefix(msg, "Invalid configuration: 3x") {
		t.Fatalf("error text = %q", msg)
	}
}

func TestPresets(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cfg := &CustomDiceConfig{Buttons: ParseButtonSpecs("1d20@Attack")}
	started, err := h.engine.Start(ctx, StartRequest{GuildID: "g1", ChannelID: "c1", UserID: "u1", Name: "combat", Config: cfg})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	_, err = h.engine.Start(ctx, StartRequest{GuildID: "g1", ChannelID: "c1", UserID: "u1", Name: "combat", Config: cfg})
	if got := apperrors.CodeOf(err); got != apperrors.CodeConfigurationInvalid {
		t.Fatalf("duplicate preset code = %v, want %v", got, apperrors.CodeConfigurationInvalid)
	}

	posted, err := h.engine.StartPreset(ctx, "g1", "c2", "combat")
	if err != nil {
		t.Fatalf("start preset: %v", err)
	}
	if posted.ConfigID != started.ConfigID {
		t.Fatalf("preset config = %q, want %q", posted.ConfigID, started.ConfigID)
	}
	if h.platform.lastCreated().channelID != "c2" {
		t.Fatalf("preset posted to %q, want c2", h.platform.lastCreated().channelID)
	}

	_, err = h.engine.StartPreset(ctx, "g1", "c2", "missing")
	if got := apperrors.CodeOf(err); got != apperrors.CodeConfigurationInvalid {
		t.Fatalf("missing preset code = %v, want %v", got, apperrors.CodeConfigurationInvalid)
	}
}

func TestClickOnUnknownMessageReplies(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	loaded, found, err := h.engine.LoadAndApply(ctx, "c1", "nope", "1_button", Invoker{ID: "u1"})
	if err != nil || found {
		t.Fatalf("LoadAndApply = %+v, %v, %v, want absent", loaded, found, err)
	}

	event := click("c1", "nope", NewCustomID(KindCustomDice, "1_button", "cfg1"), "u1")
	if err := h.engine.HandleClick(ctx, event); err != nil {
		t.Fatalf("handle click: %v", err)
	}
	if len(h.platform.replies) != 1 || h.platform.replies[0] != "This interaction is no longer available." {
		t.Fatalf("replies = %v", h.platform.replies)
	}
}

func TestLegacyCustomIDReplies(t *testing.T) {
	h := newHarness(t)
	event := chat.Event{ChannelID: "c1", MessageID: "m1", CustomID: "1_button", Locale: "de"}
	if err := h.engine.HandleClick(context.Background(), event); err != nil {
		t.Fatalf("handle click: %v", err)
	}
	if len(h.platform.replies) != 1 || !strings.Contains(h.platform.replies[0], "Version") {
		t.Fatalf("replies = %v", h.platform.replies)
	}
}

func TestFaultsAreReturned(t *testing.T) {
	h := newHarness(t, 1)
	started := h.start(t, "c1", &CustomDiceConfig{Buttons: ParseButtonSpecs("1d6")})
	h.platform.createFn = func(string) error { return errors.New("platform down") }

	event := click("c1", started.MessageID, NewCustomID(KindCustomDice, "1_button", started.ConfigID), "u1")
	if err := h.engine.HandleClick(context.Background(), event); err == nil {
		t.Fatal("expected error")
	}
	if len(h.platform.replies) != 1 || h.platform.replies[0] != "Something went wrong." {
		t.Fatalf("replies = %v", h.platform.replies)
	}
	msg, ok := h.platform.message("c1", started.MessageID)
	if !ok || len(msg.Layout) == 0 {
		t.Fatalf("expected buttons restored, got %+v", msg)
	}
}

func TestEvaluationFailureIsShownInAnswer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cfg := &CustomDiceConfig{Buttons: ParseButtonSpecs("1d6;2000d6")}
	blob, err := EncodeConfig(cfg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := h.store.SaveConfig(ctx, storage.ConfigRecord{ConfigID: "cfg9", GuildID: "g1", CommandKind: string(KindCustomDice), Blob: blob}); err != nil {
		t.Fatalf("save config: %v", err)
	}
	if err := h.engine.CreateAssociation(ctx, Association{ConfigID: "cfg9", ChannelID: "c1", MessageID: "m0", Kind: KindCustomDice, State: emptyState(cfg)}); err != nil {
		t.Fatalf("associate: %v", err)
	}
	h.platform.live["c1/m0"] = chat.Message{}

	event := click("c1", "m0", NewCustomID(KindCustomDice, "2_button", "cfg9"), "u1")
	if err := h.engine.HandleClick(ctx, event); err != nil {
		t.Fatalf("handle click: %v", err)
	}
	answer := h.platform.created[0].msg.Answer
	if answer == nil || !strings.HasPrefix(answer.Body, "Could not roll 2000d6") {
		t.Fatalf("answer = %+v", answer)
	}
}

func TestSumCustomSetFlow(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	started := h.start(t, "c1", &SumCustomSetConfig{Buttons: ParseButtonSpecs("1d6;2")})
	configID := started.ConfigID

	for _, value := range []string{"1_button", "2_button"} {
		event := click("c1", started.MessageID, NewCustomID(KindSumCustomSet, value, configID), "u1")
		if err := h.engine.HandleClick(ctx, event); err != nil {
			t.Fatalf("click %s: %v", value, err)
		}
	}
	msg, _ := h.platform.message("c1", started.MessageID)
	if msg.Content != "Roll: 1d6+2" {
		t.Fatalf("content = %q, want %q", msg.Content, "Roll: 1d6+2")
	}
	record, err := h.store.GetMessage(ctx, "c1", started.MessageID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	state, err := DecodeState(StateKind(record.StateKind), record.State)
	if err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if parts := state.Data.(SumCustomSetState).Parts; len(parts) != 2 {
		t.Fatalf("parts = %v", parts)
	}

	roll := click("c1", started.MessageID, NewCustomID(KindSumCustomSet, ValueRoll, configID), "u1")
	if err := h.engine.HandleClick(ctx, roll); err != nil {
		t.Fatalf("roll: %v", err)
	}
	answer := h.platform.created[1].msg.Answer
	if answer == nil || answer.Title != "1d6+2 = 5" || answer.Body != "[3]" {
		t.Fatalf("answer = %+v", answer)
	}
	moved := h.platform.lastCreated()
	if moved.msg.Content != "Click the buttons to build a roll" {
		t.Fatalf("moved content = %q", moved.msg.Content)
	}
}

func TestSumCustomSetRollWithoutPartsStaysInPlace(t *testing.T) {
	h := newHarness(t)
	started := h.start(t, "c1", &SumCustomSetConfig{Buttons: ParseButtonSpecs("1d6")})
	roll := click("c1", started.MessageID, NewCustomID(KindSumCustomSet, ValueRoll, started.ConfigID), "u1")
	if err := h.engine.HandleClick(context.Background(), roll); err != nil {
		t.Fatalf("roll: %v", err)
	}
	if len(h.platform.created) != 1 {
		t.Fatalf("created = %d, want 1", len(h.platform.created))
	}
}

func TestRerollFlow(t *testing.T) {
	h := newHarness(t, 2, 5, 6)
	ctx := context.Background()
	started := h.start(t, "c1", &CustomDiceConfig{Base: Base{Interaction: InteractionReroll}, Buttons: ParseButtonSpecs("2d6")})

	if err := h.engine.HandleClick(ctx, click("c1", started.MessageID, NewCustomID(KindCustomDice, "1_button", started.ConfigID), "u1")); err != nil {
		t.Fatalf("roll: %v", err)
	}
	answer := h.platform.created[1]
	if answer.msg.Answer == nil || answer.msg.Answer.Title != "2d6 = 7" {
		t.Fatalf("answer = %+v", answer.msg.Answer)
	}
	if len(answer.msg.Layout) != 2 {
		t.Fatalf("reroll layout = %+v", answer.msg.Layout)
	}
	record, err := h.store.GetMessage(ctx, "c1", answer.messageID)
	if err != nil {
		t.Fatalf("get reroll record: %v", err)
	}
	if record.CommandKind != string(KindRerollAnswer) || record.StateKind != string(StateReroll) {
		t.Fatalf("reroll record = %+v", record)
	}

	firstDie, err := ParseCustomID(answer.msg.Layout[0][0].CustomID)
	if err != nil {
		t.Fatalf("parse die custom id: %v", err)
	}

	// other users may not touch the roll
	if err := h.engine.HandleClick(ctx, click("c1", answer.messageID, firstDie, "u2")); err != nil {
		t.Fatalf("wrong user: %v", err)
	}
	if got := h.platform.replies[len(h.platform.replies)-1]; got != "Only alice can use these buttons." {
		t.Fatalf("reply = %q", got)
	}

	rerollID := NewCustomID(KindRerollAnswer, ValueReroll, record.ConfigID)
	if err := h.engine.HandleClick(ctx, click("c1", answer.messageID, rerollID, "u1")); err != nil {
		t.Fatalf("empty reroll: %v", err)
	}
	if got := h.platform.replies[len(h.platform.replies)-1]; got != "Select at least one die before rerolling." {
		t.Fatalf("reply = %q", got)
	}

	if err := h.engine.HandleClick(ctx, click("c1", answer.messageID, firstDie, "u1")); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	msg, _ := h.platform.message("c1", answer.messageID)
	if msg.Layout[0][0].Style != chat.StylePrimary {
		t.Fatalf("marked die style = %v, want primary", msg.Layout[0][0].Style)
	}

	if err := h.engine.HandleClick(ctx, click("c1", answer.messageID, rerollID, "u1")); err != nil {
		t.Fatalf("reroll: %v", err)
	}
	msg, _ = h.platform.message("c1", answer.messageID)
	if msg.Answer == nil || msg.Answer.Title != "2d6 = 11" {
		t.Fatalf("rerolled answer = %+v", msg.Answer)
	}
	if len(msg.Answer.Fields) != 1 || msg.Answer.Fields[0].Value != "1" {
		t.Fatalf("fields = %+v", msg.Answer.Fields)
	}

	// the old die button belongs to an earlier round
	if err := h.engine.HandleClick(ctx, click("c1", answer.messageID, firstDie, "u1")); err != nil {
		t.Fatalf("stale toggle: %v", err)
	}
	if got := h.platform.replies[len(h.platform.replies)-1]; got != "That die is no longer part of the roll." {
		t.Fatalf("reply = %q", got)
	}

	finish := NewCustomID(KindRerollAnswer, ValueFinish, record.ConfigID)
	if err := h.engine.HandleClick(ctx, click("c1", answer.messageID, finish, "u1")); err != nil {
		t.Fatalf("finish: %v", err)
	}
	msg, _ = h.platform.message("c1", answer.messageID)
	if msg.Layout != nil || msg.Answer == nil {
		t.Fatalf("finished message = %+v", msg)
	}
	if _, err := h.store.GetMessage(ctx, "c1", answer.messageID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("finished record error = %v", err)
	}
	if _, err := h.store.GetConfig(ctx, record.ConfigID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("finished config error = %v", err)
	}
}

func TestRerollSkippedForLargeRolls(t *testing.T) {
	h := newHarness(t, 1)
	started := h.start(t, "c1", &CustomDiceConfig{Base: Base{Interaction: InteractionReroll}, Buttons: ParseButtonSpecs("21d6")})
	if err := h.engine.HandleClick(context.Background(), click("c1", started.MessageID, NewCustomID(KindCustomDice, "1_button", started.ConfigID), "u1")); err != nil {
		t.Fatalf("roll: %v", err)
	}
	answer := h.platform.created[1]
	if answer.msg.Answer == nil || answer.msg.Layout != nil {
		t.Fatalf("answer = %+v", answer.msg)
	}
}

func TestClearChannel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.start(t, "c1", &CustomDiceConfig{Buttons: ParseButtonSpecs("1d20")})
	b := h.start(t, "c1", &SumCustomSetConfig{Buttons: ParseButtonSpecs("1d6")})
	other := h.start(t, "c2", &CustomDiceConfig{Buttons: ParseButtonSpecs("1d20")})

	removed, err := h.engine.ClearChannel(ctx, "c1")
	if err != nil {
		t.Fatalf("clear channel: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	for _, id := range []string{a.MessageID, b.MessageID} {
		if _, ok := h.platform.message("c1", id); ok {
			t.Fatalf("expected message %s deleted", id)
		}
	}
	if _, err := h.store.GetMessage(ctx, "c2", other.MessageID); err != nil {
		t.Fatalf("other channel record: %v", err)
	}
	if got := h.engine.ChannelClearedText("en-US", removed); got != "Removed 2 button messages." {
		t.Fatalf("cleared text = %q", got)
	}
}

func TestFailedRepostRestoresButtons(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	cfg := &CustomDiceConfig{Buttons: ParseButtonSpecs("1d6")}
	started := h.start(t, "c1", cfg)
	creates := 0
	h.platform.createFn = func(string) error {
		creates++
		if creates == 2 {
			return errors.New("rate limited")
		}
		return nil
	}

	event := click("c1", started.MessageID, NewCustomID(KindCustomDice, "1_button", started.ConfigID), "u1")
	if err := h.engine.HandleClick(ctx, event); err == nil {
		t.Fatal("expected error")
	}
	if len(h.platform.created) != 2 || h.platform.created[1].msg.Answer == nil {
		t.Fatalf("created = %+v, want button message and answer", h.platform.created)
	}
	msg, ok := h.platform.message("c1", started.MessageID)
	if !ok || len(msg.Layout) != 1 || msg.Content != "Click on the buttons to roll dice" {
		t.Fatalf("clicked message = %+v, %v", msg, ok)
	}
	record, err := h.store.GetMessage(ctx, "c1", started.MessageID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record.StateKind != string(StateEmpty) {
		t.Fatalf("state kind = %q, want %q", record.StateKind, StateEmpty)
	}
	if got := h.live.Live("c1", Fingerprint(cfg)); len(got) != 1 || got[0] != started.MessageID {
		t.Fatalf("live = %v, want [%s]", got, started.MessageID)
	}
	if len(h.platform.replies) != 1 || h.platform.replies[0] != "Something went wrong." {
		t.Fatalf("replies = %v", h.platform.replies)
	}
}

type failingMessageStore struct {
	*memory.Store
	saveErr error
}

func (s failingMessageStore) SaveMessage(context.Context, storage.MessageRecord) error {
	return s.saveErr
}

func TestUnrecordedButtonMessageIsDeleted(t *testing.T) {
	live, err := buttoncache.New(0)
	if err != nil {
		t.Fatalf("new button cache: %v", err)
	}
	platform := newFakePlatform()
	engine, err := NewEngine(Options{
		Store:     failingMessageStore{Store: memory.New(), saveErr: errors.New("disk full")},
		Platform:  platform,
		Evaluator: newEvaluator(t),
		Live:      live,
		Messages:  catalog.Default(),
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	_, err = engine.Start(context.Background(), StartRequest{GuildID: "g1", ChannelID: "c1", UserID: "u1", Config: &CustomDiceConfig{Buttons: ParseButtonSpecs("1d6")}})
	if got := apperrors.CodeOf(err); got != apperrors.CodeStorageFailure {
		t.Fatalf("error code = %s, want %s", got, apperrors.CodeStorageFailure)
	}
	if len(platform.created) != 1 {
		t.Fatalf("created = %d, want 1", len(platform.created))
	}
	if _, ok := platform.message("c1", platform.created[0].messageID); ok {
		t.Fatal("expected unrecorded message to be deleted")
	}
}

func TestClearChannelPrunesUnusedConfigs(t *testing.T) {
	h := newHarness(t, 2, 5)
	ctx := context.Background()
	rolled := h.start(t, "c1", &CustomDiceConfig{Base: Base{Interaction: InteractionReroll}, Buttons: ParseButtonSpecs("2d6")})
	if err := h.engine.HandleClick(ctx, click("c1", rolled.MessageID, NewCustomID(KindCustomDice, "1_button", rolled.ConfigID), "u1")); err != nil {
		t.Fatalf("roll: %v", err)
	}
	answer := h.platform.created[1]
	rerollRecord, err := h.store.GetMessage(ctx, "c1", answer.messageID)
	if err != nil {
		t.Fatalf("get reroll record: %v", err)
	}
	preset, err := h.engine.Start(ctx, StartRequest{GuildID: "g1", ChannelID: "c1", UserID: "u1", Name: "combat", Config: &CustomDiceConfig{Buttons: ParseButtonSpecs("1d20")}})
	if err != nil {
		t.Fatalf("start preset: %v", err)
	}

	removed, err := h.engine.ClearChannel(ctx, "c1")
	if err != nil {
		t.Fatalf("clear channel: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}
	for _, configID := range []string{rolled.ConfigID, rerollRecord.ConfigID} {
		if _, err := h.store.GetConfig(ctx, configID); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("config %s error = %v, want %v", configID, err, storage.ErrNotFound)
		}
	}
	if _, err := h.store.GetConfig(ctx, preset.ConfigID); err != nil {
		t.Fatalf("preset config: %v", err)
	}
}

func TestClearChannelKeepsConfigsUsedElsewhere(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	started := h.start(t, "c1", &CustomDiceConfig{Buttons: ParseButtonSpecs("1d20")})
	// a second message of the same config in another channel
	if err := h.engine.CreateAssociation(ctx, Association{ConfigID: started.ConfigID, GuildID: "g1", ChannelID: "c2", MessageID: "m9", Kind: KindCustomDice, State: NewState(EmptyState{})}); err != nil {
		t.Fatalf("associate: %v", err)
	}

	if _, err := h.engine.ClearChannel(ctx, "c1"); err != nil {
		t.Fatalf("clear channel: %v", err)
	}
	if _, err := h.store.GetConfig(ctx, started.ConfigID); err != nil {
		t.Fatalf("shared config: %v", err)
	}
}

func TestForgetMessage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cfg := &CustomDiceConfig{Buttons: ParseButtonSpecs("1d20")}
	started := h.start(t, "c1", cfg)

	if err := h.engine.ForgetMessage(ctx, "c1", started.MessageID); err != nil {
		t.Fatalf("forget message: %v", err)
	}
	if _, err := h.store.GetMessage(ctx, "c1", started.MessageID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("record error = %v, want %v", err, storage.ErrNotFound)
	}
	if _, err := h.store.GetConfig(ctx, started.ConfigID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("config error = %v, want %v", err, storage.ErrNotFound)
	}
	if got := h.live.Live("c1", Fingerprint(cfg)); len(got) != 0 {
		t.Fatalf("live = %v, want none", got)
	}
	if len(h.platform.deleted) != 0 {
		t.Fatalf("deleted = %v, want none", h.platform.deleted)
	}

	// messages the bot never tracked, or already forgot
	if err := h.engine.ForgetMessage(ctx, "c1", started.MessageID); err != nil {
		t.Fatalf("forget again: %v", err)
	}
	if err := h.engine.ForgetMessage(ctx, "c1", "unknown"); err != nil {
		t.Fatalf("forget unknown: %v", err)
	}
}

func TestForgetMessageKeepsPresets(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	started, err := h.engine.Start(ctx, StartRequest{GuildID: "g1", ChannelID: "c1", UserID: "u1", Name: "combat", Config: &CustomDiceConfig{Buttons: ParseButtonSpecs("1d20")}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.engine.ForgetMessage(ctx, "c1", started.MessageID); err != nil {
		t.Fatalf("forget message: %v", err)
	}
	if _, err := h.store.GetConfigByName(ctx, "g1", "combat"); err != nil {
		t.Fatalf("preset: %v", err)
	}
}

func TestDirectRoll(t *testing.T) {
	h := newHarness(t, 4, 5, 6)
	ctx := context.Background()

	answer, err := h.engine.DirectRoll(ctx, RollRequest{Locale: "en-US", UserName: "alice", Input: " 3d6 @ Attack "})
	if err != nil {
		t.Fatalf("direct roll: %v", err)
	}
	if answer.Title != "Attack: 3d6 = 15" || answer.Body != "[4, 5, 6]" || answer.Author != "alice" {
		t.Fatalf("answer = %+v", answer)
	}
	if len(h.platform.created) != 0 {
		t.Fatalf("created = %d, want none", len(h.platform.created))
	}

	failed, err := h.engine.DirectRoll(ctx, RollRequest{Locale: "en-US", UserName: "alice", Input: "3x"})
	if err != nil {
		t.Fatalf("direct roll of invalid expression: %v", err)
	}
	if failed.Title != "3x" || !strings.HasPrefix(failed.Body, "Could not roll 3x: ") {
		t.Fatalf("failed answer = %+v", failed)
	}

	for _, input := range []string{"", "  ", "@Attack"} {
		if _, err := h.engine.DirectRoll(ctx, RollRequest{Input: input}); apperrors.CodeOf(err) != apperrors.CodeConfigurationInvalid {
			t.Fatalf("DirectRoll(%q) code = %s, want %s", input, apperrors.CodeOf(err), apperrors.CodeConfigurationInvalid)
		}
	}
}

func TestHelpText(t *testing.T) {
	h := newHarness(t)
	for _, locale := range []string{"en-US", "de"} {
		if got := h.engine.HelpText(locale); !strings.Contains(got, "/r ") || !strings.Contains(got, "/custom_dice") {
			t.Fatalf("help(%s) = %q", locale, got)
		}
	}
}
