package command

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	apperrors "github.com/louisbranch/dicebot/internal/platform/errors"
	"github.com/louisbranch/dicebot/internal/platform/errors/i18n"
	"github.com/louisbranch/dicebot/internal/platform/id"
	"github.com/louisbranch/dicebot/internal/reroll"
	"github.com/louisbranch/dicebot/internal/services/dicebot/chat"
	"github.com/louisbranch/dicebot/internal/services/dicebot/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/louisbranch/dicebot/internal/services/dicebot/command"

// LiveIndex tracks live button messages per channel.
type LiveIndex interface {
	Register(channelID, messageID string, fingerprint uint64)
	Unregister(channelID, messageID string, fingerprint uint64)
	RetireOthersWith(channelID, keepMessageID string, fingerprint uint64) []string
	ForgetChannel(channelID string)
}

// Options wires an Engine.
type Options struct {
	Store     storage.Store
	Platform  chat.Platform
	Evaluator Evaluator
	Live      LiveIndex
	Messages  Messages
	// NewID generates config ids. Defaults to id.NewID.
	NewID func() (string, error)
	// Now stamps stored records. Defaults to time.Now.
	Now    func() time.Time
	Tracer trace.Tracer
}

// Engine runs the command flow: load the config and state of a message,
// apply the click, answer, persist the new state and update the platform.
//
// Concurrent clicks on the same message are not serialized. Both read the
// same prior record and the last write wins.
type Engine struct {
	store     storage.Store
	platform  chat.Platform
	evaluator Evaluator
	live      LiveIndex
	render    Renderer
	newID     func() (string, error)
	now       func() time.Time
	tracer    trace.Tracer
}

// NewEngine creates an engine.
func NewEngine(opts Options) (*Engine, error) {
	switch {
	case opts.Store == nil:
		return nil, errors.New("store is required")
	case opts.Platform == nil:
		return nil, errors.New("platform is required")
	case opts.Evaluator == nil:
		return nil, errors.New("evaluator is required")
	case opts.Live == nil:
		return nil, errors.New("live message index is required")
	case opts.Messages == nil:
		return nil, errors.New("messages are required")
	}
	e := &Engine{
		store:     opts.Store,
		platform:  opts.Platform,
		evaluator: opts.Evaluator,
		live:      opts.Live,
		render:    NewRenderer(opts.Messages),
		newID:     opts.NewID,
		now:       opts.Now,
		tracer:    opts.Tracer,
	}
	if e.newID == nil {
		e.newID = id.NewID
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	return e, nil
}

// Association is a message record before encoding.
type Association struct {
	ConfigID  string
	GuildID   string
	ChannelID string
	MessageID string
	Kind      Kind
	State     State
}

// CreateAssociation stores a new message record. Any record already held
// for the message is deleted first, so a retried send never leaves two.
func (e *Engine) CreateAssociation(ctx context.Context, a Association) error {
	stateKind, blob, err := EncodeState(a.State)
	if err != nil {
		return err
	}
	if err := e.store.DeleteMessage(ctx, a.ChannelID, a.MessageID); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, "delete prior message record", err)
	}
	record := storage.MessageRecord{
		ConfigID:    a.ConfigID,
		GuildID:     a.GuildID,
		ChannelID:   a.ChannelID,
		MessageID:   a.MessageID,
		CommandKind: string(a.Kind),
		StateKind:   string(stateKind),
		State:       blob,
		UpdatedAt:   e.now(),
	}
	if err := e.store.SaveMessage(ctx, record); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, "save message record", err)
	}
	return nil
}

// Loaded is the outcome of LoadAndApply.
type Loaded struct {
	Record storage.MessageRecord
	Config Config
	Prior  State
	State  State
}

// LoadAndApply loads the config and state of a message and derives the
// state that follows a click on value. Nothing is persisted. found is false
// when the message has no record; that is an expired interaction, not an
// error.
func (e *Engine) LoadAndApply(ctx context.Context, channelID, messageID, value string, user Invoker) (loaded Loaded, found bool, err error) {
	record, err := e.store.GetMessage(ctx, channelID, messageID)
	if errors.Is(err, storage.ErrNotFound) {
		return Loaded{}, false, nil
	}
	if err != nil {
		return Loaded{}, false, apperrors.Wrap(apperrors.CodeStorageFailure, "load message record", err)
	}
	cfg, err := e.loadConfig(ctx, record.ConfigID)
	if errors.Is(err, storage.ErrNotFound) {
		return Loaded{}, false, nil
	}
	if err != nil {
		return Loaded{}, false, err
	}
	if string(cfg.Kind()) != record.CommandKind {
		return Loaded{}, true, apperrors.New(apperrors.CodeUnknownRecordFormat,
			fmt.Sprintf("message record kind %q does not match config kind %q", record.CommandKind, cfg.Kind()))
	}
	prior, err := DecodeState(StateKind(record.StateKind), record.State)
	if err != nil {
		return Loaded{}, true, err
	}

	loaded = Loaded{Record: record, Config: cfg, Prior: prior}
	next, err := apply(cfg, prior, value, user, e.evaluator)
	if err != nil {
		return loaded, true, err
	}
	loaded.State = next
	return loaded, true, nil
}

// ComputeAnswer returns the answer for cfg in state, or nil when the state
// has nothing to show. Evaluation failures become the answer body.
func (e *Engine) ComputeAnswer(cfg Config, state State) *chat.Answer {
	locale := cfg.base().Locale
	switch c := cfg.(type) {
	case *CustomDiceConfig, *SumCustomSetConfig:
		expression, label, ok := rollTarget(cfg, state)
		if !ok {
			return nil
		}
		result, err := e.evaluator.Evaluate(expression, 0)
		if err != nil {
			return e.evaluationFailure(locale, expression, label, err)
		}
		return e.render.resultAnswer(locale, result, label, 0)
	case *RerollAnswerConfig:
		data, ok := state.Data.(RerollState)
		if !ok {
			return nil
		}
		return e.render.resultAnswer(locale, data.Session.Result, c.Label, data.Session.Round)
	default:
		return nil
	}
}

// RenderButtons returns the button layout of a message of configID.
func (e *Engine) RenderButtons(configID string, cfg Config, state State) chat.Layout {
	return e.render.Buttons(configID, cfg, state)
}

// ErrorText returns the reply shown to a user for err.
func (e *Engine) ErrorText(locale string, err error) string {
	code, metadata := apperrors.CodeUnknown, map[string]string(nil)
	if domainErr, ok := apperrors.As(err); ok {
		code, metadata = domainErr.Code, domainErr.Metadata
	}
	return i18n.Default().Format(locale, string(code), metadata)
}

// ChannelClearedText returns the confirmation after ClearChannel.
func (e *Engine) ChannelClearedText(locale string, removed int) string {
	return e.render.ChannelCleared(locale, removed)
}

// StartedText returns the confirmation after Start or StartPreset.
func (e *Engine) StartedText(locale string) string {
	return e.render.Started(locale)
}

// HandleClick processes one button click to completion. Cancellation of ctx
// after the call starts does not abort the handling. User-facing outcomes
// such as an expired message are replied to and return nil; faults are
// logged, answered with a generic reply and returned.
func (e *Engine) HandleClick(ctx context.Context, event chat.Event) error {
	ctx = context.WithoutCancel(ctx)
	ctx, span := e.tracer.Start(ctx, "command.HandleClick", trace.WithAttributes(
		attribute.String("dicebot.channel_id", event.ChannelID),
		attribute.String("dicebot.message_id", event.MessageID),
	))
	defer span.End()

	err := e.handleClick(ctx, span, event)
	if err == nil {
		return nil
	}

	code := apperrors.CodeOf(err)
	span.SetAttributes(attribute.String("dicebot.error_code", string(code)))
	if !code.Soft() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Printf("handle click %s/%s: %v", event.ChannelID, event.MessageID, err)
	}
	if replyErr := e.platform.Reply(ctx, event, e.ErrorText(event.Locale, err)); replyErr != nil {
		log.Printf("reply to click %s/%s: %v", event.ChannelID, event.MessageID, replyErr)
	}
	if code.Soft() {
		return nil
	}
	return err
}

func (e *Engine) handleClick(ctx context.Context, span trace.Span, event chat.Event) error {
	if !event.Validate() {
		return apperrors.New(apperrors.CodeUnknownRecordFormat, "event is missing channel, message or custom id")
	}
	customID, err := ParseCustomID(event.CustomID)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("dicebot.command_kind", string(customID.Kind)))

	loaded, found, err := e.LoadAndApply(ctx, event.ChannelID, event.MessageID, customID.Value, Invoker{ID: event.UserID, Name: event.UserName})
	if err != nil {
		return err
	}
	if !found {
		return apperrors.New(apperrors.CodeMissingAssociation, "message has no record")
	}
	if loaded.Config.Kind() != customID.Kind {
		return apperrors.New(apperrors.CodeUnknownRecordFormat,
			fmt.Sprintf("custom id kind %q does not match stored kind %q", customID.Kind, loaded.Config.Kind()))
	}

	switch cfg := loaded.Config.(type) {
	case *CustomDiceConfig:
		return e.rollAndRefresh(ctx, event, loaded)
	case *SumCustomSetConfig:
		if _, _, ok := rollTarget(cfg, loaded.State); ok {
			return e.rollAndRefresh(ctx, event, loaded)
		}
		return e.updateInPlace(ctx, event, loaded)
	case *RerollAnswerConfig:
		return e.advanceReroll(ctx, event, loaded, cfg)
	default:
		return apperrors.New(apperrors.CodeUnknownRecordFormat, fmt.Sprintf("unsupported command %T", cfg))
	}
}

// rollAndRefresh posts the answer of a roll and resets the button message.
// The message moves to the end of the channel unless it is pinned or the
// answers go to another channel, in which case it is edited in place.
func (e *Engine) rollAndRefresh(ctx context.Context, event chat.Event, loaded Loaded) error {
	cfg := loaded.Config
	base := cfg.base()
	inPlace := event.Pinned || base.AnswerTargetChannelID != ""
	answerChannel := event.ChannelID
	if base.AnswerTargetChannelID != "" {
		answerChannel = base.AnswerTargetChannelID
	}

	if !inPlace {
		if err := e.platform.EditMessage(ctx, event.ChannelID, event.MessageID, e.render.Processing(cfg)); err != nil {
			log.Printf("show processing on %s/%s: %v", event.ChannelID, event.MessageID, err)
		}
	}
	if err := e.postAnswer(ctx, event, loaded, answerChannel); err != nil {
		if !inPlace {
			restore := e.render.ButtonMessage(loaded.Record.ConfigID, cfg, loaded.Prior)
			if editErr := e.platform.EditMessage(ctx, event.ChannelID, event.MessageID, restore); editErr != nil {
				log.Printf("restore button message %s/%s: %v", event.ChannelID, event.MessageID, editErr)
			}
		}
		return err
	}

	fresh := emptyState(cfg)
	if inPlace {
		return e.refreshInPlace(ctx, event, loaded.Record, cfg, fresh)
	}
	return e.moveToEnd(ctx, event, loaded.Record, cfg, fresh)
}

func (e *Engine) postAnswer(ctx context.Context, event chat.Event, loaded Loaded, channelID string) error {
	cfg := loaded.Config
	if cfg.base().Interaction == InteractionReroll {
		started, err := e.startReroll(ctx, event, loaded, channelID)
		if started || err != nil {
			return err
		}
	}
	answer := e.ComputeAnswer(cfg, loaded.State)
	if answer == nil {
		return nil
	}
	answer.Author = event.UserName
	if _, err := e.platform.CreateMessage(ctx, channelID, chat.Message{Answer: answer}); err != nil {
		return fmt.Errorf("post answer: %w", err)
	}
	return nil
}

// startReroll posts the answer as a reroll message with its own config.
// started is false when the roll cannot be offered for rerolls, for
// example because it has more dice than fit as buttons.
func (e *Engine) startReroll(ctx context.Context, event chat.Event, loaded Loaded, channelID string) (started bool, err error) {
	expression, label, ok := rollTarget(loaded.Config, loaded.State)
	if !ok {
		return false, nil
	}
	expr, err := e.evaluator.Compile(expression)
	if err != nil || expr.DiceCount() == 0 || expr.DiceCount() > MaxRerollDice {
		return false, nil
	}
	session, err := reroll.Start(e.evaluator, expression)
	if err != nil {
		return false, nil
	}

	cfg := &RerollAnswerConfig{
		Base:           Base{Locale: loaded.Config.base().Locale, Interaction: InteractionNone},
		Expression:     expression,
		Label:          label,
		OwnerID:        event.UserID,
		OwnerName:      event.UserName,
		ParentConfigID: loaded.Record.ConfigID,
	}
	configID, err := e.saveConfig(ctx, event.GuildID, channelID, event.UserID, "", cfg)
	if err != nil {
		return true, err
	}
	state := NewState(RerollState{Session: session})
	msg := e.rerollMessage(configID, cfg, state)
	messageID, err := e.platform.CreateMessage(ctx, channelID, msg)
	if err != nil {
		if delErr := e.store.DeleteConfig(ctx, configID); delErr != nil {
			log.Printf("delete unused reroll config %s: %v", configID, delErr)
		}
		return true, fmt.Errorf("post reroll answer: %w", err)
	}
	return true, e.CreateAssociation(ctx, Association{
		ConfigID:  configID,
		GuildID:   event.GuildID,
		ChannelID: channelID,
		MessageID: messageID,
		Kind:      KindRerollAnswer,
		State:     state,
	})
}

func (e *Engine) rerollMessage(configID string, cfg *RerollAnswerConfig, state State) chat.Message {
	msg := e.render.ButtonMessage(configID, cfg, state)
	msg.Answer = e.ComputeAnswer(cfg, state)
	if msg.Answer != nil {
		msg.Answer.Author = cfg.OwnerName
	}
	return msg
}

// advanceReroll edits a reroll message in place. A finished session drops
// the buttons and deletes the message record and the reroll config.
func (e *Engine) advanceReroll(ctx context.Context, event chat.Event, loaded Loaded, cfg *RerollAnswerConfig) error {
	configID := loaded.Record.ConfigID
	if err := e.platform.EditMessage(ctx, event.ChannelID, event.MessageID, e.rerollMessage(configID, cfg, loaded.State)); err != nil {
		return fmt.Errorf("edit reroll message: %w", err)
	}
	data, _ := loaded.State.Data.(RerollState)
	if !data.Session.Finished() {
		return e.saveState(ctx, loaded.Record, loaded.State)
	}
	if err := e.store.DeleteMessage(ctx, event.ChannelID, event.MessageID); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, "delete finished reroll record", err)
	}
	if err := e.store.DeleteConfig(ctx, configID); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, "delete finished reroll config", err)
	}
	return nil
}

func (e *Engine) updateInPlace(ctx context.Context, event chat.Event, loaded Loaded) error {
	msg := e.render.ButtonMessage(loaded.Record.ConfigID, loaded.Config, loaded.State)
	if err := e.platform.EditMessage(ctx, event.ChannelID, event.MessageID, msg); err != nil {
		return fmt.Errorf("edit button message: %w", err)
	}
	return e.saveState(ctx, loaded.Record, loaded.State)
}

func (e *Engine) refreshInPlace(ctx context.Context, event chat.Event, record storage.MessageRecord, cfg Config, state State) error {
	msg := e.render.ButtonMessage(record.ConfigID, cfg, state)
	if err := e.platform.EditMessage(ctx, event.ChannelID, event.MessageID, msg); err != nil {
		return fmt.Errorf("refresh button message: %w", err)
	}
	if err := e.saveState(ctx, record, state); err != nil {
		return err
	}
	e.live.Register(event.ChannelID, event.MessageID, Fingerprint(cfg))
	return nil
}

// moveToEnd reposts the button message and deletes the clicked one.
func (e *Engine) moveToEnd(ctx context.Context, event chat.Event, record storage.MessageRecord, cfg Config, state State) error {
	e.live.Unregister(event.ChannelID, event.MessageID, Fingerprint(cfg))
	if _, err := e.postButtonMessage(ctx, record.GuildID, event.ChannelID, record.ConfigID, cfg, state); err != nil {
		// The clicked message still shows "processing"; put its buttons back.
		if restoreErr := e.refreshInPlace(ctx, event, record, cfg, state); restoreErr != nil {
			log.Printf("restore button message %s/%s: %v", event.ChannelID, event.MessageID, restoreErr)
		}
		return err
	}
	e.retire(ctx, event.ChannelID, event.MessageID)
	return nil
}

// postButtonMessage posts a button message, stores its record and retires
// older live messages of the same config in the channel.
func (e *Engine) postButtonMessage(ctx context.Context, guildID, channelID, configID string, cfg Config, state State) (string, error) {
	messageID, err := e.platform.CreateMessage(ctx, channelID, e.render.ButtonMessage(configID, cfg, state))
	if err != nil {
		return "", fmt.Errorf("post button message: %w", err)
	}
	if err := e.CreateAssociation(ctx, Association{
		ConfigID:  configID,
		GuildID:   guildID,
		ChannelID: channelID,
		MessageID: messageID,
		Kind:      cfg.Kind(),
		State:     state,
	}); err != nil {
		if delErr := e.platform.DeleteMessage(ctx, channelID, messageID); delErr != nil {
			log.Printf("delete untracked message %s/%s: %v", channelID, messageID, delErr)
		}
		return "", err
	}

	fingerprint := Fingerprint(cfg)
	e.live.Register(channelID, messageID, fingerprint)
	for _, stale := range e.live.RetireOthersWith(channelID, messageID, fingerprint) {
		e.retire(ctx, channelID, stale)
	}
	return messageID, nil
}

// retire deletes a button message and its record. Failures are logged.
func (e *Engine) retire(ctx context.Context, channelID, messageID string) {
	if err := e.platform.DeleteMessage(ctx, channelID, messageID); err != nil {
		log.Printf("delete message %s/%s: %v", channelID, messageID, err)
	}
	if err := e.store.DeleteMessage(ctx, channelID, messageID); err != nil {
		log.Printf("delete message record %s/%s: %v", channelID, messageID, err)
	}
}

// pruneConfig deletes a config once no message refers to it. Named presets
// are kept.
func (e *Engine) pruneConfig(ctx context.Context, configID string) error {
	messageIDs, err := e.store.ListMessageIDsForConfig(ctx, configID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, "list config messages", err)
	}
	if len(messageIDs) > 0 {
		return nil
	}
	record, err := e.store.GetConfig(ctx, configID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, "load config", err)
	}
	if record.Name != "" {
		return nil
	}
	if err := e.store.DeleteConfig(ctx, configID); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, "delete unused config", err)
	}
	return nil
}

func (e *Engine) saveState(ctx context.Context, record storage.MessageRecord, state State) error {
	stateKind, blob, err := EncodeState(state)
	if err != nil {
		return err
	}
	record.StateKind = string(stateKind)
	record.State = blob
	record.UpdatedAt = e.now()
	if err := e.store.SaveMessage(ctx, record); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, "save message state", err)
	}
	return nil
}

func (e *Engine) loadConfig(ctx context.Context, configID string) (Config, error) {
	record, err := e.store.GetConfig(ctx, configID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageFailure, "load config", err)
	}
	return DecodeConfig(record.Blob)
}

func (e *Engine) saveConfig(ctx context.Context, guildID, channelID, userID, name string, cfg Config) (string, error) {
	blob, err := EncodeConfig(cfg)
	if err != nil {
		return "", err
	}
	configID, err := e.newID()
	if err != nil {
		return "", fmt.Errorf("new config id: %w", err)
	}
	err = e.store.SaveConfig(ctx, storage.ConfigRecord{
		ConfigID:    configID,
		GuildID:     guildID,
		ChannelID:   channelID,
		CommandKind: string(cfg.Kind()),
		Name:        name,
		CreatedBy:   userID,
		Blob:        blob,
		CreatedAt:   e.now(),
	})
	if errors.Is(err, storage.ErrAlreadyExists) && name != "" {
		return "", configError(fmt.Sprintf("preset %q already exists", name), err)
	}
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeStorageFailure, "save config", err)
	}
	return configID, nil
}

func (e *Engine) evaluationFailure(locale, expression, label string, err error) *chat.Answer {
	title := expression
	if label != "" {
		title = label + ": " + expression
	}
	failure := apperrors.WithMetadata(apperrors.CodeEvaluationFailed, err.Error(), map[string]string{
		"Expression": expression,
		"Reason":     err.Error(),
	})
	return &chat.Answer{Title: title, Body: e.ErrorText(locale, failure)}
}
