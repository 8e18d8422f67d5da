package handler

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-bot/internal/conversation"
	"github.com/noah-isme/attendance-bot/pkg/config"
	"github.com/noah-isme/attendance-bot/pkg/jobs"
)

// BotAPI is the subset of *tgbotapi.BotAPI used by the transport.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type interactionHandler interface {
	Handle(ctx context.Context, u conversation.Update) ([]conversation.Reply, error)
	Track(ctx context.Context, chatID int64, messageIDs ...int) error
}

// Inbound is a Telegram update decoded for the conversation machine.
type Inbound struct {
	Update     conversation.Update
	CallbackID string
}

// TelegramHandler polls Telegram and feeds updates through per-chat lanes.
type TelegramHandler struct {
	bot         BotAPI
	machine     interactionHandler
	queue       *jobs.Queue
	logger      *zap.Logger
	pollTimeout int
}

// NewTelegramHandler wires the bot to the machine. Updates of one chat are
// processed strictly in order; different chats run in parallel.
func NewTelegramHandler(bot BotAPI, machine interactionHandler, dispatch config.DispatchConfig, pollTimeout int, logger *zap.Logger) *TelegramHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &TelegramHandler{bot: bot, machine: machine, logger: logger, pollTimeout: pollTimeout}
	h.queue = jobs.NewQueue("telegram", h.process, jobs.QueueConfig{
		Workers:    dispatch.Workers,
		BufferSize: dispatch.BufferSize,
		Logger:     logger,
	})
	return h
}

// Run polls for updates until ctx is cancelled.
func (h *TelegramHandler) Run(ctx context.Context) error {
	h.queue.Start(ctx)
	defer h.queue.Stop()

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = h.pollTimeout
	updates := h.bot.GetUpdatesChan(cfg)
	h.logger.Info("telegram polling started", zap.Int("timeout", h.pollTimeout))

	for {
		select {
		case <-ctx.Done():
			h.bot.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if err := h.Dispatch(upd); err != nil {
				h.logger.Warn("update dropped", zap.Int("update_id", upd.UpdateID), zap.Error(err))
			}
		}
	}
}

// Dispatch enqueues one update on its chat's lane.
func (h *TelegramHandler) Dispatch(upd tgbotapi.Update) error {
	in, ok := ToInbound(upd)
	if !ok {
		return nil
	}
	return h.queue.Enqueue(jobs.Job{
		ID:      fmt.Sprintf("%d", upd.UpdateID),
		Key:     jobs.ChatKey(in.Update.ChatID),
		Type:    in.Update.Action.Kind.String(),
		Payload: in,
	})
}

// ToInbound decodes commands, text messages and button presses. Other updates are ignored.
func ToInbound(upd tgbotapi.Update) (Inbound, bool) {
	switch {
	case upd.CallbackQuery != nil:
		cq := upd.CallbackQuery
		if cq.Message == nil || cq.Message.Chat == nil || cq.From == nil {
			return Inbound{}, false
		}
		return Inbound{
			Update: conversation.Update{
				ChatID:    cq.Message.Chat.ID,
				UserID:    cq.From.ID,
				MessageID: cq.Message.MessageID,
				Action:    conversation.Decode(cq.Data),
			},
			CallbackID: cq.ID,
		}, true
	case upd.Message != nil:
		msg := upd.Message
		if msg.Chat == nil || msg.From == nil || msg.Text == "" {
			return Inbound{}, false
		}
		action := conversation.TextInput(msg.Text)
		if msg.IsCommand() {
			action = conversation.Command(msg.Command())
		}
		return Inbound{
			Update: conversation.Update{
				ChatID:    msg.Chat.ID,
				UserID:    msg.From.ID,
				MessageID: msg.MessageID,
				Action:    action,
			},
		}, true
	}
	return Inbound{}, false
}

// Keyboard renders button rows as an inline keyboard. It returns nil for no buttons.
func Keyboard(rows [][]conversation.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, r := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
		for _, b := range r {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Token))
		}
		out = append(out, buttons)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(out...)
	return &kb
}

func (h *TelegramHandler) process(ctx context.Context, job jobs.Job) error {
	in, ok := job.Payload.(Inbound)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	if in.CallbackID != "" {
		if _, err := h.bot.Request(tgbotapi.NewCallback(in.CallbackID, "")); err != nil {
			h.logger.Debug("callback answer failed", zap.Error(err))
		}
	}

	chatID := in.Update.ChatID
	editID := 0
	if in.Update.Action.IsCallback() {
		editID = in.Update.MessageID
	}

	var sent []int
	upd := in.Update
	upd.Progress = func(r conversation.Reply) {
		if id := h.deliver(chatID, editID, r); id != 0 {
			sent = append(sent, id)
		}
	}

	replies, err := h.machine.Handle(ctx, upd)
	for _, r := range replies {
		if id := h.deliver(chatID, editID, r); id != 0 {
			sent = append(sent, id)
		}
	}
	if len(sent) > 0 {
		if trackErr := h.machine.Track(ctx, chatID, sent...); trackErr != nil {
			h.logger.Warn("failed to track messages", zap.Int64("chat_id", chatID), zap.Error(trackErr))
		}
	}
	return err
}

// deliver shows one reply and returns the id of a newly sent message, or 0.
func (h *TelegramHandler) deliver(chatID int64, editID int, r conversation.Reply) int {
	for _, id := range r.Delete {
		if _, err := h.bot.Request(tgbotapi.NewDeleteMessage(chatID, id)); err != nil {
			h.logger.Debug("message not deleted", zap.Int64("chat_id", chatID), zap.Int("message_id", id), zap.Error(err))
		}
	}
	kb := Keyboard(r.Buttons)

	if r.Document != nil {
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: r.Document.Filename, Bytes: r.Document.Data})
		doc.Caption = r.Document.Caption
		msg, err := h.bot.Send(doc)
		if err != nil {
			h.logger.Error("failed to send document", zap.Int64("chat_id", chatID), zap.Error(err))
			return 0
		}
		return msg.MessageID
	}

	if r.Edit && editID != 0 {
		edit := tgbotapi.NewEditMessageText(chatID, editID, r.Text)
		edit.ReplyMarkup = kb
		_, err := h.bot.Send(edit)
		if err == nil || strings.Contains(err.Error(), "message is not modified") {
			return 0
		}
		h.logger.Debug("edit failed, sending new message", zap.Int64("chat_id", chatID), zap.Error(err))
	}

	msg := tgbotapi.NewMessage(chatID, r.Text)
	if kb != nil {
		msg.ReplyMarkup = *kb
	}
	sent, err := h.bot.Send(msg)
	if err != nil {
		h.logger.Error("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
		return 0
	}
	return sent.MessageID
}
