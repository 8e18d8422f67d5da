package handler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-bot/internal/conversation"
	"github.com/noah-isme/attendance-bot/pkg/config"
	"github.com/noah-isme/attendance-bot/pkg/jobs"
)

type fakeBot struct {
	mu       sync.Mutex
	next     int
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	updates  chan tgbotapi.Update
	editErr  error
	stopped  bool
}

func newFakeBot() *fakeBot {
	return &fakeBot{next: 100, updates: make(chan tgbotapi.Update, 4)}
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, c)
	if _, ok := c.(tgbotapi.EditMessageTextConfig); ok {
		if b.editErr != nil {
			return tgbotapi.Message{}, b.editErr
		}
		return tgbotapi.Message{}, nil
	}
	b.next++
	return tgbotapi.Message{MessageID: b.next}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return b.updates
}

func (b *fakeBot) StopReceivingUpdates() {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()
}

type fakeMachine struct {
	mu      sync.Mutex
	got     []conversation.Update
	replies []conversation.Reply
	err     error
	tracked []int
	done    chan struct{}
}

func (m *fakeMachine) Handle(_ context.Context, u conversation.Update) ([]conversation.Reply, error) {
	m.mu.Lock()
	m.got = append(m.got, u)
	m.mu.Unlock()
	return m.replies, m.err
}

func (m *fakeMachine) Track(_ context.Context, _ int64, ids ...int) error {
	m.mu.Lock()
	m.tracked = append(m.tracked, ids...)
	m.mu.Unlock()
	if m.done != nil {
		close(m.done)
	}
	return nil
}

func commandUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: 1,
		Message: &tgbotapi.Message{
			MessageID: 7,
			Text:      text,
			Chat:      &tgbotapi.Chat{ID: chatID},
			From:      &tgbotapi.User{ID: 42},
			Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
		},
	}
}

func callbackUpdate(chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: 2,
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb-1",
			From:    &tgbotapi.User{ID: 42},
			Data:    data,
			Message: &tgbotapi.Message{MessageID: 55, Chat: &tgbotapi.Chat{ID: chatID}},
		},
	}
}

func TestToInbound(t *testing.T) {
	in, ok := ToInbound(commandUpdate(9, "/start"))
	require.True(t, ok)
	assert.Equal(t, conversation.KindStart, in.Update.Action.Kind)
	assert.Equal(t, int64(9), in.Update.ChatID)
	assert.Equal(t, int64(42), in.Update.UserID)
	assert.Equal(t, 7, in.Update.MessageID)

	text := tgbotapi.Update{Message: &tgbotapi.Message{MessageID: 8, Text: " Sam ", Chat: &tgbotapi.Chat{ID: 9}, From: &tgbotapi.User{ID: 42}}}
	in, ok = ToInbound(text)
	require.True(t, ok)
	assert.Equal(t, conversation.KindText, in.Update.Action.Kind)
	assert.Equal(t, " Sam ", in.Update.Action.Text)

	in, ok = ToInbound(callbackUpdate(9, "toggle_3"))
	require.True(t, ok)
	assert.Equal(t, conversation.KindToggle, in.Update.Action.Kind)
	assert.Equal(t, int64(3), in.Update.Action.ID)
	assert.Equal(t, "cb-1", in.CallbackID)
	assert.Equal(t, 55, in.Update.MessageID)

	photo := tgbotapi.Update{Message: &tgbotapi.Message{MessageID: 8, Chat: &tgbotapi.Chat{ID: 9}, From: &tgbotapi.User{ID: 42}}}
	_, ok = ToInbound(photo)
	assert.False(t, ok)
	_, ok = ToInbound(tgbotapi.Update{})
	assert.False(t, ok)
}

func TestKeyboard(t *testing.T) {
	assert.Nil(t, Keyboard(nil))

	kb := Keyboard([][]conversation.Button{
		{{Label: "✅ Sam", Token: "toggle_1"}},
		{{Label: "Yes", Token: "yes"}, {Label: "No", Token: "no"}},
	})
	require.NotNil(t, kb)
	require.Len(t, kb.InlineKeyboard, 2)
	assert.Len(t, kb.InlineKeyboard[1], 2)
	assert.Equal(t, "✅ Sam", kb.InlineKeyboard[0][0].Text)
	require.NotNil(t, kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "toggle_1", *kb.InlineKeyboard[0][0].CallbackData)
}

func TestProcessCallbackEditsAndTracksNewMessages(t *testing.T) {
	bot := newFakeBot()
	machine := &fakeMachine{replies: []conversation.Reply{
		{Text: "⏳ Generating", Edit: true},
		{Document: &conversation.Document{Filename: "r.xlsx", Data: []byte("x"), Caption: "March"}},
		{Text: "Main menu", Buttons: [][]conversation.Button{{{Label: "Take", Token: "att"}}}},
	}}
	h := NewTelegramHandler(bot, machine, config.DispatchConfig{Workers: 1, BufferSize: 1}, 1, nil)

	in, ok := ToInbound(callbackUpdate(9, "rptmonth_2024_3"))
	require.True(t, ok)
	require.NoError(t, h.process(context.Background(), jobs.Job{Payload: in}))

	require.Len(t, bot.requests, 1)
	_, isCallback := bot.requests[0].(tgbotapi.CallbackConfig)
	assert.True(t, isCallback)

	require.Len(t, bot.sent, 3)
	edit, ok := bot.sent[0].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, 55, edit.MessageID)
	doc, ok := bot.sent[1].(tgbotapi.DocumentConfig)
	require.True(t, ok)
	assert.Equal(t, "March", doc.Caption)
	msg, ok := bot.sent[2].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.IsType(t, tgbotapi.InlineKeyboardMarkup{}, msg.ReplyMarkup)

	assert.Equal(t, []int{101, 102}, machine.tracked)
}

func TestProcessDeletesAndFallsBackWhenEditFails(t *testing.T) {
	bot := newFakeBot()
	bot.editErr = errors.New("Bad Request: message to edit not found")
	machine := &fakeMachine{
		replies: []conversation.Reply{{Text: "Something went wrong", Edit: true, Delete: []int{3, 4}}},
		err:     errors.New("boom"),
	}
	h := NewTelegramHandler(bot, machine, config.DispatchConfig{}, 1, nil)

	in, _ := ToInbound(callbackUpdate(9, "att"))
	err := h.process(context.Background(), jobs.Job{Payload: in})
	assert.EqualError(t, err, "boom")

	require.Len(t, bot.requests, 3)
	del, ok := bot.requests[1].(tgbotapi.DeleteMessageConfig)
	require.True(t, ok)
	assert.Equal(t, 3, del.MessageID)

	require.Len(t, bot.sent, 2)
	_, ok = bot.sent[1].(tgbotapi.MessageConfig)
	assert.True(t, ok)
	assert.Equal(t, []int{101}, machine.tracked)
}

func TestRunDispatchesUntilCancelled(t *testing.T) {
	bot := newFakeBot()
	machine := &fakeMachine{replies: []conversation.Reply{{Text: "hi"}}, done: make(chan struct{})}
	h := NewTelegramHandler(bot, machine, config.DispatchConfig{Workers: 2, BufferSize: 4}, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- h.Run(ctx) }()

	bot.updates <- commandUpdate(9, "/start")
	select {
	case <-machine.done:
	case <-time.After(2 * time.Second):
		t.Fatal("update was not processed")
	}

	cancel()
	require.NoError(t, <-result)
	bot.mu.Lock()
	assert.True(t, bot.stopped)
	bot.mu.Unlock()
	require.Len(t, machine.got, 1)
	assert.Equal(t, conversation.KindStart, machine.got[0].Action.Kind)
}
