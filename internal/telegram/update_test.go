package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/smallbiznis/teleload/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUser() *tgbotapi.User {
	return &tgbotapi.User{ID: 1001, UserName: "alice", FirstName: "Alice"}
}

func TestCommandUpdate(t *testing.T) {
	update := tgbotapi.Update{
		UpdateID: 7,
		Message: &tgbotapi.Message{
			MessageID: 3,
			From:      testUser(),
			Chat:      &tgbotapi.Chat{ID: 1001},
			Text:      "/start ref_42",
			Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}},
		},
	}

	ev, ok := EventFromUpdate(update)
	require.True(t, ok)
	cmd, ok := ev.(pipeline.CommandEvent)
	require.True(t, ok)
	assert.Equal(t, "start", cmd.Command)
	assert.Equal(t, "ref_42", cmd.Args)
	assert.Equal(t, 7, cmd.UpdateID)
	assert.Equal(t, "alice", cmd.From.Username)
}

func TestTextUpdateFallsBackToCaption(t *testing.T) {
	update := tgbotapi.Update{
		Message: &tgbotapi.Message{
			From:    testUser(),
			Chat:    &tgbotapi.Chat{ID: 1001},
			Caption: "https://vm.tiktok.com/abc/",
		},
	}

	ev, ok := EventFromUpdate(update)
	require.True(t, ok)
	text := ev.(pipeline.TextEvent)
	assert.Equal(t, "https://vm.tiktok.com/abc/", text.Text)
	assert.EqualValues(t, 1001, text.ChatID)
}

func TestCallbackUpdate(t *testing.T) {
	update := tgbotapi.Update{
		UpdateID: 9,
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "cb-1",
			From: testUser(),
			Data: "dl_audio_abc",
			Message: &tgbotapi.Message{
				MessageID: 55,
				Chat:      &tgbotapi.Chat{ID: -500},
			},
		},
	}

	ev, ok := EventFromUpdate(update)
	require.True(t, ok)
	action := ev.(pipeline.ActionEvent)
	assert.Equal(t, "cb-1", action.CallbackID)
	assert.Equal(t, "dl_audio_abc", action.Data)
	assert.EqualValues(t, -500, action.ChatID)
	assert.Equal(t, pipeline.MessageRef{ChatID: -500, MessageID: 55}, action.Message)
	assert.EqualValues(t, 1001, action.From.ID)
}

func TestIgnoredUpdates(t *testing.T) {
	cases := map[string]tgbotapi.Update{
		"empty":     {},
		"no sender": {Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Text: "hi"}},
		"no text":   {Message: &tgbotapi.Message{From: testUser(), Chat: &tgbotapi.Chat{ID: 1}}},
		"anonymous": {CallbackQuery: &tgbotapi.CallbackQuery{ID: "x"}},
	}
	for name, update := range cases {
		_, ok := EventFromUpdate(update)
		assert.False(t, ok, name)
	}
}
