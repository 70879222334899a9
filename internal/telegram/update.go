package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/smallbiznis/teleload/internal/pipeline"
)

// EventFromUpdate converts a raw update. Updates without a sender or without
// anything the pipeline handles report false.
func EventFromUpdate(u tgbotapi.Update) (pipeline.Event, bool) {
	switch {
	case u.CallbackQuery != nil:
		return actionEvent(u.UpdateID, u.CallbackQuery)
	case u.Message != nil:
		return messageEvent(u.UpdateID, u.Message)
	default:
		return nil, false
	}
}

func actionEvent(updateID int, cq *tgbotapi.CallbackQuery) (pipeline.Event, bool) {
	if cq.From == nil {
		return nil, false
	}
	ev := pipeline.ActionEvent{
		Envelope: pipeline.Envelope{
			UpdateID: updateID,
			ChatID:   cq.From.ID,
			From:     sender(cq.From),
		},
		CallbackID: cq.ID,
		Data:       cq.Data,
	}
	if cq.Message != nil && cq.Message.Chat != nil {
		ev.ChatID = cq.Message.Chat.ID
		ev.Message = pipeline.MessageRef{ChatID: cq.Message.Chat.ID, MessageID: cq.Message.MessageID}
	}
	return ev, true
}

func messageEvent(updateID int, m *tgbotapi.Message) (pipeline.Event, bool) {
	if m.From == nil || m.Chat == nil {
		return nil, false
	}
	env := pipeline.Envelope{
		UpdateID: updateID,
		ChatID:   m.Chat.ID,
		From:     sender(m.From),
	}
	if m.IsCommand() {
		return pipeline.CommandEvent{
			Envelope: env,
			Command:  m.Command(),
			Args:     strings.TrimSpace(m.CommandArguments()),
		}, true
	}

	text := m.Text
	if text == "" {
		text = m.Caption
	}
	if strings.TrimSpace(text) == "" {
		return nil, false
	}
	return pipeline.TextEvent{Envelope: env, Text: text}, true
}

func sender(u *tgbotapi.User) pipeline.Sender {
	return pipeline.Sender{ID: u.ID, Username: u.UserName, FirstName: u.FirstName}
}
