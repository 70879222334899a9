// Package telegram adapts the Telegram Bot API to the pipeline: Client sends,
// Runner receives.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/smallbiznis/teleload/internal/config"
	"github.com/smallbiznis/teleload/internal/pipeline"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrTokenRequired = errors.New("telegram_token_required")

// botAPI is the subset of *tgbotapi.BotAPI the client calls.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	SendMediaGroup(c tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
	GetChatMember(c tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

type APIParams struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

func NewBotAPI(p APIParams) (*tgbotapi.BotAPI, error) {
	token := strings.TrimSpace(p.Config.Telegram.Token)
	if token == "" {
		return nil, ErrTokenRequired
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram: %w", err)
	}
	p.Log.Named("telegram").Info("authorized bot", zap.String("username", api.Self.UserName))
	return api, nil
}

// Client implements pipeline.Transport. Messages are sent as plain text.
type Client struct {
	api      botAPI
	username string
	log      *zap.Logger
}

func NewClient(api *tgbotapi.BotAPI, log *zap.Logger) *Client {
	return newClient(api, api.Self.UserName, log)
}

func newClient(api botAPI, username string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{api: api, username: username, log: log.Named("telegram.client")}
}

func (c *Client) BotUsername() string {
	return c.username
}

func (c *Client) SendText(ctx context.Context, chatID int64, text string, opts ...pipeline.SendOption) (pipeline.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.MessageRef{}, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if markup, ok := keyboard(pipeline.ApplySendOptions(opts...).Buttons); ok {
		msg.ReplyMarkup = markup
	}
	sent, err := c.api.Send(msg)
	if err != nil {
		return pipeline.MessageRef{}, fmt.Errorf("send message: %w", err)
	}
	return pipeline.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

func (c *Client) EditText(ctx context.Context, ref pipeline.MessageRef, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, text)
	edit.DisableWebPagePreview = true
	if _, err := c.api.Send(edit); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

func (c *Client) DeleteMessage(ctx context.Context, ref pipeline.MessageRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewDeleteMessage(ref.ChatID, ref.MessageID)); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (c *Client) SendVideo(ctx context.Context, chatID int64, url, caption string, action *pipeline.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	video := tgbotapi.NewVideo(chatID, tgbotapi.FileURL(url))
	video.Caption = caption
	video.SupportsStreaming = true
	if action != nil {
		video.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(action.Text, action.Data)),
		)
	}
	if _, err := c.api.Send(video); err != nil {
		return fmt.Errorf("send video: %w", err)
	}
	return nil
}

func (c *Client) SendPhotoGroup(ctx context.Context, chatID int64, photos []pipeline.Photo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(photos) == 0 {
		return nil
	}
	media := make([]any, 0, len(photos))
	for _, p := range photos {
		item := tgbotapi.NewInputMediaPhoto(tgbotapi.FileURL(p.URL))
		item.Caption = p.Caption
		media = append(media, item)
	}
	if _, err := c.api.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, media)); err != nil {
		return fmt.Errorf("send media group: %w", err)
	}
	return nil
}

func (c *Client) SendAudio(ctx context.Context, chatID int64, path, fileName, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	defer file.Close()

	audio := tgbotapi.NewAudio(chatID, tgbotapi.FileReader{Name: fileName, Reader: file})
	audio.Caption = caption
	audio.Title = strings.TrimSuffix(fileName, ".mp3")
	if _, err := c.api.Send(audio); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

func (c *Client) AnswerAction(ctx context.Context, callbackID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// IsChannelMember reports whether userID is a creator, administrator or member of channel.
// channel is either @username or a numeric chat id.
func (c *Client) IsChannelMember(ctx context.Context, channel string, userID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	member, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{ChatConfigWithUser: chatWithUser(channel, userID)})
	if err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && memberMissing(apiErr.Message) {
			return false, nil
		}
		return false, fmt.Errorf("get chat member: %w", err)
	}
	switch member.Status {
	case "creator", "administrator", "member":
		return true, nil
	default:
		c.log.Debug("user is not a channel member",
			zap.String("channel", channel),
			zap.String("status", member.Status),
		)
		return false, nil
	}
}

func chatWithUser(channel string, userID int64) tgbotapi.ChatConfigWithUser {
	channel = strings.TrimSpace(channel)
	if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
		return tgbotapi.ChatConfigWithUser{ChatID: id, UserID: userID}
	}
	if !strings.HasPrefix(channel, "@") {
		channel = "@" + channel
	}
	return tgbotapi.ChatConfigWithUser{SuperGroupUsername: channel, UserID: userID}
}

func memberMissing(message string) bool {
	message = strings.ToLower(message)
	return strings.Contains(message, "user not found") || strings.Contains(message, "member not found")
}

func keyboard(rows [][]pipeline.Button) (tgbotapi.InlineKeyboardMarkup, bool) {
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
				continue
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		if len(buttons) > 0 {
			out = append(out, buttons)
		}
	}
	if len(out) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(out...), true
}

var _ pipeline.Transport = (*Client)(nil)
