package pipeline

import "context"

// MessageRef addresses a message the bot already sent.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Button is an inline keyboard button. Exactly one of Data and URL is set.
type Button struct {
	Text string
	Data string
	URL  string
}

// Action is the single inline button attached to a delivered video.
type Action struct {
	Text string
	Data string
}

type Photo struct {
	URL     string
	Caption string
}

type SendOptions struct {
	Buttons [][]Button
}

type SendOption func(*SendOptions)

// WithButtons attaches an inline keyboard, one slice per row.
func WithButtons(rows ...[]Button) SendOption {
	return func(o *SendOptions) {
		o.Buttons = append(o.Buttons, rows...)
	}
}

func ApplySendOptions(opts ...SendOption) SendOptions {
	var out SendOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&out)
		}
	}
	return out
}

// Transport is everything the pipeline needs from the messaging platform.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string, opts ...SendOption) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string) error
	DeleteMessage(ctx context.Context, ref MessageRef) error
	SendVideo(ctx context.Context, chatID int64, url, caption string, action *Action) error
	// SendPhotoGroup sends one album. Callers keep groups within the platform limit.
	SendPhotoGroup(ctx context.Context, chatID int64, photos []Photo) error
	SendAudio(ctx context.Context, chatID int64, path, fileName, caption string) error
	AnswerAction(ctx context.Context, callbackID, text string) error
	IsChannelMember(ctx context.Context, channel string, userID int64) (bool, error)
	BotUsername() string
}
