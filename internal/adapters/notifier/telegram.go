package notifier

import (
	"context"
	"errors"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"nova-xfinity/internal/adapters/telegram"
	"nova-xfinity/internal/domain"
	"nova-xfinity/internal/infra/metrics"
)

// Sender is the part of *tgbotapi.BotAPI used to post messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts alerts to a single chat.
type Telegram struct {
	bot    Sender
	chatID int64
}

var _ domain.Notifier = (*Telegram)(nil)

// NewTelegram creates a notifier for chatID.
func NewTelegram(bot Sender, chatID int64) (*Telegram, error) {
	if bot == nil {
		return nil, errors.New("telegram bot is required")
	}
	if chatID == 0 {
		return nil, errors.New("telegram alert chat id is required")
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

// Notify sends text, split into Telegram-sized parts.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	for _, part := range telegram.SplitMessage(text) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(t.chatID, part)
		msg.DisableWebPagePreview = true
		start := time.Now()
		_, err := t.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(t.chatID, 10), start, err)
		if err != nil {
			return err
		}
	}
	return nil
}

// Log writes alerts to the logger; used when no Telegram token is configured.
type Log struct {
	log zerolog.Logger
}

var _ domain.Notifier = (*Log)(nil)

func NewLog(logger zerolog.Logger) *Log {
	return &Log{log: logger}
}

func (l *Log) Notify(_ context.Context, text string) error {
	l.log.Warn().Str("alert", text).Msg("notifier: quota alert")
	return nil
}
