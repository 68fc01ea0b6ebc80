package notifier

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if s.err != nil {
		return tgbotapi.Message{}, s.err
	}
	s.sent = append(s.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestNewTelegramValidates(t *testing.T) {
	_, err := NewTelegram(nil, 1)
	assert.Error(t, err)
	_, err = NewTelegram(&fakeSender{}, 0)
	assert.Error(t, err)
}

func TestTelegramNotifySplits(t *testing.T) {
	s := &fakeSender{}
	n, err := NewTelegram(s, -100)
	require.NoError(t, err)

	long := strings.Repeat("a", 4000) + "\n" + strings.Repeat("b", 200)
	require.NoError(t, n.Notify(context.Background(), long))

	require.Len(t, s.sent, 2)
	assert.Equal(t, int64(-100), s.sent[0].ChatID)
	assert.Equal(t, strings.Repeat("b", 200), s.sent[1].Text)
}

func TestTelegramNotifyError(t *testing.T) {
	n, err := NewTelegram(&fakeSender{err: errors.New("forbidden")}, 42)
	require.NoError(t, err)
	assert.EqualError(t, n.Notify(context.Background(), "hello"), "forbidden")
}

func TestLogNotifier(t *testing.T) {
	var buf strings.Builder
	n := NewLog(zerolog.New(&buf))
	require.NoError(t, n.Notify(context.Background(), "Quota exceeded"))
	assert.Contains(t, buf.String(), `"alert":"Quota exceeded"`)
}
