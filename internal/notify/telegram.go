package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender delivers listing notifications to a Telegram chat.
type TelegramSender struct {
	api    telegramAPI
	chatID int64
}

// NewTelegramSender creates a TelegramSender with the given bot token and
// destination chat.
func NewTelegramSender(token string, chatID int64) (*TelegramSender, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &TelegramSender{api: api, chatID: chatID}, nil
}

// Name identifies the channel in logs.
func (t *TelegramSender) Name() string { return "telegram" }

// Send posts the notification as a Telegram message.
func (t *TelegramSender) Send(_ context.Context, n Notification) error {
	text := fmt.Sprintf("%s\n\n%s", n.Title, n.Body)
	if n.URL != "" {
		text += "\n\n" + n.URL
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	msg.DisableNotification = n.Silent
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}
