package notify

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender — часть tgbotapi.BotAPI, которая нужна для отправки.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram отправляет сообщение в чат из ctx, иначе в админский чат.
type Telegram struct {
	api       Sender
	adminChat int64
}

func NewTelegram(api Sender, adminChatID int64) *Telegram {
	return &Telegram{api: api, adminChat: adminChatID}
}

func (t *Telegram) Notify(ctx context.Context, n Notification) error {
	chatID, ok := ChatFrom(ctx)
	if !ok {
		chatID = t.adminChat
	}
	if chatID == 0 {
		return errors.New("notify: no telegram chat to deliver to")
	}
	text := n.Message
	if n.Level == LevelError {
		text = "⚠️ " + text
	}
	_, err := t.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
