// Package notify доставляет пользователю короткие сообщения (аналог toast/alert).
package notify

import (
	"context"
	"errors"
	"log/slog"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

type Notification struct {
	StoreID string `json:"store_id,omitempty"`
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type chatKey struct{}

// WithChat привязывает к ctx чат, из которого пришло действие пользователя.
func WithChat(ctx context.Context, chatID int64) context.Context {
	return context.WithValue(ctx, chatKey{}, chatID)
}

func ChatFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(chatKey{}).(int64)
	return id, ok && id != 0
}

// Log пишет уведомления в лог, когда других каналов нет.
type Log struct{ log *slog.Logger }

func NewLog(log *slog.Logger) *Log { return &Log{log: log} }

func (l *Log) Notify(_ context.Context, n Notification) error {
	l.log.Info("notification", "store_id", n.StoreID, "level", n.Level, "message", n.Message)
	return nil
}

// Multi рассылает уведомление во все каналы и собирает ошибки.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, nt := range m {
		if nt == nil {
			continue
		}
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Func — адаптер для функций.
type Func func(ctx context.Context, n Notification) error

func (f Func) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }
