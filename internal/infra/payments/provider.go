// Package payments — клиенты платёжного провайдера подписки.
package payments

import (
	"context"
	"errors"

	"github.com/Spok95/storedesk/internal/domain/users"
)

// Status — состояние оплаты подписки у провайдера.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusPending Status = "PENDING"
)

var (
	ErrNoEmail    = errors.New("payments: user has no email")
	ErrNoCheckout = errors.New("payments: provider returned no checkout url")
)

// Provider создаёт страницу оплаты и отвечает, оплачена ли подписка.
// Ключ корреляции — email пользователя.
type Provider interface {
	CreateCheckout(ctx context.Context, u users.User) (string, error)
	CheckPaymentStatus(ctx context.Context, email string) (Status, error)
}

// ParseStatus приводит ответ провайдера к ACTIVE|PENDING. Всё, что не ACTIVE, — PENDING.
func ParseStatus(s string) Status {
	switch s {
	case "ACTIVE", "active", "paid", "trialing":
		return StatusActive
	default:
		return StatusPending
	}
}
