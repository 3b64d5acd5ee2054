package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Spok95/storedesk/internal/domain/users"
)

var ErrUnknownCheckout = errors.New("payments: unknown checkout")

// Sandbox — провайдер для разработки: ссылка на оплату ведёт на наш же HTTP-сервер,
// открытие страницы помечает email как оплативший.
type Sandbox struct {
	baseURL string

	mu        sync.Mutex
	checkouts map[string]string // checkout id -> email
	paid      map[string]bool
}

func NewSandbox(baseURL string) *Sandbox {
	return &Sandbox{
		baseURL:   strings.TrimRight(baseURL, "/"),
		checkouts: make(map[string]string),
		paid:      make(map[string]bool),
	}
}

// PaymentURL строит ссылку на эмулированную оплату.
func (s *Sandbox) PaymentURL(checkoutID string) string {
	return fmt.Sprintf("%s/payments/pay?checkout=%s", s.baseURL, checkoutID)
}

func (s *Sandbox) CreateCheckout(_ context.Context, u users.User) (string, error) {
	if u.Email == "" {
		return "", ErrNoEmail
	}
	id := uuid.NewString()
	s.mu.Lock()
	s.checkouts[id] = strings.ToLower(u.Email)
	s.mu.Unlock()
	return s.PaymentURL(id), nil
}

func (s *Sandbox) CheckPaymentStatus(_ context.Context, email string) (Status, error) {
	if email == "" {
		return StatusPending, ErrNoEmail
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paid[strings.ToLower(email)] {
		return StatusActive, nil
	}
	return StatusPending, nil
}

// MarkPaid отмечает оплату по checkout id и возвращает email плательщика.
func (s *Sandbox) MarkPaid(checkoutID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.checkouts[checkoutID]
	if !ok {
		return "", ErrUnknownCheckout
	}
	s.paid[email] = true
	return email, nil
}
