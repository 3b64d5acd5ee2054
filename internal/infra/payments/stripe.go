package payments

import (
	"context"
	"strconv"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/subscription"

	"github.com/Spok95/storedesk/internal/apperr"
	"github.com/Spok95/storedesk/internal/domain/users"
)

type StripeConfig struct {
	APIKey     string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// Stripe — провайдер на Checkout Sessions. Статус ищется по подпискам клиента с тем же email.
type Stripe struct {
	cfg StripeConfig

	createCheckoutSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	subscriptionStatuses  func(ctx context.Context, email string) ([]stripe.SubscriptionStatus, error)
}

func NewStripe(cfg StripeConfig) *Stripe {
	stripe.Key = strings.TrimSpace(cfg.APIKey)
	return &Stripe{
		cfg:                   cfg,
		createCheckoutSession: stripesession.New,
		subscriptionStatuses:  listSubscriptionStatuses,
	}
}

func (s *Stripe) CreateCheckout(ctx context.Context, u users.User) (string, error) {
	if u.Email == "" {
		return "", ErrNoEmail
	}
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:    stripe.String(s.cfg.SuccessURL),
		CancelURL:     stripe.String(s.cfg.CancelURL),
		CustomerEmail: stripe.String(u.Email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(strings.TrimSpace(s.cfg.PriceID)),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"user_id":  strconv.FormatInt(u.ID, 10),
			"store_id": u.StoreID,
		},
	}
	params.Context = ctx
	session, err := s.createCheckoutSession(params)
	if err != nil {
		return "", apperr.Network("stripe checkout", "", 0, err)
	}
	if session == nil || strings.TrimSpace(session.URL) == "" {
		return "", ErrNoCheckout
	}
	return session.URL, nil
}

func (s *Stripe) CheckPaymentStatus(ctx context.Context, email string) (Status, error) {
	if email == "" {
		return StatusPending, ErrNoEmail
	}
	if err := ctx.Err(); err != nil {
		return StatusPending, err
	}
	statuses, err := s.subscriptionStatuses(ctx, email)
	if err != nil {
		return StatusPending, apperr.Network("stripe status", "", 0, err)
	}
	for _, st := range statuses {
		if st == stripe.SubscriptionStatusActive || st == stripe.SubscriptionStatusTrialing {
			return StatusActive, nil
		}
	}
	return StatusPending, nil
}

// listSubscriptionStatuses ходит в Stripe с ctx вызывающего: отмена поллера обрывает запрос.
func listSubscriptionStatuses(ctx context.Context, email string) ([]stripe.SubscriptionStatus, error) {
	var out []stripe.SubscriptionStatus
	cp := &stripe.CustomerListParams{Email: stripe.String(email)}
	cp.Context = ctx
	customers := customer.List(cp)
	for customers.Next() {
		c := customers.Customer()
		sp := &stripe.SubscriptionListParams{Customer: stripe.String(c.ID)}
		sp.Context = ctx
		subs := subscription.List(sp)
		for subs.Next() {
			out = append(out, subs.Subscription().Status)
		}
		if err := subs.Err(); err != nil {
			return nil, err
		}
	}
	if err := customers.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
