package bot

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/Spok95/storedesk/internal/dialog"
	"github.com/Spok95/storedesk/internal/domain/users"
	"github.com/Spok95/storedesk/internal/subscription"
)

const subscriptionIntro = "Подписка открывает продажи, учёт товаров и финансов.\n" +
	"Нажмите «Оплатить» — после оплаты подписка включится автоматически."

func (b *Bot) openSubscription(ctx context.Context, chatID, tgID int64) {
	b.closeSubscription(chatID)
	u, err := b.users.GetByTelegramID(ctx, tgID)
	if err != nil || u == nil {
		b.sendText(chatID, "Сначала наберите /start")
		return
	}
	now := b.now()
	if u.EffectiveStatus(now) == users.SubActive {
		text := "Подписка активна."
		if u.NextBillingAt != nil {
			text += " Следующее списание " + u.NextBillingAt.Format("02.01.2006") + "."
		}
		b.sendText(chatID, text)
		return
	}
	if u.Email == "" {
		mid := b.show(chatID, 0, "Укажите email — на него оформим оплату:", navKeyboard(false, true))
		b.saveLastStep(ctx, chatID, dialog.StateAwaitEmail, dialog.Payload{}, mid)
		return
	}
	b.startSubscriptionScreen(ctx, chatID, *u)
}

func (b *Bot) startSubscriptionScreen(ctx context.Context, chatID int64, u users.User) {
	var p *subscription.Poller
	p = subscription.New(u, b.payments, b.users,
		subscription.WithConfig(b.pollerCfg),
		subscription.WithLogger(b.log.With("chat_id", chatID)),
		subscription.WithMetrics(b.metrics),
		subscription.OnStage(func(s subscription.Stage, msg string) { b.onPollerStage(chatID, s, msg) }),
		subscription.OnDone(func(u *users.User) { b.onSubscriptionDone(chatID, p, u) }),
	)
	b.mu.Lock()
	prev := b.pollers[chatID]
	b.pollers[chatID] = p
	b.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	text := subscriptionIntro
	if u.EffectiveStatus(b.now()) == users.SubTrial && u.TrialEndsAt != nil {
		text = "Пробный период до " + u.TrialEndsAt.Format("02.01.2006") + ".\n" + text
	}
	mid := b.show(chatID, 0, text, subscriptionKeyboard())
	b.saveLastStep(ctx, chatID, dialog.StateSubscription, dialog.Payload{}, mid)
}

func (b *Bot) onEmailEntered(ctx context.Context, chatID, tgID int64, text string) {
	addr, err := mail.ParseAddress(text)
	if err != nil || !strings.Contains(addr.Address, ".") {
		b.sendText(chatID, "Это не похоже на email. Попробуйте ещё раз.")
		return
	}
	u, err := b.users.GetByTelegramID(ctx, tgID)
	if err != nil || u == nil {
		b.sendText(chatID, "Сначала наберите /start")
		return
	}
	u, err = b.users.SetEmail(ctx, u.ID, strings.ToLower(addr.Address))
	if err != nil {
		b.log.Error("set email failed", "tg_id", tgID, "err", err)
		b.sendText(chatID, "Ошибка: не удалось сохранить email")
		return
	}
	b.clearPrevStep(ctx, chatID)
	b.startSubscriptionScreen(ctx, chatID, *u)
}

func (b *Bot) onSubscriptionCallback(ctx context.Context, chatID, tgID int64, mid int, action string) {
	p := b.poller(chatID)
	if p == nil {
		b.editTextAndClear(chatID, mid, "Экран подписки закрыт.")
		b.openSubscription(ctx, chatID, tgID)
		return
	}
	switch action {
	case "pay":
		link, err := p.GeneratePayment(ctx)
		if err != nil {
			// об ошибке провайдера поллер уже сообщил через OnStage
			if errors.Is(err, subscription.ErrWrongStage) {
				b.sendText(chatID, "Ссылка на оплату уже создана.")
			}
			return
		}
		b.show(chatID, mid, "Оплатите по ссылке. Мы проверяем оплату автоматически, экран можно не закрывать.",
			waitingPaymentKeyboard(link))
	case "verify":
		if _, err := p.VerifyManually(ctx); errors.Is(err, subscription.ErrWrongStage) {
			b.sendText(chatID, "Проверка уже идёт, подождите.")
		}
	case "cancel":
		if err := p.Cancel(); err == nil {
			b.show(chatID, mid, subscriptionIntro, subscriptionKeyboard())
		}
	}
}

func (b *Bot) onPollerStage(chatID int64, s subscription.Stage, msg string) {
	switch {
	case msg == "":
		return
	case s == subscription.StageIntro:
		b.show(chatID, 0, msg, subscriptionKeyboard())
	default:
		b.sendText(chatID, msg)
	}
}

func (b *Bot) onSubscriptionDone(chatID int64, p *subscription.Poller, u *users.User) {
	b.mu.Lock()
	if b.pollers[chatID] == p {
		delete(b.pollers, chatID)
	}
	b.mu.Unlock()
	p.Close()

	text := "Подписка активна, все разделы доступны."
	if u != nil && u.NextBillingAt != nil {
		text += " Следующее списание " + u.NextBillingAt.Format("02.01.2006") + "."
	}
	b.resetState(context.Background(), chatID)
	b.showMenu(chatID, text)
}

func (b *Bot) poller(chatID int64) *subscription.Poller {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pollers[chatID]
}

// closeSubscription — пользователь ушёл с экрана подписки.
func (b *Bot) closeSubscription(chatID int64) {
	b.mu.Lock()
	p := b.pollers[chatID]
	delete(b.pollers, chatID)
	b.mu.Unlock()
	if p != nil {
		p.Close()
	}
}
