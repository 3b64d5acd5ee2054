package bot

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/storedesk/internal/dialog"
	"github.com/Spok95/storedesk/internal/domain/users"
	"github.com/Spok95/storedesk/internal/infra/metrics"
	"github.com/Spok95/storedesk/internal/infra/notify"
	"github.com/Spok95/storedesk/internal/infra/payments"
	"github.com/Spok95/storedesk/internal/optimistic"
	"github.com/Spok95/storedesk/internal/subscription"
	"github.com/Spok95/storedesk/internal/workspace"
)

// API — часть tgbotapi.BotAPI, которой пользуется бот.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type UserStore interface {
	GetByTelegramID(ctx context.Context, tgID int64) (*users.User, error)
	UpsertFromTelegram(ctx context.Context, tg users.Telegram, storeID string) (*users.User, error)
	SetEmail(ctx context.Context, userID int64, email string) (*users.User, error)
	SetStore(ctx context.Context, userID int64, storeID string) (*users.User, error)
	subscription.Activator
}

type StateStore interface {
	Get(ctx context.Context, chatID int64) (*dialog.Item, error)
	Set(ctx context.Context, chatID int64, state dialog.State, payload dialog.Payload) error
	Reset(ctx context.Context, chatID int64) error
}

type Deps struct {
	API        API
	Log        *slog.Logger
	Users      UserStore
	States     StateStore
	Workspaces *workspace.Manager
	Payments   payments.Provider
	Poller     subscription.Config
	Metrics    *metrics.Metrics
	Now        func() time.Time
}

type Bot struct {
	api       API
	log       *slog.Logger
	users     UserStore
	states    StateStore
	spaces    *workspace.Manager
	payments  payments.Provider
	pollerCfg subscription.Config
	metrics   *metrics.Metrics
	now       func() time.Time

	mu      sync.Mutex
	pollers map[int64]*subscription.Poller     // открытые экраны подписки
	gates   map[int64]*optimistic.DeletionGate // диалоги подтверждения удаления
}

func New(d Deps) *Bot {
	if d.Log == nil {
		d.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Poller == (subscription.Config{}) {
		d.Poller = subscription.DefaultConfig()
	}
	return &Bot{
		api:       d.API,
		log:       d.Log,
		users:     d.Users,
		states:    d.States,
		spaces:    d.Workspaces,
		payments:  d.Payments,
		pollerCfg: d.Poller,
		metrics:   d.Metrics,
		now:       d.Now,
		pollers:   make(map[int64]*subscription.Poller),
		gates:     make(map[int64]*optimistic.DeletionGate),
	}
}

func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	defer b.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, upd)
		}
	}
}

func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		b.onMessage(ctx, upd)
	} else if upd.CallbackQuery != nil {
		b.onCallback(ctx, upd)
	}
}

// Close останавливает все поллеры подписки.
func (b *Bot) Close() {
	b.mu.Lock()
	ps := b.pollers
	b.pollers = make(map[int64]*subscription.Poller)
	b.mu.Unlock()
	for _, p := range ps {
		p.Close()
	}
}

func (b *Bot) onMessage(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg.Chat == nil || msg.From == nil {
		return
	}
	// уведомления об откате мутаций уйдут в этот чат
	ctx = notify.WithChat(ctx, msg.Chat.ID)
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	b.handleStateMessage(ctx, msg)
}

func (b *Bot) onCallback(ctx context.Context, upd tgbotapi.Update) {
	cb := upd.CallbackQuery
	if cb.Message == nil || cb.Message.Chat == nil || cb.From == nil {
		return
	}
	ctx = notify.WithChat(ctx, cb.Message.Chat.ID)
	b.handleCallback(ctx, cb)
}

func (b *Bot) gate(chatID int64) *optimistic.DeletionGate {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.gates[chatID]
	if !ok {
		g = &optimistic.DeletionGate{}
		b.gates[chatID] = g
	}
	return g
}
