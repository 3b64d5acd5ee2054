// Package subscription ждёт подтверждения оплаты подписки у внешнего провайдера
// и активирует подписку пользователя.
package subscription

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Spok95/storedesk/internal/apperr"
	"github.com/Spok95/storedesk/internal/domain/users"
	"github.com/Spok95/storedesk/internal/infra/metrics"
	"github.com/Spok95/storedesk/internal/infra/payments"
)

type Stage string

const (
	StageIntro           Stage = "INTRO"
	StageLoadingCheckout Stage = "LOADING_CHECKOUT"
	StageWaitingPayment  Stage = "WAITING_PAYMENT"
	StageChecking        Stage = "CHECKING"
	StageSuccess         Stage = "SUCCESS"
)

// Сообщения для пользователя.
const (
	MsgNotIdentified  = "Оплата пока не найдена. Если вы уже оплатили, проверьте ещё раз через минуту."
	MsgCheckoutFailed = "Не удалось создать ссылку на оплату. Попробуйте позже."
	MsgActivateFailed = "Оплата найдена, но активировать подписку не удалось. Попробуйте ещё раз."
	MsgActivated      = "Подписка активирована!"
)

var (
	ErrWrongStage = errors.New("subscription: action not allowed in current stage")
	ErrClosed     = errors.New("subscription: poller closed")
)

// Activator сохраняет активную подписку пользователя.
type Activator interface {
	ActivateSubscription(ctx context.Context, userID int64) (*users.User, error)
}

type Config struct {
	Interval     time.Duration
	SuccessDelay time.Duration // пауза на экране успеха перед OnDone
	MaxWait      time.Duration // 0 — ждать без ограничения
}

func DefaultConfig() Config {
	return Config{Interval: 3 * time.Second, SuccessDelay: 2500 * time.Millisecond, MaxWait: 30 * time.Minute}
}

type Option func(*Poller)

func WithConfig(c Config) Option { return func(p *Poller) { p.cfg = c } }

func WithLogger(l *slog.Logger) Option { return func(p *Poller) { p.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(p *Poller) { p.metrics = m } }

// OnStage вызывается при каждой смене стадии; msg — текст для пользователя или "".
func OnStage(fn func(Stage, string)) Option { return func(p *Poller) { p.onStage = fn } }

// OnDone вызывается один раз, через SuccessDelay после активации.
func OnDone(fn func(*users.User)) Option { return func(p *Poller) { p.onDone = fn } }

// Poller — ожидание оплаты для одного открытого экрана подписки.
//
// В WAITING_PAYMENT работает ровно один цикл проверок: новый цикл запускается только
// после того, как предыдущий остановлен и вышел. Колбэки вызываются из горутин поллера
// и не должны синхронно вызывать его методы.
type Poller struct {
	user      users.User
	provider  payments.Provider
	activator Activator
	cfg       Config
	log       *slog.Logger
	metrics   *metrics.Metrics
	onStage   func(Stage, string)
	onDone    func(*users.User)

	// loopMu сериализует запуск и остановку цикла; цикл его не берёт.
	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	stage     Stage
	gen       uint64
	closed    bool
	activated *users.User
	navTimer  *time.Timer
}

func New(u users.User, provider payments.Provider, activator Activator, opts ...Option) *Poller {
	p := &Poller{
		user:      u,
		provider:  provider,
		activator: activator,
		cfg:       DefaultConfig(),
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		stage:     StageIntro,
	}
	for _, fn := range opts {
		fn(p)
	}
	p.log = p.log.With("user_id", u.ID)
	return p
}

func (p *Poller) Stage() Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stage
}

// GeneratePayment создаёт страницу оплаты и сразу начинает ждать её подтверждения.
func (p *Poller) GeneratePayment(ctx context.Context) (string, error) {
	p.mu.Lock()
	switch {
	case p.closed:
		p.mu.Unlock()
		return "", ErrClosed
	case p.stage != StageIntro:
		p.mu.Unlock()
		return "", ErrWrongStage
	}
	p.stage = StageLoadingCheckout
	gen := p.gen
	p.mu.Unlock()
	p.emit(StageLoadingCheckout, "")

	link, err := p.provider.CreateCheckout(ctx, p.user)
	if err != nil {
		p.log.Error("checkout creation failed", "err", err)
		if p.back(gen, StageLoadingCheckout, StageIntro) {
			p.emit(StageIntro, MsgCheckoutFailed)
		}
		return "", err
	}
	if err := p.StartWaiting(); err != nil {
		return "", err
	}
	return link, nil
}

// StartWaiting переводит поллер в WAITING_PAYMENT: останавливает прежний цикл,
// если он был, и запускает новый.
func (p *Poller) StartWaiting() error {
	p.loopMu.Lock()
	defer p.loopMu.Unlock()

	p.mu.Lock()
	switch {
	case p.closed:
		p.mu.Unlock()
		return ErrClosed
	case p.stage == StageChecking || p.stage == StageSuccess:
		p.mu.Unlock()
		return ErrWrongStage
	}
	// старый цикл больше не может сменить стадию
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	p.stopLoop()

	p.mu.Lock()
	if p.closed || gen != p.gen {
		p.mu.Unlock()
		return ErrClosed
	}
	p.stage = StageWaitingPayment
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel, p.done = cancel, done
	p.metrics.PollerStarted()
	p.log.Info("waiting for payment", "interval", p.cfg.Interval, "max_wait", p.cfg.MaxWait)
	p.emit(StageWaitingPayment, "")

	go p.loop(ctx, cancel, gen, done)
	return nil
}

// Cancel — пользователь вернулся на начальный экран. Цикл останавливается до возврата.
func (p *Poller) Cancel() error {
	p.loopMu.Lock()
	defer p.loopMu.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.stage != StageWaitingPayment {
		p.mu.Unlock()
		return ErrWrongStage
	}
	p.gen++
	p.stage = StageIntro
	p.mu.Unlock()

	p.stopLoop()
	p.log.Info("payment wait canceled")
	p.emit(StageIntro, "")
	return nil
}

// VerifyManually — одна проверка вне цикла, доступна только с начального экрана.
// Возвращает статус провайдера; ошибки провайдера считаются PENDING.
func (p *Poller) VerifyManually(ctx context.Context) (payments.Status, error) {
	p.mu.Lock()
	switch {
	case p.closed:
		p.mu.Unlock()
		return payments.StatusPending, ErrClosed
	case p.stage != StageIntro:
		p.mu.Unlock()
		return payments.StatusPending, ErrWrongStage
	}
	p.stage = StageChecking
	gen := p.gen
	p.mu.Unlock()
	p.emit(StageChecking, "")

	st := p.checkStatus(ctx, "manual")
	if st != payments.StatusActive {
		if p.back(gen, StageChecking, StageIntro) {
			p.emit(StageIntro, MsgNotIdentified)
		}
		return st, nil
	}
	if err := p.activate(ctx, gen, StageChecking); err != nil {
		if p.back(gen, StageChecking, StageIntro) {
			p.emit(StageIntro, MsgActivateFailed)
		}
		return st, err
	}
	return st, nil
}

// Close — экран закрыт: цикл и отложенный OnDone останавливаются, колбэки больше не вызываются.
func (p *Poller) Close() {
	p.loopMu.Lock()
	defer p.loopMu.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.gen++
	if p.navTimer != nil {
		p.navTimer.Stop()
		p.navTimer = nil
	}
	p.mu.Unlock()

	p.stopLoop()
}

// stopLoop отменяет текущий цикл и ждёт его выхода. Вызывается под loopMu.
func (p *Poller) stopLoop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel, p.done = nil, nil
}

func (p *Poller) loop(ctx context.Context, cancel context.CancelFunc, gen uint64, done chan struct{}) {
	defer close(done)
	defer cancel()
	defer p.metrics.PollerStopped()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if p.cfg.MaxWait > 0 {
		t := time.NewTimer(p.cfg.MaxWait)
		defer t.Stop()
		deadline = t.C
	}

	for {
		if p.pollOnce(ctx, gen) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			p.log.Info("payment wait expired", "max_wait", p.cfg.MaxWait)
			if p.back(gen, StageWaitingPayment, StageIntro) {
				p.emit(StageIntro, MsgNotIdentified)
			}
			return
		case <-ticker.C:
		}
	}
}

// pollOnce — одна проверка цикла. true — цикл должен завершиться.
func (p *Poller) pollOnce(ctx context.Context, gen uint64) bool {
	st := p.checkStatus(ctx, "poll")
	if ctx.Err() != nil {
		return true
	}
	if st != payments.StatusActive {
		return false
	}
	if err := p.activate(ctx, gen, StageWaitingPayment); err != nil {
		// остаёмся в ожидании, следующий ACTIVE повторит активацию
		return ctx.Err() != nil
	}
	return true
}

func (p *Poller) checkStatus(ctx context.Context, source string) payments.Status {
	st, err := p.provider.CheckPaymentStatus(ctx, p.user.Email)
	if err != nil {
		err = apperr.Inconclusive("payment status", err)
		if ctx.Err() == nil {
			p.log.Warn("payment status check failed", "source", source, "kind", apperr.KindOf(err), "err", err)
		}
		p.metrics.ObservePaymentCheck(source, "error")
		return payments.StatusPending
	}
	p.metrics.ObservePaymentCheck(source, string(st))
	return st
}

// activate вызывает Activator не больше одного раза за жизнь поллера и переводит
// поллер в SUCCESS, если стадия from ещё актуальна.
func (p *Poller) activate(ctx context.Context, gen uint64, from Stage) error {
	p.mu.Lock()
	u := p.activated
	p.mu.Unlock()

	if u == nil {
		var err error
		u, err = p.activator.ActivateSubscription(ctx, p.user.ID)
		if err != nil {
			p.log.Error("subscription activation failed", "err", err)
			return err
		}
		p.log.Info("subscription activated")
	}

	p.mu.Lock()
	p.activated = u
	if p.closed || gen != p.gen || p.stage != from {
		p.mu.Unlock()
		return nil
	}
	p.stage = StageSuccess
	if p.onDone != nil {
		p.navTimer = time.AfterFunc(p.cfg.SuccessDelay, func() { p.navigate(gen, u) })
	}
	p.mu.Unlock()

	p.emit(StageSuccess, MsgActivated)
	return nil
}

func (p *Poller) navigate(gen uint64, u *users.User) {
	p.mu.Lock()
	if p.closed || gen != p.gen {
		p.mu.Unlock()
		return
	}
	p.navTimer = nil
	p.mu.Unlock()
	p.onDone(u)
}

// back переводит стадию from -> to; false, если стадия или поколение уже сменились.
func (p *Poller) back(gen uint64, from, to Stage) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || gen != p.gen || p.stage != from {
		return false
	}
	p.stage = to
	return true
}

func (p *Poller) emit(s Stage, msg string) {
	if p.onStage == nil {
		return
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if !closed {
		p.onStage(s, msg)
	}
}
