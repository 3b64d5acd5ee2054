package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Spok95/storedesk/internal/bot"
	"github.com/Spok95/storedesk/internal/config"
	"github.com/Spok95/storedesk/internal/dialog"
	"github.com/Spok95/storedesk/internal/domain/users"
	"github.com/Spok95/storedesk/internal/infra/backend"
	"github.com/Spok95/storedesk/internal/infra/db"
	httpx "github.com/Spok95/storedesk/internal/infra/http"
	"github.com/Spok95/storedesk/internal/infra/logger"
	"github.com/Spok95/storedesk/internal/infra/metrics"
	"github.com/Spok95/storedesk/internal/infra/notify"
	"github.com/Spok95/storedesk/internal/infra/payments"
	"github.com/Spok95/storedesk/internal/infra/tracing"
	"github.com/Spok95/storedesk/internal/subscription"
	"github.com/Spok95/storedesk/internal/workspace"
)

func main() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/example.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)

	loc, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		log.Error("bad timezone", "tz", cfg.App.Timezone, "err", err)
		return
	}
	// сводки "за сегодня" и закрытие кассы считаются по часам магазина
	now := func() time.Time { return time.Now().In(loc) }

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.Init(ctx, tracing.Config{ServiceName: "storedesk", Env: cfg.App.Env, Stdout: cfg.Tracing.Stdout})
		if err != nil {
			log.Error("tracing init failed", "err", err)
			return
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		return
	}
	defer pool.Close()
	log.Info("db connected")

	if err := db.Migrate(ctx, pool); err != nil {
		log.Error("migrations failed", "err", err)
		return
	}
	log.Info("migrations applied")

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		log.Error("telegram init failed", "err", err)
		return
	}
	log.Info("telegram authorized", "username", api.Self.UserName)

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	hub := notify.NewHub(log)
	notifier := notify.Multi{notify.NewTelegram(api, cfg.Telegram.AdminChatID), hub, notify.NewLog(log)}

	spaces := workspace.NewManager(workspace.Deps{
		API:      backend.NewClient(cfg.Backend.URL, cfg.Backend.Token, cfg.Backend.Timeout),
		Log:      log,
		Notifier: notifier,
		Metrics:  m,
		Now:      now,
	})

	provider, sandbox := newPaymentProvider(cfg)
	log.Info("payment provider", "provider", cfg.Payments.Provider)

	opts := httpx.Options{Notifications: hub}
	if cfg.Metrics.Enabled {
		opts.Gatherer = reg
	}
	if sandbox != nil {
		opts.Payments = payments.NewHandler(log, sandbox)
	}
	srv := httpx.New(cfg.HTTP.Addr, opts)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	b := bot.New(bot.Deps{
		API:        api,
		Log:        log,
		Users:      users.NewRepo(pool),
		States:     dialog.NewRepo(pool),
		Workspaces: spaces,
		Payments:   provider,
		Poller: subscription.Config{
			Interval:     cfg.Payments.PollInterval,
			SuccessDelay: cfg.Payments.SuccessDelay,
			MaxWait:      cfg.Payments.MaxWait,
		},
		Metrics: m,
		Now:     now,
	})

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)
	if err := b.Run(ctx, updates); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("bot stopped", "err", err)
	}
	api.StopReceivingUpdates()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}

// newPaymentProvider выбирает провайдера по конфигу; песочница возвращается отдельно,
// её страница оплаты обслуживается нашим HTTP-сервером.
func newPaymentProvider(cfg config.Config) (payments.Provider, *payments.Sandbox) {
	p := cfg.Payments
	switch p.Provider {
	case "http":
		return payments.NewClient(p.BaseURL, p.APIKey, p.Timeout), nil
	case "stripe":
		return payments.NewStripe(payments.StripeConfig{
			APIKey:     p.APIKey,
			PriceID:    p.PriceID,
			SuccessURL: p.SuccessURL,
			CancelURL:  p.CancelURL,
		}), nil
	default:
		sb := payments.NewSandbox(p.BaseURL)
		return sb, sb
	}
}

