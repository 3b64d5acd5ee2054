package http

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Server struct {
	srv *http.Server
}

type Options struct {
	// Gatherer — реестр для /metrics; nil — метрики не публикуются.
	Gatherer prometheus.Gatherer
	// Payments — песочница оплаты (/payments/...); nil — не подключается.
	Payments http.Handler
	// Notifications — websocket-лента уведомлений; nil — не подключается.
	Notifications http.Handler
}

func New(addr string, o Options) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(Routes(o), "storedesk"),
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

func Routes(o Options) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if o.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(o.Gatherer, promhttp.HandlerOpts{}))
	}
	if o.Payments != nil {
		mux.Handle("/payments/", o.Payments)
	}
	if o.Notifications != nil {
		mux.Handle("/ws/notifications", o.Notifications)
	}
	return mux
}

func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
