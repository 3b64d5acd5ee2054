package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"

	"github.com/Spok95/storedesk/internal/domain/users"
)

// Handler обслуживает Sandbox по HTTP. Маршруты совпадают с тем, что ожидает Client,
// поэтому песочницу можно подключить и как внешний провайдер.
type Handler struct {
	log *slog.Logger
	sb  *Sandbox
	mux *http.ServeMux
}

func NewHandler(log *slog.Logger, sb *Sandbox) *Handler {
	h := &Handler{log: log, sb: sb, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /payments/pay", h.pay)
	h.mux.HandleFunc("POST /payments/checkout", h.checkout)
	h.mux.HandleFunc("GET /payments/status", h.status)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// pay эмулирует "успешную оплату":
// /payments/pay?checkout=<id> -> email помечается оплатившим, показываем простую HTML-страницу.
func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("checkout")
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("missing checkout parameter"))
		return
	}

	email, err := h.sb.MarkPaid(id)
	if errors.Is(err, ErrUnknownCheckout) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("unknown checkout"))
		return
	}
	if err != nil {
		h.log.Error("failed to mark checkout as paid", "checkout_id", id, "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	h.log.Info("sandbox payment completed", "checkout_id", id, "email", email)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w,
		"<html><body><h1>Оплата прошла</h1><p>Подписка для %s оплачена. Вернитесь в бот.</p></body></html>",
		html.EscapeString(email),
	)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	link, err := h.sb.CreateCheckout(r.Context(), users.User{ID: req.UserID, Email: req.Email, Name: req.Name})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]string{"url": link})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	st, err := h.sb.CheckPaymentStatus(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]string{"status": string(st)})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
