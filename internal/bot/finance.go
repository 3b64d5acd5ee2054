package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/storedesk/internal/dialog"
	"github.com/Spok95/storedesk/internal/domain/finance"
	"github.com/Spok95/storedesk/internal/optimistic"
	"github.com/Spok95/storedesk/internal/report"
)

var methodRU = map[finance.Method]string{
	finance.MethodCash:     "наличные",
	finance.MethodCard:     "карта",
	finance.MethodPix:      "PIX",
	finance.MethodTransfer: "перевод",
	finance.MethodCredit:   "в долг",
}

func (b *Bot) showFinance(ctx context.Context, chatID, tgID int64, mid int) {
	b.showSummary(ctx, chatID, tgID, mid, "today")
}

func (b *Bot) showSummary(ctx context.Context, chatID, tgID int64, mid int, period string) {
	u, ok := b.member(ctx, chatID, tgID)
	if !ok {
		return
	}
	w, ok := b.space(ctx, chatID, u)
	if !ok {
		return
	}
	from, to, title := b.period(period)
	mid = b.show(chatID, mid, summaryText(title, w.Summary(from, to)), financeKeyboard())
	b.saveLastStep(ctx, chatID, dialog.StateFinance, dialog.Payload{}, mid)
}

// period — границы "today" или "month" в часовом поясе сервера.
func (b *Bot) period(name string) (from, to time.Time, title string) {
	now := b.now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if name == "month" {
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return from, from.AddDate(0, 1, 0), "Финансы за " + now.Format("01.2006")
	}
	return day, day.AddDate(0, 0, 1), "Финансы за сегодня"
}

func summaryText(title string, s finance.Summary) string {
	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString(fmt.Sprintf("\nОпераций: %d\nВыручка: %s\nРасходы: %s\nПрибыль: %s",
		s.Count, money(s.Revenue), money(s.Expense), money(s.Profit)))
	for _, m := range []finance.Method{finance.MethodCash, finance.MethodCard, finance.MethodPix, finance.MethodTransfer, finance.MethodCredit} {
		if v := s.ByMethod[m]; v != 0 {
			sb.WriteString(fmt.Sprintf("\n  %s: %s", methodRU[m], money(v)))
		}
	}
	return sb.String()
}

func (b *Bot) onFinanceCallback(ctx context.Context, chatID, tgID int64, mid int, action string) {
	switch action {
	case "today", "month":
		b.showSummary(ctx, chatID, tgID, mid, action)
	case "xlsx":
		b.exportFinance(ctx, chatID, tgID)
	case "close":
		if _, ok := b.paid(ctx, chatID, tgID); !ok {
			return
		}
		b.show(chatID, mid, "Закрытие кассы. Сумма в кассе на начало дня:", navKeyboard(true, true))
		b.saveLastStep(ctx, chatID, dialog.StateCashOpening, dialog.Payload{}, mid)
	}
}

func (b *Bot) exportFinance(ctx context.Context, chatID, tgID int64) {
	u, ok := b.member(ctx, chatID, tgID)
	if !ok {
		return
	}
	w, ok := b.space(ctx, chatID, u)
	if !ok {
		return
	}
	from, to, _ := b.period("month")
	data, err := report.Finance(w.Summary(from, to), w.Transactions.Entities())
	if err != nil {
		b.log.Error("finance report failed", "store_id", u.StoreID, "err", err)
		b.sendText(chatID, "Не удалось сформировать отчёт.")
		return
	}
	name := fmt.Sprintf("finance-%s.xlsx", from.Format("2006-01"))
	b.send(tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data}))
}

func (b *Bot) onCashOpening(ctx context.Context, chatID int64, st *dialog.Item, text string) {
	opening, err := parseAmount(text)
	if err != nil || opening < 0 {
		b.sendText(chatID, "Введите сумму числом, например 150 или 150,50.")
		return
	}
	b.clearPrevStep(ctx, chatID)
	mid := b.show(chatID, 0, "Сколько денег в кассе сейчас (пересчитали)?", navKeyboard(true, true))
	st.Payload["opening"] = opening
	b.saveLastStep(ctx, chatID, dialog.StateCashCounted, st.Payload, mid)
}

func (b *Bot) onCashCounted(ctx context.Context, chatID, tgID int64, st *dialog.Item, text string) {
	counted, err := parseAmount(text)
	if err != nil || counted < 0 {
		b.sendText(chatID, "Введите сумму числом, например 150 или 150,50.")
		return
	}
	u, ok := b.paid(ctx, chatID, tgID)
	if !ok {
		return
	}
	w, ok := b.space(ctx, chatID, u)
	if !ok {
		return
	}
	opening, _ := dialog.GetFloat(st.Payload, "opening")
	b.clearPrevStep(ctx, chatID)
	b.resetState(ctx, chatID)

	c, err := w.CloseCash(ctx, opening, counted, b.now(), "", u.Name,
		optimistic.FailureMessage("Закрытие кассы не сохранено."),
	)
	if err != nil {
		b.reportError(chatID, "close cash", err)
		return
	}
	diff := money(c.Difference)
	if c.Difference > 0 {
		diff = "+" + diff
	}
	b.sendText(chatID, fmt.Sprintf("🔒 Касса закрыта за %s\nНа начало: %s\nПриход: %s\nРасход: %s\nОжидалось: %s\nПосчитано: %s\nРасхождение: %s",
		c.Date.Format("02.01.2006"), money(c.Opening), money(c.CashIn), money(c.CashOut),
		money(c.Expected), money(c.Counted), diff))
}
