package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/storedesk/internal/dialog"
	"github.com/Spok95/storedesk/internal/domain/customers"
	"github.com/Spok95/storedesk/internal/domain/finance"
	"github.com/Spok95/storedesk/internal/optimistic"
	"github.com/Spok95/storedesk/internal/workspace"
)

// сколько последних записей счёта показывать в карточке
const ledgerTail = 5

func (b *Bot) showAccounts(ctx context.Context, chatID, tgID int64, mid int) {
	u, ok := b.member(ctx, chatID, tgID)
	if !ok {
		return
	}
	w, ok := b.space(ctx, chatID, u)
	if !ok {
		return
	}

	var total float64
	rows := [][]tgbotapi.InlineKeyboardButton{}
	for _, it := range w.CustomerAccounts.Items() {
		a := it.Entity
		total += a.Balance
		if len(rows) == listLimit {
			continue
		}
		label := fmt.Sprintf("%s%s — долг %s", badge(it.IsPending()), a.Name, money(a.Balance))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "acc:item:"+it.ID()),
		))
	}
	rows = append(rows, navKeyboard(false, true).InlineKeyboard[0])
	text := fmt.Sprintf("Клиенты: %d\nОбщий долг: %s", w.CustomerAccounts.Len(), money(total))
	mid = b.show(chatID, mid, text, tgbotapi.NewInlineKeyboardMarkup(rows...))
	b.saveLastStep(ctx, chatID, dialog.StateAccList, dialog.Payload{}, mid)
}

func (b *Bot) showAccount(ctx context.Context, chatID, tgID int64, mid int, id string) {
	u, ok := b.member(ctx, chatID, tgID)
	if !ok {
		return
	}
	w, ok := b.space(ctx, chatID, u)
	if !ok {
		return
	}
	a, ok := w.CustomerAccounts.Get(id)
	if !ok {
		b.showAccounts(ctx, chatID, tgID, mid)
		return
	}
	mid = b.show(chatID, mid, accountCard(a), tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Погасить всё", "acc:settle:"+id),
			tgbotapi.NewInlineKeyboardButtonData("💵 Частичная оплата", "acc:pay:"+id),
		),
		navKeyboard(true, true).InlineKeyboard[0],
	))
	b.saveLastStep(ctx, chatID, dialog.StateAccItem, dialog.Payload{"acc_id": id}, mid)
}

func accountCard(a customers.CustomerAccount) string {
	var sb strings.Builder
	sb.WriteString(a.Name)
	if a.Phone != "" {
		sb.WriteString(" (" + a.Phone + ")")
	}
	sb.WriteString("\nДолг: " + money(a.Balance))
	if a.CreditLimit > 0 {
		sb.WriteString(fmt.Sprintf("\nЛимит: %s, доступно %s", money(a.CreditLimit), money(a.AvailableCredit())))
	}
	items := a.Items
	if len(items) > ledgerTail {
		items = items[len(items)-ledgerTail:]
	}
	for _, it := range items {
		sign := "+"
		if it.Kind == customers.LedgerPayment {
			sign = "−"
		}
		sb.WriteString(fmt.Sprintf("\n%s %s%s %s", it.Date.Format("02.01"), sign, money(it.Amount), it.Description))
	}
	return sb.String()
}

func (b *Bot) onAccountCallback(ctx context.Context, chatID, tgID int64, mid int, args []string) {
	if len(args) != 2 {
		return
	}
	switch args[0] {
	case "item":
		b.showAccount(ctx, chatID, tgID, mid, args[1])
	case "settle":
		if _, ok := b.paid(ctx, chatID, tgID); !ok {
			return
		}
		b.show(chatID, mid, "Как клиент оплачивает весь долг?", methodKeyboard("acc:method:", false))
		b.saveLastStep(ctx, chatID, dialog.StateAccItem, dialog.Payload{"acc_id": args[1], "mode": "settle"}, mid)
	case "pay":
		if _, ok := b.paid(ctx, chatID, tgID); !ok {
			return
		}
		b.show(chatID, mid, "Сумма оплаты:", navKeyboard(true, true))
		b.saveLastStep(ctx, chatID, dialog.StateAccPayDebt, dialog.Payload{"acc_id": args[1]}, mid)
	case "method":
		st, err := b.states.Get(ctx, chatID)
		if err != nil || st.State != dialog.StateAccItem {
			return
		}
		b.payAccount(ctx, chatID, tgID, mid, st, finance.Method(args[1]))
	}
}

func (b *Bot) onDebtAmount(ctx context.Context, chatID int64, st *dialog.Item, text string) {
	amount, err := parseAmount(text)
	if err != nil || amount <= 0 {
		b.sendText(chatID, "Сумма должна быть положительным числом.")
		return
	}
	id, _ := dialog.GetString(st.Payload, "acc_id")
	b.clearPrevStep(ctx, chatID)
	mid := b.show(chatID, 0, fmt.Sprintf("Оплата %s. Способ оплаты:", money(amount)), methodKeyboard("acc:method:", false))
	b.saveLastStep(ctx, chatID, dialog.StateAccItem, dialog.Payload{"acc_id": id, "mode": "pay", "amount": amount}, mid)
}

func (b *Bot) payAccount(ctx context.Context, chatID, tgID int64, mid int, st *dialog.Item, method finance.Method) {
	u, ok := b.paid(ctx, chatID, tgID)
	if !ok {
		return
	}
	w, ok := b.space(ctx, chatID, u)
	if !ok {
		return
	}
	id, _ := dialog.GetString(st.Payload, "acc_id")
	mode, _ := dialog.GetString(st.Payload, "mode")
	opts := []optimistic.MutationOption{
		optimistic.OnApplied(func() { b.editTextAndClear(chatID, mid, "⏳ Записываю оплату…") }),
		optimistic.FailureMessage("Оплата не сохранена, изменения отменены."),
	}

	var tx finance.Transaction
	var err error
	switch mode {
	case "settle":
		tx, err = w.SettleAccount(ctx, id, method, opts...)
	case "pay":
		amount, _ := dialog.GetFloat(st.Payload, "amount")
		tx, err = w.PayDebt(ctx, id, amount, method, opts...)
	default:
		return
	}

	var fe *workspace.FollowUpError
	if err != nil && !errors.As(err, &fe) {
		b.editTextAndClear(chatID, mid, "Оплата не записана.")
		b.reportError(chatID, "pay account", err)
		return
	}
	b.editTextAndClear(chatID, mid, "✅ Принято "+money(tx.Amount))
	if err != nil {
		b.reportError(chatID, "pay account", err)
	}
	b.showAccount(ctx, chatID, tgID, 0, id)
}
