package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/storedesk/internal/dialog"
	"github.com/Spok95/storedesk/internal/domain/finance"
	"github.com/Spok95/storedesk/internal/optimistic"
	"github.com/Spok95/storedesk/internal/workspace"
)

func (b *Bot) showSalePick(ctx context.Context, chatID, tgID int64, mid int) {
	u, ok := b.paid(ctx, chatID, tgID)
	if !ok {
		return
	}
	w, ok := b.space(ctx, chatID, u)
	if !ok {
		return
	}

	rows := [][]tgbotapi.InlineKeyboardButton{}
	for _, it := range w.Products.Items() {
		// несохранённый товар продать нельзя: у него ещё нет серверного id
		if it.IsPending() || !it.Entity.Active {
			continue
		}
		if len(rows) == listLimit {
			break
		}
		p := it.Entity
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s — %s", p.Name, money(p.Price)), "sale:pick:"+p.ID),
		))
	}
	if len(rows) == 0 {
		b.resetState(ctx, chatID)
		b.show(chatID, mid, "Нет товаров для продажи. Добавьте их в разделе «"+btnProducts+"».", navKeyboard(false, true))
		return
	}
	rows = append(rows, navKeyboard(false, true).InlineKeyboard[0])
	mid = b.show(chatID, mid, "Что продаём?", tgbotapi.NewInlineKeyboardMarkup(rows...))
	b.saveLastStep(ctx, chatID, dialog.StateSalePick, dialog.Payload{}, mid)
}

func (b *Bot) onSaleCallback(ctx context.Context, chatID, tgID int64, mid int, args []string) {
	if len(args) != 2 {
		return
	}
	st, err := b.states.Get(ctx, chatID)
	if err != nil {
		b.log.Error("load dialog state failed", "chat_id", chatID, "err", err)
		return
	}
	switch args[0] {
	case "pick":
		u, ok := b.paid(ctx, chatID, tgID)
		if !ok {
			return
		}
		w, ok := b.space(ctx, chatID, u)
		if !ok {
			return
		}
		p, ok := w.Products.Get(args[1])
		if !ok {
			b.showSalePick(ctx, chatID, tgID, mid)
			return
		}
		text := fmt.Sprintf("Количество «%s» (цена %s, на складе %g):", p.Name, money(p.Price), p.Stock)
		b.show(chatID, mid, text, navKeyboard(true, true))
		b.saveLastStep(ctx, chatID, dialog.StateSaleQty, dialog.Payload{"prod_id": p.ID}, mid)
	case "method":
		if st.State != dialog.StateSaleMethod {
			return
		}
		method := finance.Method(args[1])
		if method == finance.MethodCredit {
			b.showSaleAccounts(ctx, chatID, tgID, mid, st)
			return
		}
		b.recordSale(ctx, chatID, tgID, mid, st, method, "")
	case "acc":
		if st.State != dialog.StateSaleMethod {
			return
		}
		b.recordSale(ctx, chatID, tgID, mid, st, finance.MethodCredit, args[1])
	}
}

func (b *Bot) onSaleQty(ctx context.Context, chatID, tgID int64, st *dialog.Item, text string) {
	qty, err := parseAmount(text)
	if err != nil || qty <= 0 {
		b.sendText(chatID, "Количество должно быть положительным числом.")
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
	id, _ := dialog.GetString(st.Payload, "prod_id")
	p, ok := w.Products.Get(id)
	if !ok {
		b.showSalePick(ctx, chatID, tgID, 0)
		return
	}
	b.clearPrevStep(ctx, chatID)
	text = fmt.Sprintf("%s × %g = %s\nСпособ оплаты:", p.Name, qty, money(p.Price*qty))
	mid := b.show(chatID, 0, text, methodKeyboard("sale:method:", w.CustomerAccounts.Len() > 0))
	b.saveLastStep(ctx, chatID, dialog.StateSaleMethod, dialog.Payload{"prod_id": id, "qty": qty}, mid)
}

func (b *Bot) showSaleAccounts(ctx context.Context, chatID, tgID int64, mid int, st *dialog.Item) {
	u, ok := b.paid(ctx, chatID, tgID)
	if !ok {
		return
	}
	w, ok := b.space(ctx, chatID, u)
	if !ok {
		return
	}
	rows := [][]tgbotapi.InlineKeyboardButton{}
	for _, it := range w.CustomerAccounts.Items() {
		if it.IsPending() {
			continue
		}
		if len(rows) == listLimit {
			break
		}
		a := it.Entity
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s (долг %s)", a.Name, money(a.Balance)), "sale:acc:"+a.ID),
		))
	}
	rows = append(rows, navKeyboard(true, true).InlineKeyboard[0])
	mid = b.show(chatID, mid, "На чей счёт записать?", tgbotapi.NewInlineKeyboardMarkup(rows...))
	b.saveLastStep(ctx, chatID, dialog.StateSaleMethod, st.Payload, mid)
}

func (b *Bot) recordSale(ctx context.Context, chatID, tgID int64, mid int, st *dialog.Item, method finance.Method, accountID string) {
	u, ok := b.paid(ctx, chatID, tgID)
	if !ok {
		return
	}
	w, ok := b.space(ctx, chatID, u)
	if !ok {
		return
	}
	id, _ := dialog.GetString(st.Payload, "prod_id")
	qty, _ := dialog.GetFloat(st.Payload, "qty")
	b.resetState(ctx, chatID)

	tx, err := w.RecordSale(ctx, workspace.Sale{
		Lines:             []workspace.SaleLine{{ProductID: id, Qty: qty}},
		Method:            method,
		CustomerAccountID: accountID,
	},
		optimistic.OnApplied(func() { b.editTextAndClear(chatID, mid, "⏳ Записываю продажу…") }),
		optimistic.FailureMessage("Продажа не сохранена, изменения отменены."),
	)
	var fe *workspace.FollowUpError
	switch {
	case err == nil, errors.As(err, &fe):
		b.editTextAndClear(chatID, mid, fmt.Sprintf("✅ Продажа записана: %s на %s", tx.Description, money(tx.Amount)))
		if err != nil {
			b.reportError(chatID, "record sale", err)
		}
	default:
		b.editTextAndClear(chatID, mid, "Продажа не записана.")
		b.reportError(chatID, "record sale", err)
	}
}
