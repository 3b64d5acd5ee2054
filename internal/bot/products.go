package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/storedesk/internal/dialog"
	"github.com/Spok95/storedesk/internal/domain/catalog"
	"github.com/Spok95/storedesk/internal/optimistic"
	"github.com/Spok95/storedesk/internal/report"
)

// максимум товаров на одном экране (лимит inline-клавиатуры)
const listLimit = 30

func (b *Bot) showProducts(ctx context.Context, chatID, tgID int64, mid int) {
	u, ok := b.member(ctx, chatID, tgID)
	if !ok {
		return
	}
	w, ok := b.space(ctx, chatID, u)
	if !ok {
		return
	}

	rows := [][]tgbotapi.InlineKeyboardButton{}
	for i, it := range w.Products.Items() {
		if i == listLimit {
			break
		}
		p := it.Entity
		label := fmt.Sprintf("%s%s — %s (ост. %g)", badge(it.IsPending()), p.Name, money(p.Price), p.Stock)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "prod:item:"+it.ID()),
		))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Новый товар", "prod:new"),
			tgbotapi.NewInlineKeyboardButtonData("📊 Остатки в Excel", "prod:export"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Обновить", "prod:reload"),
		),
		navKeyboard(false, true).InlineKeyboard[0],
	)

	text := fmt.Sprintf("Товары: %d", w.Products.Len())
	if low := w.LowStock(); len(low) > 0 {
		names := make([]string, 0, len(low))
		for _, p := range low {
			names = append(names, p.Name)
		}
		text += "\n⚠️ Заканчиваются: " + strings.Join(names, ", ")
	}
	mid = b.show(chatID, mid, text, tgbotapi.NewInlineKeyboardMarkup(rows...))
	b.saveLastStep(ctx, chatID, dialog.StateProdList, dialog.Payload{}, mid)
}

func (b *Bot) showProduct(ctx context.Context, chatID, tgID int64, mid int, id string) {
	u, ok := b.member(ctx, chatID, tgID)
	if !ok {
		return
	}
	w, ok := b.space(ctx, chatID, u)
	if !ok {
		return
	}
	p, ok := w.Products.Get(id)
	if !ok {
		b.showProducts(ctx, chatID, tgID, mid)
		return
	}

	text := fmt.Sprintf("%s\nЦена: %s\nСебестоимость: %s\nОстаток: %g (минимум %g)",
		p.Name, money(p.Price), money(p.Cost), p.Stock, p.MinStock)
	if p.SKU != "" {
		text += "\nАртикул: " + p.SKU
	}
	if optimistic.IsTempID(id) {
		text += "\n⏳ Сохраняется…"
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("± Остаток", "prod:stock:"+id),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Удалить", "prod:del:"+id),
		),
		navKeyboard(true, true).InlineKeyboard[0],
	)
	mid = b.show(chatID, mid, text, kb)
	b.saveLastStep(ctx, chatID, dialog.StateProdItem, dialog.Payload{"prod_id": id}, mid)
}

func (b *Bot) onProductCallback(ctx context.Context, chatID, tgID int64, mid int, args []string) {
	switch args[0] {
	case "item":
		if len(args) == 2 {
			b.showProduct(ctx, chatID, tgID, mid, args[1])
		}
	case "del":
		if len(args) != 2 {
			return
		}
		switch args[1] {
		case "yes":
			b.confirmProductDelete(ctx, chatID, tgID, mid)
		case "no":
			p, ok := b.gate(chatID).Pending()
			b.gate(chatID).Cancel()
			if ok {
				b.showProduct(ctx, chatID, tgID, mid, p.ID)
				return
			}
			b.showProducts(ctx, chatID, tgID, mid)
		default:
			b.requestProductDelete(ctx, chatID, tgID, mid, args[1])
		}
	case "stock":
		if len(args) != 2 {
			return
		}
		if _, ok := b.paid(ctx, chatID, tgID); !ok {
			return
		}
		if optimistic.IsTempID(args[1]) {
			b.sendText(chatID, "Товар ещё сохраняется, попробуйте через пару секунд.")
			return
		}
		b.show(chatID, mid, "Введите изменение остатка, например +5 (приход) или -2 (списание).", navKeyboard(true, true))
		b.saveLastStep(ctx, chatID, dialog.StateProdStockQty, dialog.Payload{"prod_id": args[1]}, mid)
	case "new":
		if _, ok := b.paid(ctx, chatID, tgID); !ok {
			return
		}
		b.show(chatID, mid, "Название нового товара:", navKeyboard(true, true))
		b.saveLastStep(ctx, chatID, dialog.StateProdNewName, dialog.Payload{}, mid)
	case "export":
		b.exportStock(ctx, chatID, tgID)
	case "reload":
		// данные могли поменяться в другом клиенте: перечитываем магазин целиком
		if u, ok := b.member(ctx, chatID, tgID); ok {
			b.spaces.Evict(u.StoreID)
			b.showProducts(ctx, chatID, tgID, mid)
		}
	}
}

func (b *Bot) requestProductDelete(ctx context.Context, chatID, tgID int64, mid int, id string) {
	u, ok := b.paid(ctx, chatID, tgID)
	if !ok {
		return
	}
	w, ok := b.space(ctx, chatID, u)
	if !ok {
		return
	}
	p, ok := w.Products.Get(id)
	if !ok {
		b.showProducts(ctx, chatID, tgID, mid)
		return
	}
	if optimistic.IsTempID(id) {
		b.sendText(chatID, "Товар ещё сохраняется, попробуйте через пару секунд.")
		return
	}
	b.gate(chatID).Request(id, "product")
	b.show(chatID, mid, fmt.Sprintf("Удалить товар «%s»? Это нельзя отменить.", p.Name), confirmDeleteKeyboard())
	b.saveLastStep(ctx, chatID, dialog.StateProdDelete, dialog.Payload{"prod_id": id}, mid)
}

func (b *Bot) confirmProductDelete(ctx context.Context, chatID, tgID int64, mid int) {
	u, ok := b.paid(ctx, chatID, tgID)
	if !ok {
		return
	}
	w, ok := b.space(ctx, chatID, u)
	if !ok {
		return
	}
	err := b.gate(chatID).Confirm(ctx, func(ctx context.Context, p optimistic.PendingDeletion) error {
		return w.Products.Delete(ctx, p.ID,
			// диалог закрывается сразу, не дожидаясь сервера
			optimistic.OnApplied(func() { b.editTextAndClear(chatID, mid, "Товар удалён.") }),
			optimistic.FailureMessage("Не удалось удалить товар, он возвращён в список."),
		)
	})
	switch {
	case errors.Is(err, optimistic.ErrNoPendingDeletion):
		b.editTextAndClear(chatID, mid, "Нечего удалять.")
		return
	case err != nil:
		b.reportError(chatID, "delete product", err)
	}
	b.showProducts(ctx, chatID, tgID, 0)
}

func (b *Bot) onStockDelta(ctx context.Context, chatID, tgID int64, st *dialog.Item, text string) {
	id, _ := dialog.GetString(st.Payload, "prod_id")
	delta, err := parseAmount(text)
	if err != nil || delta == 0 {
		b.sendText(chatID, "Нужно ненулевое число, например +5 или -2.")
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
	b.clearPrevStep(ctx, chatID)
	if err := w.AdjustStock(ctx, id, delta,
		optimistic.FailureMessage("Не удалось изменить остаток, значение восстановлено."),
	); err != nil {
		b.reportError(chatID, "adjust stock", err)
	}
	b.showProduct(ctx, chatID, tgID, 0, id)
}

func (b *Bot) onNewProductName(ctx context.Context, chatID int64, text string) {
	if text == "" {
		b.sendText(chatID, "Название не может быть пустым.")
		return
	}
	b.clearPrevStep(ctx, chatID)
	mid := b.show(chatID, 0, fmt.Sprintf("Цена товара «%s»:", text), navKeyboard(true, true))
	b.saveLastStep(ctx, chatID, dialog.StateProdNewPrice, dialog.Payload{"name": text}, mid)
}

func (b *Bot) onNewProductPrice(ctx context.Context, chatID, tgID int64, st *dialog.Item, text string) {
	name, _ := dialog.GetString(st.Payload, "name")
	price, err := parseAmount(text)
	if err != nil || price <= 0 {
		b.sendText(chatID, "Цена должна быть положительным числом.")
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
	b.clearPrevStep(ctx, chatID)
	p, err := w.Products.Create(ctx, catalog.Product{
		StoreID: u.StoreID,
		Name:    name,
		Price:   price,
		Active:  true,
	}, optimistic.FailureMessage("Не удалось сохранить товар «"+name+"»."))
	if err != nil {
		b.reportError(chatID, "create product", err)
		b.showProducts(ctx, chatID, tgID, 0)
		return
	}
	b.showProduct(ctx, chatID, tgID, 0, p.ID)
}

func (b *Bot) exportStock(ctx context.Context, chatID, tgID int64) {
	u, ok := b.member(ctx, chatID, tgID)
	if !ok {
		return
	}
	w, ok := b.space(ctx, chatID, u)
	if !ok {
		return
	}
	data, err := report.Stock(w.Products.Entities())
	if err != nil {
		b.log.Error("stock report failed", "store_id", u.StoreID, "err", err)
		b.sendText(chatID, "Не удалось сформировать отчёт.")
		return
	}
	b.send(tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: "stock.xlsx", Bytes: data}))
}
