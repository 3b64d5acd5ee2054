package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/storedesk/internal/dialog"
	"github.com/Spok95/storedesk/internal/domain/users"
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		b.closeSubscription(chatID)
		tg := users.Telegram{
			ID:        msg.From.ID,
			Username:  msg.From.UserName,
			FirstName: msg.From.FirstName,
			LastName:  msg.From.LastName,
		}
		// /start <store_id> — ссылка-приглашение в магазин
		storeID := strings.TrimSpace(msg.CommandArguments())
		u, err := b.users.UpsertFromTelegram(ctx, tg, storeID)
		if err != nil {
			b.log.Error("upsert user failed", "tg_id", tg.ID, "err", err)
			b.sendText(chatID, "Ошибка: не удалось сохранить профиль")
			return
		}
		if u.StoreID == "" && storeID != "" {
			withStore, err := b.users.SetStore(ctx, u.ID, storeID)
			if err != nil {
				b.log.Error("set store failed", "user_id", u.ID, "err", err)
				b.sendText(chatID, "Ошибка: не удалось сохранить магазин")
				return
			}
			u = withStore
		}
		if u.StoreID == "" {
			b.askStore(ctx, chatID)
			return
		}
		b.resetState(ctx, chatID)
		b.showMenu(chatID, "Готово! Работайте через кнопки снизу.")
		return

	case "store":
		b.closeSubscription(chatID)
		b.askStore(ctx, chatID)
		return

	case "help":
		b.sendText(chatID,
			"Команды:\n/start — начать работу\n/store — сменить магазин\n/help — помощь\n\n"+
				"Изменения товаров, продаж и финансов применяются сразу и отменяются, если сервер их не принял.")
		return

	default:
		b.sendText(chatID, "Не знаю такую команду. Наберите /help")
		return
	}
}

func (b *Bot) handleStateMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	tgID := msg.From.ID
	text := strings.TrimSpace(msg.Text)

	// Нижняя панель. Уход с экрана подписки останавливает ожидание оплаты.
	switch text {
	case btnProducts:
		b.closeSubscription(chatID)
		b.clearPrevStep(ctx, chatID)
		b.showProducts(ctx, chatID, tgID, 0)
		return
	case btnSale:
		b.closeSubscription(chatID)
		b.clearPrevStep(ctx, chatID)
		b.showSalePick(ctx, chatID, tgID, 0)
		return
	case btnFinance:
		b.closeSubscription(chatID)
		b.clearPrevStep(ctx, chatID)
		b.showFinance(ctx, chatID, tgID, 0)
		return
	case btnAccounts:
		b.closeSubscription(chatID)
		b.clearPrevStep(ctx, chatID)
		b.showAccounts(ctx, chatID, tgID, 0)
		return
	case btnSubscription:
		b.clearPrevStep(ctx, chatID)
		b.openSubscription(ctx, chatID, tgID)
		return
	}

	// Диалоги (текстовые вводы)
	st, err := b.states.Get(ctx, chatID)
	if err != nil {
		b.log.Error("load dialog state failed", "chat_id", chatID, "err", err)
		return
	}
	switch st.State {
	case dialog.StateAwaitStore:
		b.onStoreEntered(ctx, chatID, tgID, text)
	case dialog.StateAwaitEmail:
		b.onEmailEntered(ctx, chatID, tgID, text)
	case dialog.StateProdStockQty:
		b.onStockDelta(ctx, chatID, tgID, st, text)
	case dialog.StateProdNewName:
		b.onNewProductName(ctx, chatID, text)
	case dialog.StateProdNewPrice:
		b.onNewProductPrice(ctx, chatID, tgID, st, text)
	case dialog.StateSaleQty:
		b.onSaleQty(ctx, chatID, tgID, st, text)
	case dialog.StateAccPayDebt:
		b.onDebtAmount(ctx, chatID, st, text)
	case dialog.StateCashOpening:
		b.onCashOpening(ctx, chatID, st, text)
	case dialog.StateCashCounted:
		b.onCashCounted(ctx, chatID, tgID, st, text)
	default:
		b.showMenu(chatID, "Выберите раздел кнопками снизу.")
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID
	mid := cb.Message.MessageID
	tgID := cb.From.ID
	parts := strings.Split(cb.Data, ":")
	_ = b.answerCallback(cb, "", false)
	if len(parts) < 2 {
		return
	}

	switch parts[0] {
	case "nav":
		switch parts[1] {
		case "cancel":
			b.closeSubscription(chatID)
			b.gate(chatID).Cancel()
			b.resetState(ctx, chatID)
			b.editTextAndClear(chatID, mid, "Отменено.")
		case "back":
			b.navBack(ctx, chatID, tgID, mid)
		}
	case "prod":
		b.onProductCallback(ctx, chatID, tgID, mid, parts[1:])
	case "sale":
		b.onSaleCallback(ctx, chatID, tgID, mid, parts[1:])
	case "fin":
		b.onFinanceCallback(ctx, chatID, tgID, mid, parts[1])
	case "acc":
		b.onAccountCallback(ctx, chatID, tgID, mid, parts[1:])
	case "sub":
		b.onSubscriptionCallback(ctx, chatID, tgID, mid, parts[1])
	}
}

// navBack — шаг назад по текущему состоянию диалога.
func (b *Bot) navBack(ctx context.Context, chatID, tgID int64, mid int) {
	st, err := b.states.Get(ctx, chatID)
	if err != nil {
		b.log.Error("load dialog state failed", "chat_id", chatID, "err", err)
		return
	}
	switch st.State {
	case dialog.StateProdItem, dialog.StateProdDelete, dialog.StateProdStockQty,
		dialog.StateProdNewName, dialog.StateProdNewPrice:
		b.gate(chatID).Cancel()
		b.showProducts(ctx, chatID, tgID, mid)
	case dialog.StateSaleQty, dialog.StateSaleMethod:
		b.showSalePick(ctx, chatID, tgID, mid)
	case dialog.StateAccItem, dialog.StateAccPayDebt:
		b.showAccounts(ctx, chatID, tgID, mid)
	case dialog.StateCashOpening, dialog.StateCashCounted:
		b.showFinance(ctx, chatID, tgID, mid)
	default:
		b.resetState(ctx, chatID)
		b.editTextAndClear(chatID, mid, "Отменено.")
	}
}

func (b *Bot) showMenu(chatID int64, text string) {
	m := tgbotapi.NewMessage(chatID, text)
	m.ReplyMarkup = mainReplyKeyboard()
	b.send(m)
}

func (b *Bot) askStore(ctx context.Context, chatID int64) {
	mid := b.show(chatID, 0, "Введите идентификатор магазина (его выдаёт владелец магазина).", navKeyboard(false, true))
	b.saveLastStep(ctx, chatID, dialog.StateAwaitStore, dialog.Payload{}, mid)
}

func (b *Bot) onStoreEntered(ctx context.Context, chatID, tgID int64, storeID string) {
	if storeID == "" || strings.ContainsAny(storeID, " /") {
		b.sendText(chatID, "Идентификатор магазина — одно слово без пробелов. Попробуйте ещё раз.")
		return
	}
	u, err := b.users.GetByTelegramID(ctx, tgID)
	if err != nil || u == nil {
		b.sendText(chatID, "Сначала наберите /start")
		return
	}
	if _, err := b.users.SetStore(ctx, u.ID, storeID); err != nil {
		b.log.Error("set store failed", "user_id", u.ID, "err", err)
		b.sendText(chatID, "Ошибка: не удалось сохранить магазин")
		return
	}
	b.clearPrevStep(ctx, chatID)
	b.resetState(ctx, chatID)
	b.showMenu(chatID, "Магазин выбран: "+storeID)
}
