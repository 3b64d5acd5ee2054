package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/storedesk/internal/domain/finance"
)

const (
	btnProducts     = "📦 Товары"
	btnSale         = "🛒 Продажа"
	btnFinance      = "💰 Финансы"
	btnAccounts     = "👥 Клиенты"
	btnSubscription = "⭐ Подписка"
)

func navKeyboard(back bool, cancel bool) tgbotapi.InlineKeyboardMarkup {
	row := []tgbotapi.InlineKeyboardButton{}
	if back {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", "nav:back"))
	}
	if cancel {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("✖️ Отменить", "nav:cancel"))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

// mainReplyKeyboard Нижняя панель (ReplyKeyboard) магазина
func mainReplyKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.ReplyKeyboardMarkup{
		ResizeKeyboard: true,
		Keyboard: [][]tgbotapi.KeyboardButton{
			{tgbotapi.NewKeyboardButton(btnSale)},
			{tgbotapi.NewKeyboardButton(btnProducts), tgbotapi.NewKeyboardButton(btnAccounts)},
			{tgbotapi.NewKeyboardButton(btnFinance), tgbotapi.NewKeyboardButton(btnSubscription)},
		},
	}
}

func confirmDeleteKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Да, удалить", "prod:del:yes"),
			tgbotapi.NewInlineKeyboardButtonData("Нет", "prod:del:no"),
		),
	)
}

// methodKeyboard — способы оплаты; в долг только если разрешено.
func methodKeyboard(prefix string, credit bool) tgbotapi.InlineKeyboardMarkup {
	row := []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("Наличные", prefix+string(finance.MethodCash)),
		tgbotapi.NewInlineKeyboardButtonData("Карта", prefix+string(finance.MethodCard)),
		tgbotapi.NewInlineKeyboardButtonData("PIX", prefix+string(finance.MethodPix)),
	}
	rows := [][]tgbotapi.InlineKeyboardButton{row}
	if credit {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📒 В долг", prefix+string(finance.MethodCredit)),
		))
	}
	rows = append(rows, navKeyboard(true, true).InlineKeyboard[0])
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func financeKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Сегодня", "fin:today"),
			tgbotapi.NewInlineKeyboardButtonData("Месяц", "fin:month"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Excel за месяц", "fin:xlsx"),
			tgbotapi.NewInlineKeyboardButtonData("🔒 Закрыть кассу", "fin:close"),
		),
		navKeyboard(false, true).InlineKeyboard[0],
	)
}

func subscriptionKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💳 Оплатить", "sub:pay"),
			tgbotapi.NewInlineKeyboardButtonData("🔄 Я уже оплатил", "sub:verify"),
		),
		navKeyboard(false, true).InlineKeyboard[0],
	)
}

func waitingPaymentKeyboard(link string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("Перейти к оплате", link),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", "sub:cancel"),
		),
	)
}
