package bot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/storedesk/internal/apperr"
	"github.com/Spok95/storedesk/internal/dialog"
	"github.com/Spok95/storedesk/internal/domain/users"
	"github.com/Spok95/storedesk/internal/workspace"
)

/*** HELPERS ***/

func (b *Bot) answerCallback(cb *tgbotapi.CallbackQuery, text string, alert bool) error {
	resp := tgbotapi.NewCallback(cb.ID, text)
	resp.ShowAlert = alert
	_, err := b.api.Request(resp)
	return err
}

func (b *Bot) send(msg tgbotapi.Chattable) tgbotapi.Message {
	m, err := b.api.Send(msg)
	if err != nil {
		b.log.Error("send failed", "err", err)
	}
	return m
}

func (b *Bot) sendText(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

// show редактирует сообщение mid или, если mid == 0, отправляет новое. Возвращает id сообщения.
func (b *Bot) show(chatID int64, mid int, text string, kb tgbotapi.InlineKeyboardMarkup) int {
	if mid != 0 {
		b.send(tgbotapi.NewEditMessageTextAndMarkup(chatID, mid, text, kb))
		return mid
	}
	m := tgbotapi.NewMessage(chatID, text)
	m.ReplyMarkup = kb
	return b.send(m).MessageID
}

func (b *Bot) editTextAndClear(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(
		chatID, messageID, text,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}},
	)
	b.send(edit)
}

// clearPrevStep убрать inline-кнопки у прошлого шага, если он был
func (b *Bot) clearPrevStep(ctx context.Context, chatID int64) {
	st, _ := b.states.Get(ctx, chatID)
	if st == nil || st.Payload == nil {
		return
	}
	if mid, ok := dialog.GetFloat(st.Payload, "last_mid"); ok {
		rm := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
		b.send(tgbotapi.NewEditMessageReplyMarkup(chatID, int(mid), rm))
	}
}

// saveLastStep сохранить id текущего бот-сообщения как «последний»
func (b *Bot) saveLastStep(ctx context.Context, chatID int64, nextState dialog.State, payload dialog.Payload, newMID int) {
	if payload == nil {
		payload = dialog.Payload{}
	}
	payload["last_mid"] = float64(newMID)
	if err := b.states.Set(ctx, chatID, nextState, payload); err != nil {
		b.log.Error("save dialog state failed", "chat_id", chatID, "err", err)
	}
}

func (b *Bot) resetState(ctx context.Context, chatID int64) {
	if err := b.states.Reset(ctx, chatID); err != nil {
		b.log.Error("reset dialog state failed", "chat_id", chatID, "err", err)
	}
}

// member возвращает пользователя с выбранным магазином или сообщает, чего не хватает.
func (b *Bot) member(ctx context.Context, chatID, tgID int64) (*users.User, bool) {
	u, err := b.users.GetByTelegramID(ctx, tgID)
	if err != nil || u == nil {
		b.sendText(chatID, "Сначала наберите /start")
		return nil, false
	}
	if u.StoreID == "" {
		b.askStore(ctx, chatID)
		return nil, false
	}
	return u, true
}

// paid — то же, что member, но ещё требует действующую подписку (для изменений данных).
func (b *Bot) paid(ctx context.Context, chatID, tgID int64) (*users.User, bool) {
	u, ok := b.member(ctx, chatID, tgID)
	if !ok {
		return nil, false
	}
	if !u.HasPaidAccess(b.now()) {
		b.sendText(chatID, "Изменения доступны только с подпиской. Откройте «"+btnSubscription+"».")
		return nil, false
	}
	return u, true
}

func (b *Bot) space(ctx context.Context, chatID int64, u *users.User) (*workspace.Workspace, bool) {
	w, err := b.spaces.Get(ctx, u.StoreID)
	if err != nil {
		b.log.Error("workspace load failed", "store_id", u.StoreID, "err", err)
		b.sendText(chatID, "Не удалось загрузить данные магазина. Попробуйте позже.")
		return nil, false
	}
	return w, true
}

// reportError показывает пользователю ошибку операции. Об откатах сообщает
// уведомитель коллекции, поэтому здесь они только пишутся в лог.
func (b *Bot) reportError(chatID int64, op string, err error) {
	var fe *workspace.FollowUpError
	var ae *apperr.Error
	switch {
	case errors.As(err, &fe):
		b.log.Warn("follow-up rolled back", "op", op, "primary_id", fe.PrimaryID, "err", fe.Err)
		b.sendText(chatID, "Операция сохранена, но часть связанных изменений не применилась.")
	case apperr.IsKind(err, apperr.KindPrecondition) && errors.As(err, &ae):
		b.sendText(chatID, "Операция отклонена: "+ae.Err.Error())
	default:
		b.log.Warn("mutation rolled back", "op", op, "err", err)
	}
}

// parseAmount принимает и запятую, и точку. NaN и бесконечность — не суммы.
func parseAmount(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return v, nil
}

func money(v float64) string { return fmt.Sprintf("%.2f", v) }

// Бейдж ожидающей подтверждения сущности
func badge(pending bool) string {
	if pending {
		return "⏳ "
	}
	return ""
}
