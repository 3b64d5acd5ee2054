package dialog

type State string

const (
	StateIdle State = "idle"

	// Регистрация
	StateAwaitStore State = "await_store" // ввод id магазина
	StateAwaitEmail State = "await_email" // email для оплаты подписки

	// Товары
	StateProdList     State = "prod_list"
	StateProdItem     State = "prod_item"      // карточка товара
	StateProdDelete   State = "prod_delete"    // подтверждение удаления
	StateProdStockQty State = "prod_stock_qty" // ввод изменения остатка (+5 / -2)
	StateProdNewName  State = "prod_new_name"
	StateProdNewPrice State = "prod_new_price"

	// Продажа
	StateSalePick   State = "sale_pick"
	StateSaleQty    State = "sale_qty"
	StateSaleMethod State = "sale_method"

	// Клиенты и долги
	StateAccList    State = "acc_list"
	StateAccItem    State = "acc_item"
	StateAccPayDebt State = "acc_pay_debt" // ввод суммы частичной оплаты

	// Финансы
	StateFinance     State = "finance"
	StateCashOpening State = "cash_opening" // закрытие кассы: сумма на начало дня
	StateCashCounted State = "cash_counted" // закрытие кассы: пересчитанная сумма

	// Подписка
	StateSubscription State = "subscription"
)

type Payload map[string]any

type Item struct {
	ChatID  int64
	State   State
	Payload Payload
}
