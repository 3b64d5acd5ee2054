package finance

import "time"

type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

type Method string

const (
	MethodCash     Method = "cash"
	MethodCard     Method = "card"
	MethodPix      Method = "pix"
	MethodTransfer Method = "transfer"
	MethodCredit   Method = "credit" // в долг, на счёт клиента
)

type Transaction struct {
	ID                string    `json:"id"`
	StoreID           string    `json:"store_id"`
	Kind              Kind      `json:"kind"`
	Category          string    `json:"category"`
	Description       string    `json:"description"`
	Amount            float64   `json:"amount"`
	Method            Method    `json:"method"`
	CustomerAccountID string    `json:"customer_account_id,omitempty"`
	Date              time.Time `json:"date"`
}

func (t Transaction) EntityID() string { return t.ID }

type BankAccount struct {
	ID         string    `json:"id"`
	StoreID    string    `json:"store_id"`
	Name       string    `json:"name"`
	Bank       string    `json:"bank"`
	Balance    float64   `json:"balance"`
	LastUpdate time.Time `json:"last_update"`
}

func (b BankAccount) EntityID() string { return b.ID }

// CashClosing — закрытие кассы за день.
type CashClosing struct {
	ID         string    `json:"id"`
	StoreID    string    `json:"store_id"`
	Date       time.Time `json:"date"`
	Opening    float64   `json:"opening"`
	CashIn     float64   `json:"cash_in"`
	CashOut    float64   `json:"cash_out"`
	Expected   float64   `json:"expected"`
	Counted    float64   `json:"counted"`
	Difference float64   `json:"difference"` // counted - expected
	Notes      string    `json:"notes,omitempty"`
	ClosedBy   string    `json:"closed_by,omitempty"`
}

func (c CashClosing) EntityID() string { return c.ID }
