package customers

import (
	"errors"
	"math"
	"time"
)

var ErrCreditLimit = errors.New("customers: credit limit exceeded")

type LedgerKind string

const (
	LedgerCharge  LedgerKind = "charge"  // покупка в долг
	LedgerPayment LedgerKind = "payment" // погашение
)

type LedgerItem struct {
	Date        time.Time  `json:"date"`
	Description string     `json:"description"`
	Amount      float64    `json:"amount"`
	Kind        LedgerKind `json:"kind"`
}

// CustomerAccount — счёт клиента («тетрадка»): Balance — текущий долг.
type CustomerAccount struct {
	ID          string       `json:"id"`
	StoreID     string       `json:"store_id"`
	Name        string       `json:"name"`
	Phone       string       `json:"phone,omitempty"`
	Balance     float64      `json:"balance"`
	CreditLimit float64      `json:"credit_limit"` // 0 — без лимита
	Items       []LedgerItem `json:"items"`
	LastUpdate  time.Time    `json:"last_update"`
}

func (a CustomerAccount) EntityID() string { return a.ID }

func (a CustomerAccount) AvailableCredit() float64 {
	if a.CreditLimit <= 0 {
		return math.Inf(1)
	}
	return round2(a.CreditLimit - a.Balance)
}

// Методы With* возвращают копию и никогда не дописывают в общий срез Items:
// старое значение может лежать в снимке для отката.

func (a CustomerAccount) WithCharge(amount float64, desc string, at time.Time) (CustomerAccount, error) {
	if a.CreditLimit > 0 && a.Balance+amount > a.CreditLimit {
		return a, ErrCreditLimit
	}
	out := a.withItem(LedgerItem{Date: at, Description: desc, Amount: amount, Kind: LedgerCharge})
	out.Balance = round2(a.Balance + amount)
	return out, nil
}

// WithPayment уменьшает долг; переплата не уводит баланс ниже нуля.
func (a CustomerAccount) WithPayment(amount float64, desc string, at time.Time) CustomerAccount {
	out := a.withItem(LedgerItem{Date: at, Description: desc, Amount: amount, Kind: LedgerPayment})
	out.Balance = math.Max(0, round2(a.Balance-amount))
	return out
}

// Settled — счёт полностью погашен.
func (a CustomerAccount) Settled(desc string, at time.Time) CustomerAccount {
	return a.WithPayment(a.Balance, desc, at)
}

func (a CustomerAccount) withItem(it LedgerItem) CustomerAccount {
	items := make([]LedgerItem, 0, len(a.Items)+1)
	items = append(items, a.Items...)
	a.Items = append(items, it)
	a.LastUpdate = it.Date
	return a
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
