package workspace

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Spok95/storedesk/internal/apperr"
	"github.com/Spok95/storedesk/internal/domain/catalog"
	"github.com/Spok95/storedesk/internal/domain/customers"
	"github.com/Spok95/storedesk/internal/domain/finance"
	"github.com/Spok95/storedesk/internal/domain/services"
	"github.com/Spok95/storedesk/internal/optimistic"
)

// Категории транзакций, которые создают составные операции.
const (
	CategorySale           = "sale"
	CategoryAccountPayment = "account_payment"
)

// FollowUpError — основная сущность подтверждена, но часть последующих шагов откатилась.
type FollowUpError struct {
	PrimaryID string
	Err       error
}

func (e *FollowUpError) Error() string {
	return fmt.Sprintf("workspace: %s confirmed, follow-up failed: %v", e.PrimaryID, e.Err)
}

func (e *FollowUpError) Unwrap() error { return e.Err }

type SaleLine struct {
	ProductID string
	Qty       float64
}

type Sale struct {
	Lines             []SaleLine
	Method            finance.Method
	CustomerAccountID string // обязателен для MethodCredit
	Description       string
}

// RecordSale создаёт доходную транзакцию, затем списывает остатки проданных товаров
// и, для продажи в долг, начисляет долг клиенту.
func (w *Workspace) RecordSale(ctx context.Context, s Sale, opts ...optimistic.MutationOption) (finance.Transaction, error) {
	if err := w.requireStore("record sale"); err != nil {
		return finance.Transaction{}, err
	}
	if len(s.Lines) == 0 {
		return finance.Transaction{}, apperr.Precondition("record sale", "empty sale")
	}

	var amount float64
	products := make([]catalog.Product, 0, len(s.Lines))
	for _, l := range s.Lines {
		p, ok := w.Products.Get(l.ProductID)
		if !ok || optimistic.IsTempID(l.ProductID) {
			return finance.Transaction{}, apperr.Precondition("record sale", "unknown product "+l.ProductID)
		}
		if !finite(l.Qty) || l.Qty <= 0 {
			return finance.Transaction{}, apperr.Precondition("record sale", "qty must be > 0")
		}
		amount += p.Price * l.Qty
		products = append(products, p)
	}

	var account customers.CustomerAccount
	if s.Method == finance.MethodCredit {
		a, ok := w.CustomerAccounts.Get(s.CustomerAccountID)
		if !ok {
			return finance.Transaction{}, apperr.Precondition("record sale", "credit sale needs a customer account")
		}
		if _, err := a.WithCharge(amount, s.Description, w.now()); err != nil {
			return finance.Transaction{}, apperr.Precondition("record sale", err.Error())
		}
		account = a
	}

	desc := s.Description
	if desc == "" {
		desc = saleDescription(products, s.Lines)
	}
	tx, err := w.Transactions.Create(ctx, finance.Transaction{
		StoreID:           w.storeID,
		Kind:              finance.KindIncome,
		Category:          CategorySale,
		Description:       desc,
		Amount:            amount,
		Method:            s.Method,
		CustomerAccountID: s.CustomerAccountID,
		Date:              w.now(),
	}, opts...)
	if err != nil {
		return finance.Transaction{}, err
	}

	var errs []error
	for _, l := range s.Lines {
		// берём актуальное значение: предыдущая строка могла изменить тот же товар
		p, ok := w.Products.Get(l.ProductID)
		if !ok {
			continue
		}
		if err := w.Products.Update(ctx, p.WithStockDelta(-l.Qty)); err != nil {
			errs = append(errs, err)
		}
	}
	if s.Method == finance.MethodCredit {
		if a, ok := w.CustomerAccounts.Get(account.ID); ok {
			charged, err := a.WithCharge(amount, desc, tx.Date)
			if err == nil {
				err = w.CustomerAccounts.Update(ctx, charged)
			}
			if err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return tx, &FollowUpError{PrimaryID: tx.ID, Err: errors.Join(errs...)}
	}
	return tx, nil
}

// SettleAccount погашает весь долг клиента одной транзакцией и обнуляет баланс.
func (w *Workspace) SettleAccount(ctx context.Context, accountID string, method finance.Method, opts ...optimistic.MutationOption) (finance.Transaction, error) {
	a, ok := w.CustomerAccounts.Get(accountID)
	if !ok {
		return finance.Transaction{}, apperr.Precondition("settle account", "unknown account "+accountID)
	}
	if a.Balance <= 0 {
		return finance.Transaction{}, apperr.Precondition("settle account", "nothing to settle")
	}
	return w.payAccount(ctx, a, a.Balance, method, "Погашение счёта: "+a.Name, opts...)
}

// PayDebt — частичная оплата долга.
func (w *Workspace) PayDebt(ctx context.Context, accountID string, amount float64, method finance.Method, opts ...optimistic.MutationOption) (finance.Transaction, error) {
	a, ok := w.CustomerAccounts.Get(accountID)
	if !ok {
		return finance.Transaction{}, apperr.Precondition("pay debt", "unknown account "+accountID)
	}
	if !finite(amount) || amount <= 0 {
		return finance.Transaction{}, apperr.Precondition("pay debt", "amount must be > 0")
	}
	return w.payAccount(ctx, a, amount, method, "Оплата долга: "+a.Name, opts...)
}

func (w *Workspace) payAccount(ctx context.Context, a customers.CustomerAccount, amount float64, method finance.Method, desc string, opts ...optimistic.MutationOption) (finance.Transaction, error) {
	if err := w.requireStore("pay account"); err != nil {
		return finance.Transaction{}, err
	}
	if method == finance.MethodCredit {
		return finance.Transaction{}, apperr.Precondition("pay account", "debt cannot be paid on credit")
	}
	tx, err := w.Transactions.Create(ctx, finance.Transaction{
		StoreID:           w.storeID,
		Kind:              finance.KindIncome,
		Category:          CategoryAccountPayment,
		Description:       desc,
		Amount:            amount,
		Method:            method,
		CustomerAccountID: a.ID,
		Date:              w.now(),
	}, opts...)
	if err != nil {
		return finance.Transaction{}, err
	}

	cur, ok := w.CustomerAccounts.Get(a.ID)
	if !ok {
		return tx, &FollowUpError{PrimaryID: tx.ID, Err: fmt.Errorf("account %s disappeared", a.ID)}
	}
	if err := w.CustomerAccounts.Update(ctx, cur.WithPayment(amount, desc, tx.Date)); err != nil {
		return tx, &FollowUpError{PrimaryID: tx.ID, Err: err}
	}
	return tx, nil
}

// CloseCash считает закрытие кассы за день по подтверждённым транзакциям и сохраняет его.
func (w *Workspace) CloseCash(ctx context.Context, opening, counted float64, day time.Time, notes, closedBy string, opts ...optimistic.MutationOption) (finance.CashClosing, error) {
	if err := w.requireStore("close cash"); err != nil {
		return finance.CashClosing{}, err
	}
	if !finite(opening) || !finite(counted) || opening < 0 || counted < 0 {
		return finance.CashClosing{}, apperr.Precondition("close cash", "amounts must be >= 0")
	}
	c := finance.CloseCash(opening, counted, w.Transactions.Entities(), day)
	c.StoreID = w.storeID
	c.Notes = notes
	c.ClosedBy = closedBy
	return w.CashClosings.Create(ctx, c, opts...)
}

// AdjustStock — ручная корректировка остатка (приход или списание).
func (w *Workspace) AdjustStock(ctx context.Context, productID string, delta float64, opts ...optimistic.MutationOption) error {
	p, ok := w.Products.Get(productID)
	if !ok {
		return apperr.Precondition("adjust stock", "unknown product "+productID)
	}
	if !finite(delta) || delta == 0 {
		return apperr.Precondition("adjust stock", "delta must be a non-zero number")
	}
	return w.Products.Update(ctx, p.WithStockDelta(delta), opts...)
}

func (w *Workspace) AdvanceServiceOrder(ctx context.Context, orderID string, to services.Status, opts ...optimistic.MutationOption) error {
	o, ok := w.ServiceOrders.Get(orderID)
	if !ok {
		return apperr.Precondition("advance service order", "unknown order "+orderID)
	}
	next, err := o.WithStatus(to, w.now())
	if err != nil {
		return apperr.Precondition("advance service order", err.Error())
	}
	return w.ServiceOrders.Update(ctx, next, opts...)
}

func saleDescription(products []catalog.Product, lines []SaleLine) string {
	if len(products) == 1 {
		return fmt.Sprintf("Продажа: %s × %g", products[0].Name, lines[0].Qty)
	}
	return fmt.Sprintf("Продажа: %d позиций", len(products))
}

// finite — JSON не умеет NaN и ±Inf, такие значения отсекаются до спекулятивного применения.
func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
