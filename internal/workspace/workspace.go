// Package workspace держит коллекции сущностей одного магазина и составные операции над ними.
package workspace

import (
	"context"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Spok95/storedesk/internal/apperr"
	"github.com/Spok95/storedesk/internal/domain/catalog"
	"github.com/Spok95/storedesk/internal/domain/customers"
	"github.com/Spok95/storedesk/internal/domain/finance"
	"github.com/Spok95/storedesk/internal/domain/services"
	"github.com/Spok95/storedesk/internal/infra/backend"
	"github.com/Spok95/storedesk/internal/infra/metrics"
	"github.com/Spok95/storedesk/internal/infra/notify"
	"github.com/Spok95/storedesk/internal/optimistic"
)

type Deps struct {
	API      backend.Accessor
	Log      *slog.Logger
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

type Workspace struct {
	storeID string
	api     backend.Accessor
	log     *slog.Logger
	notify  notify.Notifier
	metrics *metrics.Metrics
	now     func() time.Time

	Transactions     *Resource[finance.Transaction]
	CustomerAccounts *Resource[customers.CustomerAccount]
	Products         *Resource[catalog.Product]
	Suppliers        *Resource[catalog.Supplier]
	ServiceOrders    *Resource[services.ServiceOrder]
	BankAccounts     *Resource[finance.BankAccount]
	CashClosings     *Resource[finance.CashClosing]
}

func New(storeID string, d Deps) *Workspace {
	if d.Log == nil {
		d.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	w := &Workspace{
		storeID: storeID,
		api:     d.API,
		log:     d.Log.With("store_id", storeID),
		notify:  d.Notifier,
		metrics: d.Metrics,
		now:     d.Now,
	}
	// журналы (транзакции, заказы, закрытия) показываются свежими сверху
	w.Transactions = newResource[finance.Transaction](w, backend.ResourceTransactions, optimistic.WithPrepend(),
		optimistic.WithFailureMessage("Не удалось сохранить операцию, она убрана из журнала."))
	w.CustomerAccounts = newResource[customers.CustomerAccount](w, backend.ResourceCustomerAccounts,
		optimistic.WithFailureMessage("Не удалось обновить счёт клиента, изменения отменены."))
	w.Products = newResource[catalog.Product](w, backend.ResourceProducts,
		optimistic.WithFailureMessage("Не удалось сохранить товар, изменения отменены."))
	w.Suppliers = newResource[catalog.Supplier](w, backend.ResourceSuppliers,
		optimistic.WithFailureMessage("Не удалось сохранить поставщика, изменения отменены."))
	w.ServiceOrders = newResource[services.ServiceOrder](w, backend.ResourceServiceOrders, optimistic.WithPrepend(),
		optimistic.WithFailureMessage("Не удалось сохранить заказ, изменения отменены."))
	w.BankAccounts = newResource[finance.BankAccount](w, backend.ResourceBankAccounts)
	w.CashClosings = newResource[finance.CashClosing](w, backend.ResourceCashClosings, optimistic.WithPrepend(),
		optimistic.WithFailureMessage("Не удалось сохранить закрытие кассы."))
	return w
}

func (w *Workspace) StoreID() string { return w.storeID }

// Load загружает все коллекции параллельно.
func (w *Workspace) Load(ctx context.Context) error {
	if err := w.requireStore("load"); err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Transactions.load(ctx) })
	g.Go(func() error { return w.CustomerAccounts.load(ctx) })
	g.Go(func() error { return w.Products.load(ctx) })
	g.Go(func() error { return w.Suppliers.load(ctx) })
	g.Go(func() error { return w.ServiceOrders.load(ctx) })
	g.Go(func() error { return w.BankAccounts.load(ctx) })
	g.Go(func() error { return w.CashClosings.load(ctx) })
	if err := g.Wait(); err != nil {
		return err
	}
	w.log.Info("workspace loaded",
		"transactions", w.Transactions.Len(),
		"products", w.Products.Len(),
		"customer_accounts", w.CustomerAccounts.Len(),
	)
	return nil
}

func (w *Workspace) requireStore(op string) error {
	if w.storeID == "" {
		return apperr.Precondition(op, "no store selected")
	}
	return nil
}

// Summary — финансовая сводка по подтверждённым транзакциям.
func (w *Workspace) Summary(from, to time.Time) finance.Summary {
	return finance.Summarize(w.Transactions.Entities(), from, to)
}

func (w *Workspace) LowStock() []catalog.Product {
	var out []catalog.Product
	for _, p := range w.Products.Entities() {
		if p.Active && p.LowStock() {
			out = append(out, p)
		}
	}
	return out
}
