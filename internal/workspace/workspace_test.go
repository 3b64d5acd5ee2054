package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/storedesk/internal/apperr"
	"github.com/Spok95/storedesk/internal/domain/catalog"
	"github.com/Spok95/storedesk/internal/domain/customers"
	"github.com/Spok95/storedesk/internal/domain/finance"
	"github.com/Spok95/storedesk/internal/domain/services"
	"github.com/Spok95/storedesk/internal/infra/backend"
	"github.com/Spok95/storedesk/internal/infra/notify"
	"github.com/Spok95/storedesk/internal/optimistic"
)

var fixedNow = time.Date(2026, 4, 15, 14, 30, 0, 0, time.UTC)

type fakeAPI struct {
	mu     sync.Mutex
	data   map[string][]json.RawMessage
	fail   map[string]error // ключ "op resource"
	calls  []string
	nextID int
	delay  time.Duration
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{data: make(map[string][]json.RawMessage), fail: make(map[string]error)}
}

func (f *fakeAPI) seed(t *testing.T, resource string, items ...any) {
	t.Helper()
	for _, it := range items {
		raw, err := json.Marshal(it)
		require.NoError(t, err)
		f.data[resource] = append(f.data[resource], raw)
	}
}

func (f *fakeAPI) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.fail[call]
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) Fetch(_ context.Context, storeID, resource string) ([]json.RawMessage, error) {
	time.Sleep(f.delay)
	if err := f.record("fetch " + resource); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[resource], nil
}

func (f *fakeAPI) Create(_ context.Context, storeID, resource string, payload any) (json.RawMessage, error) {
	if err := f.record("create " + resource); err != nil {
		return nil, err
	}
	raw, _ := json.Marshal(payload)
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	f.mu.Lock()
	f.nextID++
	m["id"] = fmt.Sprintf("srv%d", f.nextID)
	f.mu.Unlock()
	return json.Marshal(m)
}

func (f *fakeAPI) Update(_ context.Context, resource, id string, _ any) (json.RawMessage, error) {
	return nil, f.record("update " + resource)
}

func (f *fakeAPI) Delete(_ context.Context, resource, id string) error {
	return f.record("delete " + resource)
}

var errDown = apperr.Network("remote", "", 503, nil)

func newLoaded(t *testing.T, api *fakeAPI) *Workspace {
	t.Helper()
	w := New("s1", Deps{API: api, Now: func() time.Time { return fixedNow }})
	require.NoError(t, w.Load(context.Background()))
	return w
}

func seedShop(t *testing.T, api *fakeAPI) {
	api.seed(t, backend.ResourceProducts,
		catalog.Product{ID: "p1", Name: "Cola", Price: 5, Stock: 10, MinStock: 2, Active: true},
		catalog.Product{ID: "p2", Name: "Chips", Price: 3, Stock: 3, MinStock: 3, Active: true},
	)
	api.seed(t, backend.ResourceCustomerAccounts,
		customers.CustomerAccount{ID: "c1", Name: "Ana", Balance: 40, CreditLimit: 100},
	)
	api.seed(t, backend.ResourceServiceOrders,
		services.ServiceOrder{ID: "o1", Device: "phone", Status: services.StatusOpen},
	)
}

func TestLoad(t *testing.T) {
	api := newFakeAPI()
	seedShop(t, api)
	w := newLoaded(t, api)

	assert.Equal(t, 2, w.Products.Len())
	assert.Equal(t, 1, w.CustomerAccounts.Len())
	assert.Equal(t, 0, w.Transactions.Len())
	assert.Len(t, api.Calls(), 7)
	assert.Equal(t, []catalog.Product{{ID: "p2", Name: "Chips", Price: 3, Stock: 3, MinStock: 3, Active: true}}, w.LowStock())
}

func TestLoadFailure(t *testing.T) {
	api := newFakeAPI()
	api.fail["fetch "+backend.ResourceSuppliers] = errDown
	w := New("s1", Deps{API: api})
	assert.Error(t, w.Load(context.Background()))
}

func TestCreateWithoutStoreFailsFast(t *testing.T) {
	api := newFakeAPI()
	w := New("", Deps{API: api})

	_, err := w.Products.Create(context.Background(), catalog.Product{Name: "X"})

	assert.True(t, apperr.IsKind(err, apperr.KindPrecondition))
	assert.Empty(t, api.Calls())
	assert.Equal(t, 0, w.Products.Len())

	_, err = w.RecordSale(context.Background(), Sale{Lines: []SaleLine{{ProductID: "p1", Qty: 1}}})
	assert.True(t, apperr.IsKind(err, apperr.KindPrecondition))
	assert.Error(t, w.Load(context.Background()))
	assert.Empty(t, api.Calls())
}

func TestCreateSupplierReplacesTempID(t *testing.T) {
	api := newFakeAPI()
	w := newLoaded(t, api)

	saved, err := w.Suppliers.Create(context.Background(), catalog.Supplier{Name: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "srv1", saved.ID)
	assert.Equal(t, []catalog.Supplier{{ID: "srv1", Name: "Acme"}}, w.Suppliers.Entities())
}

func TestRecordSale(t *testing.T) {
	api := newFakeAPI()
	seedShop(t, api)
	w := newLoaded(t, api)

	tx, err := w.RecordSale(context.Background(), Sale{
		Lines:  []SaleLine{{ProductID: "p1", Qty: 2}, {ProductID: "p2", Qty: 1}, {ProductID: "p1", Qty: 1}},
		Method: finance.MethodCash,
	})
	require.NoError(t, err)

	assert.Equal(t, 18.0, tx.Amount)
	assert.Equal(t, finance.KindIncome, tx.Kind)
	assert.Equal(t, fixedNow, tx.Date)
	p1, _ := w.Products.Get("p1")
	p2, _ := w.Products.Get("p2")
	assert.Equal(t, 7.0, p1.Stock)
	assert.Equal(t, 2.0, p2.Stock)
	assert.Equal(t, []finance.Transaction{tx}, w.Transactions.Entities())
}

func TestRecordSalePrimaryFailureChangesNothing(t *testing.T) {
	api := newFakeAPI()
	seedShop(t, api)
	w := newLoaded(t, api)
	api.fail["create "+backend.ResourceTransactions] = errDown
	before := w.Products.Items()

	_, err := w.RecordSale(context.Background(), Sale{Lines: []SaleLine{{ProductID: "p1", Qty: 1}}, Method: finance.MethodCash})

	require.Error(t, err)
	assert.Equal(t, 0, w.Transactions.Len())
	assert.Equal(t, before, w.Products.Items())
	assert.NotContains(t, api.Calls(), "update "+backend.ResourceProducts)
}

func TestRecordSaleFollowUpFailureKeepsTransaction(t *testing.T) {
	api := newFakeAPI()
	seedShop(t, api)
	w := newLoaded(t, api)
	api.fail["update "+backend.ResourceProducts] = errDown

	tx, err := w.RecordSale(context.Background(), Sale{Lines: []SaleLine{{ProductID: "p1", Qty: 4}}, Method: finance.MethodCard})

	var fu *FollowUpError
	require.ErrorAs(t, err, &fu)
	assert.Equal(t, tx.ID, fu.PrimaryID)
	assert.Equal(t, 1, w.Transactions.Len())
	p1, _ := w.Products.Get("p1")
	assert.Equal(t, 10.0, p1.Stock)
}

func TestRecordSaleOnCredit(t *testing.T) {
	api := newFakeAPI()
	seedShop(t, api)
	w := newLoaded(t, api)

	_, err := w.RecordSale(context.Background(), Sale{
		Lines:             []SaleLine{{ProductID: "p1", Qty: 2}},
		Method:            finance.MethodCredit,
		CustomerAccountID: "c1",
	})
	require.NoError(t, err)
	a, _ := w.CustomerAccounts.Get("c1")
	assert.Equal(t, 50.0, a.Balance)
	require.Len(t, a.Items, 1)
	assert.Equal(t, customers.LedgerCharge, a.Items[0].Kind)

	// превышение лимита отсекается до любых изменений
	calls := len(api.Calls())
	_, err = w.RecordSale(context.Background(), Sale{
		Lines:             []SaleLine{{ProductID: "p1", Qty: 20}},
		Method:            finance.MethodCredit,
		CustomerAccountID: "c1",
	})
	assert.True(t, apperr.IsKind(err, apperr.KindPrecondition))
	assert.Len(t, api.Calls(), calls)
}

func TestRecordSaleValidation(t *testing.T) {
	api := newFakeAPI()
	seedShop(t, api)
	w := newLoaded(t, api)

	for _, s := range []Sale{
		{},
		{Lines: []SaleLine{{ProductID: "nope", Qty: 1}}},
		{Lines: []SaleLine{{ProductID: "p1", Qty: 0}}},
		{Lines: []SaleLine{{ProductID: "p1", Qty: 1}}, Method: finance.MethodCredit},
	} {
		_, err := w.RecordSale(context.Background(), s)
		assert.True(t, apperr.IsKind(err, apperr.KindPrecondition), "sale %+v", s)
	}
}

func TestNonFiniteAmountsFailBeforeApply(t *testing.T) {
	api := newFakeAPI()
	seedShop(t, api)
	w := newLoaded(t, api)
	calls := len(api.Calls())
	txs := w.Transactions.Len()
	ctx := context.Background()

	for _, q := range []float64{math.NaN(), math.Inf(1)} {
		_, err := w.RecordSale(ctx, Sale{Lines: []SaleLine{{ProductID: "p1", Qty: q}}, Method: finance.MethodCash})
		assert.True(t, apperr.IsKind(err, apperr.KindPrecondition), "qty %v", q)
	}
	_, err := w.PayDebt(ctx, "c1", math.NaN(), finance.MethodCash)
	assert.True(t, apperr.IsKind(err, apperr.KindPrecondition))
	_, err = w.PayDebt(ctx, "c1", math.Inf(1), finance.MethodCash)
	assert.True(t, apperr.IsKind(err, apperr.KindPrecondition))
	_, err = w.CloseCash(ctx, 10, math.Inf(-1), fixedNow, "", "ana")
	assert.True(t, apperr.IsKind(err, apperr.KindPrecondition))
	err = w.AdjustStock(ctx, "p2", math.NaN())
	assert.True(t, apperr.IsKind(err, apperr.KindPrecondition))

	assert.Len(t, api.Calls(), calls)
	assert.Equal(t, txs, w.Transactions.Len())
	a, _ := w.CustomerAccounts.Get("c1")
	assert.Equal(t, 40.0, a.Balance)
	p2, _ := w.Products.Get("p2")
	assert.Equal(t, 3.0, p2.Stock)
}

func TestSettleAccount(t *testing.T) {
	api := newFakeAPI()
	seedShop(t, api)
	w := newLoaded(t, api)

	tx, err := w.SettleAccount(context.Background(), "c1", finance.MethodPix)
	require.NoError(t, err)

	assert.Equal(t, 40.0, tx.Amount)
	assert.Equal(t, CategoryAccountPayment, tx.Category)
	a, _ := w.CustomerAccounts.Get("c1")
	assert.Equal(t, 0.0, a.Balance)
	require.Len(t, a.Items, 1)
	assert.Equal(t, customers.LedgerPayment, a.Items[0].Kind)

	_, err = w.SettleAccount(context.Background(), "c1", finance.MethodPix)
	assert.True(t, apperr.IsKind(err, apperr.KindPrecondition))
}

func TestPayDebtFollowUpRollback(t *testing.T) {
	api := newFakeAPI()
	seedShop(t, api)
	w := newLoaded(t, api)
	api.fail["update "+backend.ResourceCustomerAccounts] = errDown

	_, err := w.PayDebt(context.Background(), "c1", 15, finance.MethodCash)

	var fu *FollowUpError
	require.ErrorAs(t, err, &fu)
	a, _ := w.CustomerAccounts.Get("c1")
	assert.Equal(t, 40.0, a.Balance)
	assert.Empty(t, a.Items)
	assert.Equal(t, 1, w.Transactions.Len())

	_, err = w.PayDebt(context.Background(), "c1", 5, finance.MethodCredit)
	assert.True(t, apperr.IsKind(err, apperr.KindPrecondition))
}

func TestCloseCash(t *testing.T) {
	api := newFakeAPI()
	api.seed(t, backend.ResourceTransactions,
		finance.Transaction{ID: "t1", Kind: finance.KindIncome, Amount: 120, Method: finance.MethodCash, Date: fixedNow.Add(-time.Hour)},
		finance.Transaction{ID: "t2", Kind: finance.KindExpense, Amount: 20, Method: finance.MethodCash, Date: fixedNow.Add(-2 * time.Hour)},
		finance.Transaction{ID: "t3", Kind: finance.KindIncome, Amount: 70, Method: finance.MethodCard, Date: fixedNow},
	)
	w := newLoaded(t, api)

	c, err := w.CloseCash(context.Background(), 50, 148, fixedNow, "", "ana")
	require.NoError(t, err)
	assert.Equal(t, 150.0, c.Expected)
	assert.Equal(t, -2.0, c.Difference)
	assert.Equal(t, "s1", c.StoreID)
	assert.NotEmpty(t, c.ID)

	s := w.Summary(time.Time{}, time.Time{})
	assert.Equal(t, 190.0, s.Revenue)
	assert.Equal(t, 170.0, s.Profit)
}

func TestAdjustStockAndServiceOrder(t *testing.T) {
	api := newFakeAPI()
	seedShop(t, api)
	w := newLoaded(t, api)

	require.NoError(t, w.AdjustStock(context.Background(), "p2", 5))
	p2, _ := w.Products.Get("p2")
	assert.Equal(t, 8.0, p2.Stock)

	require.NoError(t, w.AdvanceServiceOrder(context.Background(), "o1", services.StatusInProgress))
	err := w.AdvanceServiceOrder(context.Background(), "o1", services.StatusDelivered)
	assert.True(t, apperr.IsKind(err, apperr.KindPrecondition))
	o, _ := w.ServiceOrders.Get("o1")
	assert.Equal(t, services.StatusInProgress, o.Status)
}

func TestDeleteProductRollback(t *testing.T) {
	api := newFakeAPI()
	seedShop(t, api)
	w := newLoaded(t, api)
	api.fail["delete "+backend.ResourceProducts] = errDown

	require.Error(t, w.Products.Delete(context.Background(), "p1"))
	ids := []string{}
	for _, p := range w.Products.Entities() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"p1", "p2"}, ids)
}

func TestManagerLoadsStoreOnce(t *testing.T) {
	api := newFakeAPI()
	api.delay = 20 * time.Millisecond
	m := NewManager(Deps{API: api})

	var wg sync.WaitGroup
	got := make([]*Workspace, 5)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w, err := m.Get(context.Background(), "s1")
			assert.NoError(t, err)
			got[i] = w
		}(i)
	}
	wg.Wait()

	for _, w := range got {
		assert.Same(t, got[0], w)
	}
	assert.Len(t, api.Calls(), 7)

	m.Evict("s1")
	_, err := m.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, api.Calls(), 14)

	_, err = m.Get(context.Background(), "")
	assert.True(t, apperr.IsKind(err, apperr.KindPrecondition))
}

func TestRollbackUsesResourceMessage(t *testing.T) {
	api := newFakeAPI()
	seedShop(t, api)
	var mu sync.Mutex
	var got []string
	n := notify.Func(func(_ context.Context, nt notify.Notification) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, nt.Message)
		return nil
	})
	w := New("s1", Deps{API: api, Notifier: n, Now: func() time.Time { return fixedNow }})
	require.NoError(t, w.Load(context.Background()))
	api.fail["update "+backend.ResourceProducts] = errDown

	require.Error(t, w.AdjustStock(context.Background(), "p1", 2))
	require.Error(t, w.AdjustStock(context.Background(), "p1", 2, optimistic.FailureMessage("своё сообщение")))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Не удалось сохранить товар, изменения отменены.", "своё сообщение"}, got)
}
