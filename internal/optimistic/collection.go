package optimistic

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/Spok95/storedesk/internal/apperr"
	"github.com/Spok95/storedesk/internal/infra/metrics"
	"github.com/Spok95/storedesk/internal/infra/notify"
)

const defaultFailureMessage = "Не удалось сохранить изменения. Попробуйте ещё раз."

type (
	CreateFunc[T Entity] func(ctx context.Context, e T) (T, error)
	UpdateFunc[T Entity] func(ctx context.Context, e T) error
	DeleteFunc           func(ctx context.Context, id string) error
)

// Collection — контейнер состояния одной коллекции сущностей магазина.
//
// Мутации одной коллекции выполняются строго по очереди: семафор берётся до снимка
// и отпускается после фиксации или отката. Чтение (Items, Get) не ждёт семафор
// и видит спекулятивное состояние.
type Collection[T Entity] struct {
	name       string
	storeID    string
	prepend    bool
	failureMsg string
	newID      func() string

	log     *slog.Logger
	notify  notify.Notifier
	metrics *metrics.Metrics
	tracer  trace.Tracer

	sem *semaphore.Weighted

	mu    sync.RWMutex
	items []Item[T]
}

type Option func(*options)

type options struct {
	storeID    string
	prepend    bool
	failureMsg string
	newID      func() string
	log        *slog.Logger
	notify     notify.Notifier
	metrics    *metrics.Metrics
}

// WithPrepend — новые сущности добавляются в начало (списки «свежие сверху»).
func WithPrepend() Option { return func(o *options) { o.prepend = true } }

func WithStoreID(id string) Option { return func(o *options) { o.storeID = id } }

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.log = l } }

func WithNotifier(n notify.Notifier) Option { return func(o *options) { o.notify = n } }

func WithMetrics(m *metrics.Metrics) Option { return func(o *options) { o.metrics = m } }

func WithFailureMessage(msg string) Option { return func(o *options) { o.failureMsg = msg } }

// WithIDGenerator подменяет генератор временных id (в тестах).
func WithIDGenerator(fn func() string) Option { return func(o *options) { o.newID = fn } }

func NewCollection[T Entity](name string, opts ...Option) *Collection[T] {
	o := options{
		failureMsg: defaultFailureMessage,
		newID:      NewTempID,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, fn := range opts {
		fn(&o)
	}
	return &Collection[T]{
		name:       name,
		storeID:    o.storeID,
		prepend:    o.prepend,
		failureMsg: o.failureMsg,
		newID:      o.newID,
		log:        o.log.With("collection", name),
		notify:     o.notify,
		metrics:    o.metrics,
		tracer:     otel.Tracer("github.com/Spok95/storedesk/internal/optimistic"),
		sem:        semaphore.NewWeighted(1),
	}
}

func (c *Collection[T]) Name() string { return c.name }

// Items возвращает копию текущего (возможно спекулятивного) состояния.
func (c *Collection[T]) Items() []Item[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Item[T], len(c.items))
	copy(out, c.items)
	return out
}

// Entities — только подтверждённые сервером сущности, в порядке коллекции.
func (c *Collection[T]) Entities() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, 0, len(c.items))
	for _, it := range c.items {
		if !it.IsPending() {
			out = append(out, it.Entity)
		}
	}
	return out
}

func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, it := range c.items {
		if it.ID() == id {
			return it.Entity, true
		}
	}
	var zero T
	return zero, false
}

func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Replace целиком заменяет коллекцию (загрузка с сервера). Ждёт текущую мутацию.
func (c *Collection[T]) Replace(ctx context.Context, entities []T) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.sem.Release(1)

	items := make([]Item[T], 0, len(entities))
	for _, e := range entities {
		items = append(items, Confirmed(e))
	}
	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
	return nil
}

// Create: временный id, спекулятивное добавление, remote, затем подмена
// временного элемента ответом сервера или откат.
func (c *Collection[T]) Create(ctx context.Context, e T, remote CreateFunc[T], opts ...MutationOption) (T, error) {
	var zero T
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	defer c.sem.Release(1)

	ctx, span := c.startSpan(ctx, "create")
	defer span.End()
	m := newMutation(opts)
	start := time.Now()

	localID := c.newID()
	snapshot := c.swap(func(items []Item[T]) []Item[T] {
		return applyCreate(items, Pending(localID, e), c.prepend)
	})
	m.to(StateSpeculativeApplied)

	saved, err := remote(ctx, e)
	if err == nil && saved.EntityID() == "" {
		err = apperr.EmptyResponse("create", c.name)
	}
	if err != nil {
		c.rollback(ctx, span, m, "create", snapshot, err, start)
		return zero, err
	}

	c.swap(func(items []Item[T]) []Item[T] { return commitCreate(items, localID, saved) })
	c.confirm(span, m, "create", start)
	return saved, nil
}

// Update заменяет сущность на месте; успешный ответ сервера — только подтверждение.
func (c *Collection[T]) Update(ctx context.Context, e T, remote UpdateFunc[T], opts ...MutationOption) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.sem.Release(1)

	ctx, span := c.startSpan(ctx, "update")
	defer span.End()
	m := newMutation(opts)
	start := time.Now()

	var found bool
	snapshot := c.swap(func(items []Item[T]) []Item[T] {
		var next []Item[T]
		next, found = applyUpdate(items, e)
		return next
	})
	if !found {
		err := apperr.Precondition("update", c.name+": no confirmed entity "+e.EntityID())
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	m.to(StateSpeculativeApplied)

	if err := remote(ctx, e); err != nil {
		c.rollback(ctx, span, m, "update", snapshot, err, start)
		return err
	}
	c.confirm(span, m, "update", start)
	return nil
}

func (c *Collection[T]) Delete(ctx context.Context, id string, remote DeleteFunc, opts ...MutationOption) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.sem.Release(1)

	ctx, span := c.startSpan(ctx, "delete")
	defer span.End()
	m := newMutation(opts)
	start := time.Now()

	var found bool
	snapshot := c.swap(func(items []Item[T]) []Item[T] {
		var next []Item[T]
		next, found = applyDelete(items, id)
		return next
	})
	if !found {
		err := apperr.Precondition("delete", c.name+": no confirmed entity "+id)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	m.to(StateSpeculativeApplied)

	if err := remote(ctx, id); err != nil {
		c.rollback(ctx, span, m, "delete", snapshot, err, start)
		return err
	}
	c.confirm(span, m, "delete", start)
	return nil
}

// swap применяет переход и возвращает предыдущее состояние (снимок).
func (c *Collection[T]) swap(next func([]Item[T]) []Item[T]) []Item[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.items
	c.items = next(prev)
	return prev
}

func (c *Collection[T]) rollback(ctx context.Context, span trace.Span, m *mutation, op string, snapshot []Item[T], cause error, start time.Time) {
	c.mu.Lock()
	c.items = snapshot
	c.mu.Unlock()
	m.to(StateRolledBack)

	span.RecordError(cause)
	span.SetStatus(codes.Error, string(apperr.KindOf(cause)))
	c.metrics.ObserveMutation(c.name, op, string(StateRolledBack), time.Since(start))
	// откат после ошибки, которая не должна была дойти до remote, — повод разбираться
	level := slog.LevelWarn
	if !apperr.Rollbackable(cause) {
		level = slog.LevelError
	}
	c.log.Log(ctx, level, "mutation rolled back", "op", op, "store_id", c.storeID, "kind", apperr.KindOf(cause), "err", cause)

	if c.notify == nil {
		return
	}
	msg := c.failureMsg
	if m.failureMsg != "" {
		msg = m.failureMsg
	}
	// ctx мог быть отменён — уведомление всё равно нужно доставить
	nctx := context.WithoutCancel(ctx)
	if err := c.notify.Notify(nctx, notify.Notification{StoreID: c.storeID, Level: notify.LevelError, Message: msg}); err != nil {
		c.log.Error("failure notification not delivered", "err", err)
	}
}

func (c *Collection[T]) confirm(span trace.Span, m *mutation, op string, start time.Time) {
	m.to(StateConfirmed)
	span.SetStatus(codes.Ok, "")
	c.metrics.ObserveMutation(c.name, op, string(StateConfirmed), time.Since(start))
	c.log.Debug("mutation confirmed", "op", op, "store_id", c.storeID)
}

func (c *Collection[T]) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "optimistic."+op, trace.WithAttributes(
		attribute.String("collection", c.name),
		attribute.String("store_id", c.storeID),
	))
}
