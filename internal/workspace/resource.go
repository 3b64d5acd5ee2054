package workspace

import (
	"context"

	"github.com/Spok95/storedesk/internal/infra/backend"
	"github.com/Spok95/storedesk/internal/optimistic"
)

// Resource связывает коллекцию с ресурсом бэкенда.
type Resource[T optimistic.Entity] struct {
	*optimistic.Collection[T]
	name string
	ws   *Workspace
}

func newResource[T optimistic.Entity](ws *Workspace, name string, opts ...optimistic.Option) *Resource[T] {
	opts = append([]optimistic.Option{
		optimistic.WithStoreID(ws.storeID),
		optimistic.WithLogger(ws.log),
		optimistic.WithNotifier(ws.notify),
		optimistic.WithMetrics(ws.metrics),
	}, opts...)
	return &Resource[T]{
		Collection: optimistic.NewCollection[T](name, opts...),
		name:       name,
		ws:         ws,
	}
}

func (r *Resource[T]) load(ctx context.Context) error {
	items, err := backend.FetchAll[T](ctx, r.ws.api, r.ws.storeID, r.name)
	if err != nil {
		return err
	}
	return r.Replace(ctx, items)
}

func (r *Resource[T]) Create(ctx context.Context, e T, opts ...optimistic.MutationOption) (T, error) {
	if err := r.ws.requireStore("create " + r.name); err != nil {
		var zero T
		return zero, err
	}
	return r.Collection.Create(ctx, e, func(ctx context.Context, e T) (T, error) {
		return backend.CreateAs(ctx, r.ws.api, r.ws.storeID, r.name, e)
	}, opts...)
}

func (r *Resource[T]) Update(ctx context.Context, e T, opts ...optimistic.MutationOption) error {
	if err := r.ws.requireStore("update " + r.name); err != nil {
		return err
	}
	return r.Collection.Update(ctx, e, func(ctx context.Context, e T) error {
		_, err := r.ws.api.Update(ctx, r.name, e.EntityID(), e)
		return err
	}, opts...)
}

func (r *Resource[T]) Delete(ctx context.Context, id string, opts ...optimistic.MutationOption) error {
	if err := r.ws.requireStore("delete " + r.name); err != nil {
		return err
	}
	return r.Collection.Delete(ctx, id, func(ctx context.Context, id string) error {
		return r.ws.api.Delete(ctx, r.name, id)
	}, opts...)
}
