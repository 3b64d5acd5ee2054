package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Spok95/storedesk/internal/apperr"
)

// Accessor — то, что нужно рабочему пространству от бэкенда (Client или фейк в тестах).
type Accessor interface {
	Fetch(ctx context.Context, storeID, resource string) ([]json.RawMessage, error)
	Create(ctx context.Context, storeID, resource string, payload any) (json.RawMessage, error)
	Update(ctx context.Context, resource, id string, payload any) (json.RawMessage, error)
	Delete(ctx context.Context, resource, id string) error
}

var _ Accessor = (*Client)(nil)

// FetchAll декодирует ресурс в срез T.
func FetchAll[T any](ctx context.Context, a Accessor, storeID, resource string) ([]T, error) {
	raws, err := a.Fetch(ctx, storeID, resource)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raws))
	for i, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, apperr.Network("fetch", resource, 0, fmt.Errorf("decode item %d: %w", i, err))
		}
		out = append(out, v)
	}
	return out, nil
}

// CreateAs создаёт сущность и декодирует ответ сервера.
func CreateAs[T any](ctx context.Context, a Accessor, storeID, resource string, payload T) (T, error) {
	var zero T
	raw, err := a.Create(ctx, storeID, resource, payload)
	if err != nil {
		return zero, err
	}
	if len(raw) == 0 {
		return zero, apperr.EmptyResponse("create", resource)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, apperr.Network("create", resource, 0, fmt.Errorf("decode: %w", err))
	}
	return out, nil
}
