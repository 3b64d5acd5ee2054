package optimistic

import (
	"context"
	"errors"
	"sync"
)

var ErrNoPendingDeletion = errors.New("optimistic: no pending deletion")

// PendingDeletion — сущность, ожидающая подтверждения удаления пользователем.
type PendingDeletion struct {
	ID   string
	Type string
}

// DeletionGate хранит не более одного запроса на удаление (один открытый диалог).
type DeletionGate struct {
	mu      sync.Mutex
	pending *PendingDeletion
}

// Request заменяет предыдущий запрос, если он был.
func (g *DeletionGate) Request(id, typ string) PendingDeletion {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := PendingDeletion{ID: id, Type: typ}
	g.pending = &p
	return p
}

func (g *DeletionGate) Pending() (PendingDeletion, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return PendingDeletion{}, false
	}
	return *g.pending, true
}

func (g *DeletionGate) Cancel() {
	g.mu.Lock()
	g.pending = nil
	g.mu.Unlock()
}

// Confirm забирает и очищает запрос, затем вызывает del. Запрос очищается
// до сетевого вызова, поэтому повторное подтверждение получит ErrNoPendingDeletion.
func (g *DeletionGate) Confirm(ctx context.Context, del func(ctx context.Context, p PendingDeletion) error) error {
	g.mu.Lock()
	p := g.pending
	g.pending = nil
	g.mu.Unlock()
	if p == nil {
		return ErrNoPendingDeletion
	}
	return del(ctx, *p)
}
