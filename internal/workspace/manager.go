package workspace

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/Spok95/storedesk/internal/apperr"
)

// Manager отдаёт загруженное рабочее пространство магазина. Первая загрузка
// магазина выполняется один раз, даже если его запросили несколько чатов сразу.
type Manager struct {
	deps Deps

	mu     sync.RWMutex
	spaces map[string]*Workspace
	group  singleflight.Group
}

func NewManager(d Deps) *Manager {
	return &Manager{deps: d, spaces: make(map[string]*Workspace)}
}

func (m *Manager) Get(ctx context.Context, storeID string) (*Workspace, error) {
	if storeID == "" {
		return nil, apperr.Precondition("workspace", "no store selected")
	}
	if w, ok := m.lookup(storeID); ok {
		return w, nil
	}
	v, err, _ := m.group.Do(storeID, func() (any, error) {
		if w, ok := m.lookup(storeID); ok {
			return w, nil
		}
		w := New(storeID, m.deps)
		// загрузка не должна обрываться, если первый запросивший ушёл
		if err := w.Load(context.WithoutCancel(ctx)); err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.spaces[storeID] = w
		m.mu.Unlock()
		return w, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Workspace), nil
}

// Evict забывает магазин: следующий Get загрузит его заново.
func (m *Manager) Evict(storeID string) {
	m.mu.Lock()
	delete(m.spaces, storeID)
	m.mu.Unlock()
}

func (m *Manager) lookup(storeID string) (*Workspace, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.spaces[storeID]
	return w, ok
}
