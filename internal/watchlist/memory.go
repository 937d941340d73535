package watchlist

import (
	"context"
	"sync"

	"github.com/onnwee/coin-tracker/internal/utils"
)

// MemoryStore is a process-local Store. The list is lost on restart.
type MemoryStore struct {
	mu  sync.RWMutex
	ids []string
}

func NewMemoryStore(initial ...string) *MemoryStore {
	return &MemoryStore{ids: clean(initial)}
}

func (m *MemoryStore) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.ids))
	copy(out, m.ids)
	return out, nil
}

func (m *MemoryStore) Add(ctx context.Context, id string) error {
	id, err := normalize(id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.ids, _ = withID(m.ids, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Remove(ctx context.Context, id string) error {
	id, err := normalize(id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.ids, _ = withoutID(m.ids, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Contains(ctx context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return utils.ContainsString(m.ids, utils.NormalizeCoinID(id)), nil
}
