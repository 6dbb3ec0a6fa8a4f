package repository

import (
	"context"
	"sort"
	"sync"

	"yadisk_bot/internal/pkg/user/domain"
)

// MemoryStorage держит записи в памяти процесса. Подходит для локального запуска и тестов.
type MemoryStorage struct {
	records map[int64]domain.Attributes
	index   map[int64]struct{}
	mu      sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[int64]domain.Attributes),
		index:   make(map[int64]struct{}),
	}
}

func (m *MemoryStorage) Get(_ context.Context, userID int64) (domain.Attributes, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	attrs, exists := m.records[userID]
	if !exists {
		return domain.Attributes{}, nil
	}
	return attrs.Clone(), nil
}

func (m *MemoryStorage) Put(_ context.Context, userID int64, attrs domain.Attributes) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[userID] = attrs.Clone()
	m.index[userID] = struct{}{}
	return nil
}

func (m *MemoryStorage) AddAttributes(ctx context.Context, userID int64, patch domain.Attributes) (domain.Attributes, error) {
	merged, _, err := m.AddAttributesIf(ctx, userID, patch, nil)
	return merged, err
}

func (m *MemoryStorage) AddAttributesIf(_ context.Context, userID int64, patch domain.Attributes, cond func(domain.Attributes) bool) (domain.Attributes, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := m.records[userID].Clone()
	if cond != nil && !cond(current.Clone()) {
		return current, false, nil
	}
	merged := current.Merge(patch)
	m.records[userID] = merged.Clone()
	m.index[userID] = struct{}{}
	return merged, true, nil
}

func (m *MemoryStorage) AllIDs(_ context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int64, 0, len(m.index))
	for id := range m.index {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
