package memory

import (
	"context"
	"sort"
	"sync"

	"ledgerwatch/internal/storage"
)

// AlertLogStore is an in-memory implementation of storage.AlertLogStore.
type AlertLogStore struct {
	mu   sync.RWMutex
	data []*storage.AlertLogEntry
}

// NewAlertLogStore creates a new in-memory alert log store.
func NewAlertLogStore() *AlertLogStore {
	return &AlertLogStore{}
}

// Compile-time interface check.
var _ storage.AlertLogStore = (*AlertLogStore)(nil)

// Append records one dispatched alert.
func (s *AlertLogStore) Append(_ context.Context, e *storage.AlertLogEntry) error {
	if e == nil || e.Key == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *e
	s.data = append(s.data, &cp)
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *AlertLogStore) Recent(_ context.Context, limit int) ([]*storage.AlertLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.AlertLogEntry, 0, len(s.data))
	for _, e := range s.data {
		cp := *e
		result = append(result, &cp)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt > result[j].CreatedAt
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
