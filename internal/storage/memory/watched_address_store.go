package memory

import (
	"context"
	"sort"
	"sync"

	"ledgerwatch/internal/storage"
)

// WatchedAddressStore is an in-memory implementation of storage.WatchedAddressStore.
type WatchedAddressStore struct {
	mu   sync.RWMutex
	data map[string]*storage.WatchedAddress
}

// NewWatchedAddressStore creates a new in-memory watched-address store.
func NewWatchedAddressStore() *WatchedAddressStore {
	return &WatchedAddressStore{
		data: make(map[string]*storage.WatchedAddress),
	}
}

// Compile-time interface check.
var _ storage.WatchedAddressStore = (*WatchedAddressStore)(nil)

// Insert adds a new watched address. Returns ErrDuplicateKey if it exists.
func (s *WatchedAddressStore) Insert(_ context.Context, wa *storage.WatchedAddress) error {
	if wa == nil || wa.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[wa.Address]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *wa
	s.data[wa.Address] = &cp
	return nil
}

// Remove deletes a watched address. Returns ErrNotFound if absent.
func (s *WatchedAddressStore) Remove(_ context.Context, address string) error {
	if address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[address]; !exists {
		return storage.ErrNotFound
	}

	delete(s.data, address)
	return nil
}

// List returns all watched addresses ordered by address.
func (s *WatchedAddressStore) List(_ context.Context) ([]*storage.WatchedAddress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.WatchedAddress, 0, len(s.data))
	for _, wa := range s.data {
		cp := *wa
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Address < result[j].Address
	})

	return result, nil
}
