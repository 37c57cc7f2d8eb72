package memory

import (
	"context"
	"sort"
	"sync"

	"ledgerwatch/internal/domain"
	"ledgerwatch/internal/storage"
)

// TransactionArchive is an in-memory implementation of storage.TransactionArchive.
// Used for tests and stub runs; production wiring uses the ClickHouse archive.
type TransactionArchive struct {
	mu   sync.RWMutex
	data []*domain.Transaction
}

// NewTransactionArchive creates a new in-memory transaction archive.
func NewTransactionArchive() *TransactionArchive {
	return &TransactionArchive{}
}

// Compile-time interface check.
var _ storage.TransactionArchive = (*TransactionArchive)(nil)

// InsertBatch appends a batch of applied transactions.
func (a *TransactionArchive) InsertBatch(_ context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	for _, tx := range txs {
		if tx == nil || tx.ID == "" {
			return storage.ErrInvalidInput
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, tx := range txs {
		cp := *tx
		a.data = append(a.data, &cp)
	}
	return nil
}

// RecentByAddress returns up to limit archived transactions touching the
// address, newest first.
func (a *TransactionArchive) RecentByAddress(_ context.Context, address string, limit int) ([]*domain.Transaction, error) {
	if address == "" {
		return nil, storage.ErrInvalidInput
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	var result []*domain.Transaction
	for _, tx := range a.data {
		if tx.Sender == address || tx.Recipient == address {
			cp := *tx
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp > result[j].Timestamp
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Len returns the number of archived transactions.
func (a *TransactionArchive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.data)
}
