package storage

import (
	"context"

	"ledgerwatch/internal/domain"
)

// WatchedAddress is the durable record of one monitored address.
type WatchedAddress struct {
	Address  string
	Label    string // optional operator-supplied note
	AddedAt  int64  // unix seconds
	Disabled bool
}

// WatchedAddressStore persists the watched-address set so the in-memory
// registry can be reseeded across restarts.
type WatchedAddressStore interface {
	// Insert adds a new watched address. Returns ErrDuplicateKey if it is
	// already present.
	Insert(ctx context.Context, wa *WatchedAddress) error

	// Remove deletes a watched address. Returns ErrNotFound if absent.
	Remove(ctx context.Context, address string) error

	// List returns all watched addresses ordered by address.
	List(ctx context.Context) ([]*WatchedAddress, error)
}

// TransactionArchive is the append-only offline copy of applied
// transactions, written best-effort alongside the in-memory ledger.
type TransactionArchive interface {
	// InsertBatch appends a batch of applied transactions. Duplicate
	// transaction ids within the archive are tolerated by implementations
	// that cannot enforce uniqueness cheaply.
	InsertBatch(ctx context.Context, txs []*domain.Transaction) error

	// RecentByAddress returns up to limit archived transactions touching
	// the address, newest first.
	RecentByAddress(ctx context.Context, address string, limit int) ([]*domain.Transaction, error)
}

// AlertLogEntry is one dispatched alert as persisted to the alert log.
type AlertLogEntry struct {
	Key       string
	Type      domain.AlertType
	Severity  domain.Severity
	Address   string // empty for non-address alerts
	Message   string
	CreatedAt int64 // unix seconds
}

// AlertLogStore persists dispatched alerts for audit.
type AlertLogStore interface {
	// Append records one dispatched alert.
	Append(ctx context.Context, e *AlertLogEntry) error

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]*AlertLogEntry, error)
}
