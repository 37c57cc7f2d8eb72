package postgres

import (
	"context"
	"time"

	"ledgerwatch/internal/storage"
)

// WatchedAddressStore is a PostgreSQL implementation of storage.WatchedAddressStore.
type WatchedAddressStore struct {
	pool *Pool
}

// NewWatchedAddressStore creates a new PostgreSQL watched-address store.
func NewWatchedAddressStore(pool *Pool) *WatchedAddressStore {
	return &WatchedAddressStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WatchedAddressStore = (*WatchedAddressStore)(nil)

// Insert adds a new watched address. Returns ErrDuplicateKey if it exists.
func (s *WatchedAddressStore) Insert(ctx context.Context, wa *storage.WatchedAddress) error {
	if wa == nil || wa.Address == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO watched_addresses (address, label, added_at, disabled)
		VALUES ($1, $2, $3, $4)
	`, wa.Address, wa.Label, time.Unix(wa.AddedAt, 0).UTC(), wa.Disabled)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return err
	}

	return nil
}

// Remove deletes a watched address. Returns ErrNotFound if absent.
func (s *WatchedAddressStore) Remove(ctx context.Context, address string) error {
	if address == "" {
		return storage.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx, `
		DELETE FROM watched_addresses WHERE address = $1
	`, address)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// List returns all watched addresses ordered by address.
func (s *WatchedAddressStore) List(ctx context.Context) ([]*storage.WatchedAddress, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT address, label, added_at, disabled
		FROM watched_addresses
		ORDER BY address
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*storage.WatchedAddress
	for rows.Next() {
		var (
			wa      storage.WatchedAddress
			addedAt time.Time
		)
		if err := rows.Scan(&wa.Address, &wa.Label, &addedAt, &wa.Disabled); err != nil {
			return nil, err
		}
		wa.AddedAt = addedAt.Unix()
		result = append(result, &wa)
	}

	return result, rows.Err()
}
