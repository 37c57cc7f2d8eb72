package postgres

import (
	"context"
	"time"

	"ledgerwatch/internal/domain"
	"ledgerwatch/internal/storage"
)

// AlertLogStore is a PostgreSQL implementation of storage.AlertLogStore.
// The alert log is append-only; rows are never updated.
type AlertLogStore struct {
	pool *Pool
}

// NewAlertLogStore creates a new PostgreSQL alert log store.
func NewAlertLogStore(pool *Pool) *AlertLogStore {
	return &AlertLogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AlertLogStore = (*AlertLogStore)(nil)

// Append records one dispatched alert.
func (s *AlertLogStore) Append(ctx context.Context, e *storage.AlertLogEntry) error {
	if e == nil || e.Key == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO alert_log (alert_key, alert_type, severity, address, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.Key, string(e.Type), string(e.Severity), e.Address, e.Message, time.Unix(e.CreatedAt, 0).UTC())

	return err
}

// Recent returns up to limit entries, newest first.
func (s *AlertLogStore) Recent(ctx context.Context, limit int) ([]*storage.AlertLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT alert_key, alert_type, severity, address, message, created_at
		FROM alert_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*storage.AlertLogEntry
	for rows.Next() {
		var (
			e         storage.AlertLogEntry
			typ, sev  string
			createdAt time.Time
		)
		if err := rows.Scan(&e.Key, &typ, &sev, &e.Address, &e.Message, &createdAt); err != nil {
			return nil, err
		}
		e.Type = domain.AlertType(typ)
		e.Severity = domain.Severity(sev)
		e.CreatedAt = createdAt.Unix()
		result = append(result, &e)
	}

	return result, rows.Err()
}
