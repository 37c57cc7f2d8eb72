package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ledgerwatch/internal/domain"
	"ledgerwatch/internal/storage"
)

func TestAlertLogStore_AppendAndRecent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAlertLogStore(pool)
	ctx := context.Background()

	base := time.Now().Unix()
	for i := 0; i < 5; i++ {
		entry := &storage.AlertLogEntry{
			Key:       fmt.Sprintf("low_balance:0xabc%d", i),
			Type:      domain.AlertLowBalance,
			Severity:  domain.SeverityWarning,
			Address:   fmt.Sprintf("0xabc%d", i),
			Message:   fmt.Sprintf("balance below threshold (%d)", i),
			CreatedAt: base + int64(i),
		}
		require.NoError(t, store.Append(ctx, entry))
	}

	got, err := store.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Newest first.
	require.Equal(t, "low_balance:0xabc4", got[0].Key)
	require.Equal(t, "low_balance:0xabc2", got[2].Key)
	require.Equal(t, domain.AlertLowBalance, got[0].Type)
	require.Equal(t, domain.SeverityWarning, got[0].Severity)
}

func TestAlertLogStore_AppendInvalid(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAlertLogStore(pool)
	ctx := context.Background()

	require.ErrorIs(t, store.Append(ctx, nil), storage.ErrInvalidInput)
	require.ErrorIs(t, store.Append(ctx, &storage.AlertLogEntry{}), storage.ErrInvalidInput)
}

func TestAlertLogStore_RecentEmpty(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAlertLogStore(pool)

	got, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, got)
}
