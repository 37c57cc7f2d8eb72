package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ledgerwatch/internal/storage"
)

func TestWatchedAddressStore_InsertAndList(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWatchedAddressStore(pool)
	ctx := context.Background()

	addrs := []*storage.WatchedAddress{
		{
			Address: "0xcccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc",
			Label:   "treasury",
			AddedAt: time.Now().Unix(),
		},
		{
			Address: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			Label:   "hot wallet",
			AddedAt: time.Now().Unix(),
		},
	}
	for _, wa := range addrs {
		require.NoError(t, store.Insert(ctx, wa))
	}

	got, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ordered by address.
	require.Equal(t, addrs[1].Address, got[0].Address)
	require.Equal(t, "hot wallet", got[0].Label)
	require.Equal(t, addrs[0].Address, got[1].Address)
	require.False(t, got[0].Disabled)
}

func TestWatchedAddressStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWatchedAddressStore(pool)
	ctx := context.Background()

	wa := &storage.WatchedAddress{
		Address: "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		AddedAt: time.Now().Unix(),
	}
	require.NoError(t, store.Insert(ctx, wa))

	err := store.Insert(ctx, wa)
	require.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestWatchedAddressStore_Remove(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWatchedAddressStore(pool)
	ctx := context.Background()

	wa := &storage.WatchedAddress{
		Address: "0xdddddddddddddddddddddddddddddddddddddddddddddddddddddddddddddddd",
		AddedAt: time.Now().Unix(),
	}
	require.NoError(t, store.Insert(ctx, wa))
	require.NoError(t, store.Remove(ctx, wa.Address))

	got, err := store.List(ctx)
	require.NoError(t, err)
	require.Empty(t, got)

	err = store.Remove(ctx, wa.Address)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWatchedAddressStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWatchedAddressStore(pool)
	ctx := context.Background()

	require.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)
	require.ErrorIs(t, store.Insert(ctx, &storage.WatchedAddress{}), storage.ErrInvalidInput)
	require.ErrorIs(t, store.Remove(ctx, ""), storage.ErrInvalidInput)
}
