package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ledgerwatch/internal/storage"
)

func TestWatchedAddressStore_InsertAndList(t *testing.T) {
	store := NewWatchedAddressStore()
	ctx := context.Background()

	addrs := []*storage.WatchedAddress{
		{Address: "0xbbb", Label: "treasury", AddedAt: 1000},
		{Address: "0xaaa", Label: "ops", AddedAt: 2000},
	}

	for _, wa := range addrs {
		if err := store.Insert(ctx, wa); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 addresses, got %d", len(got))
	}

	// Ordered by address
	if got[0].Address != "0xaaa" {
		t.Errorf("first address should be 0xaaa, got %s", got[0].Address)
	}
	if got[1].Label != "treasury" {
		t.Errorf("label mismatch: got %s, want treasury", got[1].Label)
	}
}

func TestWatchedAddressStore_DuplicateKey(t *testing.T) {
	store := NewWatchedAddressStore()
	ctx := context.Background()

	wa := &storage.WatchedAddress{Address: "0xaaa", AddedAt: 1000}

	if err := store.Insert(ctx, wa); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	err := store.Insert(ctx, wa)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestWatchedAddressStore_Remove(t *testing.T) {
	store := NewWatchedAddressStore()
	ctx := context.Background()

	if err := store.Insert(ctx, &storage.WatchedAddress{Address: "0xaaa"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := store.Remove(ctx, "0xaaa"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	err := store.Remove(ctx, "0xaaa")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	got, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty list, got %d entries", len(got))
	}
}

func TestWatchedAddressStore_ListReturnsCopies(t *testing.T) {
	store := NewWatchedAddressStore()
	ctx := context.Background()

	if err := store.Insert(ctx, &storage.WatchedAddress{Address: "0xaaa", Label: "orig"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, _ := store.List(ctx)
	got[0].Label = "mutated"

	again, _ := store.List(ctx)
	if again[0].Label != "orig" {
		t.Errorf("List must return copies; stored label was mutated to %s", again[0].Label)
	}
}

func TestWatchedAddressStore_ConcurrentInsert(t *testing.T) {
	store := NewWatchedAddressStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			addr := string(rune('a'+n%26)) + "addr"
			_ = store.Insert(ctx, &storage.WatchedAddress{Address: addr})
		}(i)
	}
	wg.Wait()

	got, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 26 {
		t.Errorf("expected 26 unique addresses, got %d", len(got))
	}
}
