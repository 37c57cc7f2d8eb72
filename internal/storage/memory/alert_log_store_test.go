package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ledgerwatch/internal/domain"
	"ledgerwatch/internal/storage"
)

func TestAlertLogStore_AppendAndRecent(t *testing.T) {
	store := NewAlertLogStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := store.Append(ctx, &storage.AlertLogEntry{
			Key:       fmt.Sprintf("low_balance:0xabc%d", i),
			Type:      domain.AlertLowBalance,
			Severity:  domain.SeverityWarning,
			Address:   fmt.Sprintf("0xabc%d", i),
			CreatedAt: int64(1000 + i),
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := store.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Recent len = %d, want 3", len(got))
	}
	if got[0].Key != "low_balance:0xabc4" || got[2].Key != "low_balance:0xabc2" {
		t.Errorf("order = [%s .. %s], want newest first", got[0].Key, got[2].Key)
	}
}

func TestAlertLogStore_AppendCopies(t *testing.T) {
	store := NewAlertLogStore()
	ctx := context.Background()

	e := &storage.AlertLogEntry{Key: "network_error:poller", CreatedAt: 1000}
	if err := store.Append(ctx, e); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	e.Key = "mutated"

	got, err := store.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 1 || got[0].Key != "network_error:poller" {
		t.Errorf("stored entry affected by caller mutation: %+v", got)
	}
}

func TestAlertLogStore_AppendInvalid(t *testing.T) {
	store := NewAlertLogStore()
	ctx := context.Background()

	if err := store.Append(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Append(nil) = %v, want ErrInvalidInput", err)
	}
	if err := store.Append(ctx, &storage.AlertLogEntry{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Append(empty key) = %v, want ErrInvalidInput", err)
	}
}
