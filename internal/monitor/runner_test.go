package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ledgerwatch/internal/alert"
	"ledgerwatch/internal/domain"
	"ledgerwatch/internal/ledger"
	"ledgerwatch/internal/storage/memory"
)

// failingArchive always rejects inserts.
type failingArchive struct{}

func (failingArchive) InsertBatch(context.Context, []*domain.Transaction) error {
	return errors.New("archive down")
}

func (failingArchive) RecentByAddress(context.Context, string, int) ([]*domain.Transaction, error) {
	return nil, errors.New("archive down")
}

// recordingSink captures alerts delivered by the dispatcher.
type recordingSink struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Send(_ context.Context, a domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *recordingSink) byType(t domain.AlertType) []domain.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Alert
	for _, a := range s.alerts {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

func runEvents(t *testing.T, r *Runner, events chan domain.TransferEvent, evs ...domain.TransferEvent) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	for _, ev := range evs {
		events <- ev
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestRunner_AppliesAndArchives(t *testing.T) {
	events := make(chan domain.TransferEvent, 8)
	led := ledger.New()
	archive := memory.NewTransactionArchive()

	r := NewRunner(RunnerOptions{
		Events:  events,
		Ledger:  led,
		Archive: archive,
	})

	runEvents(t, r, events, domain.TransferEvent{
		ID: "tx-1", Sender: addrA, Recipient: addrB,
		Amount: 500, TokenType: domain.DefaultTokenType, Timestamp: 1_000_100,
	})

	if got := led.BalanceOf(addrB); got != 500 {
		t.Errorf("recipient balance = %d, want 500", got)
	}
	if archive.Len() != 1 {
		t.Errorf("archived = %d, want 1", archive.Len())
	}
}

func TestRunner_ArchiveFailureDoesNotBlockLedger(t *testing.T) {
	events := make(chan domain.TransferEvent, 8)
	led := ledger.New()

	r := NewRunner(RunnerOptions{
		Events:  events,
		Ledger:  led,
		Archive: failingArchive{},
	})

	runEvents(t, r, events, domain.TransferEvent{
		ID: "tx-1", Sender: addrA, Recipient: addrB,
		Amount: 500, TokenType: domain.DefaultTokenType, Timestamp: 1_000_100,
	})

	if got := led.BalanceOf(addrB); got != 500 {
		t.Errorf("recipient balance = %d, want 500 despite archive failure", got)
	}
}

func TestRunner_AlertEvaluation(t *testing.T) {
	events := make(chan domain.TransferEvent, 8)
	led := ledger.New()
	sink := &recordingSink{}

	// addrA starts at zero balance, so any send leaves it below threshold.
	disp := alert.NewDispatcher(alert.Config{
		LowBalanceThresholds:   map[string]uint64{addrA: 1000},
		LargeTransferThreshold: 100,
	}, alert.WithSinks(sink))

	r := NewRunner(RunnerOptions{
		Events:     events,
		Ledger:     led,
		Dispatcher: disp,
	})

	runEvents(t, r, events, domain.TransferEvent{
		ID: "tx-1", Sender: addrA, Recipient: addrB,
		Amount: 150, TokenType: domain.DefaultTokenType, Timestamp: 1_000_100,
	})

	if got := sink.byType(domain.AlertLowBalance); len(got) != 1 {
		t.Errorf("low balance alerts = %d, want 1", len(got))
	}
	if got := sink.byType(domain.AlertLargeTransfer); len(got) != 1 {
		t.Errorf("large transfer alerts = %d, want 1", len(got))
	}
}

func TestRunner_DrainsOnCancel(t *testing.T) {
	events := make(chan domain.TransferEvent, 8)
	led := ledger.New()

	r := NewRunner(RunnerOptions{Events: events, Ledger: led})

	// Queue events, then cancel before the runner starts consuming.
	for i := 0; i < 5; i++ {
		events <- domain.TransferEvent{
			ID: "tx", Sender: addrA, Recipient: addrB,
			Amount: 1, TokenType: domain.DefaultTokenType, Timestamp: int64(1_000_000 + i),
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}

	if got := led.BalanceOf(addrB); got != 5 {
		t.Errorf("recipient balance = %d, want 5 (queued events drained)", got)
	}
}
