package monitor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ledgerwatch/internal/domain"
	"ledgerwatch/internal/registry"
	"ledgerwatch/internal/remote"
	"ledgerwatch/internal/remote/stub"
)

const (
	addrA = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	addrB = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	addrC = "0xcccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"
)

func record(id, sender string, amount string, ts int64) remote.EventRecord {
	return remote.EventRecord{
		TxID:      id,
		Sender:    sender,
		Recipient: addrC,
		Amount:    amount,
		Timestamp: ts,
	}
}

func newTestPoller(t *testing.T, client remote.Client, addrs ...string) (*Poller, *registry.Registry) {
	t.Helper()

	reg := registry.New()
	for _, addr := range addrs {
		if err := reg.Add(addr); err != nil {
			t.Fatalf("Add(%s): %v", addr, err)
		}
	}

	p := NewPoller(PollerOptions{
		Client:   client,
		Registry: reg,
		NowFn:    func() time.Time { return time.Unix(2_000_000, 0) },
	})
	return p, reg
}

func collect(t *testing.T, ch <-chan domain.TransferEvent, n int) []domain.TransferEvent {
	t.Helper()

	var out []domain.TransferEvent
	for i := 0; i < n; i++ {
		select {
		case ev := <-ch:
			out = append(out, ev)
		case <-time.After(time.Second):
			t.Fatalf("timed out after %d of %d events", i, n)
		}
	}
	select {
	case ev := <-ch:
		t.Fatalf("unexpected extra event %s", ev.ID)
	default:
	}
	return out
}

func TestPoller_EmitsNewEvents(t *testing.T) {
	client := stub.NewClient()
	client.AddEvents(addrA,
		record("tx-1", addrA, "100", 1_000_100),
		record("tx-2", addrA, "200", 1_000_200),
	)

	p, _ := newTestPoller(t, client, addrA)
	p.pollAll(context.Background())

	evs := collect(t, p.Events(), 2)
	// Records arrive newest first from the client.
	if evs[0].ID != "tx-2" || evs[1].ID != "tx-1" {
		t.Errorf("emitted order = [%s %s]", evs[0].ID, evs[1].ID)
	}
	if evs[0].Amount != 200 {
		t.Errorf("amount = %d, want 200", evs[0].Amount)
	}
}

func TestPoller_WatermarkFiltersOldEvents(t *testing.T) {
	client := stub.NewClient()
	client.AddEvents(addrA,
		record("tx-old", addrA, "100", 1_000_100),
		record("tx-new", addrA, "200", 1_000_200),
	)

	p, reg := newTestPoller(t, client, addrA)
	reg.SetWatermark(addrA, time.Unix(1_000_100, 0))

	p.pollAll(context.Background())

	evs := collect(t, p.Events(), 1)
	if evs[0].ID != "tx-new" {
		t.Errorf("emitted = %s, want tx-new", evs[0].ID)
	}
}

func TestPoller_WatermarkAdvancesToPollTime(t *testing.T) {
	client := stub.NewClient()
	client.AddEvents(addrA, record("tx-1", addrA, "100", 1_000_100))

	p, reg := newTestPoller(t, client, addrA)
	p.pollAll(context.Background())
	collect(t, p.Events(), 1)

	// Strategy poll-time: the watermark is the poll start, not the event time.
	if wm := reg.Watermark(addrA); !wm.Equal(time.Unix(2_000_000, 0)) {
		t.Errorf("watermark = %v, want poll time", wm)
	}

	// A second poll finds nothing new and leaves the watermark alone.
	p.pollAll(context.Background())
	collect(t, p.Events(), 0)
	if wm := reg.Watermark(addrA); !wm.Equal(time.Unix(2_000_000, 0)) {
		t.Errorf("watermark moved without emissions: %v", wm)
	}
}

func TestPoller_WatermarkMaxEventStrategy(t *testing.T) {
	client := stub.NewClient()
	client.AddEvents(addrA,
		record("tx-1", addrA, "100", 1_000_100),
		record("tx-2", addrA, "200", 1_000_200),
	)

	reg := registry.New()
	reg.Add(addrA)
	p := NewPoller(PollerOptions{
		Client:   client,
		Registry: reg,
		Strategy: WatermarkMaxEvent,
		NowFn:    func() time.Time { return time.Unix(2_000_000, 0) },
	})

	p.pollAll(context.Background())
	collect(t, p.Events(), 2)

	if wm := reg.Watermark(addrA); !wm.Equal(time.Unix(1_000_200, 0)) {
		t.Errorf("watermark = %v, want newest event time", wm)
	}
}

func TestPoller_FetchFailureLeavesWatermark(t *testing.T) {
	client := stub.NewClient()
	client.AddEvents(addrA, record("tx-1", addrA, "100", 1_000_100))
	client.SetQueryError(addrA, fmt.Errorf("%w: connection refused", remote.ErrMaxRetries))

	p, reg := newTestPoller(t, client, addrA)
	p.pollAll(context.Background())
	collect(t, p.Events(), 0)

	if !reg.Watermark(addrA).IsZero() {
		t.Error("watermark advanced despite fetch failure")
	}

	// Next tick retries the same window once the failure clears.
	client.SetQueryError(addrA, nil)
	p.pollAll(context.Background())
	evs := collect(t, p.Events(), 1)
	if evs[0].ID != "tx-1" {
		t.Errorf("emitted = %s, want tx-1", evs[0].ID)
	}
}

func TestPoller_FailureIsolatedPerAddress(t *testing.T) {
	client := stub.NewClient()
	client.AddEvents(addrA, record("tx-a", addrA, "100", 1_000_100))
	client.AddEvents(addrB, record("tx-b", addrB, "200", 1_000_200))
	client.SetQueryError(addrA, fmt.Errorf("%w: timeout", remote.ErrMaxRetries))

	p, _ := newTestPoller(t, client, addrA, addrB)
	p.pollAll(context.Background())

	evs := collect(t, p.Events(), 1)
	if evs[0].ID != "tx-b" {
		t.Errorf("emitted = %s, want tx-b from the healthy address", evs[0].ID)
	}
}

func TestPoller_PartialBatchOnParseError(t *testing.T) {
	client := stub.NewClient()
	client.AddEvents(addrA,
		record("tx-good-1", addrA, "100", 1_000_100),
		remote.EventRecord{TxID: "tx-bad", Sender: addrA, Amount: "100", Timestamp: 1_000_150},
		record("tx-good-2", addrA, "nope", 1_000_200),
		record("tx-good-3", addrA, "300", 1_000_300),
	)

	p, _ := newTestPoller(t, client, addrA)
	p.pollAll(context.Background())

	// tx-bad has no recipient and tx-good-2 a malformed amount; only the
	// two valid records survive.
	evs := collect(t, p.Events(), 2)
	if evs[0].ID != "tx-good-3" || evs[1].ID != "tx-good-1" {
		t.Errorf("emitted = [%s %s]", evs[0].ID, evs[1].ID)
	}
}

func TestPoller_ForceCheckBypassesWatermark(t *testing.T) {
	client := stub.NewClient()
	client.AddEvents(addrA,
		record("tx-1", addrA, "100", 1_000_100),
		record("tx-2", addrA, "200", 1_000_200),
	)

	p, reg := newTestPoller(t, client, addrA)
	reg.SetWatermark(addrA, time.Unix(1_500_000, 0))

	n := p.ForceCheckAll(context.Background())
	if n != 2 {
		t.Errorf("ForceCheckAll = %d, want 2", n)
	}
	collect(t, p.Events(), 2)

	// Force checks never advance the watermark.
	if wm := reg.Watermark(addrA); !wm.Equal(time.Unix(1_500_000, 0)) {
		t.Errorf("watermark = %v, want unchanged", wm)
	}
}

func TestPoller_StartStop(t *testing.T) {
	client := stub.NewClient()
	reg := registry.New()
	reg.Add(addrA)

	p := NewPoller(PollerOptions{
		Client:       client,
		Registry:     reg,
		PollInterval: 10 * time.Millisecond,
	})

	ctx := context.Background()
	p.Start(ctx)
	// Second start is a no-op.
	p.Start(ctx)

	deadline := time.After(2 * time.Second)
	for client.QueryCalls(addrA) == 0 {
		select {
		case <-deadline:
			t.Fatal("poller never queried")
		case <-time.After(5 * time.Millisecond):
		}
	}

	p.Stop()
	calls := client.QueryCalls(addrA)
	time.Sleep(50 * time.Millisecond)
	if client.QueryCalls(addrA) != calls {
		t.Error("poller still querying after Stop")
	}

	// Restart works after a stop.
	p.Start(ctx)
	p.Stop()
}

func TestPoller_ConcurrentStop(t *testing.T) {
	client := stub.NewClient()
	reg := registry.New()
	reg.Add(addrA)

	p := NewPoller(PollerOptions{
		Client:       client,
		Registry:     reg,
		PollInterval: 10 * time.Millisecond,
	})
	p.Start(context.Background())

	// Racing stops must not double-close the stop channel.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Stop()
		}()
	}
	wg.Wait()
}
