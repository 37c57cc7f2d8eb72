// Package ledger maintains in-memory balances, bounded transaction
// history and per-address statistics derived from applied transfer events.
package ledger

import (
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"ledgerwatch/internal/domain"
)

// DefaultMaxHistoryRecords bounds each address's retained history.
const DefaultMaxHistoryRecords = 1000

// Ledger is the sole owner of balance, history and stats state. Apply is
// the only mutator; one write lock covers balances, history and stats so
// each event lands as one atomic unit.
type Ledger struct {
	mu         sync.RWMutex
	balances   map[string]uint64
	history    map[string][]domain.Transaction
	stats      map[string]*domain.AddressStats
	snapshots  map[string][]domain.BalanceSnapshot
	maxHistory int

	nowFn func() time.Time
}

// Option configures the Ledger.
type Option func(*Ledger)

// WithMaxHistory caps per-address history length.
func WithMaxHistory(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.maxHistory = n
		}
	}
}

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(fn func() time.Time) Option {
	return func(l *Ledger) {
		l.nowFn = fn
	}
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		balances:   make(map[string]uint64),
		history:    make(map[string][]domain.Transaction),
		stats:      make(map[string]*domain.AddressStats),
		snapshots:  make(map[string][]domain.BalanceSnapshot),
		maxHistory: DefaultMaxHistoryRecords,
		nowFn:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Apply debits the sender, credits the recipient, records the transaction
// under both parties and updates both parties' stats. Arithmetic saturates
// in both directions so Apply never fails.
func (l *Ledger) Apply(ev domain.TransferEvent) domain.ProcessedTransaction {
	start := time.Now()

	tx := domain.Transaction{
		ID:        ev.ID,
		Sender:    ev.Sender,
		Recipient: ev.Recipient,
		Amount:    ev.Amount,
		TokenType: ev.TokenType,
		Timestamp: ev.Timestamp,
		Sequence:  ev.Sequence,
		Status:    domain.TxSuccess,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Debit sender, saturating at zero.
	senderBefore := l.balances[ev.Sender]
	senderAfter := senderBefore - ev.Amount
	if ev.Amount > senderBefore {
		senderAfter = 0
	}
	l.balances[ev.Sender] = senderAfter

	// Credit recipient, saturating at the u64 ceiling.
	recipientBefore := l.balances[ev.Recipient]
	recipientAfter := recipientBefore + ev.Amount
	if recipientAfter < recipientBefore {
		recipientAfter = math.MaxUint64
	}
	l.balances[ev.Recipient] = recipientAfter

	l.appendHistory(ev.Sender, tx)
	l.appendHistory(ev.Recipient, tx)

	l.statsFor(ev.Sender).Observe(&tx, true)
	l.statsFor(ev.Recipient).Observe(&tx, false)

	l.snapshots[ev.Sender] = append(l.snapshots[ev.Sender], domain.BalanceSnapshot{
		Balance: senderAfter, Timestamp: ev.Timestamp, TransactionID: ev.ID,
	})
	l.snapshots[ev.Recipient] = append(l.snapshots[ev.Recipient], domain.BalanceSnapshot{
		Balance: recipientAfter, Timestamp: ev.Timestamp, TransactionID: ev.ID,
	})

	return domain.ProcessedTransaction{
		Transaction:    tx,
		SenderDelta:    -saturateDelta(senderBefore - senderAfter),
		RecipientDelta: saturateDelta(recipientAfter - recipientBefore),
		ProcessingTime: time.Since(start),
	}
}

// saturateDelta clamps a u64 magnitude into an int64.
func saturateDelta(d uint64) int64 {
	if d > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(d)
}

// appendHistory appends under both the write lock and enforces the cap:
// sort descending by timestamp, keep the newest maxHistory records.
func (l *Ledger) appendHistory(addr string, tx domain.Transaction) {
	h := append(l.history[addr], tx)
	if len(h) > l.maxHistory {
		sort.SliceStable(h, func(i, j int) bool {
			return h[i].Timestamp > h[j].Timestamp
		})
		h = h[:l.maxHistory]
	}
	l.history[addr] = h
}

func (l *Ledger) statsFor(addr string) *domain.AddressStats {
	s, ok := l.stats[addr]
	if !ok {
		v := domain.NewAddressStats()
		s = &v
		l.stats[addr] = s
	}
	return s
}

// BalanceOf returns the current balance, 0 for unseen addresses.
func (l *Ledger) BalanceOf(addr string) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.balances[addr]
}

// HistoryOf returns up to limit transactions for addr, newest first.
// limit <= 0 returns the full retained history.
func (l *Ledger) HistoryOf(addr string, limit int) []domain.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	h := append([]domain.Transaction(nil), l.history[addr]...)
	sort.SliceStable(h, func(i, j int) bool {
		return h[i].Timestamp > h[j].Timestamp
	})
	if limit > 0 && limit < len(h) {
		h = h[:limit]
	}
	return h
}

// StatsOf returns a copy of the stats for addr, nil if unseen.
func (l *Ledger) StatsOf(addr string) *domain.AddressStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s, ok := l.stats[addr]
	if !ok {
		return nil
	}
	out := *s
	return &out
}

// AllBalances returns a copy of the balance map.
func (l *Ledger) AllBalances() map[string]uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]uint64, len(l.balances))
	for addr, bal := range l.balances {
		out[addr] = bal
	}
	return out
}

// AllStats returns a copy of every address's stats.
func (l *Ledger) AllStats() map[string]domain.AddressStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]domain.AddressStats, len(l.stats))
	for addr, s := range l.stats {
		out[addr] = *s
	}
	return out
}

// RecentTransactions returns up to limit transactions across all
// addresses, newest first. Each transaction appears once even though it
// is stored under both parties.
func (l *Ledger) RecentTransactions(limit int) []domain.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := make(map[string]struct{})
	var all []domain.Transaction
	for _, h := range l.history {
		for _, tx := range h {
			key := txKey(tx)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			all = append(all, tx)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp > all[j].Timestamp
	})
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

func txKey(tx domain.Transaction) string {
	return tx.ID + "#" + strconv.FormatUint(tx.Sequence, 10)
}

// VolumeByToken sums transaction amounts per token type within the
// trailing window.
func (l *Ledger) VolumeByToken(window time.Duration) map[string]uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cutoff := l.nowFn().Add(-window).Unix()
	seen := make(map[string]struct{})
	out := make(map[string]uint64)
	for _, h := range l.history {
		for _, tx := range h {
			if tx.Timestamp < cutoff {
				continue
			}
			key := txKey(tx)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out[tx.TokenType] += tx.Amount
		}
	}
	return out
}

// Totals is a processor-level aggregate across all addresses.
type Totals struct {
	Addresses    int    `json:"addresses"`
	Transactions uint64 `json:"transactions"`
	Volume       uint64 `json:"volume"`
}

// TotalsNow returns current aggregate counters.
func (l *Ledger) TotalsNow() Totals {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t := Totals{Addresses: len(l.balances)}
	seen := make(map[string]struct{})
	for _, h := range l.history {
		for _, tx := range h {
			key := txKey(tx)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			t.Transactions++
			t.Volume += tx.Amount
		}
	}
	return t
}

// BalanceHistoryOf returns recorded balance snapshots for addr, oldest
// first, up to limit. limit <= 0 returns all.
func (l *Ledger) BalanceHistoryOf(addr string, limit int) []domain.BalanceSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snaps := append([]domain.BalanceSnapshot(nil), l.snapshots[addr]...)
	if limit > 0 && limit < len(snaps) {
		snaps = snaps[len(snaps)-limit:]
	}
	return snaps
}

// Cleanup removes history entries and balance snapshots older than
// maxAge and returns the number of history records removed. Balances and
// stats are untouched; they reflect cumulative truth regardless of
// retained history depth.
func (l *Ledger) Cleanup(maxAge time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	cutoff := now.Add(-maxAge).Unix()

	removed := 0
	for addr, h := range l.history {
		kept := h[:0]
		for _, tx := range h {
			if tx.Timestamp >= cutoff {
				kept = append(kept, tx)
			} else {
				removed++
			}
		}
		if len(kept) == 0 {
			delete(l.history, addr)
		} else {
			l.history[addr] = kept
		}
	}

	for addr, snaps := range l.snapshots {
		kept := snaps[:0]
		for _, s := range snaps {
			if s.Timestamp >= cutoff {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(l.snapshots, addr)
		} else {
			l.snapshots[addr] = kept
		}
	}

	return removed
}
