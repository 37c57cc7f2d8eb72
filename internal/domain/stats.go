package domain

import "math"

// AddressStats aggregates all applied transactions for one address.
// Every field is derived from Transactions and can be rebuilt by replay;
// history trimming never touches it.
type AddressStats struct {
	TotalTransactions uint64 `json:"total_transactions"`
	TotalSent         uint64 `json:"total_sent"`
	TotalReceived     uint64 `json:"total_received"`
	FirstTransaction  int64  `json:"first_transaction"` // unix seconds, 0 if none
	LastTransaction   int64  `json:"last_transaction"`  // unix seconds, 0 if none
	AverageAmount     uint64 `json:"average_amount"`    // (sent+received)/count
	LargestAmount     uint64 `json:"largest_amount"`
	SmallestAmount    uint64 `json:"smallest_amount"`
}

// NewAddressStats returns zeroed stats with SmallestAmount primed so the
// first observed transaction always becomes the minimum.
func NewAddressStats() AddressStats {
	return AddressStats{SmallestAmount: math.MaxUint64}
}

// Observe folds one transaction into the aggregate. sent selects whether
// the amount counts toward TotalSent or TotalReceived.
func (s *AddressStats) Observe(tx *Transaction, sent bool) {
	s.TotalTransactions++
	if sent {
		s.TotalSent += tx.Amount
	} else {
		s.TotalReceived += tx.Amount
	}
	if tx.Amount > s.LargestAmount {
		s.LargestAmount = tx.Amount
	}
	if tx.Amount < s.SmallestAmount {
		s.SmallestAmount = tx.Amount
	}
	if s.FirstTransaction == 0 || tx.Timestamp < s.FirstTransaction {
		s.FirstTransaction = tx.Timestamp
	}
	if tx.Timestamp > s.LastTransaction {
		s.LastTransaction = tx.Timestamp
	}
	s.AverageAmount = (s.TotalSent + s.TotalReceived) / s.TotalTransactions
}

// BalanceSnapshot is one point of a replayed balance trajectory.
type BalanceSnapshot struct {
	Timestamp     int64  `json:"timestamp"`
	Balance       uint64 `json:"balance"`
	TransactionID string `json:"transaction_id"`
}

// BalanceHistory is the replayed balance trajectory for one address,
// reconstructed from retained history in chronological order.
type BalanceHistory struct {
	Address   string            `json:"address"`
	Snapshots []BalanceSnapshot `json:"snapshots"`
}
