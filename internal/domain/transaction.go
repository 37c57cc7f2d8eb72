package domain

import "time"

// TxStatus represents the recorded status of an applied transaction.
type TxStatus string

const (
	TxSuccess TxStatus = "SUCCESS"
	TxFailed  TxStatus = "FAILED"
	TxPending TxStatus = "PENDING"
)

// String returns the string representation of TxStatus.
func (s TxStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s TxStatus) IsValid() bool {
	return s == TxSuccess || s == TxFailed || s == TxPending
}

// Transaction is the ledger's persisted record of one applied TransferEvent.
// The same record is stored under both the sender's and the recipient's history.
type Transaction struct {
	ID        string
	Sender    string
	Recipient string
	Amount    uint64
	TokenType string
	Timestamp int64  // unix seconds
	Sequence  uint64 // event sequence within the transaction
	GasUsed   *uint64
	GasPrice  *uint64
	Status    TxStatus
}

// ProcessedTransaction is the result of applying one TransferEvent.
type ProcessedTransaction struct {
	Transaction    Transaction
	SenderDelta    int64 // signed balance change, non-positive
	RecipientDelta int64 // signed balance change, non-negative
	ProcessingTime time.Duration
}
