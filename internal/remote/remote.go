// Package remote provides the read-only client for the upstream ledger node.
package remote

import "context"

// Client defines the ledger node query interface.
type Client interface {
	// GetBalance retrieves the current balance of an address for one token type.
	GetBalance(ctx context.Context, address, tokenType string) (uint64, error)

	// QueryEvents retrieves up to limit transfer records touching an address,
	// ordered by timestamp descending.
	QueryEvents(ctx context.Context, address string, limit int) ([]EventRecord, error)

	// LatestCheckpoint retrieves the node's latest checkpoint sequence number.
	LatestCheckpoint(ctx context.Context) (uint64, error)

	// IsHealthy reports whether the node responds to a liveness probe.
	IsHealthy(ctx context.Context) bool
}

// EventRecord is a raw transfer record as returned by the node. Amounts
// arrive as decimal strings and the recipient may be absent; parsing into
// a domain event happens downstream.
type EventRecord struct {
	TxID      string `json:"txId"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient,omitempty"`
	Amount    string `json:"amount"`
	TokenType string `json:"tokenType,omitempty"`
	Timestamp int64  `json:"timestamp"` // unix seconds
	Sequence  uint64 `json:"sequence"`
}
