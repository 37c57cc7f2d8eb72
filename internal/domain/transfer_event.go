package domain

// DefaultTokenType is assumed when a remote record omits the token type.
const DefaultTokenType = "native"

// TransferEvent is a parsed transfer affecting a watched address.
// Immutable once produced by the poll cycle; consumed exactly once.
type TransferEvent struct {
	ID        string // originating transaction id
	Sender    string
	Recipient string
	Amount    uint64
	TokenType string
	Timestamp int64  // unix seconds
	Sequence  uint64 // event sequence within the transaction
}
