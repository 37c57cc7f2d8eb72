// Package monitor polls the remote ledger for watched addresses and
// feeds parsed transfer events to the ledger and alert consumers.
package monitor

import (
	"fmt"
	"strconv"

	"ledgerwatch/internal/domain"
	"ledgerwatch/internal/remote"
)

// ParseError reports one unusable raw record. The rest of the batch is
// unaffected.
type ParseError struct {
	TxID   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse record %s: %s", e.TxID, e.Reason)
}

// ParseRecord converts a raw wire record into a TransferEvent. A record
// with no resolvable recipient or a malformed amount yields an error and
// is dropped by the caller; a missing token type defaults to native.
func ParseRecord(rec remote.EventRecord) (domain.TransferEvent, error) {
	if rec.Recipient == "" {
		return domain.TransferEvent{}, &ParseError{TxID: rec.TxID, Reason: "missing recipient"}
	}

	amount, err := strconv.ParseUint(rec.Amount, 10, 64)
	if err != nil {
		return domain.TransferEvent{}, &ParseError{TxID: rec.TxID, Reason: fmt.Sprintf("malformed amount %q", rec.Amount)}
	}

	tokenType := rec.TokenType
	if tokenType == "" {
		tokenType = domain.DefaultTokenType
	}

	return domain.TransferEvent{
		ID:        rec.TxID,
		Sender:    rec.Sender,
		Recipient: rec.Recipient,
		Amount:    amount,
		TokenType: tokenType,
		Timestamp: rec.Timestamp,
		Sequence:  rec.Sequence,
	}, nil
}
