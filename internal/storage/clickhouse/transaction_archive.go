package clickhouse

import (
	"context"
	"fmt"
	"time"

	"ledgerwatch/internal/domain"
	"ledgerwatch/internal/storage"
)

// TransactionArchive persists processed transfers in ClickHouse for
// long-term analytical queries.
type TransactionArchive struct {
	conn *Conn
}

var _ storage.TransactionArchive = (*TransactionArchive)(nil)

func NewTransactionArchive(conn *Conn) *TransactionArchive {
	return &TransactionArchive{conn: conn}
}

// InsertBatch inserts a batch of transactions using the native batch protocol.
func (a *TransactionArchive) InsertBatch(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO transactions (
			tx_id, sequence, sender, recipient, amount, token_type,
			status, gas_used, gas_price, observed_at
		)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, tx := range txs {
		var gasUsed, gasPrice uint64
		if tx.GasUsed != nil {
			gasUsed = *tx.GasUsed
		}
		if tx.GasPrice != nil {
			gasPrice = *tx.GasPrice
		}
		err := batch.Append(
			tx.ID,
			tx.Sequence,
			tx.Sender,
			tx.Recipient,
			tx.Amount,
			tx.TokenType,
			string(tx.Status),
			gasUsed,
			gasPrice,
			time.Unix(tx.Timestamp, 0).UTC(),
		)
		if err != nil {
			return fmt.Errorf("append transaction %s to batch: %w", tx.ID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// RecentByAddress returns the most recent transactions where addr is the
// sender or the recipient, newest first.
func (a *TransactionArchive) RecentByAddress(ctx context.Context, addr string, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidInput)
	}

	rows, err := a.conn.Query(ctx, `
		SELECT tx_id, sequence, sender, recipient, amount, token_type,
		       status, gas_used, gas_price, observed_at
		FROM transactions
		WHERE sender = ? OR recipient = ?
		ORDER BY observed_at DESC, sequence DESC
		LIMIT ?`, addr, addr, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions for %s: %w", addr, err)
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		var (
			tx         domain.Transaction
			status     string
			gasUsed    uint64
			gasPrice   uint64
			observedAt time.Time
		)
		err := rows.Scan(
			&tx.ID, &tx.Sequence, &tx.Sender, &tx.Recipient, &tx.Amount, &tx.TokenType,
			&status, &gasUsed, &gasPrice, &observedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		tx.Status = domain.TxStatus(status)
		if gasUsed > 0 {
			tx.GasUsed = &gasUsed
		}
		if gasPrice > 0 {
			tx.GasPrice = &gasPrice
		}
		tx.Timestamp = observedAt.Unix()
		txs = append(txs, &tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txs, nil
}
