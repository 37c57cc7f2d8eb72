package ledger

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"ledgerwatch/internal/domain"
)

// ExportFormat selects the export representation.
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
)

// IsValid checks if the format is a supported value.
func (f ExportFormat) IsValid() bool {
	return f == FormatJSON || f == FormatCSV
}

// jsonExport is the JSON export envelope.
type jsonExport struct {
	Balances   map[string]uint64              `json:"balances"`
	Stats      map[string]domain.AddressStats `json:"stats"`
	ExportTime string                         `json:"export_time"`
}

// Export produces a full balances+stats snapshot. Output is
// deterministic for a given state: addresses appear in sorted order.
func (l *Ledger) Export(format ExportFormat) ([]byte, error) {
	l.mu.RLock()
	balances := make(map[string]uint64, len(l.balances))
	for addr, bal := range l.balances {
		balances[addr] = bal
	}
	stats := make(map[string]domain.AddressStats, len(l.stats))
	for addr, s := range l.stats {
		stats[addr] = *s
	}
	now := l.nowFn()
	l.mu.RUnlock()

	switch format {
	case FormatJSON:
		return json.MarshalIndent(jsonExport{
			Balances:   balances,
			Stats:      stats,
			ExportTime: now.UTC().Format(time.RFC3339),
		}, "", "  ")
	case FormatCSV:
		return exportCSV(balances, stats)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

func exportCSV(balances map[string]uint64, stats map[string]domain.AddressStats) ([]byte, error) {
	addrs := make([]string, 0, len(balances))
	for addr := range balances {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"Address", "Balance", "Total Transactions", "Total Sent", "Total Received"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, addr := range addrs {
		s := stats[addr]
		row := []string{
			addr,
			strconv.FormatUint(balances[addr], 10),
			strconv.FormatUint(s.TotalTransactions, 10),
			strconv.FormatUint(s.TotalSent, 10),
			strconv.FormatUint(s.TotalReceived, 10),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
