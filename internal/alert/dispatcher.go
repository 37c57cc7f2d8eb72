// Package alert evaluates alert rules against ledger state, deduplicates
// via a per-key cooldown window and fans out to configured sinks.
package alert

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ledgerwatch/internal/domain"
	"ledgerwatch/internal/observability"
	"ledgerwatch/internal/storage"
)

// Default rule parameters.
const (
	DefaultCooldown         = 300 * time.Second
	DefaultFrequencyBound   = 10
	DefaultFrequencyWindow  = time.Hour
	DefaultHistorySize      = 256
	suspiciousHighFrequency = "high_frequency"
	suspiciousNewRecipient  = "large_to_new_recipient"
)

// Config configures the dispatcher's rules.
type Config struct {
	// LowBalanceThresholds maps address to its low-balance threshold.
	// Addresses without an entry are not checked.
	LowBalanceThresholds map[string]uint64

	// LargeTransferThreshold triggers LargeTransfer alerts when exceeded.
	// Zero disables the rule.
	LargeTransferThreshold uint64

	// Cooldown suppresses repeat alerts sharing a key.
	Cooldown time.Duration

	// FrequencyBound and FrequencyWindow drive the high-frequency
	// suspicious-activity heuristic.
	FrequencyBound  int
	FrequencyWindow time.Duration

	// HistorySize bounds the in-memory ring of recent alerts.
	HistorySize int
}

// Dispatcher evaluates rules and fans alerts out to sinks. Cooldown
// check and record happen under one lock hold on the live table, so two
// concurrent evaluations of the same key cannot both fire.
type Dispatcher struct {
	cfg     Config
	sinks   []Sink
	log     zerolog.Logger
	metrics *observability.Metrics
	store   storage.AlertLogStore // optional, best-effort

	mu             sync.Mutex
	cooldowns      map[string]time.Time
	seenRecipients map[string]struct{}
	senderWindows  map[string][]int64 // unix seconds of recent sends
	history        []domain.Alert
	historyNext    int
	historyFull    bool

	nowFn func() time.Time
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithSinks sets the delivery sinks.
func WithSinks(sinks ...Sink) Option {
	return func(d *Dispatcher) {
		d.sinks = sinks
	}
}

// WithLogger sets the structured logger.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.log = log
	}
}

// WithMetrics sets the metrics instance.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithAlertLogStore persists dispatched alerts, best-effort.
func WithAlertLogStore(s storage.AlertLogStore) Option {
	return func(d *Dispatcher) {
		d.store = s
	}
}

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(fn func() time.Time) Option {
	return func(d *Dispatcher) {
		d.nowFn = fn
	}
}

// NewDispatcher creates a dispatcher. With no sinks configured alerts
// are still evaluated, recorded in history and counted, just not
// delivered anywhere.
func NewDispatcher(cfg Config, opts ...Option) *Dispatcher {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.FrequencyBound <= 0 {
		cfg.FrequencyBound = DefaultFrequencyBound
	}
	if cfg.FrequencyWindow <= 0 {
		cfg.FrequencyWindow = DefaultFrequencyWindow
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}

	d := &Dispatcher{
		cfg:            cfg,
		log:            zerolog.Nop(),
		cooldowns:      make(map[string]time.Time),
		seenRecipients: make(map[string]struct{}),
		senderWindows:  make(map[string][]int64),
		history:        make([]domain.Alert, cfg.HistorySize),
		nowFn:          time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CheckBalance evaluates the low-balance rule for one address.
func (d *Dispatcher) CheckBalance(ctx context.Context, address string, balance uint64) {
	threshold, ok := d.cfg.LowBalanceThresholds[address]
	if !ok || balance >= threshold {
		return
	}

	sev := domain.SeverityWarning
	switch {
	case balance < threshold/10:
		sev = domain.SeverityCritical
	case balance < threshold/2:
		sev = domain.SeverityError
	}

	d.Dispatch(ctx, domain.NewLowBalanceAlert(address, balance, threshold, sev, d.nowFn()))
}

// CheckTransaction evaluates the large-transfer and suspicious-activity
// rules for one applied transaction.
func (d *Dispatcher) CheckTransaction(ctx context.Context, tx *domain.Transaction) {
	threshold := d.cfg.LargeTransferThreshold
	if threshold > 0 && tx.Amount > threshold {
		sev := domain.SeverityWarning
		switch {
		case tx.Amount > threshold*10:
			sev = domain.SeverityCritical
		case tx.Amount > threshold*5:
			sev = domain.SeverityError
		}
		d.Dispatch(ctx, domain.NewLargeTransferAlert(tx, sev, d.nowFn()))
	}

	d.checkSuspicious(ctx, tx)
}

// checkSuspicious runs the best-effort heuristics: a sender exceeding the
// frequency bound inside the rolling window, and a transfer over twice
// the large threshold to a recipient never seen before.
func (d *Dispatcher) checkSuspicious(ctx context.Context, tx *domain.Transaction) {
	now := d.nowFn()

	d.mu.Lock()
	cutoff := now.Add(-d.cfg.FrequencyWindow).Unix()
	win := d.senderWindows[tx.Sender]
	kept := win[:0]
	for _, ts := range win {
		if ts >= cutoff {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, tx.Timestamp)
	d.senderWindows[tx.Sender] = kept
	frequencyHit := len(kept) > d.cfg.FrequencyBound

	_, recipientKnown := d.seenRecipients[tx.Recipient]
	d.seenRecipients[tx.Recipient] = struct{}{}
	d.mu.Unlock()

	if frequencyHit {
		d.Dispatch(ctx, domain.NewSuspiciousAlert(
			tx.Sender,
			suspiciousHighFrequency,
			"sender transaction frequency exceeds bound within rolling window",
			domain.RiskMedium,
			[]string{tx.ID},
			domain.SeverityWarning,
			now,
		))
	}

	threshold := d.cfg.LargeTransferThreshold
	if threshold > 0 && !recipientKnown && tx.Amount > 2*threshold {
		d.Dispatch(ctx, domain.NewSuspiciousAlert(
			tx.Sender,
			suspiciousNewRecipient,
			"large transfer to previously unseen recipient",
			domain.RiskHigh,
			[]string{tx.ID},
			domain.SeverityError,
			now,
		))
	}
}

// ReportNetworkError raises a NetworkError alert on behalf of a collaborator.
func (d *Dispatcher) ReportNetworkError(ctx context.Context, component, detail string) {
	d.Dispatch(ctx, domain.NewNetworkErrorAlert(component, detail, d.nowFn()))
}

// ReportSystemError raises a SystemError alert on behalf of a collaborator.
func (d *Dispatcher) ReportSystemError(ctx context.Context, component, detail string) {
	d.Dispatch(ctx, domain.NewSystemErrorAlert(component, detail, d.nowFn()))
}

// Dispatch sends an alert through the cooldown gate and on to every
// sink. The cooldown is recorded as soon as the alert passes the gate,
// even if every sink fails, so a failing sink cannot cause an alert
// storm on retry paths.
func (d *Dispatcher) Dispatch(ctx context.Context, a domain.Alert) bool {
	key := a.Key()
	now := d.nowFn()

	d.mu.Lock()
	if last, ok := d.cooldowns[key]; ok && now.Sub(last) < d.cfg.Cooldown {
		d.mu.Unlock()
		d.log.Debug().Str("key", key).Msg("alert suppressed by cooldown")
		if d.metrics != nil {
			d.metrics.AlertsSuppressed.WithLabelValues(string(a.Type)).Inc()
		}
		return false
	}
	d.cooldowns[key] = now
	d.recordHistoryLocked(a)
	d.mu.Unlock()

	d.log.Info().
		Str("key", key).
		Str("type", string(a.Type)).
		Str("severity", string(a.Severity)).
		Msg("alert dispatched")

	if d.metrics != nil {
		d.metrics.AlertsDispatched.WithLabelValues(string(a.Type)).Inc()
	}

	for _, sink := range d.sinks {
		if err := sink.Send(ctx, a); err != nil {
			// Per-sink failure is isolated; the remaining sinks still run.
			d.log.Error().Err(err).Str("sink", sink.Name()).Str("key", key).Msg("sink delivery failed")
			if d.metrics != nil {
				d.metrics.SinkErrors.WithLabelValues(sink.Name()).Inc()
			}
		}
	}

	if d.store != nil {
		entry := &storage.AlertLogEntry{
			Key:       key,
			Type:      a.Type,
			Severity:  a.Severity,
			Address:   a.Address,
			Message:   describe(a),
			CreatedAt: a.Timestamp.Unix(),
		}
		if err := d.store.Append(ctx, entry); err != nil {
			d.log.Error().Err(err).Str("key", key).Msg("alert log append failed")
		}
	}

	return true
}

func (d *Dispatcher) recordHistoryLocked(a domain.Alert) {
	d.history[d.historyNext] = a
	d.historyNext++
	if d.historyNext == len(d.history) {
		d.historyNext = 0
		d.historyFull = true
	}
}

// History returns recent dispatched alerts, oldest first.
func (d *Dispatcher) History() []domain.Alert {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.historyFull {
		return append([]domain.Alert(nil), d.history[:d.historyNext]...)
	}
	out := make([]domain.Alert, 0, len(d.history))
	out = append(out, d.history[d.historyNext:]...)
	out = append(out, d.history[:d.historyNext]...)
	return out
}

// Stats summarizes the retained alert history by type and severity.
type Stats struct {
	Total      int
	ByType     map[domain.AlertType]int
	BySeverity map[domain.Severity]int
}

// AlertStats counts the alerts in the history ring. Counts reflect only
// retained history, not lifetime totals; those live in the metrics.
func (d *Dispatcher) AlertStats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := Stats{
		ByType:     make(map[domain.AlertType]int),
		BySeverity: make(map[domain.Severity]int),
	}
	n := d.historyNext
	if d.historyFull {
		n = len(d.history)
	}
	for _, a := range d.history[:n] {
		s.Total++
		s.ByType[a.Type]++
		s.BySeverity[a.Severity]++
	}
	return s
}

// SweepCooldowns drops cooldown entries older than the window and
// returns the number removed. The table is otherwise append-only and
// would grow with every distinct alert key.
func (d *Dispatcher) SweepCooldowns() int {
	now := d.nowFn()

	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for key, last := range d.cooldowns {
		if now.Sub(last) >= d.cfg.Cooldown {
			delete(d.cooldowns, key)
			removed++
		}
	}
	return removed
}

// RunCooldownSweeper sweeps expired cooldown entries on an interval
// until ctx is cancelled.
func (d *Dispatcher) RunCooldownSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := d.SweepCooldowns(); n > 0 {
				d.log.Debug().Int("removed", n).Msg("cooldown table swept")
			}
		}
	}
}
