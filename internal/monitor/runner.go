package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ledgerwatch/internal/alert"
	"ledgerwatch/internal/domain"
	"ledgerwatch/internal/ledger"
	"ledgerwatch/internal/observability"
	"ledgerwatch/internal/storage"
)

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Events     <-chan domain.TransferEvent
	Ledger     *ledger.Ledger
	Dispatcher *alert.Dispatcher
	Archive    storage.TransactionArchive // optional, best-effort

	// CleanupInterval and CleanupMaxAge drive periodic history trimming.
	// Zero disables the cleanup loop.
	CleanupInterval time.Duration
	CleanupMaxAge   time.Duration

	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// Runner is the single consumer of the poller's event stream. Every
// event is applied to the ledger, archived best-effort and handed to the
// alert dispatcher.
type Runner struct {
	events     <-chan domain.TransferEvent
	ledger     *ledger.Ledger
	dispatcher *alert.Dispatcher
	archive    storage.TransactionArchive

	cleanupInterval time.Duration
	cleanupMaxAge   time.Duration

	log zerolog.Logger
	m   *observability.Metrics
}

// NewRunner creates a runner. Events, Ledger and Dispatcher are required.
func NewRunner(opts RunnerOptions) *Runner {
	return &Runner{
		events:          opts.Events,
		ledger:          opts.Ledger,
		dispatcher:      opts.Dispatcher,
		archive:         opts.Archive,
		cleanupInterval: opts.CleanupInterval,
		cleanupMaxAge:   opts.CleanupMaxAge,
		log:             opts.Logger,
		m:               opts.Metrics,
	}
}

// Run consumes events until ctx is cancelled, then drains whatever the
// poller already emitted before returning.
func (r *Runner) Run(ctx context.Context) {
	var cleanupCh <-chan time.Time
	if r.cleanupInterval > 0 && r.cleanupMaxAge > 0 {
		ticker := time.NewTicker(r.cleanupInterval)
		defer ticker.Stop()
		cleanupCh = ticker.C
	}

	for {
		select {
		case ev, ok := <-r.events:
			if !ok {
				return
			}
			r.process(ctx, ev)
		case <-cleanupCh:
			r.runCleanup()
		case <-ctx.Done():
			r.drain()
			return
		}
	}
}

// drain applies events the poller emitted before the shutdown signal.
func (r *Runner) drain() {
	for {
		select {
		case ev, ok := <-r.events:
			if !ok {
				return
			}
			r.process(context.Background(), ev)
		default:
			return
		}
	}
}

func (r *Runner) process(ctx context.Context, ev domain.TransferEvent) {
	pt := r.ledger.Apply(ev)

	if r.m != nil {
		r.m.EventsApplied.Inc()
		r.m.ApplyLatency.Observe(pt.ProcessingTime.Seconds())
	}

	r.log.Debug().
		Str("tx", ev.ID).
		Str("sender", domain.TruncateAddress(ev.Sender)).
		Str("recipient", domain.TruncateAddress(ev.Recipient)).
		Uint64("amount", ev.Amount).
		Msg("event applied")

	if r.archive != nil {
		if err := r.archive.InsertBatch(ctx, []*domain.Transaction{&pt.Transaction}); err != nil {
			// Archival is best-effort; the ledger remains authoritative.
			r.log.Error().Err(err).Str("tx", ev.ID).Msg("archive insert failed")
			if r.m != nil {
				r.m.ArchiveBatchErrors.Inc()
			}
		} else if r.m != nil {
			r.m.ArchiveBatchesStored.Inc()
		}
	}

	if r.dispatcher != nil {
		r.dispatcher.CheckTransaction(ctx, &pt.Transaction)
		r.dispatcher.CheckBalance(ctx, ev.Sender, r.ledger.BalanceOf(ev.Sender))
		r.dispatcher.CheckBalance(ctx, ev.Recipient, r.ledger.BalanceOf(ev.Recipient))
	}
}

func (r *Runner) runCleanup() {
	removed := r.ledger.Cleanup(r.cleanupMaxAge)
	if r.m != nil {
		r.m.HistoryCleanupRun.Inc()
		r.m.HistoryRemoved.Add(float64(removed))
	}
	if removed > 0 {
		r.log.Info().Int("removed", removed).Msg("history cleanup completed")
	}
}
