package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ledgerwatch/internal/alert"
	"ledgerwatch/internal/domain"
	"ledgerwatch/internal/observability"
	"ledgerwatch/internal/registry"
	"ledgerwatch/internal/remote"
)

// Default poller parameters.
const (
	DefaultPollInterval  = 30 * time.Second
	DefaultFetchLimit    = 20
	DefaultForceLimit    = 50
	DefaultMaxConcurrent = 16
	DefaultBufferSize    = 1024
)

// WatermarkStrategy selects how the per-address watermark advances after
// a poll that emitted events.
type WatermarkStrategy string

const (
	// WatermarkPollTime advances to the poll start time. A short poll
	// window cannot lose a late out-of-order event this way.
	WatermarkPollTime WatermarkStrategy = "poll-time"
	// WatermarkMaxEvent advances to the newest emitted event timestamp.
	WatermarkMaxEvent WatermarkStrategy = "max-event"
)

// IsValid checks if the strategy is a supported value.
func (s WatermarkStrategy) IsValid() bool {
	return s == WatermarkPollTime || s == WatermarkMaxEvent
}

// PollerOptions contains configuration for creating a Poller.
type PollerOptions struct {
	Client     remote.Client
	Registry   *registry.Registry
	Dispatcher *alert.Dispatcher

	PollInterval  time.Duration
	FetchLimit    int
	ForceLimit    int
	MaxConcurrent int
	BufferSize    int
	Strategy      WatermarkStrategy

	Logger  zerolog.Logger
	Metrics *observability.Metrics

	// NowFn overrides the clock, for tests.
	NowFn func() time.Time
}

// Poller fetches events for every registered address on a fixed
// interval and emits parsed transfer events on Events. One goroutine per
// address per tick, bounded by a semaphore; per-address failures are
// isolated and leave that address's watermark untouched.
type Poller struct {
	client     remote.Client
	registry   *registry.Registry
	dispatcher *alert.Dispatcher

	interval      time.Duration
	fetchLimit    int
	forceLimit    int
	maxConcurrent int
	strategy      WatermarkStrategy

	events chan domain.TransferEvent
	log    zerolog.Logger
	m      *observability.Metrics
	nowFn  func() time.Time

	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// NewPoller creates a poller. Client and Registry are required.
func NewPoller(opts PollerOptions) *Poller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = DefaultFetchLimit
	}
	if opts.ForceLimit <= 0 {
		opts.ForceLimit = DefaultForceLimit
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if !opts.Strategy.IsValid() {
		opts.Strategy = WatermarkPollTime
	}
	if opts.NowFn == nil {
		opts.NowFn = time.Now
	}

	return &Poller{
		client:        opts.Client,
		registry:      opts.Registry,
		dispatcher:    opts.Dispatcher,
		interval:      opts.PollInterval,
		fetchLimit:    opts.FetchLimit,
		forceLimit:    opts.ForceLimit,
		maxConcurrent: opts.MaxConcurrent,
		strategy:      opts.Strategy,
		events:        make(chan domain.TransferEvent, opts.BufferSize),
		log:           opts.Logger,
		m:             opts.Metrics,
		nowFn:         opts.NowFn,
	}
}

// Events is the stream of parsed transfer events.
func (p *Poller) Events() <-chan domain.TransferEvent {
	return p.events
}

// Start transitions Stopped to Running. A second start while running is
// a no-op with a warning.
func (p *Poller) Start(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		p.log.Warn().Msg("poller already running, start ignored")
		return
	}

	p.stop = make(chan struct{})
	p.done = make(chan struct{})

	go p.loop(ctx)
	p.log.Info().Dur("interval", p.interval).Msg("poller started")
}

// Stop requests a cooperative stop and waits for the loop to exit.
// In-flight fetches complete before the loop observes the flag.
func (p *Poller) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.stop)
	<-p.done
	p.log.Info().Msg("poller stopped")
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollAll(ctx)
		}
	}
}

// pollAll runs one poll cycle: snapshot the registry, fan out one
// bounded fetch per address, join before returning.
func (p *Poller) pollAll(ctx context.Context) {
	addrs := p.registry.Snapshot()
	if p.m != nil {
		p.m.WatchedAddresses.Set(float64(len(addrs)))
	}

	sem := make(chan struct{}, p.maxConcurrent)
	var wg sync.WaitGroup

	for _, addr := range addrs {
		wg.Add(1)
		sem <- struct{}{}
		go func(addr string) {
			defer wg.Done()
			defer func() { <-sem }()
			p.pollAddress(ctx, addr, p.fetchLimit, true)
		}(addr)
	}
	wg.Wait()

	if p.m != nil {
		p.m.PollCycles.Inc()
		p.m.LastSuccessfulPoll.Set(float64(p.nowFn().Unix()))
	}
}

// pollAddress fetches and emits events for one address. With gated set,
// only events newer than the watermark are emitted and the watermark
// advances when at least one event was emitted; ForceCheckAll passes
// gated=false to bypass both. Returns the number of events emitted.
func (p *Poller) pollAddress(ctx context.Context, addr string, limit int, gated bool) int {
	pollStart := p.nowFn()

	recs, err := p.client.QueryEvents(ctx, addr, limit)
	if err != nil {
		// Retry budget lives in the client; by the time an error
		// surfaces here it is final for this tick. Watermark untouched,
		// the next tick retries the same window.
		p.log.Error().Err(err).Str("address", domain.TruncateAddress(addr)).Msg("event fetch failed")
		if p.m != nil {
			kind := "rpc"
			if remote.IsNetworkError(err) {
				kind = "network"
			}
			p.m.FetchErrors.WithLabelValues(kind).Inc()
		}
		if p.dispatcher != nil && remote.IsNetworkError(err) {
			p.dispatcher.ReportNetworkError(ctx, "poller", err.Error())
		}
		return 0
	}

	watermark := p.registry.Watermark(addr)

	emitted := 0
	var maxEventTS int64
	for _, rec := range recs {
		if gated && !time.Unix(rec.Timestamp, 0).After(watermark) {
			continue
		}

		ev, err := ParseRecord(rec)
		if err != nil {
			// One bad record never fails the batch.
			p.log.Warn().Err(err).Str("address", domain.TruncateAddress(addr)).Msg("dropped unparseable record")
			if p.m != nil {
				p.m.EventsDropped.WithLabelValues("parse").Inc()
			}
			continue
		}

		select {
		case p.events <- ev:
			emitted++
			if ev.Timestamp > maxEventTS {
				maxEventTS = ev.Timestamp
			}
			if p.m != nil {
				p.m.EventsEmitted.Inc()
			}
		case <-ctx.Done():
			return emitted
		}
	}

	if gated && emitted > 0 {
		switch p.strategy {
		case WatermarkMaxEvent:
			p.registry.SetWatermark(addr, time.Unix(maxEventTS, 0))
		default:
			p.registry.SetWatermark(addr, pollStart)
		}
	}

	return emitted
}

// ForceCheckAll fetches every registered address immediately, bypassing
// the interval and the watermark gate, with the larger force limit.
// Returns the total number of events emitted.
func (p *Poller) ForceCheckAll(ctx context.Context) int {
	addrs := p.registry.Snapshot()

	sem := make(chan struct{}, p.maxConcurrent)
	var (
		wg    sync.WaitGroup
		total atomic.Int64
	)

	for _, addr := range addrs {
		wg.Add(1)
		sem <- struct{}{}
		go func(addr string) {
			defer wg.Done()
			defer func() { <-sem }()
			total.Add(int64(p.pollAddress(ctx, addr, p.forceLimit, false)))
		}(addr)
	}
	wg.Wait()

	if p.m != nil {
		p.m.ForceChecks.Inc()
	}
	p.log.Info().Int64("events", total.Load()).Msg("force check completed")
	return int(total.Load())
}
