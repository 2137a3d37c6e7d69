package metrics

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// statsEvery is how many finished sessions pass between summary log lines.
const statsEvery = 5

// Reporter periodically logs collector snapshots, and emits a summary line
// every few finished sessions the way an operator would watch a tail.
type Reporter struct {
	collector *Collector
	logger    *zap.Logger
	interval  time.Duration

	lastLogged atomic.Int64
}

// NewReporter creates a reporter over collector. A nil logger is replaced
// with a no-op one; a zero interval disables periodic reporting.
func NewReporter(collector *Collector, logger *zap.Logger, interval time.Duration) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{
		collector: collector,
		logger:    logger,
		interval:  interval,
	}
}

// Run logs a snapshot every interval until ctx is done, then logs the final
// snapshot. It is meant to run in its own goroutine.
func (r *Reporter) Run(ctx context.Context) {
	if r.interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Report("final stats")
			return
		case <-ticker.C:
			r.Report("stats")
		}
	}
}

// Report logs one snapshot under the given message.
func (r *Reporter) Report(msg string) {
	snap := r.collector.Snapshot()
	r.logger.Info(msg,
		zap.Int64("sessions", snap.Started),
		zap.Int64("succeeded", snap.Succeeded),
		zap.Int64("failed", snap.Failed),
		zap.Int64("canceled", snap.Canceled),
		zap.Int64("active", snap.InFlight),
		zap.Int64("skipped_ticks", snap.Skipped),
		zap.Float64("error_rate_pct", snap.ErrorRate),
		zap.Float64("observed_spm", snap.SessionsPerMinute),
		zap.Duration("avg_session", snap.AvgDuration),
		zap.Duration("uptime", snap.Uptime),
	)
}

// MaybeReport emits a summary when another statsEvery sessions have
// finished since the last summary. The orchestrator calls it after each
// session completes.
func (r *Reporter) MaybeReport() {
	snap := r.collector.Snapshot()
	finished := snap.Finished()
	if finished == 0 || finished%statsEvery != 0 {
		return
	}
	last := r.lastLogged.Load()
	if finished == last || !r.lastLogged.CompareAndSwap(last, finished) {
		return
	}
	r.Report("stats")
}

// LogEndpointCoverage logs the endpoint touch counts, most-touched first.
func (r *Reporter) LogEndpointCoverage() {
	snap := r.collector.Snapshot()
	type epCount struct {
		endpoint string
		count    int64
	}
	eps := make([]epCount, 0, len(snap.Endpoints))
	for ep, n := range snap.Endpoints {
		eps = append(eps, epCount{ep, n})
	}
	sort.Slice(eps, func(i, j int) bool {
		if eps[i].count != eps[j].count {
			return eps[i].count > eps[j].count
		}
		return eps[i].endpoint < eps[j].endpoint
	})
	for _, e := range eps {
		r.logger.Info("endpoint coverage",
			zap.String("endpoint", e.endpoint),
			zap.Int64("touches", e.count))
	}
}
