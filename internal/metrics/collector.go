// Package metrics provides metrics collection and reporting for the traffic
// simulator.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/trafficsim/internal/scenario"
)

// Collector aggregates session outcomes. It provides:
// - Session counts (started, succeeded, failed, canceled)
// - In-flight session tracking
// - Launch ticks skipped under full concurrency
// - Per-phase and per-endpoint breakdowns
// - Session duration distribution (min, avg, max)
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Collector struct {
	started   atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	canceled  atomic.Int64
	inFlight  atomic.Int64
	skipped   atomic.Int64

	mu         sync.RWMutex
	phaseStats map[string]*phaseCount
	endpoints  map[string]int64
	durations  durationStats

	startTime time.Time

	// timeFunc allows tests to control the clock.
	timeFunc func() time.Time
}

type phaseCount struct {
	Completed int64
	Skipped   int64
	Failed    int64
}

type durationStats struct {
	Count int64
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
}

// NewCollector creates a collector with its clock started.
func NewCollector() *Collector {
	c := &Collector{
		phaseStats: make(map[string]*phaseCount),
		endpoints:  make(map[string]int64),
		timeFunc:   time.Now,
	}
	c.startTime = c.timeFunc()
	return c
}

// SessionLaunched records a session entering execution.
func (c *Collector) SessionLaunched() {
	c.started.Add(1)
	c.inFlight.Add(1)
}

// TickSkipped records a launch tick dropped because every slot was busy.
func (c *Collector) TickSkipped() {
	c.skipped.Add(1)
}

// SessionFinished folds a completed session result into the aggregate.
// It must be called exactly once per launched session.
func (c *Collector) SessionFinished(result *scenario.Result) {
	c.inFlight.Add(-1)

	switch result.Status {
	case scenario.StatusSuccess:
		c.succeeded.Add(1)
	case scenario.StatusCanceled:
		c.canceled.Add(1)
	default:
		c.failed.Add(1)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, o := range result.Phases {
		pc := c.phaseStats[o.Phase]
		if pc == nil {
			pc = &phaseCount{}
			c.phaseStats[o.Phase] = pc
		}
		switch o.Status {
		case scenario.PhaseCompleted:
			pc.Completed++
		case scenario.PhaseSkipped:
			pc.Skipped++
		case scenario.PhaseFailed:
			pc.Failed++
		}
	}

	for _, ep := range result.Endpoints {
		c.endpoints[ep]++
	}

	d := &c.durations
	d.Count++
	d.Total += result.Duration
	if d.Min == 0 || result.Duration < d.Min {
		d.Min = result.Duration
	}
	if result.Duration > d.Max {
		d.Max = result.Duration
	}
}

// Started returns the number of sessions launched so far.
func (c *Collector) Started() int64 { return c.started.Load() }

// InFlight returns the number of sessions currently executing.
func (c *Collector) InFlight() int64 { return c.inFlight.Load() }

// PhaseSnapshot is a snapshot of one phase's outcome counts.
type PhaseSnapshot struct {
	Completed int64
	Skipped   int64
	Failed    int64
}

// Snapshot is a point-in-time view of all aggregated metrics.
type Snapshot struct {
	// Counts
	Started   int64
	Succeeded int64
	Failed    int64
	Canceled  int64
	InFlight  int64
	Skipped   int64

	// Derived
	ErrorRate         float64 // 0.0 - 100.0 percentage of finished sessions
	SessionsPerMinute float64 // Observed launch rate since start
	Uptime            time.Duration

	// Duration distribution over finished sessions
	MinDuration time.Duration
	AvgDuration time.Duration
	MaxDuration time.Duration

	// Breakdowns
	Phases    map[string]PhaseSnapshot
	Endpoints map[string]int64
}

// Finished returns the number of sessions that have completed.
func (s Snapshot) Finished() int64 {
	return s.Succeeded + s.Failed + s.Canceled
}

// Snapshot returns a consistent point-in-time view.
func (c *Collector) Snapshot() Snapshot {
	snap := Snapshot{
		Started:   c.started.Load(),
		Succeeded: c.succeeded.Load(),
		Failed:    c.failed.Load(),
		Canceled:  c.canceled.Load(),
		InFlight:  c.inFlight.Load(),
		Skipped:   c.skipped.Load(),
		Uptime:    c.timeFunc().Sub(c.startTime),
		Phases:    make(map[string]PhaseSnapshot),
		Endpoints: make(map[string]int64),
	}

	if finished := snap.Finished(); finished > 0 {
		snap.ErrorRate = float64(snap.Failed) / float64(finished) * 100.0
	}
	if mins := snap.Uptime.Minutes(); mins > 0 {
		snap.SessionsPerMinute = float64(snap.Started) / mins
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for name, pc := range c.phaseStats {
		snap.Phases[name] = PhaseSnapshot(*pc)
	}
	for ep, n := range c.endpoints {
		snap.Endpoints[ep] = n
	}
	if c.durations.Count > 0 {
		snap.MinDuration = c.durations.Min
		snap.MaxDuration = c.durations.Max
		snap.AvgDuration = c.durations.Total / time.Duration(c.durations.Count)
	}
	return snap
}
