// Package traffic orchestrates session launches: cadence, admission
// control, and graceful shutdown.
package traffic

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/example/trafficsim/internal/browser"
	"github.com/example/trafficsim/internal/config"
	"github.com/example/trafficsim/internal/metrics"
	"github.com/example/trafficsim/internal/persona"
	"github.com/example/trafficsim/internal/scenario"
	"github.com/example/trafficsim/internal/timing"
)

// Errors returned by the traffic package.
var (
	ErrNoPersonas = errors.New("traffic: persona directory is empty")
)

// Generator launches sessions at a fixed cadence with bounded concurrency.
// When every slot is busy at launch time, the tick is dropped rather than
// queued, so load never builds up behind a slow target.
type Generator struct {
	cfg       *config.Config
	driver    browser.Driver
	personas  *persona.Directory
	scenario  *scenario.Scenario
	collector *metrics.Collector
	exporter  *metrics.PrometheusExporter
	reporter  *metrics.Reporter
	logger    *zap.Logger

	sem *semaphore.Weighted

	// baseSeed plus the session ordinal gives each session its own
	// deterministic random stream.
	baseSeed   int64
	sessionSeq atomic.Int64

	wg sync.WaitGroup
}

// Options carries the generator's collaborators. Driver is required; the
// rest default to working no-op or fresh instances.
type Options struct {
	Driver    browser.Driver
	Personas  *persona.Directory
	Collector *metrics.Collector
	Exporter  *metrics.PrometheusExporter
	Logger    *zap.Logger
}

// New creates a generator from cfg and opts.
func New(cfg *config.Config, opts Options) (*Generator, error) {
	if opts.Driver == nil {
		return nil, errors.New("traffic: driver is required")
	}
	if opts.Personas == nil || opts.Personas.Len() == 0 {
		return nil, ErrNoPersonas
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	collector := opts.Collector
	if collector == nil {
		collector = metrics.NewCollector()
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	sc := scenario.New(scenario.Config{
		BaseURL:               cfg.Target.BaseURL,
		SessionDuration:       cfg.Traffic.SessionDuration,
		WaitTimeout:           cfg.Target.PageTimeout,
		TypoProbability:       cfg.Timing.TypoProbability,
		SearchTypoProbability: cfg.Timing.SearchTypoProbability,
	}, logger)

	return &Generator{
		cfg:       cfg,
		driver:    opts.Driver,
		personas:  opts.Personas,
		scenario:  sc,
		collector: collector,
		exporter:  opts.Exporter,
		reporter:  metrics.NewReporter(collector, logger, cfg.Output.ReportInterval),
		logger:    logger,
		sem:       semaphore.NewWeighted(int64(cfg.Traffic.MaxConcurrentSessions)),
		baseSeed:  seed,
	}, nil
}

// Collector returns the generator's metrics collector.
func (g *Generator) Collector() *metrics.Collector {
	return g.collector
}

// Run launches sessions until ctx is done, then drains. Running sessions
// get the configured grace to finish before they are cut.
func (g *Generator) Run(ctx context.Context) error {
	interval := g.cfg.LaunchInterval()
	limiter := rate.NewLimiter(rate.Every(interval), 1)

	g.logger.Info("traffic generator starting",
		zap.String("target", g.cfg.Target.BaseURL),
		zap.Float64("sessions_per_minute", g.cfg.Traffic.SessionsPerMinute),
		zap.Duration("launch_interval", interval),
		zap.Int("max_concurrent", g.cfg.Traffic.MaxConcurrentSessions),
		zap.Duration("session_duration", g.cfg.Traffic.SessionDuration),
		zap.Int("personas", g.personas.Len()),
	)
	if g.exporter != nil {
		g.exporter.SetTargetRate(g.cfg.Traffic.SessionsPerMinute)
	}

	// Sessions outlive the launch loop's context so the drain can give
	// them their grace period before cutting them.
	sessionCtx, cancelSessions := context.WithCancel(context.Background())
	defer cancelSessions()

	reporterCtx, stopReporter := context.WithCancel(context.Background())
	reporterDone := make(chan struct{})
	go func() {
		defer close(reporterDone)
		g.reporter.Run(reporterCtx)
	}()

	for {
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		// Skip the tick when every slot is busy. No queueing; the
		// next tick gets a fresh chance.
		if !g.sem.TryAcquire(1) {
			g.collector.TickSkipped()
			if g.exporter != nil {
				g.exporter.TickSkipped()
			}
			g.logger.Debug("launch tick skipped, all slots busy",
				zap.Int64("in_flight", g.collector.InFlight()))
			continue
		}

		g.wg.Add(1)
		go g.runSession(sessionCtx)
	}

	g.logger.Info("shutting down, draining sessions",
		zap.Int64("in_flight", g.collector.InFlight()),
		zap.Duration("grace", g.cfg.Traffic.ShutdownGrace))

	drained := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(g.cfg.Traffic.ShutdownGrace):
		g.logger.Warn("shutdown grace expired, canceling sessions",
			zap.Int64("in_flight", g.collector.InFlight()))
		cancelSessions()
		<-drained
	}

	stopReporter()
	<-reporterDone
	g.reporter.LogEndpointCoverage()

	return nil
}

// runSession drives one full session: acquire persona, open a page, run
// the scenario, fold the result. The semaphore slot is released before
// stats are folded, so a new session can launch while accounting runs.
func (g *Generator) runSession(ctx context.Context) {
	defer g.wg.Done()

	seq := g.sessionSeq.Add(1)
	seed := g.baseSeed + seq
	sessionID := newSessionID()

	prng := rand.New(rand.NewSource(seed))
	model := timing.NewModel(prng, g.cfg.Timing.Scale)
	user := g.personas.Random(prng)

	g.collector.SessionLaunched()
	if g.exporter != nil {
		g.exporter.SessionLaunched()
	}
	g.logger.Info("session starting",
		zap.String("session", sessionID),
		zap.String("persona", user.Email))

	result := g.executeSession(ctx, sessionID, user, model)

	g.sem.Release(1)

	g.collector.SessionFinished(result)
	if g.exporter != nil {
		g.exporter.SessionFinished(result)
	}

	logFn := g.logger.Info
	if result.Status == scenario.StatusError {
		logFn = g.logger.Warn
	}
	logFn("session finished",
		zap.String("session", sessionID),
		zap.String("status", string(result.Status)),
		zap.Duration("duration", result.Duration),
		zap.Int("endpoints", len(result.Endpoints)),
		zap.Int("phases", len(result.Phases)),
		zap.Error(result.Err))

	g.reporter.MaybeReport()
}

// executeSession opens a page and runs the scenario on it. Panics from the
// browser layer are contained here; they fail the session, not the run.
func (g *Generator) executeSession(ctx context.Context, sessionID string, user persona.Persona, model *timing.Model) (result *scenario.Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("session panicked",
				zap.String("session", sessionID),
				zap.Any("panic", r))
			result = &scenario.Result{
				SessionID: sessionID,
				Persona:   user,
				StartTime: start,
				Status:    scenario.StatusError,
				Err:       fmt.Errorf("session panic: %v", r),
				Duration:  time.Since(start),
			}
		}
	}()

	page, err := g.driver.OpenPage(ctx)
	if err != nil {
		return &scenario.Result{
			SessionID: sessionID,
			Persona:   user,
			StartTime: start,
			Status:    scenario.StatusError,
			Err:       fmt.Errorf("open page: %w", err),
			Duration:  time.Since(start),
		}
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			g.logger.Debug("page close failed",
				zap.String("session", sessionID),
				zap.Error(cerr))
		}
	}()

	return g.scenario.Run(ctx, sessionID, page, user, model)
}

// newSessionID returns an identifier like sess_3f2a1b9c0d4e.
func newSessionID() string {
	u := uuid.New()
	return "sess_" + hex.EncodeToString(u[:])[:12]
}
