// Package main provides the CLI entry point for the traffic simulator.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/example/trafficsim/internal/browser"
	"github.com/example/trafficsim/internal/config"
	"github.com/example/trafficsim/internal/metrics"
	"github.com/example/trafficsim/internal/persona"
	"github.com/example/trafficsim/internal/traffic"
)

// Version information (populated at build time)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// CLI flags
var (
	configPath      string
	baseURL         string
	spm             float64
	concurrency     int
	sessionDuration time.Duration
	runDuration     time.Duration
	seed            int64
	prometheusAddr  string
	verbose         bool
	validate        bool
	dryRun          bool
	showVersion     bool
)

func init() {
	flag.StringVar(&configPath, "config", "", "Path to the YAML configuration file")
	flag.StringVar(&configPath, "c", "", "Path to the YAML configuration file (shorthand)")

	// Override flags
	flag.StringVar(&baseURL, "base-url", "", "Target frontend base URL (e.g., http://localhost:3000)")
	flag.Float64Var(&spm, "spm", 0, "Override sessions launched per minute")
	flag.IntVar(&concurrency, "concurrency", 0, "Override max concurrent browser sessions")
	flag.DurationVar(&sessionDuration, "session-duration", 0, "Override target session length (e.g., 30s)")
	flag.DurationVar(&runDuration, "duration", 0, "Total run time; 0 runs until interrupted")
	flag.DurationVar(&runDuration, "d", 0, "Total run time (shorthand)")
	flag.Int64Var(&seed, "seed", 0, "Deterministic random seed; 0 seeds from the clock")
	flag.StringVar(&prometheusAddr, "prometheus", "", "Prometheus metrics endpoint (e.g., :9090)")

	// Utility flags
	flag.BoolVar(&verbose, "verbose", false, "Enable verbose output")
	flag.BoolVar(&verbose, "v", false, "Enable verbose output (shorthand)")
	flag.BoolVar(&validate, "validate", false, "Validate configuration and exit")
	flag.BoolVar(&dryRun, "dry-run", false, "Run sessions against a fake browser, no Chrome required")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = printUsage
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Traffic Simulator - Human-like Browser Traffic Generator

USAGE:
    trafficsim -config <path> [options]
    trafficsim -base-url <url> [options]

DESCRIPTION:
    Launches headless browser sessions that behave like real visitors:
    reading pages, scrolling, typing with typos and corrections, searching,
    logging in, and checking out. Sessions start at a fixed cadence with a
    concurrency ceiling; launch ticks are dropped when every slot is busy.

CONFIGURATION:
    -config, -c <path>    Path to the YAML configuration file
    -base-url <url>       Target base URL (used alone or as an override)

OVERRIDE OPTIONS:
    -spm <n>              Sessions launched per minute
    -concurrency <n>      Max concurrent browser sessions
    -session-duration <d> Target session length (e.g., "30s")
    -duration, -d <d>     Total run time; 0 runs until interrupted
    -seed <n>             Deterministic random seed

UTILITY OPTIONS:
    -validate             Validate configuration and exit
    -dry-run              Run against a fake browser (no Chrome required)
    -prometheus <addr>    Enable Prometheus metrics endpoint (e.g., :9090)
    -verbose, -v          Enable verbose output
    -version              Show version information
    -help, -h             Show this help message

EXAMPLES:
    # Run against a local frontend with defaults
    trafficsim -base-url http://localhost:3000

    # Run from a config file for ten minutes
    trafficsim -config configs/demo.yaml -duration 10m

    # Faster traffic with more parallel browsers
    trafficsim -base-url http://localhost:3000 -spm 6 -concurrency 5

    # Deterministic run with metrics exposed
    trafficsim -config configs/demo.yaml -seed 42 -prometheus :9090

    # Validate a configuration
    trafficsim -config configs/demo.yaml -validate
`)
}

func main() {
	flag.Parse()

	if showVersion {
		printVersion()
		os.Exit(0)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if validate {
		fmt.Printf("Configuration '%s' is valid.\n", cfg.Name)
		printConfigSummary(cfg)
		os.Exit(0)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		if baseURL == "" {
			fmt.Fprintln(os.Stderr, "Error: -config or -base-url flag is required")
			fmt.Fprintln(os.Stderr, "")
			printUsage()
			os.Exit(1)
		}
		return config.Default(baseURL), nil
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	return config.LoadFromFile(absPath)
}

func applyOverrides(cfg *config.Config) {
	if baseURL != "" {
		cfg.Target.BaseURL = baseURL
	}
	if spm > 0 {
		cfg.Traffic.SessionsPerMinute = spm
	}
	if concurrency > 0 {
		cfg.Traffic.MaxConcurrentSessions = concurrency
	}
	if sessionDuration > 0 {
		cfg.Traffic.SessionDuration = sessionDuration
	}
	if seed != 0 {
		cfg.Seed = seed
	}
	if prometheusAddr != "" {
		cfg.Output.PrometheusAddr = prometheusAddr
	}
	if verbose {
		cfg.Output.Verbose = true
	}
}

func run(cfg *config.Config) error {
	logger, err := buildLogger(cfg.Output.Verbose)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	printBanner(cfg)

	personas, err := buildPersonas(cfg)
	if err != nil {
		return fmt.Errorf("loading personas: %w", err)
	}

	driver, err := buildDriver(cfg, logger)
	if err != nil {
		return fmt.Errorf("starting browser: %w", err)
	}
	defer func() { _ = driver.Close() }()

	var exporter *metrics.PrometheusExporter
	if cfg.Output.PrometheusAddr != "" {
		exporter = metrics.NewPrometheusExporter(metrics.PrometheusExporterConfig{
			Addr: cfg.Output.PrometheusAddr,
		})
		if err := exporter.Start(); err != nil {
			return err
		}
		logger.Info("prometheus exporter listening", zap.String("addr", exporter.Addr()))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = exporter.Stop(shutdownCtx)
		}()
	}

	gen, err := traffic.New(cfg, traffic.Options{
		Driver:   driver,
		Personas: personas,
		Exporter: exporter,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if runDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runDuration)
		defer cancel()
	}

	return gen.Run(ctx)
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		zapCfg.Development = true
		zapCfg.Encoding = "console"
	}
	return zapCfg.Build()
}

func buildPersonas(cfg *config.Config) (*persona.Directory, error) {
	var dir *persona.Directory
	if cfg.Personas.File != "" {
		loaded, err := persona.LoadFromFile(cfg.Personas.File)
		if err != nil {
			return nil, err
		}
		dir = loaded
	} else {
		dir = persona.Builtin()
	}

	if n := cfg.Personas.Synthesize; n > 0 {
		synthSeed := uint64(cfg.Seed)
		if cfg.Seed == 0 {
			synthSeed = uint64(time.Now().UnixNano())
		}
		expanded, err := dir.WithSynthesized(n, synthSeed)
		if err != nil {
			return nil, err
		}
		dir = expanded
	}
	return dir, nil
}

func buildDriver(cfg *config.Config, logger *zap.Logger) (browser.Driver, error) {
	if dryRun {
		logger.Info("dry run, using fake browser")
		return browser.NewFakeDriver(), nil
	}

	headless := true
	if cfg.Browser.Headless != nil {
		headless = *cfg.Browser.Headless
	}
	return browser.NewChromeDriver(browser.ChromeConfig{
		OpTimeout:      cfg.Target.PageTimeout,
		RemoteURL:      cfg.Browser.RemoteURL,
		Headless:       headless,
		NoSandbox:      cfg.Browser.NoSandbox,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		UserAgent:      cfg.Browser.UserAgent,
		Logger:         logger,
	})
}

func printBanner(cfg *config.Config) {
	interval := cfg.LaunchInterval()
	expected := cfg.Traffic.SessionDuration.Seconds() / interval.Seconds()

	fmt.Println(strings.Repeat("=", 70))
	fmt.Println("  Traffic Simulator - Human-like Browser Sessions")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("  Target: %s\n", cfg.Target.BaseURL)
	fmt.Printf("  Rate: %.1f sessions/minute (one every %v)\n", cfg.Traffic.SessionsPerMinute, interval.Round(10*time.Millisecond))
	fmt.Printf("  Target session duration: %v\n", cfg.Traffic.SessionDuration)
	fmt.Printf("  Expected concurrent sessions: ~%.1f (cap %d)\n", expected, cfg.Traffic.MaxConcurrentSessions)
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println("  Human-like behaviors enabled:")
	fmt.Println("    - Typing with variable speed (30-60 WPM)")
	fmt.Println("    - Typos and corrections")
	fmt.Println("    - Reading and hesitation delays")
	fmt.Println("    - Random scrolling and hovering")
	fmt.Println("    - Full endpoint coverage per session")
	fmt.Println(strings.Repeat("=", 70))
}

func printConfigSummary(cfg *config.Config) {
	fmt.Printf("  Target: %s\n", cfg.Target.BaseURL)
	fmt.Printf("  Sessions per minute: %.1f\n", cfg.Traffic.SessionsPerMinute)
	fmt.Printf("  Max concurrent: %d\n", cfg.Traffic.MaxConcurrentSessions)
	fmt.Printf("  Session duration: %v\n", cfg.Traffic.SessionDuration)
	if cfg.Personas.File != "" {
		fmt.Printf("  Personas file: %s\n", cfg.Personas.File)
	}
	if cfg.Personas.Synthesize > 0 {
		fmt.Printf("  Synthesized personas: %d\n", cfg.Personas.Synthesize)
	}
}

func printVersion() {
	fmt.Printf("trafficsim version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

