package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/organvm-iii-ergon/public-record-data-scrapper-sub000/browser"
	"github.com/organvm-iii-ergon/public-record-data-scrapper-sub000/config"
	"github.com/organvm-iii-ergon/public-record-data-scrapper-sub000/models"
	"github.com/organvm-iii-ergon/public-record-data-scrapper-sub000/pipeline"
	"github.com/organvm-iii-ergon/public-record-data-scrapper-sub000/portal"
	"github.com/organvm-iii-ergon/public-record-data-scrapper-sub000/probe"
	"github.com/organvm-iii-ergon/public-record-data-scrapper-sub000/queue"
	"github.com/organvm-iii-ergon/public-record-data-scrapper-sub000/scraper"
)

func main() {
	defaultCfg := config.DefaultConfig()

	stateDefault := defaultCfg.State
	if value, ok := config.EnvString("SCRAPER_STATE"); ok {
		stateDefault = value
	}
	pagesDefault := defaultCfg.MaxPages
	if value, ok, err := config.EnvInt("SCRAPER_PAGES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_PAGES: %v\n", err)
		os.Exit(1)
	} else if ok {
		pagesDefault = value
	}
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("SCRAPER_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("SCRAPER_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	state := flag.String("state", stateDefault, "Two-letter state code (available: "+strings.Join(portal.States(), ", ")+")")
	companies := flag.String("companies", "", "Comma-separated company names to search (required)")
	maxPages := flag.Int("pages", pagesDefault, "Maximum result pages per search")
	rate := flag.Int("rate", 0, "Searches per minute (0 uses the portal's default)")
	retries := flag.Int("retries", defaultCfg.RetryAttempts, "Retry attempts per search")
	retryBackoffMs := flag.Int("retry-backoff", int(defaultCfg.RetryBackoff/time.Millisecond), "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", int(defaultCfg.RetryBackoffMax/time.Millisecond), "Maximum retry backoff (milliseconds)")
	timeoutSec := flag.Int("timeout", int(defaultCfg.Timeout/time.Second), "Per-operation timeout (seconds)")
	pageDelayMs := flag.Int("page-delay", int(defaultCfg.PageDelay/time.Millisecond), "Pause between result pages (milliseconds)")
	outputFile := flag.String("output", outputDefault, "Output file path")
	outputFormat := flag.String("format", defaultCfg.OutputFormat, "Output format: csv, json, or dual")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	headless := flag.Bool("headless", true, "Run the browser headless")
	static := flag.Bool("static", false, "Force the plain-HTTP engine even for browser portals")
	skipProbe := flag.Bool("skip-probe", false, "Skip the portal pre-flight check")
	diagnosticsDir := flag.String("diagnostics-dir", defaultCfg.DiagnosticsDir, "Directory for failure screenshots and page snapshots")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	names := splitCompanies(*companies)
	if len(names) == 0 {
		fmt.Fprintln(os.Stderr, "at least one company name is required (-companies)")
		flag.Usage()
		os.Exit(1)
	}

	profile, ok := portal.Lookup(*state)
	if !ok {
		slog.Error("unknown state",
			slog.String("state", *state),
			slog.String("available", strings.Join(portal.States(), ", ")),
		)
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	cfg.State = profile.State
	cfg.BaseURL = profile.BaseURL
	cfg.MaxPages = *maxPages
	cfg.RetryAttempts = *retries
	cfg.RetryBackoff = time.Duration(*retryBackoffMs) * time.Millisecond
	cfg.RetryBackoffMax = time.Duration(*retryBackoffMaxMs) * time.Millisecond
	cfg.Timeout = time.Duration(*timeoutSec) * time.Second
	cfg.PageDelay = time.Duration(*pageDelayMs) * time.Millisecond
	cfg.OutputFile = *outputFile
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.MetricsAddr = *metricsAddr
	cfg.Headless = *headless
	cfg.DiagnosticsDir = *diagnosticsDir
	cfg.Verbose = *verbose
	cfg.RateLimitPerMinute = profile.RateLimitPerMinute
	if *rate > 0 {
		cfg.RateLimitPerMinute = *rate
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	if !*skipProbe {
		prober := probe.New(probe.Options{Timeout: cfg.Timeout, UserAgent: cfg.UserAgent})
		status, err := prober.Check(ctx, profile)
		if err != nil {
			slog.Error("portal unreachable", slog.String("state", profile.State), slog.Any("error", err))
			os.Exit(1)
		}
		if !status.Healthy() {
			slog.Error("portal pre-flight failed",
				slog.String("state", profile.State),
				slog.String("reason", status.Reason()),
			)
			os.Exit(1)
		}
		slog.Info("portal reachable",
			slog.String("state", profile.State),
			slog.Int("status", status.StatusCode),
			slog.Duration("latency", status.Latency),
		)
	}

	var engine browser.Engine
	if profile.Static || *static {
		engine = browser.NewStaticEngine(browser.Options{
			UserAgent: cfg.UserAgent,
			OpTimeout: cfg.Timeout,
		})
	} else {
		engine = browser.NewChromeEngine(ctx, browser.Options{
			Headless:  cfg.Headless,
			UserAgent: cfg.UserAgent,
			OpTimeout: cfg.Timeout,
		})
	}

	metrics := scraper.NewMetrics()
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}

	pipe, err := pipeline.New(writer, pipeline.Options{})
	if err != nil {
		slog.Error("initialising pipeline", slog.Any("error", err))
		os.Exit(1)
	}
	pipe.Start(2)

	s := scraper.New(cfg, profile, engine, metrics)
	defer func() {
		if err := s.CloseBrowser(); err != nil {
			slog.Error("close browser", slog.Any("error", err))
		}
	}()

	slog.Info("starting extraction",
		slog.String("state", profile.State),
		slog.String("portal", profile.Name),
		slog.Int("companies", len(names)),
		slog.Int("rate_per_minute", cfg.RateLimitPerMinute),
	)

	q := queue.New(cfg.RateLimitPerMinute)
	start := time.Now()
	var failures []searchFailure
	totalRetries := 0

	for _, company := range names {
		if ctx.Err() != nil {
			break
		}
		result, _ := queue.Enqueue(ctx, q, func(ctx context.Context) (*models.ScraperResult, error) {
			return s.Search(ctx, company), nil
		})
		totalRetries += result.RetryCount

		if !result.Success {
			failures = append(failures, searchFailure{
				Company:   company,
				Error:     result.Error,
				ManualURL: s.ManualSearchURL(company),
			})
			continue
		}
		for _, warning := range result.ParsingErrors {
			slog.Warn("parsing issue", slog.String("company", company), slog.String("detail", warning))
		}
		if err := pipe.Process(result.Filings); err != nil {
			slog.Error("pipeline rejected filings", slog.Any("error", err))
			break
		}
	}

	if err := pipe.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
	}
	if err := writer.Close(); err != nil {
		slog.Error("close writer", slog.Any("error", err))
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(len(names), pipe.Stats(), failures, totalRetries, time.Since(start), cfg.OutputFile)
	if len(failures) == len(names) {
		os.Exit(1)
	}
}

type searchFailure struct {
	Company   string
	Error     string
	ManualURL string
}

func splitCompanies(raw string) []string {
	var names []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".jsonl"
		return pipeline.NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(searches int, stats pipeline.Stats, failures []searchFailure, retries int, duration time.Duration, outputFile string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Extraction complete")
	fmt.Printf("  Searches:      %d\n", searches)
	fmt.Printf("  Filings:       %d\n", stats.Processed)
	fmt.Printf("  Duplicates:    %d\n", stats.Duplicates)
	if stats.Dropped > 0 {
		fmt.Printf("  Dropped:       %d\n", stats.Dropped)
	}
	fmt.Printf("  Retries:       %d\n", retries)
	fmt.Printf("  Failures:      %d\n", len(failures))
	for _, failure := range failures {
		fmt.Printf("    %s: %s\n", failure.Company, failure.Error)
		fmt.Printf("      manual search: %s\n", failure.ManualURL)
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Output file:   %s\n", outputFile)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
