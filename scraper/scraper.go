// Package scraper implements the contract every portal scraper honors:
// validate the query, pace the dispatch, drive the portal's search form,
// walk its pagination, and return validated filings — degrading to partial
// results with warnings wherever the portal allows it.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/organvm-iii-ergon/public-record-data-scrapper-sub000/browser"
	"github.com/organvm-iii-ergon/public-record-data-scrapper-sub000/config"
	"github.com/organvm-iii-ergon/public-record-data-scrapper-sub000/models"
	"github.com/organvm-iii-ergon/public-record-data-scrapper-sub000/pagination"
	"github.com/organvm-iii-ergon/public-record-data-scrapper-sub000/parser"
	"github.com/organvm-iii-ergon/public-record-data-scrapper-sub000/portal"
)

// Contract is the surface every portal scraper exposes to the orchestration
// layer. All failures are encoded in the returned ScraperResult; a result
// with Success=false always carries a human-readable Error and, where
// available, a manual search URL.
type Contract interface {
	Search(ctx context.Context, companyName string) *models.ScraperResult
	ManualSearchURL(companyName string) string
	CloseBrowser() error
}

// PortalScraper is the generic Contract implementation: one algorithm
// parameterized by a portal profile. It exclusively owns one page handle,
// created lazily and reused across searches until CloseBrowser.
type PortalScraper struct {
	cfg     *config.Config
	profile portal.Profile
	engine  browser.Engine
	metrics *Metrics
	log     *slog.Logger

	mu   sync.Mutex
	page browser.Page

	// sleep is swappable so tests do not pay real warm-up delays.
	sleep func(ctx context.Context, d time.Duration)
}

var _ Contract = (*PortalScraper)(nil)

// New builds a scraper for one portal. metrics may be nil.
func New(cfg *config.Config, profile portal.Profile, engine browser.Engine, metrics *Metrics) *PortalScraper {
	return &PortalScraper{
		cfg:     cfg,
		profile: profile,
		engine:  engine,
		metrics: metrics,
		log: slog.Default().With(
			slog.String("component", "scraper"),
			slog.String("portal", profile.State),
		),
		sleep: sleepContext,
	}
}

type searchOutcome struct {
	filings       []models.UCCFiling
	parsingErrors []string
}

// Search runs one company-name search against the portal.
func (s *PortalScraper) Search(ctx context.Context, companyName string) *models.ScraperResult {
	start := time.Now()
	result := &models.ScraperResult{Timestamp: start}

	company := strings.TrimSpace(companyName)
	if company == "" {
		result.Error = "Invalid company name"
		s.metrics.IncSearch(s.profile.State, "invalid_input")
		return result
	}
	result.SearchURL = s.profile.SearchURL(company)

	// Polite single-scraper cadence, independent of any shared queue.
	s.sleep(ctx, s.cfg.WarmupDelay())

	outcome, retries, err := retryWithBackoff(ctx, RetryConfig{
		Attempts:   s.cfg.RetryAttempts,
		Backoff:    s.cfg.RetryBackoff,
		BackoffMax: s.cfg.RetryBackoffMax,
	}, "search "+s.profile.State, func() (searchOutcome, error) {
		return s.runSearch(ctx, company)
	})

	result.RetryCount = retries
	s.metrics.AddRetries(retries)
	s.metrics.ObserveSearch(time.Since(start))

	if err != nil {
		s.metrics.IncSearch(s.profile.State, "failure")
		s.metrics.IncError(errorTypeLabel(err))
		s.log.Error("search failed",
			slog.String("company", company),
			slog.Int("retries", retries),
			slog.Any("error", err),
		)
		s.captureFailure(ctx, company)
		result.Error = err.Error()
		return result
	}

	result.Success = true
	result.Filings = outcome.filings
	result.ParsingErrors = outcome.parsingErrors
	s.metrics.IncSearch(s.profile.State, "success")
	s.metrics.AddFilings(len(outcome.filings))
	s.log.Info("search complete",
		slog.String("company", company),
		slog.Int("filings", len(outcome.filings)),
		slog.Int("parsing_errors", len(outcome.parsingErrors)),
		slog.Int("retries", retries),
	)
	return result
}

// ManualSearchURL returns a URL a human can use to complete the query when
// automation fails.
func (s *PortalScraper) ManualSearchURL(companyName string) string {
	return s.profile.SearchURL(companyName)
}

// CloseBrowser releases the page and the underlying engine. Safe to call
// repeatedly; closing an already-closed session is a no-op.
func (s *PortalScraper) CloseBrowser() error {
	s.releasePage()
	return s.engine.Close()
}

// runSearch is one full navigate-and-extract attempt, the unit the retry
// policy wraps.
func (s *PortalScraper) runSearch(ctx context.Context, company string) (searchOutcome, error) {
	var zero searchOutcome

	page, err := s.acquirePage(ctx)
	if err != nil {
		return zero, fmt.Errorf("acquire page: %w", err)
	}

	if err := s.submitSearch(ctx, page, company); err != nil {
		return zero, err
	}

	paginator := pagination.New(page, pagination.Config{
		MaxPages:   s.cfg.MaxPages,
		PageDelay:  s.cfg.PageDelay,
		PageParams: s.profile.PageParams,
		Hint:       s.profile.PaginationHint,
	})

	var raws []models.RawFiling
	var parsingErrors []string
	current := 1
	// Rows already extracted from an accumulating page (load-more, infinite
	// scroll), where the DOM grows in place and re-reading it replays every
	// row collected so far.
	collected := 0
	for {
		html, err := page.Content(ctx)
		if err != nil {
			return zero, fmt.Errorf("read results page %d: %w", current, err)
		}
		if terr := terminalError(portal.TerminalIndicator(html)); terr != nil {
			return zero, terr
		}

		pageRaws, pageErrs := extractFilings(html, s.profile, collected)
		if current == 1 && len(pageRaws) == 0 && !s.profile.HasNoResultsNotice(html) {
			// Distinguishes "definitely empty" from "probably broken" for
			// the caller without failing the search.
			parsingErrors = append(parsingErrors,
				"no filings extracted and no empty-result notice found; portal markup may have drifted")
		}
		raws = append(raws, pageRaws...)
		parsingErrors = append(parsingErrors, pageErrs...)
		s.metrics.IncPages()

		state := paginator.Detect(ctx, current)
		if !paginator.ShouldContinue(state) {
			break
		}
		if !paginator.Next(ctx, state) {
			break
		}
		if state.Type == pagination.LoadMore || state.Type == pagination.InfiniteScroll {
			collected += len(pageRaws)
		}
		current = state.CurrentPage + 1
	}

	filings, validationErrors := parser.ValidateFilings(raws, parsingErrors)
	now := time.Now()
	for i := range filings {
		filings[i].State = s.profile.State
		filings[i].ScrapedAt = now
	}
	return searchOutcome{filings: filings, parsingErrors: validationErrors}, nil
}

// submitSearch gets the page onto the first results view. Static portals
// navigate straight to the rendered search URL; interactive portals drive
// the search form through candidate selectors.
func (s *PortalScraper) submitSearch(ctx context.Context, page browser.Page, company string) error {
	if s.profile.Static || len(s.profile.SearchInput) == 0 {
		return page.Navigate(ctx, s.profile.SearchURL(company))
	}

	if err := page.Navigate(ctx, s.profile.BaseURL); err != nil {
		return err
	}
	if html, err := page.Content(ctx); err == nil {
		if terr := terminalError(portal.TerminalIndicator(html)); terr != nil {
			return terr
		}
	}

	filled := false
	for _, selector := range s.profile.SearchInput {
		if err := page.Fill(ctx, selector, company); err == nil {
			filled = true
			break
		}
	}
	if !filled {
		return fmt.Errorf("search input not found on %s", s.profile.BaseURL)
	}

	submitted := false
	for _, selector := range s.profile.SearchSubmit {
		if err := page.Click(ctx, selector); err == nil {
			submitted = true
			break
		}
	}
	if !submitted {
		return fmt.Errorf("search submit control not found on %s", s.profile.BaseURL)
	}

	return s.waitForResults(ctx, page)
}

func (s *PortalScraper) waitForResults(ctx context.Context, page browser.Page) error {
	if len(s.profile.ResultsReady) == 0 {
		s.sleep(ctx, s.cfg.PageDelay)
		return nil
	}

	var lastErr error
	for _, selector := range s.profile.ResultsReady {
		if err := page.WaitVisible(ctx, selector); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("results did not render: %w", lastErr)
}

func (s *PortalScraper) acquirePage(ctx context.Context) (browser.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page != nil {
		return s.page, nil
	}
	page, err := s.engine.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	s.page = page
	return page, nil
}

func (s *PortalScraper) releasePage() {
	s.mu.Lock()
	page := s.page
	s.page = nil
	s.mu.Unlock()

	if page != nil {
		if err := page.Close(); err != nil {
			s.log.Warn("page close failed", slog.Any("error", err))
		}
	}
}

// captureFailure snapshots the failing page for triage, then tears the page
// down so the next search starts clean.
func (s *PortalScraper) captureFailure(ctx context.Context, company string) {
	s.mu.Lock()
	page := s.page
	s.mu.Unlock()
	if page == nil {
		return
	}

	basename := fmt.Sprintf("%s-%s-%d",
		strings.ToLower(s.profile.State), sanitizeName(company), time.Now().Unix())
	artifacts := CaptureDiagnostics(ctx, page, s.cfg.DiagnosticsDir, basename)
	if artifacts.ScreenshotPath != "" || artifacts.HTMLPath != "" {
		s.log.Info("diagnostics captured",
			slog.String("screenshot", artifacts.ScreenshotPath),
			slog.String("html", artifacts.HTMLPath),
		)
	}

	s.releasePage()
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
