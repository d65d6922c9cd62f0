// Package probe performs pre-flight reachability checks against portals
// before any search is dispatched, so a CAPTCHA wall or maintenance window
// is reported up front instead of burning the search budget discovering it.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/organvm-iii-ergon/public-record-data-scrapper-sub000/portal"
)

// Status is the outcome of one portal check.
type Status struct {
	State      string
	StatusCode int
	Latency    time.Duration
	// Indicator is "captcha", "auth", "offline", or "" when the landing
	// page shows none of the terminal markers.
	Indicator string
}

// Healthy reports whether searches against the portal are worth attempting.
func (s Status) Healthy() bool {
	return s.Indicator == "" && s.StatusCode >= http.StatusOK && s.StatusCode < http.StatusBadRequest
}

// Reason summarizes why a portal is not healthy.
func (s Status) Reason() string {
	switch {
	case s.Indicator != "":
		return fmt.Sprintf("terminal indicator %q on landing page", s.Indicator)
	case s.StatusCode == 0:
		return "no response"
	case s.StatusCode >= http.StatusBadRequest:
		return fmt.Sprintf("http status %d", s.StatusCode)
	default:
		return ""
	}
}

// Prober fetches portal landing pages with a plain HTTP client. One Prober
// serves any number of portals; each check clones the base collector so
// callbacks never accumulate.
type Prober struct {
	base *colly.Collector
}

// Options configures the Prober's HTTP behavior.
type Options struct {
	Timeout   time.Duration
	UserAgent string
}

// New builds a Prober.
func New(opts Options) *Prober {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}

	collector := colly.NewCollector(
		colly.UserAgent(opts.UserAgent),
		// Repeated checks against the same portal are the whole point.
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(opts.Timeout)
	collector.IgnoreRobotsTxt = true
	// Error-status bodies still carry the maintenance/CAPTCHA markup we
	// want to scan.
	collector.ParseHTTPErrorResponse = true
	collector.WithTransport(&http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	return &Prober{base: collector}
}

// WithTransport swaps the underlying RoundTripper. Used by tests.
func (p *Prober) WithTransport(rt http.RoundTripper) {
	p.base.WithTransport(rt)
}

// Check fetches the portal's landing page and classifies what came back.
func (p *Prober) Check(ctx context.Context, profile portal.Profile) (Status, error) {
	status := Status{State: profile.State}

	parsed, err := url.Parse(profile.BaseURL)
	if err != nil || parsed.Host == "" {
		return status, fmt.Errorf("probe %s: invalid base url %q", profile.State, profile.BaseURL)
	}
	if err := ctx.Err(); err != nil {
		return status, err
	}

	collector := p.base.Clone()
	collector.AllowedDomains = []string{parsed.Host}

	var (
		mu       sync.Mutex
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		mu.Lock()
		defer mu.Unlock()
		status.StatusCode = r.StatusCode
		status.Indicator = portal.TerminalIndicator(string(r.Body))
	})
	collector.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		defer mu.Unlock()
		if r != nil {
			status.StatusCode = r.StatusCode
		}
		fetchErr = err
	})

	start := time.Now()
	if err := collector.Visit(profile.BaseURL); err != nil {
		return status, fmt.Errorf("probe %s: %w", profile.State, err)
	}
	collector.Wait()
	status.Latency = time.Since(start)

	if fetchErr != nil {
		return status, fmt.Errorf("probe %s: %w", profile.State, fetchErr)
	}
	return status, nil
}
