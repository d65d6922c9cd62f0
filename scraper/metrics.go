package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the extraction pipeline.
type Metrics struct {
	Registry       *prometheus.Registry
	SearchesTotal  *prometheus.CounterVec
	SearchDuration prometheus.Histogram
	PagesTotal     prometheus.Counter
	FilingsTotal   prometheus.Counter
	RetriesTotal   prometheus.Counter
	ErrorsTotal    *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	searches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_searches_total",
			Help: "Total searches dispatched, by portal and outcome.",
		},
		[]string{"portal", "outcome"},
	)
	searchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_search_duration_seconds",
			Help:    "End-to-end latency of portal searches.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_pages_total",
			Help: "Total result pages fetched across searches.",
		},
	)
	filings := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_filings_total",
			Help: "Total validated filings extracted.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total retry attempts consumed.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total scraper errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(searches, searchDuration, pages, filings, retries, errorsTotal)

	return &Metrics{
		Registry:       registry,
		SearchesTotal:  searches,
		SearchDuration: searchDuration,
		PagesTotal:     pages,
		FilingsTotal:   filings,
		RetriesTotal:   retries,
		ErrorsTotal:    errorsTotal,
	}
}

// IncSearch increments the searches counter.
func (m *Metrics) IncSearch(portal, outcome string) {
	if m == nil {
		return
	}
	m.SearchesTotal.WithLabelValues(portal, outcome).Inc()
}

// ObserveSearch records one search's duration.
func (m *Metrics) ObserveSearch(d time.Duration) {
	if m == nil {
		return
	}
	m.SearchDuration.Observe(d.Seconds())
}

// IncPages increments the pages counter.
func (m *Metrics) IncPages() {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
}

// AddFilings adds to the filings counter.
func (m *Metrics) AddFilings(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.FilingsTotal.Add(float64(n))
}

// AddRetries adds to the retries counter.
func (m *Metrics) AddRetries(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RetriesTotal.Add(float64(n))
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
