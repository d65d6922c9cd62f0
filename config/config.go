package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds per-scraper configuration. A Config is owned by a single
// scraper instance and never mutated after construction.
type Config struct {
	State              string
	BaseURL            string
	RateLimitPerMinute int
	Timeout            time.Duration
	RetryAttempts      int
	RetryBackoff       time.Duration
	RetryBackoffMax    time.Duration
	MaxPages           int
	PageDelay          time.Duration
	UserAgent          string
	Headless           bool
	DiagnosticsDir     string
	OutputFile         string
	OutputFormat       string // csv, json, or dual
	MetricsAddr        string
	Verbose            bool
}

// DefaultConfig returns conservative defaults suitable for most portals.
func DefaultConfig() *Config {
	return &Config{
		State:              "CA",
		BaseURL:            "https://bizfileonline.sos.ca.gov/search/ucc",
		RateLimitPerMinute: 10,
		Timeout:            30 * time.Second,
		RetryAttempts:      2,
		RetryBackoff:       1 * time.Second,
		RetryBackoffMax:    30 * time.Second,
		MaxPages:           10,
		PageDelay:          2 * time.Second,
		UserAgent:          "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Headless:           true,
		DiagnosticsDir:     "diagnostics",
		OutputFile:         "output/filings.csv",
		OutputFormat:       "csv",
		MetricsAddr:        "",
		Verbose:            false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.State == "" {
		return fmt.Errorf("state cannot be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.PageDelay < 0 {
		return fmt.Errorf("page delay cannot be negative")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}

	return nil
}

// WarmupDelay is the polite pause taken before every dispatched search,
// derived from the portal's request ceiling.
func (c *Config) WarmupDelay() time.Duration {
	if c.RateLimitPerMinute <= 0 {
		return 0
	}
	return time.Minute / time.Duration(c.RateLimitPerMinute)
}

// EnvInt reads an integer environment variable. The second return reports
// whether the variable was set.
func EnvInt(name string) (int, bool, error) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", name, err)
	}
	return value, true, nil
}

// EnvString reads a string environment variable.
func EnvString(name string) (string, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return "", false
	}
	return raw, true
}
