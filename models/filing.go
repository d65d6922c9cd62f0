// Package models defines data structures for the extraction pipeline.
package models

import "time"

// FilingStatus is the lifecycle state of a lien filing.
type FilingStatus string

// Recognized filing statuses. Unrecognized raw text normalizes to StatusActive.
const (
	StatusActive     FilingStatus = "active"
	StatusTerminated FilingStatus = "terminated"
	StatusLapsed     FilingStatus = "lapsed"
)

// FilingType distinguishes original financing statements from amendments.
type FilingType string

// Recognized filing types. Unrecognized raw text normalizes to TypeUCC1.
const (
	TypeUCC1 FilingType = "UCC-1"
	TypeUCC3 FilingType = "UCC-3"
)

// RawFiling holds field text exactly as extracted from portal markup,
// before any validation or normalization.
type RawFiling struct {
	FilingNumber string
	DebtorName   string
	SecuredParty string
	FilingDate   string
	Collateral   string
	Status       string
	FilingType   string
}

// UCCFiling is a validated, normalized public lien record.
type UCCFiling struct {
	FilingNumber string       `csv:"filing_number" json:"filing_number"`
	DebtorName   string       `csv:"debtor_name" json:"debtor_name"`
	SecuredParty string       `csv:"secured_party" json:"secured_party"`
	FilingDate   string       `csv:"filing_date" json:"filing_date"`
	Collateral   string       `csv:"collateral" json:"collateral"`
	Status       FilingStatus `csv:"status" json:"status"`
	FilingType   FilingType   `csv:"filing_type" json:"filing_type"`
	State        string       `csv:"state" json:"state"`
	ScrapedAt    time.Time    `csv:"scraped_at" json:"scraped_at"`
}

// ScraperResult holds the outcome of one portal search.
// Success=false never carries filings; ParsingErrors is non-fatal metadata
// and may accompany a successful result.
type ScraperResult struct {
	Success       bool        `json:"success"`
	Filings       []UCCFiling `json:"filings,omitempty"`
	Error         string      `json:"error,omitempty"`
	SearchURL     string      `json:"search_url,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
	RetryCount    int         `json:"retry_count,omitempty"`
	ParsingErrors []string    `json:"parsing_errors,omitempty"`
}
