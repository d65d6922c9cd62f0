// Package parser validates and normalizes raw extracted filings into
// canonical records. Everything here is pure: no I/O, no shared state.
package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/organvm-iii-ergon/public-record-data-scrapper-sub000/models"
)

// isoDate is the canonical filing date format.
const isoDate = "2006-01-02"

// dateLayouts are the raw date shapes portals have been observed to emit,
// tried in order.
var dateLayouts = []string{
	isoDate,
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"02-Jan-2006",
	"20060102",
}

// ValidateFilings applies per-record validation to raw extractions. A record
// is dropped only when both filing number and debtor name are empty after
// trimming; each drop appends one validation error. Unrecognized status or
// filing type text coerces to the documented default instead of dropping.
// priorErrors (extraction-time failures) are preserved unchanged at the head
// of the returned error list. Output order follows input order.
func ValidateFilings(raw []models.RawFiling, priorErrors []string) ([]models.UCCFiling, []string) {
	validationErrors := make([]string, 0, len(priorErrors))
	validationErrors = append(validationErrors, priorErrors...)

	validated := make([]models.UCCFiling, 0, len(raw))
	for i, record := range raw {
		filingNumber := strings.TrimSpace(record.FilingNumber)
		debtorName := strings.TrimSpace(record.DebtorName)
		if filingNumber == "" && debtorName == "" {
			validationErrors = append(validationErrors,
				fmt.Sprintf("record %d: missing both filing number and debtor name", i))
			continue
		}

		validated = append(validated, models.UCCFiling{
			FilingNumber: filingNumber,
			DebtorName:   debtorName,
			SecuredParty: strings.TrimSpace(record.SecuredParty),
			FilingDate:   NormalizeFilingDate(record.FilingDate),
			Collateral:   strings.TrimSpace(record.Collateral),
			Status:       NormalizeStatus(record.Status),
			FilingType:   NormalizeFilingType(record.FilingType),
		})
	}

	return validated, validationErrors
}

// NormalizeStatus maps raw status text onto the status enum. Unrecognized
// text defaults to active rather than failing the record.
func NormalizeStatus(raw string) models.FilingStatus {
	text := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(text, "term"):
		return models.StatusTerminated
	case strings.Contains(text, "laps"), strings.Contains(text, "expir"):
		return models.StatusLapsed
	default:
		return models.StatusActive
	}
}

// NormalizeFilingType maps raw filing-type text onto the type enum.
// Amendments, continuations, and terminations ride on UCC-3; everything
// else, including plain financing statements, defaults to UCC-1.
func NormalizeFilingType(raw string) models.FilingType {
	text := strings.ToUpper(strings.TrimSpace(raw))
	compact := strings.ReplaceAll(strings.ReplaceAll(text, "-", ""), " ", "")
	switch {
	case strings.Contains(compact, "UCC3"),
		strings.Contains(text, "AMEND"),
		strings.Contains(text, "CONTINUATION"),
		strings.Contains(text, "TERMINATION"),
		strings.Contains(text, "ASSIGNMENT"):
		return models.TypeUCC3
	default:
		return models.TypeUCC1
	}
}

// NormalizeFilingDate converts a raw date string to ISO 2006-01-02. Text
// that matches no known layout passes through trimmed, so an odd portal
// format degrades to "unnormalized" rather than data loss.
func NormalizeFilingDate(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, text); err == nil {
			return parsed.Format(isoDate)
		}
	}
	return text
}
