package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/organvm-iii-ergon/public-record-data-scrapper-sub000/models"
	"github.com/organvm-iii-ergon/public-record-data-scrapper-sub000/portal"
)

// extractFilings runs the generic extraction routine over one page of
// markup: find result rows using the profile's candidate row selectors, then
// resolve each logical field through its ordered candidates. Row-level
// failures become parsing-error strings, never extraction failures.
// skip ignores the first skip data rows; accumulating pagination idioms
// (load-more, infinite scroll) grow the DOM in place, so the caller passes
// the count of rows already collected to extract only the tail.
func extractFilings(html string, profile portal.Profile, skip int) ([]models.RawFiling, []string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, []string{fmt.Sprintf("parse page markup: %v", err)}
	}

	rows := findRows(doc, profile.Rows)
	if rows == nil {
		return nil, nil
	}

	var filings []models.RawFiling
	var parsingErrors []string
	seen := 0
	rows.Each(func(i int, row *goquery.Selection) {
		if isHeaderRow(row) {
			return
		}
		seen++
		if seen <= skip {
			return
		}

		raw := models.RawFiling{
			FilingNumber: extractField(row, profile.Fields[portal.FieldFilingNumber]),
			DebtorName:   extractField(row, profile.Fields[portal.FieldDebtorName]),
			SecuredParty: extractField(row, profile.Fields[portal.FieldSecuredParty]),
			FilingDate:   extractField(row, profile.Fields[portal.FieldFilingDate]),
			Collateral:   extractField(row, profile.Fields[portal.FieldCollateral]),
			Status:       extractField(row, profile.Fields[portal.FieldStatus]),
			FilingType:   extractField(row, profile.Fields[portal.FieldFilingType]),
		}

		if raw == (models.RawFiling{}) {
			parsingErrors = append(parsingErrors, fmt.Sprintf("row %d: no recognizable fields", i))
			return
		}
		filings = append(filings, raw)
	})

	return filings, parsingErrors
}

// findRows tries each candidate row selector in order and returns the first
// non-empty match.
func findRows(doc *goquery.Document, candidates []string) *goquery.Selection {
	for _, selector := range candidates {
		rows := doc.Find(selector)
		if rows.Length() > 0 {
			return rows
		}
	}
	return nil
}

func isHeaderRow(row *goquery.Selection) bool {
	return row.Find("th").Length() > 0
}

// extractField resolves one logical field within a row: selector candidates
// first, column-index candidates as fallback, first non-empty text wins.
func extractField(row *goquery.Selection, candidates []portal.Candidate) string {
	for _, candidate := range candidates {
		var text string
		if candidate.Selector != "" {
			match := row.Find(candidate.Selector).First()
			if match.Length() == 0 {
				continue
			}
			if candidate.Attr != "" {
				text, _ = match.Attr(candidate.Attr)
			} else {
				text = match.Text()
			}
		} else if candidate.Column >= 0 {
			cells := row.Find("td")
			if candidate.Column >= cells.Length() {
				continue
			}
			text = cells.Eq(candidate.Column).Text()
		}

		if trimmed := strings.TrimSpace(text); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
