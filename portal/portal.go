// Package portal holds per-portal configuration: where a state's UCC search
// lives, which selectors map to which logical fields, and how the portal
// pages through results. Profiles are data consumed by one generic
// extraction routine; adding a portal means adding a profile, not code.
package portal

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/organvm-iii-ergon/public-record-data-scrapper-sub000/pagination"
)

// Field names a logical filing attribute extracted from a result row.
type Field string

const (
	FieldFilingNumber Field = "filing_number"
	FieldDebtorName   Field = "debtor_name"
	FieldSecuredParty Field = "secured_party"
	FieldFilingDate   Field = "filing_date"
	FieldCollateral   Field = "collateral"
	FieldStatus       Field = "status"
	FieldFilingType   Field = "filing_type"
)

// Candidate locates one field within a result row. Selector takes priority;
// when empty, Column indexes the row's cells. Candidates are tried in order
// until one yields non-empty text, which is what keeps extraction tolerant
// of minor markup drift.
type Candidate struct {
	Selector string
	Attr     string
	Column   int
}

// Cell builds a column-index candidate.
func Cell(column int) Candidate {
	return Candidate{Selector: "", Column: column}
}

// Sel builds a CSS-selector candidate.
func Sel(selector string) Candidate {
	return Candidate{Selector: selector, Column: -1}
}

// Profile describes one state's portal.
type Profile struct {
	State   string
	Name    string
	BaseURL string
	// SearchURLTemplate renders the human-usable search URL; %s receives the
	// escaped company name. Static portals also navigate here directly.
	SearchURLTemplate string
	// SearchInput / SearchSubmit are candidate selectors for the interactive
	// search form, tried in order.
	SearchInput  []string
	SearchSubmit []string
	// ResultsReady are selectors whose appearance signals results rendered.
	ResultsReady []string
	// Rows are candidate selectors for one result row.
	Rows []string
	// Fields maps each logical field to its ordered candidates.
	Fields map[Field][]Candidate
	// NoResults are lowercase substrings whose presence means "definitely
	// empty" as opposed to "probably broken".
	NoResults []string
	// PaginationHint forces a pagination type when markup alone cannot
	// reveal it (infinite scroll). Empty means detect.
	PaginationHint pagination.Type
	// PageParams overrides the URL page-parameter candidates.
	PageParams []string
	// RateLimitPerMinute is the portal's politeness ceiling.
	RateLimitPerMinute int
	// Static marks portals that render results server-side and can be
	// scraped without a real browser.
	Static bool
}

// SearchURL renders the search URL for a company name.
func (p Profile) SearchURL(company string) string {
	if p.SearchURLTemplate == "" {
		return p.BaseURL
	}
	return fmt.Sprintf(p.SearchURLTemplate, url.QueryEscape(strings.TrimSpace(company)))
}

// defaultFields is the common "results table" layout: a named selector per
// field first, then the column position most portals use.
func defaultFields() map[Field][]Candidate {
	return map[Field][]Candidate{
		FieldFilingNumber: {Sel("td.filing-number"), Sel(".filing-number"), Sel("a.filing-link"), Cell(0)},
		FieldDebtorName:   {Sel("td.debtor-name"), Sel(".debtor"), Cell(1)},
		FieldSecuredParty: {Sel("td.secured-party"), Sel(".secured-party"), Cell(2)},
		FieldFilingDate:   {Sel("td.filing-date"), Sel(".filing-date"), Sel("time"), Cell(3)},
		FieldStatus:       {Sel("td.status"), Sel(".status"), Cell(4)},
		FieldFilingType:   {Sel("td.filing-type"), Sel(".filing-type"), Cell(5)},
		FieldCollateral:   {Sel("td.collateral"), Sel(".collateral"), Cell(6)},
	}
}

var defaultNoResults = []string{
	"no results found",
	"no records found",
	"no matches found",
	"0 results",
	"your search returned no",
}

var registry = map[string]Profile{
	"CA": {
		State:             "CA",
		Name:              "California Secretary of State",
		BaseURL:           "https://bizfileonline.sos.ca.gov/search/ucc",
		SearchURLTemplate: "https://bizfileonline.sos.ca.gov/search/ucc?q=%s",
		SearchInput:       []string{`input[name="SearchCriteria"]`, `input#search-input`, `input[type="search"]`},
		SearchSubmit:      []string{`button[type="submit"]`, `button.search-button`, `input[type="submit"]`},
		ResultsReady:      []string{`table.search-results`, `.results-list`, `.no-results`},
		Rows:              []string{`table.search-results tbody tr`, `.results-list .result-row`},
		Fields:            defaultFields(),
		NoResults:         defaultNoResults,
		RateLimitPerMinute: 10,
	},
	"TX": {
		State:             "TX",
		Name:              "Texas Secretary of State",
		BaseURL:           "https://www.sos.state.tx.us/ucc",
		SearchURLTemplate: "https://www.sos.state.tx.us/ucc/search?debtor=%s",
		SearchInput:       []string{`input[name="debtorName"]`, `input#debtor-name`},
		SearchSubmit:      []string{`input[type="submit"]`, `button[type="submit"]`},
		ResultsReady:      []string{`table#results`, `.search-results`},
		Rows:              []string{`table#results tbody tr`, `table.results tr.data-row`},
		Fields:            defaultFields(),
		NoResults:         defaultNoResults,
		PageParams:        []string{"pageNumber", "page"},
		RateLimitPerMinute: 6,
	},
	"NY": {
		State:             "NY",
		Name:              "New York Department of State",
		BaseURL:           "https://appext20.dos.ny.gov/pls/ucc_public/web_search.main_frame",
		SearchURLTemplate: "https://appext20.dos.ny.gov/pls/ucc_public/web_search.search?debtor=%s",
		SearchInput:       []string{`input[name="p_debtor_name"]`, `input#debtor`},
		SearchSubmit:      []string{`input[type="submit"]`},
		ResultsReady:      []string{`table.results`, `pre.results`},
		Rows:              []string{`table.results tr.row`, `table tbody tr`},
		Fields:            defaultFields(),
		NoResults:         append([]string{"no ucc filings"}, defaultNoResults...),
		Static:            true,
		PageParams:        []string{"p", "page"},
		RateLimitPerMinute: 12,
	},
	"FL": {
		State:             "FL",
		Name:              "Florida Secured Transaction Registry",
		BaseURL:           "https://www.floridaucc.com/uccweb",
		SearchURLTemplate: "https://www.floridaucc.com/uccweb/search?name=%s",
		SearchInput:       []string{`input[name="search_text"]`, `input#searchName`},
		SearchSubmit:      []string{`button#search`, `input[type="submit"]`},
		ResultsReady:      []string{`#resultsGrid`, `.results`},
		Rows:              []string{`#resultsGrid .result-card`, `table.results tbody tr`},
		Fields:            defaultFields(),
		NoResults:         defaultNoResults,
		PaginationHint:    pagination.InfiniteScroll,
		RateLimitPerMinute: 10,
	},
}

// Lookup returns the profile for a two-letter state code.
func Lookup(state string) (Profile, bool) {
	profile, ok := registry[strings.ToUpper(strings.TrimSpace(state))]
	return profile, ok
}

// States lists the registered state codes, sorted.
func States() []string {
	states := make([]string, 0, len(registry))
	for state := range registry {
		states = append(states, state)
	}
	sort.Strings(states)
	return states
}

// TerminalIndicator scans page markup for signals that retrying cannot fix:
// a CAPTCHA challenge, a login wall, or an explicit outage notice. It
// returns "captcha", "auth", "offline", or "" when none match.
func TerminalIndicator(html string) string {
	text := strings.ToLower(html)
	for _, marker := range []string{"g-recaptcha", "h-captcha", "captcha", "are you a robot", "verify you are human"} {
		if strings.Contains(text, marker) {
			return "captcha"
		}
	}
	for _, marker := range []string{"authentication required", "login required", "please log in", "sign in to continue", "session expired"} {
		if strings.Contains(text, marker) {
			return "auth"
		}
	}
	for _, marker := range []string{"temporarily unavailable", "scheduled maintenance", "system maintenance", "service unavailable", "portal is offline", "currently offline"} {
		if strings.Contains(text, marker) {
			return "offline"
		}
	}
	return ""
}

// HasNoResultsNotice reports whether the markup contains one of the
// profile's "definitely empty" indicators.
func (p Profile) HasNoResultsNotice(html string) bool {
	text := strings.ToLower(html)
	indicators := p.NoResults
	if len(indicators) == 0 {
		indicators = defaultNoResults
	}
	for _, indicator := range indicators {
		if strings.Contains(text, indicator) {
			return true
		}
	}
	return false
}
