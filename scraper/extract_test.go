package scraper

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/organvm-iii-ergon/public-record-data-scrapper-sub000/portal"
)

func testFields() map[portal.Field][]portal.Candidate {
	return map[portal.Field][]portal.Candidate{
		portal.FieldFilingNumber: {portal.Sel("td.filing-number"), portal.Cell(0)},
		portal.FieldDebtorName:   {portal.Sel("td.debtor-name"), portal.Cell(1)},
		portal.FieldSecuredParty: {portal.Cell(2)},
		portal.FieldFilingDate:   {portal.Cell(3)},
		portal.FieldStatus:       {portal.Cell(4)},
		portal.FieldFilingType:   {portal.Cell(5)},
		portal.FieldCollateral:   {portal.Cell(6)},
	}
}

func testProfile() portal.Profile {
	return portal.Profile{
		State:             "CA",
		BaseURL:           "http://portal.test/ucc",
		SearchURLTemplate: "http://portal.test/ucc/search?q=%s",
		SearchInput:       []string{"input#q"},
		SearchSubmit:      []string{"button#go"},
		ResultsReady:      []string{"table.results"},
		Rows:              []string{"table.results tbody tr"},
		Fields:            testFields(),
		NoResults:         []string{"no results found"},
	}
}

func buildResultsPage(rows [][7]string, extra string) string {
	var b strings.Builder
	b.WriteString(`<html><body><table class="results"><thead><tr><th>Number</th><th>Debtor</th></tr></thead><tbody>`)
	for _, row := range rows {
		b.WriteString("<tr>")
		for _, cell := range row {
			fmt.Fprintf(&b, "<td>%s</td>", cell)
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
	b.WriteString(extra)
	b.WriteString("</body></html>")
	return b.String()
}

func TestExtractFilingsFromTable(t *testing.T) {
	html := buildResultsPage([][7]string{
		{"2024-001", "Acme Corp", "First Bank", "01/15/2024", "Active", "UCC-1", "All assets"},
		{"2024-002", "Beta LLC", "Second Bank", "02/20/2024", "Terminated", "UCC-3 Amendment", "Equipment"},
	}, "")

	filings, errs := extractFilings(html, testProfile(), 0)
	require.Empty(t, errs)
	require.Len(t, filings, 2)

	require.Equal(t, "2024-001", filings[0].FilingNumber)
	require.Equal(t, "Acme Corp", filings[0].DebtorName)
	require.Equal(t, "First Bank", filings[0].SecuredParty)
	require.Equal(t, "UCC-3 Amendment", filings[1].FilingType)
}

func TestExtractFilingsSkipsHeaderRow(t *testing.T) {
	profile := testProfile()
	// Row selector that also matches the header row.
	profile.Rows = []string{"table.results tr"}

	html := buildResultsPage([][7]string{
		{"2024-001", "Acme Corp", "", "", "", "", ""},
	}, "")

	filings, errs := extractFilings(html, profile, 0)
	require.Empty(t, errs)
	require.Len(t, filings, 1)
}

func TestExtractFilingsNamedSelectorBeatsColumn(t *testing.T) {
	html := `<html><body><table class="results"><tbody>
		<tr><td>ignored</td><td class="filing-number">2024-009</td><td class="debtor-name">Gamma Inc</td></tr>
	</tbody></table></body></html>`

	filings, errs := extractFilings(html, testProfile(), 0)
	require.Empty(t, errs)
	require.Len(t, filings, 1)
	require.Equal(t, "2024-009", filings[0].FilingNumber)
	require.Equal(t, "Gamma Inc", filings[0].DebtorName)
}

func TestExtractFilingsFallsBackThroughRowCandidates(t *testing.T) {
	profile := testProfile()
	profile.Rows = []string{"table.results tbody tr", "ul.filings li"}

	html := `<html><body><ul class="filings">
		<li><span class="filing-number">X-1</span></li>
	</ul></body></html>`
	profile.Fields[portal.FieldFilingNumber] = []portal.Candidate{portal.Sel(".filing-number")}

	filings, _ := extractFilings(html, profile, 0)
	require.Len(t, filings, 1)
	require.Equal(t, "X-1", filings[0].FilingNumber)
}

func TestExtractFilingsReportsUnrecognizableRows(t *testing.T) {
	html := buildResultsPage([][7]string{
		{"", "", "", "", "", "", ""},
		{"2024-003", "Delta Co", "", "", "", "", ""},
	}, "")

	filings, errs := extractFilings(html, testProfile(), 0)
	require.Len(t, filings, 1)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0], "no recognizable fields")
}

func TestExtractFilingsSkipsAlreadyCollectedRows(t *testing.T) {
	profile := testProfile()
	// Row selector that also matches the header row, which must not count
	// against the skip.
	profile.Rows = []string{"table.results tr"}

	html := buildResultsPage([][7]string{
		{"2024-001", "Acme Corp", "", "", "", "", ""},
		{"2024-002", "Beta LLC", "", "", "", "", ""},
		{"2024-003", "Gamma Inc", "", "", "", "", ""},
	}, "")

	filings, errs := extractFilings(html, profile, 2)
	require.Empty(t, errs)
	require.Len(t, filings, 1)
	require.Equal(t, "2024-003", filings[0].FilingNumber)

	filings, _ = extractFilings(html, profile, 3)
	require.Empty(t, filings)
}

func TestExtractFilingsNoRows(t *testing.T) {
	filings, errs := extractFilings(`<html><body><p>No results found.</p></body></html>`, testProfile(), 0)
	require.Empty(t, filings)
	require.Empty(t, errs)
}

func TestExtractFieldAttrCandidate(t *testing.T) {
	profile := testProfile()
	profile.Fields[portal.FieldFilingNumber] = []portal.Candidate{
		{Selector: "a.filing-link", Attr: "data-filing", Column: -1},
	}

	html := `<html><body><table class="results"><tbody>
		<tr><td><a class="filing-link" data-filing="F-77">view</a></td><td>Debtor</td></tr>
	</tbody></table></body></html>`

	filings, _ := extractFilings(html, profile, 0)
	require.Len(t, filings, 1)
	require.Equal(t, "F-77", filings[0].FilingNumber)
}
