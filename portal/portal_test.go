package portal

import (
	"strings"
	"testing"
)

func TestLookup(t *testing.T) {
	profile, ok := Lookup("ca")
	if !ok {
		t.Fatalf("expected CA profile")
	}
	if profile.State != "CA" {
		t.Fatalf("state = %q, want CA", profile.State)
	}
	if len(profile.Rows) == 0 || len(profile.Fields) == 0 {
		t.Fatalf("CA profile missing extraction config")
	}

	if _, ok := Lookup("ZZ"); ok {
		t.Fatalf("unexpected profile for ZZ")
	}
}

func TestStatesSorted(t *testing.T) {
	states := States()
	if len(states) < 2 {
		t.Fatalf("expected multiple registered states, got %v", states)
	}
	for i := 1; i < len(states); i++ {
		if states[i-1] >= states[i] {
			t.Fatalf("states not sorted: %v", states)
		}
	}
}

func TestSearchURLEscapesCompany(t *testing.T) {
	profile, _ := Lookup("CA")
	url := profile.SearchURL("Acme Holdings & Sons")
	if !strings.Contains(url, "Acme+Holdings+%26+Sons") {
		t.Fatalf("company name not escaped: %q", url)
	}
}

func TestSearchURLFallsBackToBase(t *testing.T) {
	profile := Profile{BaseURL: "http://portal.test"}
	if got := profile.SearchURL("acme"); got != "http://portal.test" {
		t.Fatalf("url = %q, want base url", got)
	}
}

func TestTerminalIndicator(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{name: "recaptcha widget", html: `<div class="g-recaptcha"></div>`, expected: "captcha"},
		{name: "captcha prose", html: `<p>Please complete the CAPTCHA to continue</p>`, expected: "captcha"},
		{name: "robot check", html: `<h1>Are you a robot?</h1>`, expected: "captcha"},
		{name: "login wall", html: `<p>Login required to view filings</p>`, expected: "auth"},
		{name: "session expired", html: `<p>Session expired. Sign in again.</p>`, expected: "auth"},
		{name: "maintenance", html: `<p>This service is temporarily unavailable</p>`, expected: "offline"},
		{name: "clean page", html: `<table><tr><td>2024-001</td></tr></table>`, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TerminalIndicator(tt.html); got != tt.expected {
				t.Errorf("TerminalIndicator() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestHasNoResultsNotice(t *testing.T) {
	profile, _ := Lookup("CA")

	if !profile.HasNoResultsNotice(`<div class="no-results">No results found for your search.</div>`) {
		t.Fatalf("expected no-results notice to be recognized")
	}
	if profile.HasNoResultsNotice(`<table><tr><td>2024-001</td></tr></table>`) {
		t.Fatalf("results table misread as empty notice")
	}

	// Profiles without custom indicators fall back to the shared set.
	bare := Profile{}
	if !bare.HasNoResultsNotice("Your search returned no records.") {
		t.Fatalf("default indicators not applied")
	}
}
