// Package pagination classifies the paging idiom of a loaded results page
// and drives "fetch next page" until a stop condition. Navigation failures
// degrade to "stop collecting"; they never fail the surrounding search.
package pagination

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/organvm-iii-ergon/public-record-data-scrapper-sub000/browser"
)

// Type identifies a pagination idiom.
type Type string

const (
	Numbered       Type = "numbered"
	NextPrev       Type = "next-prev"
	LoadMore       Type = "load-more"
	InfiniteScroll Type = "infinite-scroll"
	URLParam       Type = "url-param"
	None           Type = "none"
)

// State is the classification of one loaded page. It is recomputed after
// every page load and never persisted across searches.
type State struct {
	CurrentPage int
	TotalPages  int // 0 when unknown
	HasNextPage bool
	Type        Type
}

// Config tunes detection and navigation.
type Config struct {
	// MaxPages bounds pages fetched per search regardless of site behavior.
	MaxPages int
	// PageDelay is the fixed pause after each navigation.
	PageDelay time.Duration
	// PageParams are URL query parameter candidates tried in order for
	// url-param portals. Defaults to page, pageNumber, pg, p.
	PageParams []string
	// Hint forces a pagination type a portal is known to use (typically
	// infinite-scroll, which markup alone cannot reveal). Empty means detect.
	Hint Type
}

// DefaultMaxPages caps a search when the caller does not say otherwise.
const DefaultMaxPages = 10

var defaultPageParams = []string{"page", "pageNumber", "pg", "p"}

// Engine drives pagination for a single page handle.
type Engine struct {
	page browser.Page
	cfg  Config
	log  *slog.Logger
}

// New builds an engine around a live page.
func New(page browser.Page, cfg Config) *Engine {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if len(cfg.PageParams) == 0 {
		cfg.PageParams = defaultPageParams
	}
	return &Engine{
		page: page,
		cfg:  cfg,
		log:  slog.Default().With(slog.String("component", "pagination")),
	}
}

// Selector sets, broadest idiom first within each group. These cover the
// common markup across the portals; per-portal overrides live in the portal
// profiles, not here.
const (
	numberedLinkSelectors = ".pagination a, .pager a, ul.pagination li a, a.page-link, .page-numbers a, nav.pagination a"
	activePageSelectors   = ".pagination .active, .pagination li.active a, .pager .current, a.page-link.active, .page-numbers .current, span.current"
	nextControlSelectors  = `a[rel="next"], li.next a, a.next, button.next, .pagination-next a, a.pagination-next`
	loadMoreSelectors     = `button.load-more, a.load-more, [data-load-more], button.show-more`
)

var nextTextPattern = regexp.MustCompile(`(?i)^\s*(next|next\s*page|›|»|>)\s*$`)
var loadMoreTextPattern = regexp.MustCompile(`(?i)(load|show|view)\s+more`)

// Detect classifies the current page. current is the 1-based page count the
// caller has fetched so far; it is used when the markup does not state the
// page number itself. Detection errors classify as None rather than failing.
func (e *Engine) Detect(ctx context.Context, current int) State {
	if current < 1 {
		current = 1
	}

	if e.cfg.Hint == InfiniteScroll {
		return State{CurrentPage: current, HasNextPage: true, Type: InfiniteScroll}
	}

	html, err := e.page.Content(ctx)
	if err != nil {
		e.log.Debug("content unavailable during detection", slog.Any("error", err))
		return State{CurrentPage: current, Type: None}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		e.log.Debug("unparseable markup during detection", slog.Any("error", err))
		return State{CurrentPage: current, Type: None}
	}

	if state, ok := e.detectNumbered(doc, current); ok {
		return state
	}
	if state, ok := detectControl(doc, nextControlSelectors, nextTextPattern, current, NextPrev); ok {
		return state
	}
	if state, ok := detectControl(doc, loadMoreSelectors, loadMoreTextPattern, current, LoadMore); ok {
		return state
	}
	if state, ok := e.detectURLParam(ctx, current); ok {
		return state
	}

	return State{CurrentPage: current, Type: None}
}

func (e *Engine) detectNumbered(doc *goquery.Document, current int) (State, bool) {
	links := doc.Find(numberedLinkSelectors)
	if links.Length() == 0 {
		return State{}, false
	}

	total := 0
	sawNumber := false
	links.Each(func(_ int, s *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(s.Text())); err == nil {
			sawNumber = true
			if n > total {
				total = n
			}
		}
	})
	if !sawNumber {
		return State{}, false
	}

	if active := doc.Find(activePageSelectors).First(); active.Length() > 0 {
		if n, err := strconv.Atoi(strings.TrimSpace(active.Text())); err == nil {
			current = n
		}
	}

	return State{
		CurrentPage: current,
		TotalPages:  total,
		HasNextPage: current < total,
		Type:        Numbered,
	}, true
}

func detectControl(doc *goquery.Document, selectors string, textPattern *regexp.Regexp, current int, typ Type) (State, bool) {
	found := false
	enabled := false

	match := func(s *goquery.Selection) {
		found = true
		if !controlDisabled(s) {
			enabled = true
		}
	}

	doc.Find(selectors).Each(func(_ int, s *goquery.Selection) {
		match(s)
	})
	if !found {
		doc.Find("a, button").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if textPattern.MatchString(strings.TrimSpace(s.Text())) {
				match(s)
				return false
			}
			return true
		})
	}
	if !found {
		return State{}, false
	}

	return State{
		CurrentPage: current,
		HasNextPage: enabled,
		Type:        typ,
	}, true
}

func controlDisabled(s *goquery.Selection) bool {
	if _, ok := s.Attr("disabled"); ok {
		return true
	}
	if v, ok := s.Attr("aria-disabled"); ok && v == "true" {
		return true
	}
	if class, ok := s.Attr("class"); ok && strings.Contains(class, "disabled") {
		return true
	}
	return s.ParentsFiltered(".disabled, li.disabled").Length() > 0
}

func (e *Engine) detectURLParam(ctx context.Context, current int) (State, bool) {
	location, err := e.page.URL(ctx)
	if err != nil {
		return State{}, false
	}
	parsed, err := url.Parse(location)
	if err != nil {
		return State{}, false
	}

	query := parsed.Query()
	for _, param := range e.cfg.PageParams {
		raw := query.Get(param)
		if raw == "" {
			continue
		}
		if n, err := strconv.Atoi(raw); err == nil {
			current = n
		}
		// A page parameter in the URL is taken as "more pages may exist";
		// the MaxPages cap bounds the optimism.
		return State{CurrentPage: current, HasNextPage: true, Type: URLParam}, true
	}
	return State{}, false
}

// ShouldContinue reports whether another page should be fetched. The hard
// cap wins over everything the site claims.
func (e *Engine) ShouldContinue(s State) bool {
	if s.CurrentPage >= e.cfg.MaxPages {
		return false
	}
	if !s.HasNextPage {
		return false
	}
	if s.TotalPages > 0 && s.CurrentPage >= s.TotalPages {
		return false
	}
	return true
}

// Next advances to the following page according to the detected idiom. It
// returns false when no further navigation is possible; every failure is
// swallowed and logged because pagination failures degrade to "stop
// collecting", not to search failure.
func (e *Engine) Next(ctx context.Context, s State) bool {
	var ok bool
	switch s.Type {
	case Numbered:
		ok = e.clickNumberedLink(ctx, s.CurrentPage+1)
	case NextPrev:
		ok = e.clickControl(ctx, nextControlSelectors, nextTextPattern)
	case LoadMore:
		ok = e.clickControl(ctx, loadMoreSelectors, loadMoreTextPattern)
	case URLParam:
		ok = e.navigatePageParam(ctx, s.CurrentPage+1)
	case InfiniteScroll:
		ok = e.scrollForMore(ctx)
	default:
		return false
	}

	if !ok {
		e.log.Debug("cannot navigate further", slog.String("type", string(s.Type)), slog.Int("page", s.CurrentPage))
		return false
	}

	e.settle(ctx)
	return true
}

// clickNumberedLink clicks the pagination link whose text equals the wanted
// page number. Matching by text needs a script round-trip; engines without
// script support simply stop here.
func (e *Engine) clickNumberedLink(ctx context.Context, page int) bool {
	script := fmt.Sprintf(`(() => {
		const links = document.querySelectorAll(%q);
		for (const link of links) {
			if (link.textContent.trim() === %q) { link.click(); return true; }
		}
		return false;
	})()`, numberedLinkSelectors, strconv.Itoa(page))

	var clicked bool
	if err := e.page.Evaluate(ctx, script, &clicked); err != nil {
		e.log.Debug("numbered link click failed", slog.Int("page", page), slog.Any("error", err))
		return false
	}
	return clicked
}

func (e *Engine) clickControl(ctx context.Context, selectors string, textPattern *regexp.Regexp) bool {
	for _, selector := range strings.Split(selectors, ",") {
		selector = strings.TrimSpace(selector)
		if err := e.page.Click(ctx, selector); err == nil {
			return true
		}
	}

	// Fall back to matching by control text.
	script := fmt.Sprintf(`(() => {
		const pattern = new RegExp(%q, "i");
		for (const el of document.querySelectorAll("a, button")) {
			if (pattern.test(el.textContent.trim()) && !el.disabled) { el.click(); return true; }
		}
		return false;
	})()`, textPattern.String())

	var clicked bool
	if err := e.page.Evaluate(ctx, script, &clicked); err != nil {
		e.log.Debug("control click failed", slog.Any("error", err))
		return false
	}
	return clicked
}

// navigatePageParam rewrites the page-number query parameter and navigates
// directly. The first configured parameter already present wins; absent any,
// the first candidate (conventionally "page") is added.
func (e *Engine) navigatePageParam(ctx context.Context, page int) bool {
	location, err := e.page.URL(ctx)
	if err != nil {
		e.log.Debug("read url failed", slog.Any("error", err))
		return false
	}
	parsed, err := url.Parse(location)
	if err != nil {
		e.log.Debug("parse url failed", slog.String("url", location), slog.Any("error", err))
		return false
	}

	query := parsed.Query()
	param := e.cfg.PageParams[0]
	for _, candidate := range e.cfg.PageParams {
		if query.Get(candidate) != "" {
			param = candidate
			break
		}
	}
	query.Set(param, strconv.Itoa(page))
	parsed.RawQuery = query.Encode()

	if err := e.page.Navigate(ctx, parsed.String()); err != nil {
		e.log.Debug("page param navigation failed", slog.String("url", parsed.String()), slog.Any("error", err))
		return false
	}
	return true
}

// scrollForMore scrolls to the document bottom and reports whether the
// scrollable height grew, the heuristic signal that new content loaded.
// The growth comparison is deliberately loose; fixed-height decoration below
// the fold can false-positive, so the MaxPages cap remains the real bound.
func (e *Engine) scrollForMore(ctx context.Context) bool {
	const heightScript = `document.body.scrollHeight`

	var before float64
	if err := e.page.Evaluate(ctx, heightScript, &before); err != nil {
		e.log.Debug("read scroll height failed", slog.Any("error", err))
		return false
	}
	if err := e.page.Evaluate(ctx, `window.scrollTo(0, document.body.scrollHeight)`, nil); err != nil {
		e.log.Debug("scroll failed", slog.Any("error", err))
		return false
	}

	e.settle(ctx)

	var after float64
	if err := e.page.Evaluate(ctx, heightScript, &after); err != nil {
		e.log.Debug("read scroll height failed", slog.Any("error", err))
		return false
	}
	return after > before
}

// settle applies the fixed inter-page delay, respecting cancellation.
func (e *Engine) settle(ctx context.Context) {
	if e.cfg.PageDelay <= 0 {
		return
	}
	timer := time.NewTimer(e.cfg.PageDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
