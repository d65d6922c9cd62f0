package browser

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeEngine drives a headless Chrome instance through chromedp.
// The browser process is started lazily on the first page operation.
type ChromeEngine struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserStop context.CancelFunc
	opTimeout   time.Duration

	closeOnce sync.Once
}

// NewChromeEngine builds a Chrome-backed engine. The parent context bounds
// the lifetime of the whole browser process.
func NewChromeEngine(parent context.Context, opts Options) *ChromeEngine {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(opts.UserAgent),
		chromedp.WindowSize(1440, 900),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	browserCtx, browserStop := chromedp.NewContext(allocCtx)

	return &ChromeEngine{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		browserStop: browserStop,
		opTimeout:   opts.OpTimeout,
	}
}

// NewPage opens an isolated tab.
func (e *ChromeEngine) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.browserCtx.Err(); err != nil {
		return nil, fmt.Errorf("browser closed: %w", err)
	}
	tabCtx, tabStop := chromedp.NewContext(e.browserCtx)
	return &chromePage{
		tabCtx:    tabCtx,
		tabStop:   tabStop,
		opTimeout: e.opTimeout,
	}, nil
}

// Close tears down the browser process. Safe to call more than once.
func (e *ChromeEngine) Close() error {
	e.closeOnce.Do(func() {
		e.browserStop()
		e.allocCancel()
	})
	return nil
}

type chromePage struct {
	tabCtx    context.Context
	tabStop   context.CancelFunc
	opTimeout time.Duration

	closeOnce sync.Once
}

// run executes actions against the tab with the per-operation timeout applied.
// The caller's context is consulted for early cancellation; the actions
// themselves run on the tab context chromedp requires.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx := p.tabCtx
	if p.opTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(p.tabCtx, p.opTimeout)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var location string
	if err := p.run(ctx, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return location, nil
}

func (p *chromePage) Content(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page content: %w", err)
	}
	return html, nil
}

func (p *chromePage) Fill(ctx context.Context, selector, value string) error {
	if err := p.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("fill %q: %w", selector, err)
	}
	return nil
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	if err := p.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

func (p *chromePage) WaitVisible(ctx context.Context, selector string) error {
	if err := p.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
	return nil
}

func (p *chromePage) Evaluate(ctx context.Context, script string, out any) error {
	// chromedp tolerates a nil result pointer and skips unmarshaling, which
	// also sidesteps scripts that evaluate to undefined.
	if err := p.run(ctx, chromedp.Evaluate(script, out)); err != nil {
		return fmt.Errorf("evaluate script: %w", err)
	}
	return nil
}

func (p *chromePage) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := p.run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write screenshot %s: %w", path, err)
	}
	return nil
}

func (p *chromePage) Close() error {
	p.closeOnce.Do(p.tabStop)
	return nil
}
