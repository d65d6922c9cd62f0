package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-resty/resty/v2"
)

// StaticEngine serves portals that render results server-side. Pages are
// fetched over plain HTTP; interactive operations report ErrNotSupported so
// callers degrade to URL-driven pagination.
type StaticEngine struct {
	client *resty.Client
}

// NewStaticEngine builds an HTTP-backed engine.
func NewStaticEngine(opts Options) *StaticEngine {
	client := resty.New().
		SetHeader("User-Agent", opts.UserAgent).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	if opts.OpTimeout > 0 {
		client.SetTimeout(opts.OpTimeout)
	}
	return &StaticEngine{client: client}
}

// Client exposes the underlying resty client so tests can swap its transport.
func (e *StaticEngine) Client() *resty.Client {
	return e.client
}

// NewPage returns a virtual page bound to the engine's HTTP client.
func (e *StaticEngine) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &staticPage{client: e.client}, nil
}

// Close releases idle connections.
func (e *StaticEngine) Close() error {
	e.client.GetClient().CloseIdleConnections()
	return nil
}

type staticPage struct {
	client *resty.Client

	mu         sync.Mutex
	currentURL string
	body       string
}

func (p *staticPage) Navigate(ctx context.Context, url string) error {
	resp, err := p.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("fetch %s: http status %d", url, resp.StatusCode())
	}

	finalURL := url
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		finalURL = raw.Request.URL.String()
	}

	p.mu.Lock()
	p.currentURL = finalURL
	p.body = string(resp.Body())
	p.mu.Unlock()
	return nil
}

func (p *staticPage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentURL == "" {
		return "", fmt.Errorf("no page loaded")
	}
	return p.currentURL, nil
}

func (p *staticPage) Content(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentURL == "" {
		return "", fmt.Errorf("no page loaded")
	}
	return p.body, nil
}

func (p *staticPage) Fill(ctx context.Context, selector, value string) error {
	return ErrNotSupported
}

func (p *staticPage) Click(ctx context.Context, selector string) error {
	return ErrNotSupported
}

func (p *staticPage) WaitVisible(ctx context.Context, selector string) error {
	return ErrNotSupported
}

func (p *staticPage) Evaluate(ctx context.Context, script string, out any) error {
	return ErrNotSupported
}

func (p *staticPage) Screenshot(ctx context.Context, path string) error {
	return ErrNotSupported
}

func (p *staticPage) Close() error {
	return nil
}
