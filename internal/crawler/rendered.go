package crawler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"sjsage522/pricecompare/logger"
	apperrors "sjsage522/pricecompare/pkg/errors"
)

// RenderedOptions configures the headless browser
type RenderedOptions struct {
	// BrowserBin is the browser executable; empty means download a default one
	BrowserBin string
	Headless   bool
	// Wait bounds how long a page may keep loading resources after the load event
	Wait time.Duration
}

// RenderedBackend renders pages in a shared headless browser.
// Every fetch runs in its own incognito context that lives until the page is released.
type RenderedBackend struct {
	opts RenderedOptions
	log  *logger.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewRenderedBackend creates a rendered backend. The browser is started on first use.
func NewRenderedBackend(opts RenderedOptions) *RenderedBackend {
	return &RenderedBackend{
		opts: opts,
		log:  logger.ForBackend(string(BackendRendered)),
	}
}

// Kind returns BackendRendered
func (b *RenderedBackend) Kind() BackendKind {
	return BackendRendered
}

func (b *RenderedBackend) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		return b.browser, nil
	}

	bin := b.opts.BrowserBin
	if bin == "" {
		if path, ok := launcher.LookPath(); ok {
			bin = path
		} else {
			b.log.Info().Msg("no browser binary found, downloading default")
			path, err := launcher.NewBrowser().Get()
			if err != nil {
				return nil, fmt.Errorf("download browser: %w", err)
			}
			bin = path
		}
	}

	l := launcher.New().
		Headless(b.opts.Headless).
		Bin(bin).
		NoSandbox(true)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	b.launcher = l
	b.browser = browser
	b.log.Info().Str("bin", bin).Msg("browser started")
	return browser, nil
}

// Fetch opens url in a fresh incognito session and returns the rendered DOM.
// The session stays open until the returned page is released.
func (b *RenderedBackend) Fetch(ctx context.Context, shop ShopConfig, url string) (Page, error) {
	browser, err := b.connect()
	if err != nil {
		return nil, apperrors.NewFetch(shop.Name, "start browser", err)
	}

	session, err := browser.Incognito()
	if err != nil {
		return nil, apperrors.NewFetch(shop.Name, "open browser session", err)
	}

	raw, err := stealth.Page(session)
	if err != nil {
		_ = session.Close()
		return nil, apperrors.NewFetch(shop.Name, "open page", err)
	}

	renderedSessionsActive.Inc()
	page := &renderedPage{session: session, page: raw}

	if err := b.render(ctx, raw, url); err != nil {
		page.Release()
		return nil, apperrors.NewFetch(shop.Name, "render "+url, err)
	}

	html, err := raw.Context(ctx).HTML()
	if err != nil {
		page.Release()
		return nil, apperrors.NewFetch(shop.Name, "read rendered HTML", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		page.Release()
		return nil, apperrors.NewExtraction(shop.Name, "parse rendered HTML", err)
	}
	page.doc = doc
	return page, nil
}

func (b *RenderedBackend) render(ctx context.Context, raw *rod.Page, url string) error {
	page := raw.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}

	if err := page.WaitLoad(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.log.Warn().Err(err).Str("url", url).Msg("WaitLoad failed, continuing anyway")
	}

	// late XHR-driven listings settle once the network goes quiet
	idleCtx, idleCancel := context.WithTimeout(ctx, b.opts.Wait)
	defer idleCancel()

	idleDone := make(chan struct{})
	go func() {
		raw.Context(idleCtx).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()
		close(idleDone)
	}()

	select {
	case <-idleDone:
	case <-idleCtx.Done():
		b.log.Debug().Str("url", url).Msg("WaitRequestIdle timeout, continuing")
	}
	return ctx.Err()
}

// Close shuts the browser down
func (b *RenderedBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.launcher.Kill()
	b.launcher.Cleanup()
	b.browser = nil
	b.launcher = nil
	return err
}

type renderedPage struct {
	session *rod.Browser
	page    *rod.Page
	doc     *goquery.Document
	once    sync.Once
}

func (p *renderedPage) Document() *goquery.Document { return p.doc }

func (p *renderedPage) Release() {
	p.once.Do(func() {
		_ = p.page.Close()
		_ = p.session.Close()
		renderedSessionsActive.Dec()
	})
}
