package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"

	"sjsage522/pricecompare/helpers"
	"sjsage522/pricecompare/logger"
	apperrors "sjsage522/pricecompare/pkg/errors"
)

// Options bounds how much work the orchestrator does at once
type Options struct {
	// MaxStaticFetches caps concurrent plain HTTP fetches
	MaxStaticFetches int
	// MaxRenderedSessions caps concurrent browser sessions
	MaxRenderedSessions int
	// FetchTimeout bounds a single fetch plus extraction
	FetchTimeout time.Duration
}

// BoundShop is a shop resolved to its strategy and backend
type BoundShop struct {
	Config   ShopConfig
	strategy Strategy
	backend  Backend
}

// Orchestrator fans searches out to shops and merges what they return
type Orchestrator struct {
	registry     *Registry
	backends     map[BackendKind]Backend
	limits       map[BackendKind]*semaphore.Weighted
	fetchTimeout time.Duration
	log          *logger.Logger
}

// NewOrchestrator creates an orchestrator over the given backends
func NewOrchestrator(registry *Registry, backends []Backend, opts Options) *Orchestrator {
	o := &Orchestrator{
		registry:     registry,
		backends:     make(map[BackendKind]Backend),
		limits:       make(map[BackendKind]*semaphore.Weighted),
		fetchTimeout: opts.FetchTimeout,
		log:          logger.ForOrchestrator(),
	}
	for _, b := range backends {
		o.backends[b.Kind()] = b
	}
	o.limits[BackendStatic] = semaphore.NewWeighted(int64(max(opts.MaxStaticFetches, 1)))
	o.limits[BackendRendered] = semaphore.NewWeighted(int64(max(opts.MaxRenderedSessions, 1)))
	return o
}

// Bind resolves every shop to its strategy and backend.
// It fails on the first shop that is misconfigured, before any fetch is made.
func (o *Orchestrator) Bind(shops []ShopConfig) ([]BoundShop, error) {
	bound := make([]BoundShop, 0, len(shops))
	for _, shop := range shops {
		if strings.Count(shop.SearchPath, PhrasePlaceholder) != 1 {
			return nil, apperrors.NewConfiguration(shop.Name,
				fmt.Sprintf("search path %q must contain exactly one %s placeholder", shop.SearchPath, PhrasePlaceholder), nil)
		}
		backend, ok := o.backends[shop.Backend]
		if !ok {
			return nil, apperrors.NewConfiguration(shop.Name, fmt.Sprintf("unsupported backend %q", shop.Backend), nil)
		}
		factory, err := o.registry.Lookup(shop.Name)
		if err != nil {
			return nil, err
		}
		bound = append(bound, BoundShop{
			Config:   shop,
			strategy: factory(shop),
			backend:  backend,
		})
	}
	return bound, nil
}

// Crawl searches every shop for every phrase.
//
// Records come back grouped by phrase, then by shop in the order given, then in
// page order. A shop that fails contributes nothing; the error is logged. When ctx
// is cancelled the records gathered so far are returned together with ctx.Err().
func (o *Orchestrator) Crawl(ctx context.Context, phrases []string, shops []ShopConfig) ([]RawProductRecord, error) {
	bound, err := o.Bind(shops)
	if err != nil {
		return nil, err
	}
	return o.CrawlBound(ctx, phrases, bound)
}

// CrawlBound is Crawl over shops that are already bound
func (o *Orchestrator) CrawlBound(ctx context.Context, phrases []string, shops []BoundShop) ([]RawProductRecord, error) {
	if len(phrases) == 0 || len(shops) == 0 {
		return nil, nil
	}

	results := make([][]RawProductRecord, len(phrases)*len(shops))
	var wg sync.WaitGroup
	for i, phrase := range phrases {
		for j, shop := range shops {
			wg.Add(1)
			go func(slot int, phrase string, shop BoundShop) {
				defer wg.Done()
				results[slot] = o.search(ctx, shop, phrase)
			}(i*len(shops)+j, phrase, shop)
		}
	}
	wg.Wait()

	var records []RawProductRecord
	for _, r := range results {
		records = append(records, r...)
	}

	o.log.Info().
		Int("phrases", len(phrases)).
		Int("shops", len(shops)).
		Int("records", len(records)).
		Msg("crawl finished")
	return records, ctx.Err()
}

func (o *Orchestrator) search(ctx context.Context, shop BoundShop, phrase string) []RawProductRecord {
	var records []RawProductRecord
	err := o.withPage(ctx, shop, shop.Config.SearchURL(phrase), func(doc *goquery.Document) error {
		var err error
		records, err = shop.strategy.Extract(doc, phrase)
		return err
	})
	if err != nil {
		if ctx.Err() == nil {
			o.log.Warn().Err(err).Str("shop", shop.Config.Name).Str("phrase", phrase).Msg("search failed")
		}
		return nil
	}
	return records
}

// FetchPrice reads the current price from a product page of shop
func (o *Orchestrator) FetchPrice(ctx context.Context, shop BoundShop, url string) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := o.withPage(ctx, shop, url, func(doc *goquery.Document) error {
		var err error
		price, err = shop.strategy.ExtractPrice(doc)
		return err
	})
	return price, err
}

// withPage fetches url within the backend's concurrency limit and the fetch
// timeout, hands the document to fn and releases the page afterwards.
func (o *Orchestrator) withPage(ctx context.Context, shop BoundShop, url string, fn func(*goquery.Document) error) error {
	kind := shop.backend.Kind()
	limit := o.limits[kind]
	if err := limit.Acquire(ctx, 1); err != nil {
		return err
	}
	// an abandoned fetch keeps the slot until it returns
	var pending <-chan struct{}
	defer func() {
		if pending == nil {
			limit.Release(1)
			return
		}
		go func() {
			<-pending
			limit.Release(1)
		}()
	}()

	fetchCtx := ctx
	if o.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, o.fetchTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		fetchDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	}()

	var (
		page Page
		err  error
	)
	page, pending, err = fetchPage(fetchCtx, shop, url)
	if err != nil {
		fetchesTotal.WithLabelValues(shop.Config.Name, string(kind), fetchResult(err)).Inc()
		return err
	}
	defer page.Release()

	if err := fn(page.Document()); err != nil {
		fetchesTotal.WithLabelValues(shop.Config.Name, string(kind), "extraction_error").Inc()
		return err
	}
	fetchesTotal.WithLabelValues(shop.Config.Name, string(kind), "ok").Inc()
	return nil
}

// fetchPage runs the backend fetch but gives up as soon as ctx is done,
// releasing a page that arrives late. The returned channel is non-nil for an
// abandoned fetch and is closed once that fetch has returned.
func fetchPage(ctx context.Context, shop BoundShop, url string) (Page, <-chan struct{}, error) {
	type result struct {
		page Page
		err  error
	}
	done := make(chan result, 1)
	go func() {
		page, err := shop.backend.Fetch(ctx, shop.Config, url)
		done <- result{page, err}
	}()

	select {
	case r := <-done:
		return r.page, nil, r.err
	case <-ctx.Done():
		finished := make(chan struct{})
		go func() {
			defer close(finished)
			if r := <-done; r.page != nil {
				r.page.Release()
			}
		}()
		return nil, finished, apperrors.NewFetch(shop.Config.Name, "fetch "+url, ctx.Err())
	}
}

func fetchResult(err error) string {
	switch {
	case apperrors.IsType(err, apperrors.ErrorTypeRateLimit), errors.Is(err, helpers.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
