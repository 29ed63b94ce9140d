package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"sjsage522/pricecompare/helpers"
	"sjsage522/pricecompare/logger"
	apperrors "sjsage522/pricecompare/pkg/errors"
	"sjsage522/pricecompare/services/cache"
)

// StaticBackend fetches raw HTML over HTTP.
//
// When a shop answers 429 or 430 the shop is blocked in the cache for
// BlockTime and further fetches fail fast with a rate limit error.
type StaticBackend struct {
	client    *resty.Client
	cacheSvc  cache.CacheService
	blockTime time.Duration
	log       *logger.Logger
}

// NewStaticBackend creates a static backend. cacheSvc may be nil.
func NewStaticBackend(client *resty.Client, cacheSvc cache.CacheService, blockTime time.Duration) *StaticBackend {
	return &StaticBackend{
		client:    client,
		cacheSvc:  cacheSvc,
		blockTime: blockTime,
		log:       logger.ForBackend(string(BackendStatic)),
	}
}

// Kind returns BackendStatic
func (b *StaticBackend) Kind() BackendKind {
	return BackendStatic
}

// Fetch downloads url and parses it into a document
func (b *StaticBackend) Fetch(ctx context.Context, shop ShopConfig, url string) (Page, error) {
	blocked, err := b.blocked(shop.Name)
	if err != nil {
		b.log.Debug().Err(err).Str("shop", shop.Name).Msg("rate limit lookup failed")
	}
	if blocked {
		return nil, apperrors.NewRateLimit(shop.Name, b.blockTime)
	}

	body, err := helpers.FetchWithRandomHeaders(ctx, b.client, url)
	if err != nil {
		if errors.Is(err, helpers.ErrRateLimited) {
			if cerr := b.block(shop.Name); cerr != nil {
				b.log.Warn().Err(cerr).Str("shop", shop.Name).Msg("failed to store rate limit block")
			}
		}
		return nil, apperrors.NewFetch(shop.Name, "fetch "+url, err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, apperrors.NewExtraction(shop.Name, "parse HTML", err)
	}
	return NewDocumentPage(doc), nil
}

// blocked reports whether shop is inside a rate limit block. Cache failures
// count as not blocked.
func (b *StaticBackend) blocked(shop string) (bool, error) {
	if b.cacheSvc == nil {
		return false, nil
	}
	_, err := b.cacheSvc.Get(cache.RateLimitKey(shop))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, cache.ErrMiss):
		return false, nil
	default:
		return false, apperrors.NewCache(shop, "lookup rate limit block", err)
	}
}

// block marks shop as rate limited for the block time
func (b *StaticBackend) block(shop string) error {
	if b.cacheSvc == nil {
		return nil
	}
	value := []byte(fmt.Sprintf("%d", b.blockTime/time.Second))
	if err := b.cacheSvc.Set(cache.RateLimitKey(shop), value, b.blockTime); err != nil {
		return apperrors.NewCache(shop, "store rate limit block", err)
	}
	return nil
}
