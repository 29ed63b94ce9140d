package worker

import (
	"context"
	"encoding/json"
	"time"

	"sjsage522/pricecompare/internal/catalog"
	"sjsage522/pricecompare/internal/monitor"
	"sjsage522/pricecompare/logger"
	"sjsage522/pricecompare/services/publisher"
)

// PriceDropKey is the stream field carrying a price drop alert
const PriceDropKey = "price_drop"

// ProductLister lists the tracked products
type ProductLister interface {
	List(ctx context.Context) ([]catalog.Product, error)
}

// PriceChecker finds tracked products that got cheaper
type PriceChecker interface {
	CheckPrices(ctx context.Context, products []catalog.Product, persist bool) ([]monitor.PriceDrop, error)
}

// Worker periodically re-checks catalogued prices and publishes the drops
type Worker struct {
	products  ProductLister
	checker   PriceChecker
	publisher publisher.Publisher
	logger    *logger.Logger
	interval  time.Duration
	persist   bool
}

// NewWorker creates a new worker. pub may be nil, in which case drops are only logged.
func NewWorker(
	products ProductLister,
	checker PriceChecker,
	pub publisher.Publisher,
	interval time.Duration,
	persist bool,
) *Worker {
	return &Worker{
		products:  products,
		checker:   checker,
		publisher: pub,
		logger:    logger.ForWorker(),
		interval:  interval,
		persist:   persist,
	}
}

// Start runs a check right away and then every interval until ctx is done
func (w *Worker) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		start := time.Now()
		if err := w.runChecks(ctx); err != nil {
			w.logger.Error().Err(err).Msg("price check run failed")
		}
		w.logger.Info().Dur("elapsed", time.Since(start)).Msg("price check run done")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runChecks checks every product once and publishes the drops
func (w *Worker) runChecks(ctx context.Context) error {
	products, err := w.products.List(ctx)
	if err != nil {
		return err
	}

	drops, err := w.checker.CheckPrices(ctx, products, w.persist)
	if err != nil {
		return err
	}

	if w.publisher == nil {
		return nil
	}

	for _, drop := range drops {
		data, err := json.Marshal(drop)
		if err != nil {
			w.logger.Error().Err(err).Str("url", drop.URL).Msg("failed to encode price drop")
			continue
		}
		if logger.IsDebugEnabled() {
			w.logger.Debug().RawJSON("drop", data).Msg("publishing price drop")
		}
		if err := w.publisher.Publish(ctx, PriceDropKey, data); err != nil {
			w.logger.Error().Err(err).Str("url", drop.URL).Msg("failed to publish price drop")
		}
	}

	// Trim the stream after publishing
	if err := w.publisher.TrimStreams(ctx); err != nil {
		w.logger.Error().Err(err).Msg("stream trimming failed")
	}
	return nil
}
