package monitor

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"sjsage522/pricecompare/internal/catalog"
	"sjsage522/pricecompare/internal/crawler"
	"sjsage522/pricecompare/logger"
)

var priceDrops = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "pricecompare_price_drops_total",
	Help: "Tracked products found cheaper than their stored price",
}, []string{"shop"})

func init() {
	prometheus.MustRegister(priceDrops)
}

// PriceDrop is a tracked product observed below its stored price
type PriceDrop struct {
	catalog.Product
	PreviousPrice decimal.Decimal `json:"previous_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	CheckedAt     time.Time       `json:"checked_at"`
}

// PriceFetcher reads the current price of a product page
type PriceFetcher interface {
	FetchPrice(ctx context.Context, shop crawler.BoundShop, url string) (decimal.Decimal, error)
}

// Monitor re-checks the prices of catalogued products
type Monitor struct {
	fetcher PriceFetcher
	shops   map[int64]crawler.BoundShop
	store   catalog.Store
	workers int
	now     func() time.Time
	log     *logger.Logger
}

// New creates a monitor over the bound shops
func New(fetcher PriceFetcher, shops []crawler.BoundShop, store catalog.Store, workers int) *Monitor {
	byID := make(map[int64]crawler.BoundShop, len(shops))
	for _, shop := range shops {
		byID[shop.Config.ID] = shop
	}
	return &Monitor{
		fetcher: fetcher,
		shops:   byID,
		store:   store,
		workers: max(workers, 1),
		now:     func() time.Time { return time.Now().UTC() },
		log:     logger.ForMonitor(),
	}
}

// CheckPrices fetches the current price of every product and returns the ones
// that got cheaper, in input order. With persist set every changed price is
// stored. Products whose page cannot be read are skipped.
func (m *Monitor) CheckPrices(ctx context.Context, products []catalog.Product, persist bool) ([]PriceDrop, error) {
	slots := make([]*PriceDrop, len(products))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, product := range products {
		g.Go(func() error {
			drop, err := m.check(gctx, product, persist)
			if err != nil {
				return err
			}
			slots[i] = drop
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var drops []PriceDrop
	for _, drop := range slots {
		if drop != nil {
			drops = append(drops, *drop)
		}
	}

	m.log.Info().
		Int("products", len(products)).
		Int("drops", len(drops)).
		Bool("persist", persist).
		Msg("price check finished")
	return drops, nil
}

func (m *Monitor) check(ctx context.Context, product catalog.Product, persist bool) (*PriceDrop, error) {
	shop, ok := m.shops[product.ShopID]
	if !ok {
		m.log.Warn().Int64("shop_id", product.ShopID).Str("url", product.URL).Msg("product belongs to an unknown shop")
		return nil, nil
	}

	current, err := m.fetcher.FetchPrice(ctx, shop, product.URL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		m.log.Warn().Err(err).Str("url", product.URL).Msg("price check failed")
		return nil, nil
	}

	checked := m.now()
	previous := product.Price
	if persist && !current.Equal(previous) {
		updated, err := m.store.UpdatePrice(ctx, &product, current, checked)
		if err != nil {
			return nil, err
		}
		product = *updated
	}

	if !current.LessThan(previous) {
		return nil, nil
	}

	priceDrops.WithLabelValues(shop.Config.Name).Inc()
	m.log.Info().
		Str("url", product.URL).
		Stringer("previous_price", previous).
		Stringer("current_price", current).
		Msg("price dropped")
	return &PriceDrop{
		Product:       product,
		PreviousPrice: previous,
		CurrentPrice:  current,
		CheckedAt:     checked,
	}, nil
}
