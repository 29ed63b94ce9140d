package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/pricecompare/internal/catalog"
	"sjsage522/pricecompare/internal/crawler"
)

type fakeFetcher struct {
	mu     sync.Mutex
	prices map[string]string
	calls  map[string]int
}

func (f *fakeFetcher) FetchPrice(ctx context.Context, shop crawler.BoundShop, url string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	price, ok := f.prices[url]
	if !ok {
		return decimal.Zero, errors.New("unexpected status code: 404")
	}
	return decimal.RequireFromString(price), nil
}

var testShops = []crawler.BoundShop{
	{Config: crawler.ShopConfig{ID: 1, Name: "rossman"}},
	{Config: crawler.ShopConfig{ID: 2, Name: "hebe"}},
}

func seed(t *testing.T, store catalog.Store, prices ...string) []catalog.Product {
	t.Helper()
	var products []catalog.Product
	for i, price := range prices {
		p, err := store.Create(context.Background(), crawler.RawProductRecord{
			ShopID:       int64(i%2 + 1),
			SearchPhrase: "yope balsam",
			Name:         "yope",
			Description:  fmt.Sprintf("balsam %d", i),
			Price:        decimal.RequireFromString(price),
			URL:          fmt.Sprintf("https://shop.example/p/%d", i),
		}, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		products = append(products, *p)
	}
	return products
}

func newStore(t *testing.T) *catalog.SQLiteStore {
	store, err := catalog.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCheckPricesReturnsDropsInOrder(t *testing.T) {
	store := newStore(t)
	products := seed(t, store, "20.00", "20.00", "20.00", "20.00", "20.00")

	fetcher := &fakeFetcher{
		calls: map[string]int{},
		prices: map[string]string{
			products[0].URL: "25.00", // up
			products[1].URL: "15.00", // down
			products[2].URL: "20.00", // same
			// products[3] cannot be read
			products[4].URL: "19.99", // down
		},
	}

	m := New(fetcher, testShops, store, 3)
	drops, err := m.CheckPrices(context.Background(), products, false)
	require.NoError(t, err)
	require.Len(t, drops, 2)

	assert.Equal(t, products[1].URL, drops[0].URL)
	assert.Equal(t, "15.00", drops[0].CurrentPrice.StringFixed(2))
	assert.Equal(t, "20.00", drops[0].PreviousPrice.StringFixed(2))
	assert.Equal(t, products[4].URL, drops[1].URL)

	// nothing persisted
	for _, p := range products {
		stored, err := store.FindByID(context.Background(), p.ID)
		require.NoError(t, err)
		assert.True(t, stored.Price.Equal(p.Price))
	}
	assert.Len(t, fetcher.calls, 5)
}

func TestCheckPricesPersist(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	products := seed(t, store, "20.00", "20.00", "20.00")

	fetcher := &fakeFetcher{
		calls: map[string]int{},
		prices: map[string]string{
			products[0].URL: "25.00",
			products[1].URL: "15.00",
			products[2].URL: "20.00",
		},
	}

	checkedAt := time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)
	m := New(fetcher, testShops, store, 2)
	m.now = func() time.Time { return checkedAt }

	drops, err := m.CheckPrices(ctx, products, true)
	require.NoError(t, err)
	require.Len(t, drops, 1)
	assert.Equal(t, "15.00", drops[0].Price.StringFixed(2))

	want := []string{"25.00", "15.00", "20.00"}
	for i, p := range products {
		stored, err := store.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, want[i], stored.Price.StringFixed(2))
	}

	history, err := store.History(ctx, products[2].ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	history, err = store.History(ctx, products[0].ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[1].ObservedAt.Equal(checkedAt))
}

func TestCheckPricesUnknownShop(t *testing.T) {
	store := newStore(t)
	products := seed(t, store, "20.00")
	products[0].ShopID = 99

	fetcher := &fakeFetcher{calls: map[string]int{}, prices: map[string]string{products[0].URL: "1.00"}}
	drops, err := New(fetcher, testShops, store, 1).CheckPrices(context.Background(), products, false)
	require.NoError(t, err)
	assert.Empty(t, drops)
	assert.Empty(t, fetcher.calls)
}

func TestCheckPricesEmpty(t *testing.T) {
	drops, err := New(&fakeFetcher{}, testShops, newStore(t), 1).CheckPrices(context.Background(), nil, true)
	assert.NoError(t, err)
	assert.Empty(t, drops)
}
