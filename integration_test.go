package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"sjsage522/pricecompare/helpers"
	"sjsage522/pricecompare/internal/catalog"
	"sjsage522/pricecompare/internal/crawler"
	"sjsage522/pricecompare/internal/monitor"
	"sjsage522/pricecompare/internal/search"
	"sjsage522/pricecompare/services/publisher"
	"sjsage522/pricecompare/services/worker"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// This is a simple test HTML that mimics a hebe.pl search page
const searchHTML = `
<!DOCTYPE html>
<html>
<head>
    <title>Wyniki wyszukiwania</title>
</head>
<body>
    <div class="product-tile">
        <a class="product-tile__link" href="/p/1.html">
            <img data-srcset="/img/1.jpg?sw=300" alt="" />
            <span class="product-tile__name">Yope</span>
        </a>
        <div class="tooltip__content"><p class="text--center">Balsam do ciała werbena, 300 ml</p></div>
        <div class="product-tile__price"><span class="price-sales">24<span class="price-decimal">99</span> zł</span></div>
    </div>
    <div class="product-tile">
        <a class="product-tile__link" href="/p/2.html">
            <img data-srcset="/img/2.jpg?sw=300" alt="" />
            <span class="product-tile__name">Yope</span>
        </a>
        <div class="tooltip__content"><p class="text--center">Balsam do ciała owies, 300 ml</p></div>
        <div class="product-tile__price"><span class="price-sales">19<span class="price-decimal">99</span> zł</span></div>
    </div>
</body>
</html>
`

func productHTML(whole, fraction string) string {
	return `<html><body><div class="product-price"><span class="price-sales">` + whole +
		`<span class="price-decimal">` + fraction + `</span> zł</span></div></body></html>`
}

// TestIntegration tests the entire application flow
func TestIntegration(t *testing.T) {
	// Skip this test if running in CI or without Redis
	if os.Getenv("CI") != "" {
		t.Skip("Skipping integration test in CI environment")
	}

	// Create a test server that serves the shop pages
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/search":
			io.WriteString(w, searchHTML)
		case "/p/1.html":
			io.WriteString(w, productHTML("21", "49"))
		case "/p/2.html":
			io.WriteString(w, productHTML("19", "99"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	ctx := context.Background()

	redisAddr := "localhost:6379"
	redisClient := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   0,
	})
	defer redisClient.Close()

	// Check if Redis is available by attempting a ping, skip test if not
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		t.Skip("Redis is not available, skipping integration test")
	}

	testStream := "test_price_drops_integration"
	require.NoError(t, redisClient.Del(ctx, testStream).Err())
	defer redisClient.Del(ctx, testStream)

	store, err := catalog.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	shops := []crawler.ShopConfig{{
		ID:         2,
		Name:       "hebe",
		BaseURL:    server.URL + "/",
		SearchPath: "search?q={}",
		Backend:    crawler.BackendStatic,
	}}
	orchestrator := crawler.NewOrchestrator(
		crawler.NewRegistry(),
		[]crawler.Backend{crawler.NewStaticBackend(helpers.NewClient(5*time.Second), nil, time.Minute)},
		crawler.Options{MaxStaticFetches: 2, MaxRenderedSessions: 1, FetchTimeout: 5 * time.Second},
	)
	service, err := search.NewService(orchestrator, shops, nil, catalog.NewReconciler(store, 2))
	require.NoError(t, err)

	// Search and save the products
	report, err := service.Search(ctx, []string{"yope balsam"}, true)
	require.NoError(t, err)
	require.Len(t, report.Results, 2)

	// Re-check the prices and publish the drops
	redisPublisher := publisher.NewRedisPublisher(redisAddr, 0, testStream, 100)
	defer redisPublisher.Close()

	priceMonitor := monitor.New(orchestrator, service.Shops(), store, 2)
	w := worker.NewWorker(store, priceMonitor, redisPublisher, time.Hour, true)

	// One run, then Start waits for the next tick until the context ends
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	assert.ErrorIs(t, w.Start(runCtx), context.DeadlineExceeded)

	messages, err := redisClient.XRange(ctx, testStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, messages, 1)

	var drop monitor.PriceDrop
	require.NoError(t, json.Unmarshal([]byte(messages[0].Values[worker.PriceDropKey].(string)), &drop))
	assert.Equal(t, server.URL+"/p/1.html", drop.URL)
	assert.Equal(t, "24.99", drop.PreviousPrice.StringFixed(2))
	assert.Equal(t, "21.49", drop.CurrentPrice.StringFixed(2))

	// the lower price was persisted
	stored, err := store.FindByURL(ctx, server.URL+"/p/1.html")
	require.NoError(t, err)
	assert.Equal(t, "21.49", stored.Price.StringFixed(2))
}
