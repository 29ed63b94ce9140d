package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/pricecompare/helpers"
	"sjsage522/pricecompare/internal/catalog"
	"sjsage522/pricecompare/internal/crawler"
	apperrors "sjsage522/pricecompare/pkg/errors"
)

// fixtureServer serves each shop's search page from the crawler fixtures
func fixtureServer(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		data, err := os.ReadFile(filepath.Join("..", "crawler", "testdata", name))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(data)
	}))
	t.Cleanup(server.Close)
	return server
}

func testShops(baseURL string) []crawler.ShopConfig {
	return []crawler.ShopConfig{
		{ID: 1, Name: "rossman", BaseURL: baseURL + "/", SearchPath: "rossmann/szukaj?Search={}", Backend: crawler.BackendStatic},
		{ID: 2, Name: "hebe", BaseURL: baseURL + "/", SearchPath: "hebe/search?q={}", Backend: crawler.BackendStatic},
		// served statically here; the strategy does not care how the page was fetched
		{ID: 3, Name: "superpharm", BaseURL: baseURL + "/", SearchPath: "superpharm/search?q={}", Backend: crawler.BackendStatic},
	}
}

func newTestService(t *testing.T, baseURL string, store catalog.Store) *Service {
	t.Helper()
	orchestrator := crawler.NewOrchestrator(
		crawler.NewRegistry(),
		[]crawler.Backend{crawler.NewStaticBackend(helpers.NewClient(5*time.Second), nil, time.Minute)},
		crawler.Options{MaxStaticFetches: 4, MaxRenderedSessions: 1, FetchTimeout: 5 * time.Second},
	)
	var reconciler *catalog.Reconciler
	if store != nil {
		reconciler = catalog.NewReconciler(store, 4)
	}
	service, err := NewService(orchestrator, testShops(baseURL), []string{"yope balsam"}, reconciler)
	require.NoError(t, err)
	return service
}

func TestSearchEndToEnd(t *testing.T) {
	server := fixtureServer(t, map[string]string{
		"/rossmann/szukaj":   "rossmann_search.html",
		"/hebe/search":       "hebe_noresults.html",
		"/superpharm/search": "superpharm_noresults.html",
	})

	store, err := catalog.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	defer store.Close()

	service := newTestService(t, server.URL, store)

	records, err := service.Crawl(context.Background(), []string{"yope balsam"})
	require.NoError(t, err)
	require.Len(t, records, 15)
	for _, r := range records {
		assert.Equal(t, "yope balsam", r.SearchPhrase)
	}

	// five products are already known at another price
	for _, r := range records[:5] {
		old := r
		old.Price = r.Price.Add(decimal.NewFromInt(5))
		_, err := store.Create(context.Background(), old, time.Now().Add(-24*time.Hour))
		require.NoError(t, err)
	}

	report, err := service.Search(context.Background(), []string{"yope balsam"}, true)
	require.NoError(t, err)
	require.Len(t, report.Records, 15)
	require.Len(t, report.Results, 15)

	counts := map[catalog.Action]int{}
	for i, res := range report.Results {
		counts[res.Action]++
		product, err := store.FindByID(context.Background(), res.ProductID)
		require.NoError(t, err)
		assert.Equal(t, report.Records[i].URL, product.URL)
		assert.True(t, product.Price.Equal(report.Records[i].Price))

		if res.Action == catalog.ActionUpdated {
			history, err := store.History(context.Background(), res.ProductID)
			require.NoError(t, err)
			require.Len(t, history, 2)
			assert.True(t, history[1].Price.Equal(report.Records[i].Price))
		}
	}
	assert.Equal(t, 5, counts[catalog.ActionUpdated])
	assert.Equal(t, 10, counts[catalog.ActionCreated])
}

func TestSearchDefaultPhrases(t *testing.T) {
	server := fixtureServer(t, map[string]string{
		"/rossmann/szukaj":   "rossmann_search.html",
		"/hebe/search":       "hebe_search.html",
		"/superpharm/search": "superpharm_search.html",
	})

	service := newTestService(t, server.URL, nil)
	report, err := service.Search(context.Background(), nil, true)
	require.NoError(t, err)
	assert.Len(t, report.Records, 15+2+2)
	assert.Empty(t, report.Results)

	for i := 1; i < len(report.Records); i++ {
		assert.LessOrEqual(t, report.Records[i-1].SortKey, report.Records[i].SortKey)
	}
}

func TestSearchShopDown(t *testing.T) {
	server := fixtureServer(t, map[string]string{
		"/rossmann/szukaj": "rossmann_search.html",
		"/hebe/search":     "hebe_search.html",
	})

	service := newTestService(t, server.URL, nil)
	records, err := service.Crawl(context.Background(), []string{"yope balsam"})
	require.NoError(t, err)
	assert.Len(t, records, 15+2)
}

func TestNewServiceRejectsUnknownShop(t *testing.T) {
	orchestrator := crawler.NewOrchestrator(
		crawler.NewRegistry(),
		[]crawler.Backend{crawler.NewStaticBackend(helpers.NewClient(time.Second), nil, time.Minute)},
		crawler.Options{},
	)
	_, err := NewService(orchestrator, []crawler.ShopConfig{
		{ID: 4, Name: "notino", BaseURL: "https://www.notino.pl/", SearchPath: "search.asp?exps={}", Backend: crawler.BackendStatic},
	}, nil, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
	assert.Contains(t, err.Error(), "Parser for given shop not implemented")
}

func TestSplitPhrases(t *testing.T) {
	assert.Equal(t, []string{"yope balsam", "krem do rąk"}, SplitPhrases(" yope balsam, ,krem do rąk ,"))
	assert.Empty(t, SplitPhrases(" , "))
}
