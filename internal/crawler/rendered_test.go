package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderedBackendFetch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	bin := os.Getenv("BROWSER_BIN")
	if bin == "" {
		path, ok := launcher.LookPath()
		if !ok {
			t.Skip("no browser available")
		}
		bin = path
	}

	html := fixture(t, "superpharm_search.html")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(html))
	}))
	defer server.Close()

	backend := NewRenderedBackend(RenderedOptions{BrowserBin: bin, Headless: true, Wait: 2 * time.Second})
	defer backend.Close()
	assert.Equal(t, BackendRendered, backend.Kind())

	shop := superpharmShop
	shop.BaseURL = server.URL + "/"

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	page, err := backend.Fetch(ctx, shop, shop.SearchURL("yope balsam"))
	require.NoError(t, err)

	records, err := NewSuperpharm(shop).Extract(page.Document(), "yope balsam")
	page.Release()
	page.Release()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
