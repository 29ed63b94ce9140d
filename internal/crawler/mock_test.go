package crawler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	apperrors "sjsage522/pricecompare/pkg/errors"
	"sjsage522/pricecompare/services/cache"
)

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	mu    sync.Mutex
	cache map[string][]byte
}

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{
		cache: make(map[string][]byte),
	}
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, cache.ErrMiss
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = value
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

// mockBackend serves fixture documents by URL
type mockBackend struct {
	kind  BackendKind
	pages map[string]string
	// delay holds fetches of the listed URLs until ctx is done
	delay map[string]bool

	mu       sync.Mutex
	fetched  []string
	released int
}

func newMockBackend(kind BackendKind) *mockBackend {
	return &mockBackend{
		kind:  kind,
		pages: make(map[string]string),
		delay: make(map[string]bool),
	}
}

func (m *mockBackend) Kind() BackendKind { return m.kind }

func (m *mockBackend) Fetch(ctx context.Context, shop ShopConfig, url string) (Page, error) {
	m.mu.Lock()
	m.fetched = append(m.fetched, url)
	m.mu.Unlock()

	if m.delay[url] {
		<-ctx.Done()
		return nil, apperrors.NewFetch(shop.Name, "fetch "+url, ctx.Err())
	}

	html, ok := m.pages[url]
	if !ok {
		return nil, apperrors.NewFetch(shop.Name, "fetch "+url+" unexpected status code: 404", nil)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return &mockPage{doc: doc, backend: m}, nil
}

func (m *mockBackend) fetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fetched)
}

func (m *mockBackend) releaseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}

type mockPage struct {
	doc     *goquery.Document
	backend *mockBackend
	once    sync.Once
}

func (p *mockPage) Document() *goquery.Document { return p.doc }

func (p *mockPage) Release() {
	p.once.Do(func() {
		p.backend.mu.Lock()
		p.backend.released++
		p.backend.mu.Unlock()
	})
}

func fixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(data)
}

func fixtureDocument(t *testing.T, name string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fixture(t, name)))
	require.NoError(t, err)
	return doc
}

var (
	rossmannShop = ShopConfig{
		ID:         1,
		Name:       "rossman",
		BaseURL:    "https://www.rossmann.pl/",
		SearchPath: "szukaj?Search={}",
		Backend:    BackendStatic,
	}
	hebeShop = ShopConfig{
		ID:         2,
		Name:       "hebe",
		BaseURL:    "https://www.hebe.pl/",
		SearchPath: "search?q={}",
		Backend:    BackendStatic,
	}
	superpharmShop = ShopConfig{
		ID:         3,
		Name:       "superpharm",
		BaseURL:    "https://www.superpharm.pl/",
		SearchPath: "catalogsearch/result/?q={}",
		Backend:    BackendRendered,
	}
)

// countingBackend records the peak number of pages held at once.
// Each fetch takes stall (10ms by default) and ignores cancellation meanwhile,
// like a browser launch.
type countingBackend struct {
	*mockBackend
	stall time.Duration
	open  atomic.Int32
	peak  atomic.Int32
}

func (c *countingBackend) Fetch(ctx context.Context, shop ShopConfig, url string) (Page, error) {
	n := c.open.Add(1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	stall := c.stall
	if stall == 0 {
		stall = 10 * time.Millisecond
	}
	time.Sleep(stall)

	page, err := c.mockBackend.Fetch(ctx, shop, url)
	if err != nil {
		c.open.Add(-1)
		return nil, err
	}
	return &countingPage{Page: page, open: &c.open}, nil
}

type countingPage struct {
	Page
	open *atomic.Int32
	once sync.Once
}

func (p *countingPage) Release() {
	p.once.Do(func() {
		p.open.Add(-1)
		p.Page.Release()
	})
}
