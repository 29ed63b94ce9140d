package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"sjsage522/pricecompare/internal/crawler"
)

var (
	// ErrNotFound is returned when no product matches the lookup
	ErrNotFound = errors.New("product not found")
	// ErrConflict is returned by Create when the URL is already catalogued
	ErrConflict = errors.New("product url already exists")
)

// Product is a catalogued product, identified by its canonical URL
type Product struct {
	ID           string          `json:"id"`
	ShopID       int64           `json:"shop_id"`
	SearchPhrase string          `json:"search_phrase"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Size         string          `json:"size"`
	Price        decimal.Decimal `json:"price"`
	ImageURL     string          `json:"image_url"`
	URL          string          `json:"url"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// PricePoint is one entry of a product's price history
type PricePoint struct {
	ProductID  string          `json:"product_id"`
	Price      decimal.Decimal `json:"price"`
	ObservedAt time.Time       `json:"observed_at"`
}

// Store persists the catalog
type Store interface {
	// FindByURL returns ErrNotFound when url is not catalogued
	FindByURL(ctx context.Context, url string) (*Product, error)
	FindByID(ctx context.Context, id string) (*Product, error)
	// Create inserts the product together with its first price point.
	// It returns ErrConflict when the URL already exists.
	Create(ctx context.Context, record crawler.RawProductRecord, at time.Time) (*Product, error)
	// UpdatePrice sets the current price and appends a price point dated at
	UpdatePrice(ctx context.Context, product *Product, price decimal.Decimal, at time.Time) (*Product, error)
	// List returns every product ordered by URL
	List(ctx context.Context) ([]Product, error)
	// History returns the price points of a product, oldest first
	History(ctx context.Context, productID string) ([]PricePoint, error)
	Close() error
}

func newProduct(id string, record crawler.RawProductRecord, at time.Time) *Product {
	return &Product{
		ID:           id,
		ShopID:       record.ShopID,
		SearchPhrase: record.SearchPhrase,
		Name:         record.Name,
		Description:  record.Description,
		Size:         record.Size,
		Price:        record.Price,
		ImageURL:     record.ImageURL,
		URL:          record.URL,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
}
