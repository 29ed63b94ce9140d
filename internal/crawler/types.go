package crawler

import (
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// BackendKind names the mechanism used to fetch a shop's pages
type BackendKind string

const (
	// BackendStatic fetches raw HTML over HTTP
	BackendStatic BackendKind = "static"
	// BackendRendered renders the page in a headless browser
	BackendRendered BackendKind = "rendered"
)

// PhrasePlaceholder is substituted with the encoded search phrase
const PhrasePlaceholder = "{}"

// ShopConfig describes a shop the pipeline can search
type ShopConfig struct {
	ID         int64       `json:"id" validate:"required,gt=0"`
	Name       string      `json:"name" validate:"required"`
	BaseURL    string      `json:"base_url" validate:"required,url"`
	SearchPath string      `json:"search_path" validate:"required"`
	Backend    BackendKind `json:"backend" validate:"required,oneof=static rendered"`
}

// SearchURL builds the shop's search URL for a phrase
func (s ShopConfig) SearchURL(phrase string) string {
	encoded := strings.ReplaceAll(url.QueryEscape(phrase), "+", "%20")
	return s.BaseURL + strings.Replace(s.SearchPath, PhrasePlaceholder, encoded, 1)
}

// RawProductRecord is a product extracted from one shop page
type RawProductRecord struct {
	ShopID       int64           `json:"shop_id"`
	SearchPhrase string          `json:"search_phrase"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Size         string          `json:"size"`
	Price        decimal.Decimal `json:"price"`
	ImageURL     string          `json:"image_url"`
	URL          string          `json:"url"`
}

// NormalizedRecord is a raw record carrying its ordering key
type NormalizedRecord struct {
	RawProductRecord
	SortKey string `json:"-"`
}
