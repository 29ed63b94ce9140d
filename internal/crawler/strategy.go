package crawler

import (
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"sjsage522/pricecompare/helpers"
	"sjsage522/pricecompare/logger"
	apperrors "sjsage522/pricecompare/pkg/errors"
)

// Strategy turns a shop's pages into product records
type Strategy interface {
	// Extract reads the search results page. A page with no results yields no records and no error.
	Extract(doc *goquery.Document, phrase string) ([]RawProductRecord, error)
	// ExtractPrice reads the current price from a product detail page
	ExtractPrice(doc *goquery.Document) (decimal.Decimal, error)
}

// Factory builds the strategy for a configured shop
type Factory func(shop ShopConfig) Strategy

// Registry maps shop names to strategy factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a registry with the built-in shops registered
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("rossman", NewRossmann)
	r.Register("rossmann", NewRossmann)
	r.Register("hebe", NewHebe)
	r.Register("superpharm", NewSuperpharm)
	return r
}

// Register adds or replaces the factory for name
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = factory
}

// Lookup returns the factory for name, ignoring case
func (r *Registry) Lookup(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[strings.ToLower(name)]
	if !ok {
		return nil, apperrors.NewConfiguration(name, "Parser for given shop not implemented", nil)
	}
	return factory, nil
}

// shopParser holds what every shop strategy shares
type shopParser struct {
	shop ShopConfig
	log  *logger.Logger
	// relevance drops items whose name and description miss a phrase word
	relevance bool
}

func newShopParser(shop ShopConfig, relevance bool) shopParser {
	return shopParser{
		shop:      shop,
		log:       logger.ForShop(shop.Name),
		relevance: relevance,
	}
}

// checkDocument rejects a page without any body content
func (p shopParser) checkDocument(doc *goquery.Document) error {
	if doc == nil || doc.Find("body").Children().Length() == 0 {
		return apperrors.NewExtraction(p.shop.Name, "page has no content", nil)
	}
	return nil
}

// collect parses items in document order, skipping the ones that fail
func (p shopParser) collect(items *goquery.Selection, phrase string, parse func(*goquery.Selection, *RawProductRecord) error) []RawProductRecord {
	records := make([]RawProductRecord, 0, items.Length())

	items.Each(func(i int, s *goquery.Selection) {
		record := RawProductRecord{
			ShopID:       p.shop.ID,
			SearchPhrase: phrase,
		}
		if err := parse(s, &record); err != nil {
			itemsSkipped.WithLabelValues(p.shop.Name, "parse").Inc()
			p.log.Debug().Err(err).Int("index", i).Msg("skipping item")
			return
		}
		if record.Name == "" || record.URL == "" {
			itemsSkipped.WithLabelValues(p.shop.Name, "parse").Inc()
			p.log.Debug().Int("index", i).Msg("skipping item without name or link")
			return
		}
		if p.relevance && !helpers.ContainsAllWords(record.Name+" "+record.Description, phrase) {
			itemsSkipped.WithLabelValues(p.shop.Name, "irrelevant").Inc()
			return
		}
		records = append(records, record)
	})

	recordsExtracted.WithLabelValues(p.shop.Name).Add(float64(len(records)))
	return records
}

func (p shopParser) itemError(message string, err error) error {
	return apperrors.NewItemParse(p.shop.Name, message, err)
}

func (p shopParser) resolve(href string) string {
	return helpers.ResolveURL(p.shop.BaseURL, href)
}

// leafTexts returns the text of every descendant element without element children
func leafTexts(s *goquery.Selection) []string {
	var texts []string
	s.Find("*").Each(func(_ int, el *goquery.Selection) {
		if el.Children().Length() == 0 {
			texts = append(texts, el.Text())
		}
	})
	return texts
}

func lower(s string) string {
	return strings.ToLower(helpers.CleanText(s))
}
