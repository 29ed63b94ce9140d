package crawler

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"sjsage522/pricecompare/helpers"
)

// RossmannStrategy reads rossmann.pl search results
type RossmannStrategy struct {
	shopParser
}

// NewRossmann creates the rossmann.pl strategy
func NewRossmann(shop ShopConfig) Strategy {
	return &RossmannStrategy{shopParser: newShopParser(shop, false)}
}

// Extract reads product tiles. Placeholder tiles are rendered when nothing matched.
func (r *RossmannStrategy) Extract(doc *goquery.Document, phrase string) ([]RawProductRecord, error) {
	if err := r.checkDocument(doc); err != nil {
		return nil, err
	}
	tiles := doc.Find(".tile-product").Not(".skeleton")
	if tiles.Length() == 0 {
		r.log.Debug().Str("phrase", phrase).Msg("no results")
		return nil, nil
	}
	return r.collect(tiles, phrase, r.parseTile), nil
}

func (r *RossmannStrategy) parseTile(s *goquery.Selection, record *RawProductRecord) error {
	parts := s.Find("[class*=name]").First().Find("*")
	if parts.Length() < 2 {
		return r.itemError("name block has fewer than two parts", nil)
	}
	record.Name = lower(parts.Eq(0).Text())
	record.Description = lower(strings.Trim(helpers.CleanText(parts.Eq(1).Contents().First().Text()), ","))
	if parts.Length() > 2 {
		record.Size = helpers.CleanText(parts.Eq(2).Text())
	}

	price, err := helpers.MinPrice(leafTexts(s.Find("[class*=price]").First()))
	if err != nil {
		return r.itemError("price", err)
	}
	record.Price = price

	src, _ := s.Find("img").First().Attr("src")
	record.ImageURL = r.resolve(src)
	href, _ := s.Find("a[href]").First().Attr("href")
	record.URL = r.resolve(href)
	return nil
}

// ExtractPrice reads the lowest price shown on a product page
func (r *RossmannStrategy) ExtractPrice(doc *goquery.Document) (decimal.Decimal, error) {
	if err := r.checkDocument(doc); err != nil {
		return decimal.Zero, err
	}
	price, err := helpers.MinPrice(leafTexts(doc.Find("[class*=price]").First()))
	if err != nil {
		return decimal.Zero, r.itemError("detail price", err)
	}
	return price, nil
}
