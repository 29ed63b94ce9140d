package crawler

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"sjsage522/pricecompare/helpers"
)

// SuperpharmStrategy reads rendered superpharm.pl search results.
// The shop search matches loosely, so results missing a phrase word are dropped.
type SuperpharmStrategy struct {
	shopParser
}

// NewSuperpharm creates the superpharm.pl strategy
func NewSuperpharm(shop ShopConfig) Strategy {
	return &SuperpharmStrategy{shopParser: newShopParser(shop, true)}
}

// Extract reads the result list
func (s *SuperpharmStrategy) Extract(doc *goquery.Document, phrase string) ([]RawProductRecord, error) {
	if err := s.checkDocument(doc); err != nil {
		return nil, err
	}
	results := doc.Find(".result-content")
	if results.Length() == 0 || doc.Find(".message.notice").Length() > 0 {
		s.log.Debug().Str("phrase", phrase).Msg("no results")
		return nil, nil
	}
	return s.collect(results, phrase, s.parseResult), nil
}

func (s *SuperpharmStrategy) parseResult(item *goquery.Selection, record *RawProductRecord) error {
	record.Name = lower(item.Find(".result-title").First().Text())
	record.Description = lower(item.Find(".result-description").First().Text())

	// "Pojemność: 200 ml"
	if size := helpers.CleanText(item.Find(".custom-select-wrapper").First().Text()); size != "" {
		record.Size = strings.TrimSpace(size[strings.LastIndex(size, ":")+1:])
	}

	price, err := helpers.ParsePrice(item.Find(".price-wrapper .after_special").First().Text())
	if err != nil {
		return s.itemError("price", err)
	}
	record.Price = price

	thumb := item.Find(".result-thumbnail").First()
	src, _ := thumb.Find("img[src]").First().Attr("src")
	record.ImageURL = s.resolve(src)
	href, _ := thumb.Find("a[href]").First().Attr("href")
	record.URL = s.resolve(href)
	return nil
}

// ExtractPrice reads the special price from a product page
func (s *SuperpharmStrategy) ExtractPrice(doc *goquery.Document) (decimal.Decimal, error) {
	if err := s.checkDocument(doc); err != nil {
		return decimal.Zero, err
	}
	price, err := helpers.ParsePrice(doc.Find(".price-wrapper .after_special").First().Text())
	if err != nil {
		return decimal.Zero, s.itemError("detail price", err)
	}
	return price, nil
}
