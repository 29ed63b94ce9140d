package crawler

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"sjsage522/pricecompare/helpers"
)

// HebeStrategy reads hebe.pl search results
type HebeStrategy struct {
	shopParser
}

// NewHebe creates the hebe.pl strategy
func NewHebe(shop ShopConfig) Strategy {
	return &HebeStrategy{shopParser: newShopParser(shop, false)}
}

// Extract reads product tiles
func (h *HebeStrategy) Extract(doc *goquery.Document, phrase string) ([]RawProductRecord, error) {
	if err := h.checkDocument(doc); err != nil {
		return nil, err
	}
	tiles := doc.Find(".product-tile")
	if tiles.Length() == 0 || doc.Find(".search-no-results").Length() > 0 {
		h.log.Debug().Str("phrase", phrase).Msg("no results")
		return nil, nil
	}
	return h.collect(tiles, phrase, h.parseTile), nil
}

func (h *HebeStrategy) parseTile(s *goquery.Selection, record *RawProductRecord) error {
	record.Name = lower(s.Find("[class*=name]").First().Text())

	// "balsam do ciała, 200 ml": description first, size last
	details := helpers.CleanText(s.Find(".tooltip__content").First().Find(".text--center").Last().Text())
	if details != "" {
		parts := strings.Split(details, ",")
		record.Description = lower(parts[0])
		if len(parts) > 1 {
			record.Size = helpers.CleanText(parts[len(parts)-1])
		}
	}

	price, err := hebePrice(s.Find("[class*=price]").First())
	if err != nil {
		return h.itemError("price", err)
	}
	record.Price = price

	if srcset, ok := s.Find("img[data-srcset]").First().Attr("data-srcset"); ok {
		src := strings.SplitN(srcset, "?", 2)[0]
		if fields := strings.Fields(src); len(fields) > 0 {
			record.ImageURL = h.resolve(fields[0])
		}
	}
	href, _ := s.Find("a[href]").First().Attr("href")
	record.URL = h.resolve(href)
	return nil
}

// hebePrice joins the whole złote part and the separately rendered grosze
func hebePrice(s *goquery.Selection) (decimal.Decimal, error) {
	sales := s.Find("[class*=sales]").First()
	whole := helpers.CleanText(sales.Contents().First().Text())
	fraction := helpers.CleanText(sales.Find("[class*=decimal]").First().Text())
	if fraction == "" {
		return helpers.ParsePrice(whole)
	}
	return helpers.ParsePrice(whole + "." + fraction)
}

// ExtractPrice reads the sale price from a product page
func (h *HebeStrategy) ExtractPrice(doc *goquery.Document) (decimal.Decimal, error) {
	if err := h.checkDocument(doc); err != nil {
		return decimal.Zero, err
	}
	price, err := hebePrice(doc.Find("[class*=price]").First())
	if err != nil {
		return decimal.Zero, h.itemError("detail price", err)
	}
	return price, nil
}
