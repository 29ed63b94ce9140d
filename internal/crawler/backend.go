package crawler

import (
	"context"

	"github.com/PuerkitoBio/goquery"
)

// Page is a fetched page held open until extraction is done
type Page interface {
	Document() *goquery.Document
	// Release frees the resources behind the page. Safe to call twice.
	Release()
}

// Backend fetches a shop page by URL
type Backend interface {
	Kind() BackendKind
	Fetch(ctx context.Context, shop ShopConfig, url string) (Page, error)
}

type documentPage struct {
	doc *goquery.Document
}

func (p documentPage) Document() *goquery.Document { return p.doc }

func (p documentPage) Release() {}

// NewDocumentPage wraps an already parsed document
func NewDocumentPage(doc *goquery.Document) Page {
	return documentPage{doc: doc}
}
