// Package search runs phrase searches across shops and feeds the results to the catalog.
package search

import (
	"context"
	"strings"

	"sjsage522/pricecompare/internal/catalog"
	"sjsage522/pricecompare/internal/crawler"
	"sjsage522/pricecompare/logger"
)

// Report is the outcome of a search
type Report struct {
	Records []crawler.NormalizedRecord
	// Results lines up with Records; empty unless the search was saved
	Results []catalog.Result
}

// Service searches the configured shops
type Service struct {
	orchestrator   *crawler.Orchestrator
	shops          []crawler.BoundShop
	defaultPhrases []string
	reconciler     *catalog.Reconciler
	log            *logger.Logger
}

// NewService binds shops once; a misconfigured shop fails here.
// reconciler may be nil when results are never saved.
func NewService(orchestrator *crawler.Orchestrator, shops []crawler.ShopConfig, defaultPhrases []string, reconciler *catalog.Reconciler) (*Service, error) {
	bound, err := orchestrator.Bind(shops)
	if err != nil {
		return nil, err
	}
	return &Service{
		orchestrator:   orchestrator,
		shops:          bound,
		defaultPhrases: defaultPhrases,
		reconciler:     reconciler,
		log:            logger.ForOrchestrator(),
	}, nil
}

// Shops returns the bound shops
func (s *Service) Shops() []crawler.BoundShop {
	return s.shops
}

// Crawl searches every shop for phrases, or for the default phrases when none are given
func (s *Service) Crawl(ctx context.Context, phrases []string) ([]crawler.RawProductRecord, error) {
	if len(phrases) == 0 {
		s.log.Debug().Int("phrases", len(s.defaultPhrases)).Msg("no phrases given, using defaults")
		phrases = s.defaultPhrases
	}
	return s.orchestrator.CrawlBound(ctx, phrases, s.shops)
}

// Search crawls, orders the records and, when save is set, reconciles them into the catalog.
// A cancelled crawl is not saved.
func (s *Service) Search(ctx context.Context, phrases []string, save bool) (*Report, error) {
	raw, err := s.Crawl(ctx, phrases)
	report := &Report{Records: crawler.Normalize(raw)}
	if err != nil {
		return report, err
	}
	if !save || s.reconciler == nil {
		return report, nil
	}

	report.Results, err = s.reconciler.Reconcile(ctx, report.Records)
	if err != nil {
		return report, err
	}
	return report, nil
}

// SplitPhrases splits comma separated input into trimmed, non-empty phrases
func SplitPhrases(input string) []string {
	var phrases []string
	for _, p := range strings.Split(input, ",") {
		if p = strings.TrimSpace(p); p != "" {
			phrases = append(phrases, p)
		}
	}
	return phrases
}
