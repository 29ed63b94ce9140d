package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"sjsage522/pricecompare/internal/crawler"

	"github.com/go-playground/validator/v10"
	"github.com/titanous/json5"
)

// DefaultShops returns the shops searched when no shops file is configured
func DefaultShops() []crawler.ShopConfig {
	return []crawler.ShopConfig{
		{
			ID:         1,
			Name:       "rossman",
			BaseURL:    "https://www.rossmann.pl/",
			SearchPath: "szukaj?Page=1&PageSize=96&Search={}",
			Backend:    crawler.BackendStatic,
		},
		{
			ID:         2,
			Name:       "hebe",
			BaseURL:    "https://www.hebe.pl/",
			SearchPath: "search?lang=pl_PL&q={}",
			Backend:    crawler.BackendStatic,
		},
		{
			ID:         3,
			Name:       "superpharm",
			BaseURL:    "https://www.superpharm.pl/",
			SearchPath: "catalogsearch/result/?categories=e-DROGERIA&q={}",
			Backend:    crawler.BackendRendered,
		},
	}
}

// LoadShops reads shop configurations from a JSON5 file, or returns the
// defaults when path is empty.
func LoadShops(path string) ([]crawler.ShopConfig, error) {
	if path == "" {
		return DefaultShops(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shops file: %w", err)
	}

	var shops []crawler.ShopConfig
	if err := json5.Unmarshal(data, &shops); err != nil {
		return nil, fmt.Errorf("parse shops file %s: %w", path, err)
	}

	if err := ValidateShops(shops); err != nil {
		return nil, err
	}
	return shops, nil
}

// ValidateShops checks required fields and rejects duplicate ids
func ValidateShops(shops []crawler.ShopConfig) error {
	validate := validator.New()
	seen := make(map[int64]bool, len(shops))
	for i, shop := range shops {
		if err := validate.Struct(shop); err != nil {
			return fmt.Errorf("shop #%d (%s): %w", i, shop.Name, err)
		}
		if seen[shop.ID] {
			return fmt.Errorf("shop #%d (%s): duplicate id %d", i, shop.Name, shop.ID)
		}
		seen[shop.ID] = true
	}
	return nil
}

// LoadPhrases reads newline-separated search phrases, skipping blank lines
func LoadPhrases(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open phrases file: %w", err)
	}
	defer f.Close()

	var phrases []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		phrases = append(phrases, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read phrases file: %w", err)
	}
	return phrases, nil
}
