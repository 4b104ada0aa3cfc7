// Package scraper fetches shop pages and extracts them into a catalog session.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aluiziolira/scan-catalog/config"
	"github.com/aluiziolira/scan-catalog/models"
	"github.com/aluiziolira/scan-catalog/pipeline"
)

// SearchURL builds the shop search URL for query. Spaces become '+'; nothing
// else is escaped.
func SearchURL(baseURL, query string) string {
	return strings.TrimSuffix(baseURL, "/") + "/search?q=" + strings.ReplaceAll(query, " ", "+")
}

// Session owns one catalog and its derived state. A Session is not safe for
// concurrent use; callers sharing one must serialise access.
type Session struct {
	cfg       *config.Config
	fetcher   Fetcher
	extractor *Extractor
	Metrics   *Metrics

	url         string
	description string
	catalog     *models.Catalog
	agg         *pipeline.Aggregator
	result      models.ExtractionResult
}

// Option customises a Session.
type Option func(*Session)

// WithFetcher replaces the default colly fetcher.
func WithFetcher(f Fetcher) Option {
	return func(s *Session) {
		s.fetcher = f
	}
}

// NewSession builds an empty session configured from cfg.
func NewSession(cfg *config.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Session{
		cfg:     cfg,
		Metrics: NewMetrics(),
		catalog: models.NewCatalog(),
		agg:     pipeline.NewAggregator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fetcher == nil {
		fetcher, err := NewCollyFetcher(cfg, s.Metrics)
		if err != nil {
			return nil, fmt.Errorf("initialising fetcher: %w", err)
		}
		s.fetcher = fetcher
	}
	s.extractor = NewExtractor(cfg.Whitelist(), s.Metrics)
	return s, nil
}

// Scrape fetches url and replaces the session's catalog with what it holds.
// On any error the previous catalog and derived state are kept.
func (s *Session) Scrape(ctx context.Context, url string, threshold int) (*models.ExtractionResult, error) {
	body, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	root, err := ParseDocument(body)
	if err != nil {
		return nil, err
	}
	ex, err := s.extractor.Extract(root, url, normalizeThreshold(threshold))
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", url, err)
	}

	s.url = url
	s.description = ex.Result.Description
	s.catalog = ex.Catalog
	s.agg = ex.Aggregator
	s.result = ex.Result

	stats := s.agg.Stats()
	slog.Info("extraction complete",
		slog.String("url", url),
		slog.Int("categories", stats.Categories),
		slog.Int("items", stats.Items),
		slog.Int("rejected", ex.Result.RejectedCount),
		slog.Int("skipped", ex.Result.SkippedCount),
		slog.Bool("truncated", ex.Result.Truncated),
	)
	result := ex.Result
	return &result, nil
}

// AlterURL re-scrapes the session from a different page without a cap.
func (s *Session) AlterURL(ctx context.Context, url string) (*models.ExtractionResult, error) {
	return s.Scrape(ctx, url, config.NoThreshold)
}

// ScrapeQuery runs a shop search and keeps at most results products.
func (s *Session) ScrapeQuery(ctx context.Context, query string, results int) (*models.ExtractionResult, error) {
	return s.Scrape(ctx, SearchURL(s.cfg.BaseURL, query), results)
}

// Load adopts an existing catalog, for example one read back from an export,
// and recounts it.
func (s *Session) Load(c *models.Catalog) error {
	agg := pipeline.NewAggregator()
	if err := agg.Recount(c); err != nil {
		return err
	}
	s.url = ""
	s.description = ""
	s.catalog = c
	s.agg = agg
	s.result = models.ExtractionResult{}
	return nil
}

// Recount rebuilds Stats and the stock index from the current catalog, for
// use after the catalog was edited directly.
func (s *Session) Recount() error {
	return s.agg.Recount(s.catalog)
}

// Catalog returns the session's catalog. Edits require a Recount.
func (s *Session) Catalog() *models.Catalog {
	return s.catalog
}

// Stats returns the current aggregate figures.
func (s *Session) Stats() models.Stats {
	return s.agg.Stats()
}

// Index returns the current stock-status index.
func (s *Session) Index() models.StockIndex {
	return s.agg.Index()
}

// Description returns the title of the last scraped page.
func (s *Session) Description() string {
	return s.description
}

// URL returns the last scraped page.
func (s *Session) URL() string {
	return s.url
}

// Result returns the diagnostics of the last extraction.
func (s *Session) Result() models.ExtractionResult {
	return s.result
}

// Categories returns the catalog's category titles in order.
func (s *Session) Categories() []string {
	return s.catalog.Categories()
}

// Choices lists the categories that have a page link, for SelectCategory.
func (s *Session) Choices() []Choice {
	var choices []Choice
	for _, title := range s.catalog.Categories() {
		if link := s.catalog.Link(title); link != "" {
			choices = append(choices, Choice{Label: title, Link: link})
		}
	}
	return choices
}

// Records flattens the catalog using the configured category key.
func (s *Session) Records() []models.Record {
	return pipeline.Flatten(s.catalog, s.cfg.CategoryKey)
}

// Export writes the catalog as JSON and returns the path written.
func (s *Session) Export(filename string) (string, error) {
	return pipeline.WriteCatalogJSON(filename, s.catalog)
}
