package scraper

import (
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aluiziolira/scan-catalog/config"
	"github.com/aluiziolira/scan-catalog/models"
	"github.com/aluiziolira/scan-catalog/parser"
	"github.com/aluiziolira/scan-catalog/pipeline"
)

// Markup the extractor looks for.
const (
	titleTag       = "h1"
	categoryTag    = "div"
	categoryClass  = "category"
	headingTag     = "h2"
	columnTag      = "ul"
	columnClass    = "productColumns"
	productTag     = "li"
	productClass   = "product"
	linkNoTag      = "span"
	linkNoClass    = "linkNo"
	rightColTag    = "div"
	rightColClass  = "rightColumn"
	stockHolderTag = "div"
)

// Extraction is a freshly built catalog together with its derived state.
type Extraction struct {
	Catalog    *models.Catalog
	Aggregator *pipeline.Aggregator
	Result     models.ExtractionResult
}

// Extractor walks a parsed shop page and builds a catalog from it.
type Extractor struct {
	whitelist *parser.Whitelist
	metrics   *Metrics
}

// NewExtractor returns an extractor capturing the attributes in whitelist.
func NewExtractor(whitelist *parser.Whitelist, metrics *Metrics) *Extractor {
	if whitelist == nil {
		whitelist = parser.NewWhitelist(parser.DefaultAttributes...)
	}
	return &Extractor{whitelist: whitelist, metrics: metrics}
}

// Extract builds a catalog from root. pageURL resolves relative category
// links. A non-negative threshold caps the number of products across the
// whole page; config.NoThreshold disables the cap.
//
// A category is counted as soon as it is visited, before the cap is checked,
// so the category that hits the cap is always part of the result.
func (e *Extractor) Extract(root Node, pageURL string, threshold int) (*Extraction, error) {
	start := time.Now()
	heading, ok := root.Find(titleTag)
	if !ok {
		return nil, &StructuralMismatch{Element: titleTag, Err: ErrMissingTitle}
	}
	division := strings.TrimSpace(heading.Text())

	ex := &Extraction{
		Catalog:    models.NewCatalog(),
		Aggregator: pipeline.NewAggregator(),
		Result: models.ExtractionResult{
			Description:     division,
			URL:             pageURL,
			StartTime:       start,
			RejectedByField: make(map[string]int),
		},
	}

	categories := root.FindAll(categoryTag, categoryClass)
	if len(categories) == 0 {
		slog.Debug("no categories found", slog.String("url", pageURL))
	}

	halted := false
	for _, category := range categories {
		title, link, ok := e.categoryHeading(category, division, pageURL, len(categories))
		if !ok {
			e.skip(ex, headingTag)
			continue
		}

		title = ex.Catalog.AddCategory(title)
		ex.Catalog.SetLink(title, link)
		ex.Aggregator.VisitCategory()
		ex.Result.Categories++
		e.metrics.IncCategory()

		for _, column := range category.FindAll(columnTag, columnClass) {
			for _, product := range column.FindAll(productTag, productClass) {
				if threshold >= 0 && ex.Aggregator.Stats().Items >= threshold {
					halted = true
					break
				}
				e.extractProduct(ex, title, product)
			}
			if halted {
				break
			}
		}
		if halted {
			ex.Result.Truncated = true
			break
		}
	}

	ex.Result.Items = ex.Aggregator.Stats().Items
	ex.Result.EndTime = time.Now()
	e.metrics.ObserveExtraction(ex.Result.EndTime.Sub(start))
	return ex, nil
}

func (e *Extractor) categoryHeading(category Node, division, pageURL string, total int) (string, string, bool) {
	if total == 1 {
		return division, pageURL, true
	}

	heading, ok := category.Find(headingTag)
	if !ok {
		return "", "", false
	}
	title := strings.TrimSpace(heading.Text())
	if title == "" {
		return "", "", false
	}

	link := ""
	if anchor, ok := heading.Find("a"); ok {
		link = resolveLink(pageURL, anchor.Attrs()["href"])
	}
	return title, link, true
}

func (e *Extractor) extractProduct(ex *Extraction, category string, product Node) {
	links := product.FindAll(linkNoTag, linkNoClass)
	if len(links) == 0 {
		e.skip(ex, linkNoClass)
		return
	}

	attrs := product.Attrs()
	priceText, hasPrice := attrs[parser.PriceAttr]
	raw := parser.RawProduct{
		Attributes: e.whitelist.Filter(attrs),
		LinkNo:     strings.TrimSpace(links[0].Text()),
		PriceText:  priceText,
		HasPrice:   hasPrice,
		Stock:      stockAccessor(product),
	}

	p, err := parser.Normalize(raw)
	if err != nil {
		var vErr *parser.ValidationError
		field := "unknown"
		if errors.As(err, &vErr) {
			field = vErr.Field
		}
		ex.Result.RejectedCount++
		ex.Result.RejectedByField[field]++
		e.metrics.IncRejected(field)
		slog.Debug("product rejected",
			slog.String("category", category),
			slog.String("field", field),
			slog.Any("error", err),
		)
		return
	}

	ex.Catalog.Append(category, p)
	ex.Aggregator.Observe(p)
	e.metrics.IncProduct(p.Status().String())
}

func (e *Extractor) skip(ex *Extraction, element string) {
	ex.Result.SkippedCount++
	e.metrics.IncSkip(element)
	slog.Debug("structural mismatch, skipping", slog.String("element", element))
}

// stockAccessor reads the stock count from the first div of the product's
// right column, only when asked.
func stockAccessor(product Node) parser.StockAccessor {
	return func() (string, bool) {
		columns := product.FindAll(rightColTag, rightColClass)
		if len(columns) == 0 {
			return "", false
		}
		holder, ok := columns[0].Find(stockHolderTag)
		if !ok {
			return "", false
		}
		value, ok := holder.Attrs()[parser.StockAttr]
		return value, ok
	}
}

func resolveLink(pageURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil || base.Host == "" {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// normalizeThreshold maps any negative threshold onto config.NoThreshold.
func normalizeThreshold(threshold int) int {
	if threshold < 0 {
		return config.NoThreshold
	}
	return threshold
}
