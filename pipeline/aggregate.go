// Package pipeline aggregates, flattens and exports extracted catalogs.
package pipeline

import (
	"fmt"

	"github.com/aluiziolira/scan-catalog/models"
)

// InconsistentProductError is returned by Recount when a stored product's
// price and stock status disagree.
type InconsistentProductError struct {
	Category    string
	LinkNo      string
	StockStatus int
	HasPrice    bool
}

func (e *InconsistentProductError) Error() string {
	return fmt.Sprintf("product %q in %q: stock status %d with price set=%t",
		e.LinkNo, e.Category, e.StockStatus, e.HasPrice)
}

// Aggregator keeps Stats and the stock index in step with a catalog. It is
// fed product by product during extraction and can rebuild itself from a
// catalog with Recount. Not safe for concurrent use.
type Aggregator struct {
	stats  models.Stats
	prices []float64
	sum    float64
	index  models.StockIndex
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	a := &Aggregator{}
	a.Reset()
	return a
}

// Reset clears all counters, the price list and the stock index together.
func (a *Aggregator) Reset() {
	a.stats = models.Stats{}
	a.prices = nil
	a.sum = 0
	a.index = models.NewStockIndex()
}

// VisitCategory counts one visited category.
func (a *Aggregator) VisitCategory() {
	a.stats.Categories++
}

// Observe folds one product into the running figures.
func (a *Aggregator) Observe(p *models.Product) {
	a.stats.Items++
	status := p.Status()
	if status == models.Unreleased {
		a.stats.UnreleasedCount++
	} else {
		a.stats.InStockUnits += p.StockStatus
		if p.Price != nil {
			a.prices = append(a.prices, *p.Price)
			a.sum += *p.Price
			a.updatePrices(*p.Price)
		}
	}
	a.index.Add(status, p.Description())
}

// Recount rebuilds every derived figure from c, ignoring the current state.
// On error the current state is left untouched.
func (a *Aggregator) Recount(c *models.Catalog) error {
	fresh := NewAggregator()
	for _, title := range c.Categories() {
		fresh.VisitCategory()
		for _, p := range c.Products(title) {
			if !p.Consistent() {
				return &InconsistentProductError{
					Category:    title,
					LinkNo:      p.LinkNo,
					StockStatus: p.StockStatus,
					HasPrice:    p.Price != nil,
				}
			}
			fresh.Observe(p)
		}
	}
	*a = *fresh
	return nil
}

// Stats returns the current figures.
func (a *Aggregator) Stats() models.Stats {
	return a.stats
}

// Index returns a copy of the stock index.
func (a *Aggregator) Index() models.StockIndex {
	return a.index.Clone()
}

// Prices returns a copy of the priced items list.
func (a *Aggregator) Prices() []float64 {
	out := make([]float64, len(a.prices))
	copy(out, a.prices)
	return out
}

func (a *Aggregator) updatePrices(latest float64) {
	if len(a.prices) == 1 {
		a.stats.MinPrice = latest
		a.stats.MaxPrice = latest
	} else {
		if latest < a.stats.MinPrice {
			a.stats.MinPrice = latest
		}
		if latest > a.stats.MaxPrice {
			a.stats.MaxPrice = latest
		}
	}

	avg := a.sum / float64(len(a.prices))
	// Summation error can push the mean a hair outside the observed range.
	if avg < a.stats.MinPrice {
		avg = a.stats.MinPrice
	}
	if avg > a.stats.MaxPrice {
		avg = a.stats.MaxPrice
	}
	a.stats.AvgPrice = avg
}
