// Package models defines data structures for the catalog scraper.
package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

const (
	// UnreleasedStock is the stock status carried by products without a release price.
	UnreleasedStock = -1

	// DescriptionAttr is the attribute used to label products in the stock index.
	DescriptionAttr = "data-description"

	fieldLinkNo      = "linkNo"
	fieldPrice       = "price"
	fieldStockStatus = "stockStatus"
)

// Product represents one normalised catalog entry.
type Product struct {
	LinkNo      string
	Price       *float64 // nil iff the product is unreleased
	StockStatus int
	Attributes  map[string]string
}

// Description returns the product's description attribute, if captured.
func (p *Product) Description() string {
	return p.Attributes[DescriptionAttr]
}

// Status returns the stock bucket the product belongs to.
func (p *Product) Status() StockStatus {
	return StatusOf(p.StockStatus)
}

// Consistent reports whether price and stock status agree with each other.
func (p *Product) Consistent() bool {
	if p.StockStatus < UnreleasedStock {
		return false
	}
	if p.StockStatus == UnreleasedStock {
		return p.Price == nil
	}
	return p.Price != nil && !math.IsNaN(*p.Price) && !math.IsInf(*p.Price, 0)
}

// Clone returns a deep copy of the product.
func (p *Product) Clone() *Product {
	out := &Product{
		LinkNo:      p.LinkNo,
		StockStatus: p.StockStatus,
		Attributes:  make(map[string]string, len(p.Attributes)),
	}
	if p.Price != nil {
		price := *p.Price
		out.Price = &price
	}
	for k, v := range p.Attributes {
		out.Attributes[k] = v
	}
	return out
}

// Fields returns the flat field view used by every export format.
func (p *Product) Fields() map[string]any {
	fields := make(map[string]any, len(p.Attributes)+3)
	for k, v := range p.Attributes {
		fields[k] = v
	}
	fields[fieldLinkNo] = p.LinkNo
	if p.Price != nil {
		fields[fieldPrice] = *p.Price
	} else {
		fields[fieldPrice] = nil
	}
	fields[fieldStockStatus] = p.StockStatus
	return fields
}

// MarshalJSON encodes the product as a single flat object.
func (p *Product) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Fields())
}

// UnmarshalJSON decodes the flat object written by MarshalJSON.
func (p *Product) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	decoded := Product{Attributes: make(map[string]string)}
	for key, value := range raw {
		switch key {
		case fieldLinkNo:
			if err := json.Unmarshal(value, &decoded.LinkNo); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
		case fieldPrice:
			if err := json.Unmarshal(value, &decoded.Price); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
		case fieldStockStatus:
			if err := json.Unmarshal(value, &decoded.StockStatus); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
		default:
			var text string
			if err := json.Unmarshal(value, &text); err != nil {
				return fmt.Errorf("decode attribute %s: %w", key, err)
			}
			decoded.Attributes[key] = text
		}
	}
	if _, ok := raw[fieldStockStatus]; !ok {
		return fmt.Errorf("product missing %s", fieldStockStatus)
	}

	*p = decoded
	return nil
}

// StockStatus is the bucket a product is indexed under.
type StockStatus int

const (
	OutOfStock StockStatus = iota
	InStock
	Unreleased
)

func (s StockStatus) String() string {
	switch s {
	case OutOfStock:
		return "outofstock"
	case InStock:
		return "instock"
	case Unreleased:
		return "unreleased"
	default:
		return fmt.Sprintf("StockStatus(%d)", int(s))
	}
}

// StatusOf maps a stored stock status onto its bucket.
func StatusOf(stockStatus int) StockStatus {
	switch {
	case stockStatus < 0:
		return Unreleased
	case stockStatus == 0:
		return OutOfStock
	default:
		return InStock
	}
}

// Stats holds the aggregate figures derived from a catalog.
type Stats struct {
	Categories      int     `json:"categories"`
	Items           int     `json:"items"`
	InStockUnits    int     `json:"inStockUnits"`
	UnreleasedCount int     `json:"unreleasedCount"`
	MinPrice        float64 `json:"minPrice"`
	MaxPrice        float64 `json:"maxPrice"`
	AvgPrice        float64 `json:"avgPrice"`
}

// StockIndex lists product descriptions per stock bucket, in catalog order.
type StockIndex struct {
	InStock    []string `json:"instock"`
	OutOfStock []string `json:"outofstock"`
	Unreleased []string `json:"unreleased"`
}

// NewStockIndex returns an index with empty, non-nil buckets.
func NewStockIndex() StockIndex {
	return StockIndex{
		InStock:    []string{},
		OutOfStock: []string{},
		Unreleased: []string{},
	}
}

// Add appends a description to the bucket for status.
func (idx *StockIndex) Add(status StockStatus, description string) {
	switch status {
	case InStock:
		idx.InStock = append(idx.InStock, description)
	case OutOfStock:
		idx.OutOfStock = append(idx.OutOfStock, description)
	default:
		idx.Unreleased = append(idx.Unreleased, description)
	}
}

// Bucket returns the descriptions held for status.
func (idx StockIndex) Bucket(status StockStatus) []string {
	switch status {
	case InStock:
		return idx.InStock
	case OutOfStock:
		return idx.OutOfStock
	default:
		return idx.Unreleased
	}
}

// Len returns the combined size of all buckets.
func (idx StockIndex) Len() int {
	return len(idx.InStock) + len(idx.OutOfStock) + len(idx.Unreleased)
}

// Clone returns a copy that shares no backing arrays with idx.
func (idx StockIndex) Clone() StockIndex {
	return StockIndex{
		InStock:    append([]string{}, idx.InStock...),
		OutOfStock: append([]string{}, idx.OutOfStock...),
		Unreleased: append([]string{}, idx.Unreleased...),
	}
}

// ExtractionResult holds the outcome of a single extraction pass.
type ExtractionResult struct {
	Description     string
	URL             string
	StartTime       time.Time
	EndTime         time.Time
	Categories      int
	Items           int
	Truncated       bool
	RejectedCount   int
	RejectedByField map[string]int
	SkippedCount    int
}
