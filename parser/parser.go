// Package parser turns raw product attributes into normalised catalog records.
package parser

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aluiziolira/scan-catalog/models"
)

const (
	// PriceAttr carries the product price text.
	PriceAttr = "data-price"

	// StockAttr carries the available unit count on the right column node.
	StockAttr = "data-instock"

	// UnreleasedPrice is the price the site lists for unreleased products.
	UnreleasedPrice = 999999.0
)

var (
	// ErrMissingField is wrapped by ValidationError when a field is absent.
	ErrMissingField = errors.New("field missing")
	// ErrInvalidField is wrapped by ValidationError when a field cannot be parsed.
	ErrInvalidField = errors.New("field invalid")
)

// ValidationError reports a product rejected because of one of its fields.
type ValidationError struct {
	Field  string
	Value  string
	LinkNo string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("product %q: %s: %v", e.LinkNo, e.Field, e.Err)
	}
	return fmt.Sprintf("product %q: %s=%q: %v", e.LinkNo, e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// StockAccessor returns the raw stock count text and whether it was present.
// It is only consulted for released products.
type StockAccessor func() (string, bool)

// RawProduct is what the extractor captured for a single product node.
type RawProduct struct {
	Attributes map[string]string
	LinkNo     string
	PriceText  string
	HasPrice   bool
	Stock      StockAccessor
}

// Normalize resolves price and stock status for raw and returns the finished
// product. The price attribute is moved out of Attributes into Price.
func Normalize(raw RawProduct) (*models.Product, error) {
	if !raw.HasPrice || strings.TrimSpace(raw.PriceText) == "" {
		return nil, &ValidationError{Field: PriceAttr, LinkNo: raw.LinkNo, Err: ErrMissingField}
	}
	value, err := ParsePrice(raw.PriceText)
	if err != nil {
		return nil, &ValidationError{Field: PriceAttr, Value: raw.PriceText, LinkNo: raw.LinkNo, Err: ErrInvalidField}
	}

	attrs := make(map[string]string, len(raw.Attributes))
	for k, v := range raw.Attributes {
		if k == PriceAttr {
			continue
		}
		attrs[k] = v
	}
	product := &models.Product{
		LinkNo:     strings.TrimSpace(raw.LinkNo),
		Attributes: attrs,
	}

	if value == UnreleasedPrice {
		product.StockStatus = models.UnreleasedStock
		return product, nil
	}

	if raw.Stock == nil {
		return nil, &ValidationError{Field: StockAttr, LinkNo: raw.LinkNo, Err: ErrMissingField}
	}
	text, ok := raw.Stock()
	if !ok || strings.TrimSpace(text) == "" {
		return nil, &ValidationError{Field: StockAttr, LinkNo: raw.LinkNo, Err: ErrMissingField}
	}
	count, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || count < 0 {
		return nil, &ValidationError{Field: StockAttr, Value: text, LinkNo: raw.LinkNo, Err: ErrInvalidField}
	}

	product.StockStatus = count
	product.Price = &value
	return product, nil
}

// ParsePrice normalises and parses a price text.
func ParsePrice(text string) (float64, error) {
	value, err := strconv.ParseFloat(NormalizePrice(text), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0, fmt.Errorf("price out of range: %v", value)
	}
	return value, nil
}

// NormalizePrice removes currency symbols, thousands separators and
// surrounding whitespace.
func NormalizePrice(price string) string {
	price = strings.TrimSpace(price)
	price = strings.ReplaceAll(price, "Â£", "")
	price = strings.ReplaceAll(price, "£", "")
	price = strings.ReplaceAll(price, ",", "")
	return strings.TrimSpace(price)
}
