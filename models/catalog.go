package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Catalog maps category titles to their products, preserving insertion order.
// A Catalog is not safe for concurrent use.
type Catalog struct {
	order    []string
	products map[string][]*Product
	links    map[string]string
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		products: make(map[string][]*Product),
		links:    make(map[string]string),
	}
}

// AddCategory registers a category and returns the title it was stored under.
// A title that is already present gets a numeric suffix so every call creates
// a distinct entry.
func (c *Catalog) AddCategory(title string) string {
	unique := title
	for n := 2; c.Has(unique); n++ {
		unique = fmt.Sprintf("%s (%d)", title, n)
	}
	c.order = append(c.order, unique)
	c.products[unique] = []*Product{}
	return unique
}

// Has reports whether the catalog contains title.
func (c *Catalog) Has(title string) bool {
	_, ok := c.products[title]
	return ok
}

// Append adds a product to the end of a category, creating it if needed.
func (c *Catalog) Append(title string, p *Product) {
	if !c.Has(title) {
		c.order = append(c.order, title)
	}
	c.products[title] = append(c.products[title], p)
}

// Set replaces the products of a category, creating it if needed.
func (c *Catalog) Set(title string, products []*Product) {
	if !c.Has(title) {
		c.order = append(c.order, title)
	}
	c.products[title] = products
}

// Remove deletes a category. It reports whether the category existed.
func (c *Catalog) Remove(title string) bool {
	if !c.Has(title) {
		return false
	}
	delete(c.products, title)
	delete(c.links, title)
	for i, t := range c.order {
		if t == title {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// Categories returns the category titles in insertion order.
func (c *Catalog) Categories() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Products returns the stored products of a category. The products are shared
// with the catalog, so edits through them require a recount.
func (c *Catalog) Products(title string) []*Product {
	return c.products[title]
}

// Link returns the page link recorded for a category.
func (c *Catalog) Link(title string) string {
	return c.links[title]
}

// SetLink records the page link for a category.
func (c *Catalog) SetLink(title, link string) {
	if link == "" {
		delete(c.links, title)
		return
	}
	c.links[title] = link
}

// Len returns the number of categories.
func (c *Catalog) Len() int {
	return len(c.order)
}

// Items returns the total number of products across all categories.
func (c *Catalog) Items() int {
	total := 0
	for _, title := range c.order {
		total += len(c.products[title])
	}
	return total
}

// Each calls fn for every product in category order, then stored order.
func (c *Catalog) Each(fn func(category string, p *Product)) {
	for _, title := range c.order {
		for _, p := range c.products[title] {
			fn(title, p)
		}
	}
}

// MarshalJSON encodes the catalog as an object keyed by category title, in
// insertion order.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, title := range c.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(title)
		if err != nil {
			return nil, fmt.Errorf("encode category %q: %w", title, err)
		}
		buf.Write(key)
		buf.WriteByte(':')

		products := c.products[title]
		if products == nil {
			products = []*Product{}
		}
		value, err := json.Marshal(products)
		if err != nil {
			return nil, fmt.Errorf("encode products of %q: %w", title, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a catalog object, keeping the key order of the input.
func (c *Catalog) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("catalog must be a JSON object")
	}

	decoded := NewCatalog()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read category title: %w", err)
		}
		title, ok := tok.(string)
		if !ok {
			return fmt.Errorf("category title must be a string")
		}
		if decoded.Has(title) {
			return fmt.Errorf("duplicate category %q", title)
		}
		var products []*Product
		if err := dec.Decode(&products); err != nil {
			return fmt.Errorf("decode products of %q: %w", title, err)
		}
		if products == nil {
			products = []*Product{}
		}
		decoded.Set(title, products)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("read catalog end: %w", err)
	}

	*c = *decoded
	return nil
}

// Record is a product flattened together with its owning category.
type Record struct {
	CategoryKey string
	Category    string
	Product     *Product
}

// Fields returns the product fields with the category injected under CategoryKey.
func (r Record) Fields() map[string]any {
	fields := r.Product.Fields()
	fields[r.CategoryKey] = r.Category
	return fields
}

// MarshalJSON encodes the record as a single flat object.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Fields())
}
