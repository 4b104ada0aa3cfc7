package parser

import "strings"

// AttrPrefix is the prefix every captured product attribute carries.
const AttrPrefix = "data-"

// DefaultAttributes are the product attributes captured when none are configured.
var DefaultAttributes = []string{"description", "manufacturer", "price", "productflags", "wpid"}

// Whitelist is the ordered set of attribute names the extractor may capture.
type Whitelist struct {
	keys []string
	set  map[string]struct{}
}

// NewWhitelist builds a whitelist from attrs, normalising each like Add.
func NewWhitelist(attrs ...string) *Whitelist {
	w := &Whitelist{set: make(map[string]struct{}, len(attrs))}
	for _, attr := range attrs {
		w.Add(attr)
	}
	return w
}

// Add inserts attr, prefixing it with AttrPrefix when missing. Adding a name
// already present is a no-op.
func (w *Whitelist) Add(attr string) {
	attr = NormalizeAttribute(attr)
	if attr == "" {
		return
	}
	if _, ok := w.set[attr]; ok {
		return
	}
	w.set[attr] = struct{}{}
	w.keys = append(w.keys, attr)
}

// Contains reports whether attr is whitelisted.
func (w *Whitelist) Contains(attr string) bool {
	_, ok := w.set[attr]
	return ok
}

// Keys returns the whitelisted names in insertion order.
func (w *Whitelist) Keys() []string {
	out := make([]string, len(w.keys))
	copy(out, w.keys)
	return out
}

// Len returns the number of whitelisted names.
func (w *Whitelist) Len() int {
	return len(w.keys)
}

// Filter returns the subset of attrs whose keys are whitelisted.
func (w *Whitelist) Filter(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(w.keys))
	for k, v := range attrs {
		if w.Contains(k) {
			out[k] = v
		}
	}
	return out
}

// NormalizeAttribute trims attr and ensures it carries AttrPrefix.
func NormalizeAttribute(attr string) string {
	attr = strings.TrimSpace(attr)
	if attr == "" {
		return ""
	}
	if !strings.HasPrefix(attr, AttrPrefix) {
		attr = AttrPrefix + attr
	}
	return attr
}
