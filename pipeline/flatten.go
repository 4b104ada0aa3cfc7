package pipeline

import "github.com/aluiziolira/scan-catalog/models"

// DefaultCategoryKey is the field flattened records carry their category under.
const DefaultCategoryKey = "category"

// Flatten lists every product of c with its category injected under key.
// Categories come in insertion order and products in stored order. The
// records hold copies, so c is never modified through them.
func Flatten(c *models.Catalog, key string) []models.Record {
	if key == "" {
		key = DefaultCategoryKey
	}
	records := make([]models.Record, 0, c.Items())
	c.Each(func(category string, p *models.Product) {
		records = append(records, models.Record{
			CategoryKey: key,
			Category:    category,
			Product:     p.Clone(),
		})
	})
	return records
}
