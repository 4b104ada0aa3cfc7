package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/aluiziolira/scan-catalog/models"
)

func TestFlattenPreservesLengthAndOrder(t *testing.T) {
	c := sampleCatalog()
	records := Flatten(c, "")

	if len(records) != c.Items() {
		t.Fatalf("records = %d, want %d", len(records), c.Items())
	}

	want := []string{"SSDs/ln-A", "SSDs/ln-B", "HDDs/ln-C", "HDDs/ln-D"}
	for i, record := range records {
		got := record.Category + "/" + record.Product.LinkNo
		if got != want[i] {
			t.Fatalf("record %d = %s, want %s", i, got, want[i])
		}
		if record.CategoryKey != DefaultCategoryKey {
			t.Fatalf("category key = %q", record.CategoryKey)
		}
	}

	pairs := make(map[string]bool)
	c.Each(func(category string, p *models.Product) {
		pairs[category+"/"+p.LinkNo] = true
	})
	for _, record := range records {
		delete(pairs, record.Category+"/"+record.Product.LinkNo)
	}
	if len(pairs) != 0 {
		t.Fatalf("pairs missing from flattened output: %v", pairs)
	}
}

func TestFlattenDoesNotMutateCatalog(t *testing.T) {
	c := sampleCatalog()
	before, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	records := Flatten(c, "cat")
	for _, record := range records {
		record.Product.Attributes["data-description"] = "changed"
		record.Product.LinkNo = "changed"
		_ = record.Fields()
	}

	after, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(before) != string(after) {
		t.Fatalf("catalog changed:\nbefore=%s\nafter=%s", before, after)
	}
}

func TestFlattenInjectsCategoryField(t *testing.T) {
	records := Flatten(sampleCatalog(), "cat")
	fields := records[0].Fields()
	if fields["cat"] != "SSDs" {
		t.Fatalf("cat field = %v, want SSDs", fields["cat"])
	}
	if _, ok := records[0].Product.Attributes["cat"]; ok {
		t.Fatalf("category must not leak into product attributes")
	}
}
