package scraper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/aluiziolira/scan-catalog/config"
	"github.com/aluiziolira/scan-catalog/models"
	"github.com/aluiziolira/scan-catalog/pipeline"
)

type stubFetcher struct {
	pages     map[string]string
	requested []string
}

func (f *stubFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.requested = append(f.requested, url)
	page, ok := f.pages[url]
	if !ok {
		return nil, &FetchError{URL: url, StatusCode: 404, Attempts: 1, Err: ErrNotFound{Err: errors.New("Not Found")}}
	}
	return []byte(page), nil
}

const (
	storageURL = "http://example.test/shop/storage"
	ssdURL     = "http://example.test/shop/storage/ssd"
)

func newStubSession(t *testing.T) (*Session, *stubFetcher) {
	t.Helper()
	fetcher := &stubFetcher{pages: map[string]string{
		storageURL: buildPage("Storage", []testCategory{
			{title: "SSDs", href: "/shop/storage/ssd", columns: threeProducts("s")},
			{title: "HDDs", href: "hdd", columns: threeProducts("h")},
			{title: "Misc", columns: threeProducts("m")},
		}),
		ssdURL: buildPage("SSDs", []testCategory{{columns: [][]testProduct{{
			{desc: "A", price: "149.99", stock: "3"},
			{desc: "B", price: "999999.00"},
		}}}}),
	}}

	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://example.test"
	s, err := NewSession(cfg, WithFetcher(fetcher))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s, fetcher
}

func TestSearchURL(t *testing.T) {
	tests := []struct {
		base, query, want string
	}{
		{base: "https://www.scan.co.uk", query: "rtx 3080", want: "https://www.scan.co.uk/search?q=rtx+3080"},
		{base: "https://www.scan.co.uk/", query: "ssd", want: "https://www.scan.co.uk/search?q=ssd"},
		{base: "http://x", query: "a  b", want: "http://x/search?q=a++b"},
	}
	for _, tt := range tests {
		if got := SearchURL(tt.base, tt.query); got != tt.want {
			t.Fatalf("SearchURL(%q, %q) = %q, want %q", tt.base, tt.query, got, tt.want)
		}
	}
}

func TestSessionScrape(t *testing.T) {
	s, _ := newStubSession(t)

	result, err := s.Scrape(context.Background(), ssdURL, config.NoThreshold)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if result.Items != 2 || result.Description != "SSDs" {
		t.Fatalf("result = %+v", result)
	}
	if s.Description() != "SSDs" || s.URL() != ssdURL {
		t.Fatalf("session metadata = %q %q", s.Description(), s.URL())
	}
	stats := s.Stats()
	if stats.InStockUnits != 3 || stats.UnreleasedCount != 1 || stats.AvgPrice != 149.99 {
		t.Fatalf("stats = %+v", stats)
	}
	if got := s.Index().Unreleased; !reflect.DeepEqual(got, []string{"B"}) {
		t.Fatalf("unreleased = %v", got)
	}
}

func TestSessionFailedScrapeKeepsState(t *testing.T) {
	s, _ := newStubSession(t)
	if _, err := s.Scrape(context.Background(), ssdURL, config.NoThreshold); err != nil {
		t.Fatalf("scrape: %v", err)
	}
	before := s.Stats()

	_, err := s.Scrape(context.Background(), "http://example.test/missing", config.NoThreshold)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if s.Stats() != before || s.URL() != ssdURL || s.Catalog().Items() != 2 {
		t.Fatalf("state changed after failed scrape")
	}
}

func TestSessionStructuralFailureKeepsState(t *testing.T) {
	s, fetcher := newStubSession(t)
	fetcher.pages["http://example.test/broken"] = "<html><body><p>no title</p></body></html>"
	if _, err := s.Scrape(context.Background(), ssdURL, config.NoThreshold); err != nil {
		t.Fatalf("scrape: %v", err)
	}

	_, err := s.Scrape(context.Background(), "http://example.test/broken", config.NoThreshold)
	if !errors.Is(err, ErrMissingTitle) {
		t.Fatalf("expected ErrMissingTitle, got %v", err)
	}
	if s.Description() != "SSDs" {
		t.Fatalf("description = %q, want previous page kept", s.Description())
	}
}

func TestSessionChoicesAndAlterURL(t *testing.T) {
	s, fetcher := newStubSession(t)
	if _, err := s.Scrape(context.Background(), storageURL, 1); err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if s.Catalog().Items() != 1 {
		t.Fatalf("threshold not applied: %d items", s.Catalog().Items())
	}

	if _, err := s.Scrape(context.Background(), storageURL, config.NoThreshold); err != nil {
		t.Fatalf("scrape: %v", err)
	}
	choices := s.Choices()
	want := []Choice{
		{Label: "SSDs", Link: ssdURL},
		{Label: "HDDs", Link: "http://example.test/shop/hdd"},
	}
	if !reflect.DeepEqual(choices, want) {
		t.Fatalf("choices = %+v, want %+v", choices, want)
	}

	if _, err := s.AlterURL(context.Background(), choices[0].Link); err != nil {
		t.Fatalf("alter url: %v", err)
	}
	if got := s.Categories(); !reflect.DeepEqual(got, []string{"SSDs"}) {
		t.Fatalf("categories after alter = %v", got)
	}
	if s.Stats().Categories != 1 || s.Stats().Items != 2 {
		t.Fatalf("derived state not reset: %+v", s.Stats())
	}
	if last := fetcher.requested[len(fetcher.requested)-1]; last != ssdURL {
		t.Fatalf("last request = %q", last)
	}
}

func TestSessionScrapeQuery(t *testing.T) {
	s, fetcher := newStubSession(t)
	fetcher.pages["http://example.test/search?q=fast+ssd"] = buildPage("Search", []testCategory{{columns: threeProducts("q")}})

	result, err := s.ScrapeQuery(context.Background(), "fast ssd", 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if result.Items != 2 || !result.Truncated {
		t.Fatalf("result = %+v", result)
	}
}

func TestSessionRecountAfterEdit(t *testing.T) {
	s, _ := newStubSession(t)
	if _, err := s.Scrape(context.Background(), storageURL, config.NoThreshold); err != nil {
		t.Fatalf("scrape: %v", err)
	}

	s.Catalog().Remove("HDDs")
	if err := s.Recount(); err != nil {
		t.Fatalf("recount: %v", err)
	}
	if s.Stats().Categories != 2 || s.Stats().Items != 6 {
		t.Fatalf("stats = %+v", s.Stats())
	}

	fresh := pipeline.NewAggregator()
	if err := fresh.Recount(s.Catalog()); err != nil {
		t.Fatalf("fresh recount: %v", err)
	}
	if fresh.Stats() != s.Stats() {
		t.Fatalf("recount is not idempotent")
	}
}

func TestSessionExportAndLoad(t *testing.T) {
	s, _ := newStubSession(t)
	if _, err := s.Scrape(context.Background(), ssdURL, config.NoThreshold); err != nil {
		t.Fatalf("scrape: %v", err)
	}

	path, err := s.Export(filepath.Join(t.TempDir(), "ssd"))
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if filepath.Ext(path) != ".json" {
		t.Fatalf("path = %q, want .json appended", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat export: %v", err)
	}

	catalog, err := pipeline.ReadCatalogJSON(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	other, _ := newStubSession(t)
	if err := other.Load(catalog); err != nil {
		t.Fatalf("load: %v", err)
	}
	if other.Stats() != s.Stats() {
		t.Fatalf("loaded stats %+v, want %+v", other.Stats(), s.Stats())
	}
	if !reflect.DeepEqual(other.Index(), s.Index()) {
		t.Fatalf("loaded index %+v, want %+v", other.Index(), s.Index())
	}
}

func TestSessionLoadRejectsInconsistentCatalog(t *testing.T) {
	s, _ := newStubSession(t)
	if _, err := s.Scrape(context.Background(), ssdURL, config.NoThreshold); err != nil {
		t.Fatalf("scrape: %v", err)
	}

	bad := models.NewCatalog()
	bad.AddCategory("Broken")
	bad.Append("Broken", &models.Product{LinkNo: "X", StockStatus: 2})

	err := s.Load(bad)
	var inconsistent *pipeline.InconsistentProductError
	if !errors.As(err, &inconsistent) {
		t.Fatalf("expected InconsistentProductError, got %v", err)
	}
	if s.Catalog().Items() != 2 {
		t.Fatalf("catalog replaced despite error")
	}
}

func TestSessionRecords(t *testing.T) {
	s, _ := newStubSession(t)
	if _, err := s.Scrape(context.Background(), storageURL, config.NoThreshold); err != nil {
		t.Fatalf("scrape: %v", err)
	}

	records := s.Records()
	if len(records) != 9 {
		t.Fatalf("records = %d, want 9", len(records))
	}
	fields := records[0].Fields()
	if fields[pipeline.DefaultCategoryKey] != "SSDs" {
		t.Fatalf("first record category = %v", fields[pipeline.DefaultCategoryKey])
	}
}
