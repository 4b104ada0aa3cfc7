package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for fetching and extraction.
type Metrics struct {
	Registry           *prometheus.Registry
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    prometheus.Histogram
	RetriesTotal       prometheus.Counter
	ErrorsTotal        *prometheus.CounterVec
	CacheHitsTotal     prometheus.Counter
	CategoriesTotal    prometheus.Counter
	ProductsTotal      *prometheus.CounterVec
	RejectedTotal      *prometheus.CounterVec
	StructuralSkips    *prometheus.CounterVec
	ExtractionDuration prometheus.Histogram
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total HTTP requests issued by the fetcher.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for fetched documents.",
			Buckets: prometheus.DefBuckets,
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of fetch errors by type.",
		},
		[]string{"error_type"},
	)
	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_cache_hits_total",
			Help: "Documents served from the response cache.",
		},
	)
	categories := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_categories_visited_total",
			Help: "Categories visited by the extractor.",
		},
	)
	products := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_products_total",
			Help: "Products added to the catalog by stock status.",
		},
		[]string{"status"},
	)
	rejected := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_products_rejected_total",
			Help: "Products rejected by validation, by offending field.",
		},
		[]string{"field"},
	)
	skips := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_structural_skips_total",
			Help: "Categories or products skipped because of unexpected markup.",
		},
		[]string{"element"},
	)
	extraction := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_extraction_duration_seconds",
			Help:    "Time spent extracting a parsed document.",
			Buckets: prometheus.DefBuckets,
		},
	)

	registry.MustRegister(requests, requestDuration, retries, errorsTotal, cacheHits,
		categories, products, rejected, skips, extraction)

	return &Metrics{
		Registry:           registry,
		RequestsTotal:      requests,
		RequestDuration:    requestDuration,
		RetriesTotal:       retries,
		ErrorsTotal:        errorsTotal,
		CacheHitsTotal:     cacheHits,
		CategoriesTotal:    categories,
		ProductsTotal:      products,
		RejectedTotal:      rejected,
		StructuralSkips:    skips,
		ExtractionDuration: extraction,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncCacheHit increments the cache hit counter.
func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

// IncCategory counts one visited category.
func (m *Metrics) IncCategory() {
	if m == nil {
		return
	}
	m.CategoriesTotal.Inc()
}

// IncProduct counts one product accepted into the catalog.
func (m *Metrics) IncProduct(status string) {
	if m == nil {
		return
	}
	m.ProductsTotal.WithLabelValues(status).Inc()
}

// IncRejected counts one product rejected for field.
func (m *Metrics) IncRejected(field string) {
	if m == nil {
		return
	}
	m.RejectedTotal.WithLabelValues(field).Inc()
}

// IncSkip counts one structural skip at element.
func (m *Metrics) IncSkip(element string) {
	if m == nil {
		return
	}
	m.StructuralSkips.WithLabelValues(element).Inc()
}

// ObserveExtraction records how long an extraction pass took.
func (m *Metrics) ObserveExtraction(d time.Duration) {
	if m == nil {
		return
	}
	m.ExtractionDuration.Observe(d.Seconds())
}
