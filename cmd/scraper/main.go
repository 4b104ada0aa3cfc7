package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/scan-catalog/config"
	"github.com/aluiziolira/scan-catalog/models"
	"github.com/aluiziolira/scan-catalog/pipeline"
	"github.com/aluiziolira/scan-catalog/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	pageURL := flag.String("url", "", "Shop page to scrape")
	query := flag.String("query", "", "Search the shop instead of scraping -url")
	results := flag.Int("results", config.NoThreshold, "Maximum products kept for -query (-1 for all)")
	threshold := flag.Int("threshold", config.NoThreshold, "Maximum products kept across the page (-1 for all)")
	selectCategory := flag.Bool("select", false, "Choose a category interactively and re-scrape its page")
	list := flag.Bool("list", false, "Print the page's categories and exit")
	input := flag.String("input", "", "Recount a previously exported catalog instead of fetching")
	outputFile := flag.String("output", "", "Output file path")
	outputFormat := flag.String("format", "", "Output format: json, csv, jsonl, or dual")
	attrs := flag.String("attrs", "", "Comma-separated product attributes to keep")
	maxRetries := flag.Int("max-retries", 0, "Maximum retry attempts per request")
	cacheSize := flag.Int("cache-size", 0, "Response cache entries (0 disables the cache)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if err := applyEnv(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			cfg.URL = *pageURL
		case "threshold":
			cfg.Threshold = *threshold
		case "output":
			cfg.OutputFile = *outputFile
		case "format":
			cfg.OutputFormat = strings.ToLower(*outputFormat)
		case "attrs":
			cfg.Attributes = splitList(*attrs)
		case "max-retries":
			cfg.MaxRetries = *maxRetries
		case "cache-size":
			cfg.CacheSize = *cacheSize
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "v":
			cfg.Verbose = *verbose
		}
	})

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	s, err := scraper.NewSession(cfg)
	if err != nil {
		slog.Error("initialising session", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsServer := startMetricsServer(cfg.MetricsAddr, s.Metrics)
	defer shutdownMetricsServer(metricsServer)

	startTime := time.Now()
	switch {
	case *input != "":
		catalog, err := pipeline.ReadCatalogJSON(*input)
		if err != nil {
			slog.Error("reading catalog", slog.Any("error", err))
			os.Exit(1)
		}
		if err := s.Load(catalog); err != nil {
			slog.Error("recounting catalog", slog.Any("error", err))
			os.Exit(1)
		}
		slog.Info("catalog loaded", slog.String("input", *input), slog.Int("items", s.Stats().Items))
	case *query != "":
		slog.Info("starting search", slog.String("query", *query), slog.Int("results", *results))
		if _, err := s.ScrapeQuery(ctx, *query, *results); err != nil {
			slog.Error("search failed", slog.Any("error", err))
			os.Exit(1)
		}
	default:
		slog.Info("starting scrape", slog.String("url", cfg.URL), slog.Int("threshold", cfg.Threshold))
		if _, err := s.Scrape(ctx, cfg.URL, cfg.Threshold); err != nil {
			slog.Error("scraping failed", slog.Any("error", err))
			os.Exit(1)
		}
	}

	if *list {
		for i, title := range s.Categories() {
			fmt.Printf("%d) %s (%d products)  %s\n", i+1, title, len(s.Catalog().Products(title)), s.Catalog().Link(title))
		}
		return
	}

	if *selectCategory {
		choice, err := scraper.SelectCategory(os.Stdin, os.Stdout, s.Choices())
		if err != nil {
			slog.Error("category selection failed", slog.Any("error", err))
			os.Exit(1)
		}
		if _, err := s.AlterURL(ctx, choice.Link); err != nil {
			slog.Error("scraping selected category failed", slog.String("category", choice.Label), slog.Any("error", err))
			os.Exit(1)
		}
	}

	written, err := writeOutput(s, cfg)
	if err != nil {
		slog.Error("writing output", slog.Any("error", err))
		os.Exit(1)
	}

	printSummary(s, time.Since(startTime), written)
}

func applyEnv(cfg *config.Config) error {
	if value, ok := config.EnvString("SCRAPER_URL"); ok {
		cfg.URL = value
	}
	if value, ok, err := config.EnvInt("SCRAPER_THRESHOLD"); err != nil {
		return fmt.Errorf("invalid SCRAPER_THRESHOLD: %w", err)
	} else if ok {
		cfg.Threshold = value
	}
	if value, ok := config.EnvString("SCRAPER_OUTPUT"); ok {
		cfg.OutputFile = value
	}
	if value, ok := config.EnvString("SCRAPER_FORMAT"); ok {
		cfg.OutputFormat = strings.ToLower(value)
	}
	if value, ok := config.EnvString("SCRAPER_METRICS_ADDR"); ok {
		cfg.MetricsAddr = value
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func startMetricsServer(addr string, metrics *scraper.Metrics) *http.Server {
	if addr == "" || metrics == nil {
		return nil
	}
	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return server
}

func shutdownMetricsServer(server *http.Server) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("metrics server shutdown failed", slog.Any("error", err))
	}
}

// writeOutput exports the session in the configured format and returns the
// paths written.
func writeOutput(s *scraper.Session, cfg *config.Config) ([]string, error) {
	if cfg.OutputFormat == "json" {
		path, err := s.Export(cfg.OutputFile)
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	}

	columns := pipeline.Columns(cfg.CategoryKey, cfg.Whitelist().Keys())
	writer, paths, err := createWriter(cfg.OutputFormat, cfg.OutputFile, columns)
	if err != nil {
		return nil, err
	}
	if err := writer.Write(s.Records()); err != nil {
		writer.Close()
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	if err := writer.Validate(); err != nil {
		return nil, fmt.Errorf("output validation failed: %w", err)
	}
	return paths, nil
}

func createWriter(format, filename string, columns []string) (pipeline.OutputWriter, []string, error) {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	switch format {
	case "csv":
		path := stem + ".csv"
		w, err := pipeline.NewCSVWriter(path, columns)
		return w, []string{path}, err
	case "jsonl":
		path := stem + ".jsonl"
		w, err := pipeline.NewJSONWriter(path)
		return w, []string{path}, err
	case "dual":
		csvPath, jsonPath := stem+".csv", stem+".jsonl"
		w, err := pipeline.NewDualWriter(csvPath, jsonPath, columns)
		return w, []string{csvPath, jsonPath}, err
	default:
		return nil, nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(s *scraper.Session, duration time.Duration, written []string) {
	stats := s.Stats()
	index := s.Index()
	result := s.Result()

	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	if s.Description() != "" {
		fmt.Printf("Catalog: %s\n", s.Description())
	} else {
		fmt.Println("Catalog")
	}
	fmt.Printf("  Categories:    %d\n", stats.Categories)
	fmt.Printf("  Items:         %d\n", stats.Items)
	fmt.Printf("  In stock:      %d units across %d products\n", stats.InStockUnits, len(index.Bucket(models.InStock)))
	fmt.Printf("  Out of stock:  %d\n", len(index.Bucket(models.OutOfStock)))
	fmt.Printf("  Unreleased:    %d\n", stats.UnreleasedCount)
	if stats.Items > stats.UnreleasedCount {
		fmt.Printf("  Price range:   %.2f - %.2f (avg %.2f)\n", stats.MinPrice, stats.MaxPrice, stats.AvgPrice)
	}
	if result.RejectedCount > 0 {
		fmt.Printf("  Rejected:      %d %v\n", result.RejectedCount, result.RejectedByField)
	}
	if result.SkippedCount > 0 {
		fmt.Printf("  Skipped:       %d\n", result.SkippedCount)
	}
	if result.Truncated {
		fmt.Println("  Truncated:     yes")
	}
	fmt.Printf("  Duration:      %v\n", duration)
	for _, path := range written {
		fmt.Printf("  Output file:   %s\n", path)
	}
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
