package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aluiziolira/scan-catalog/config"
	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Fetcher retrieves a raw document. It is the only blocking collaborator of
// a Session.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// CollyFetcher fetches documents with a colly collector. Retries and the
// response cache live here, never in the extraction core.
type CollyFetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	cache     *lru.Cache[string, []byte]
	metrics   *Metrics
}

// NewCollyFetcher builds a fetcher configured from cfg. metrics may be nil.
func NewCollyFetcher(cfg *config.Config, metrics *Metrics) (*CollyFetcher, error) {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	f := &CollyFetcher{
		cfg:       cfg,
		collector: collector,
		metrics:   metrics,
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, []byte](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create response cache: %w", err)
		}
		f.cache = cache
	}
	return f, nil
}

// Fetch returns the body of url. Failures are reported as *FetchError.
func (f *CollyFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if f.cache != nil {
		if body, ok := f.cache.Get(url); ok {
			f.metrics.IncCacheHit()
			slog.Debug("document served from cache", slog.String("url", url))
			return append([]byte(nil), body...), nil
		}
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &FetchError{URL: url, Attempts: attempt - 1, Err: err}
		}

		body, status, err := f.visit(url)
		if err == nil {
			if f.cache != nil {
				f.cache.Add(url, append([]byte(nil), body...))
			}
			return body, nil
		}

		classified := classifyError(err, status)
		category := errorTypeLabel(classified)
		f.metrics.IncError(category)
		slog.Error("request error",
			slog.String("url", url),
			slog.Int("status", status),
			slog.String("category", category),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)

		if attempt > f.cfg.MaxRetries || !retryable(classified, status) {
			return nil, &FetchError{URL: url, StatusCode: status, Attempts: attempt, Err: classified}
		}

		f.metrics.IncRetries()
		if err := sleepCtx(ctx, f.backoff(attempt)); err != nil {
			return nil, &FetchError{URL: url, StatusCode: status, Attempts: attempt, Err: err}
		}
	}
}

// Invalidate drops url from the response cache.
func (f *CollyFetcher) Invalidate(url string) {
	if f.cache != nil {
		f.cache.Remove(url)
	}
}

func (f *CollyFetcher) visit(url string) ([]byte, int, error) {
	c := f.collector.Clone()

	var (
		body     []byte
		status   int
		fetchErr error
		received bool
	)
	c.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("start", time.Now())
		f.metrics.IncRequest("started")
	})
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
		received = true
		if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
			f.metrics.ObserveDuration(time.Since(start))
		}
		f.metrics.IncRequest("completed")
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
		f.metrics.IncRequest("failed")
	})

	err := c.Visit(url)
	if fetchErr != nil {
		return nil, status, fetchErr
	}
	if err != nil {
		return nil, status, err
	}
	if !received {
		return nil, status, errors.New("no response received")
	}
	return body, status, nil
}

func (f *CollyFetcher) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := f.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := f.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
