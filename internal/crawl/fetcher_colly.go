package crawl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"
)

// CollyFetcher fetches pages with Colly. Each fetch gets its own collector
// so concurrent fetches never share callbacks; politeness across fetches is
// enforced by a shared limiter.
type CollyFetcher struct {
	UserAgent      string
	MaxRetries     int
	RetryDelay     time.Duration
	RequestTimeout time.Duration
	MaxBodySize    int // bytes, 0 = unlimited

	limiter *rate.Limiter
}

// NewCollyFetcher creates a CollyFetcher allowing rps requests per second
// (rps <= 0 disables the limit).
func NewCollyFetcher(rps float64) *CollyFetcher {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &CollyFetcher{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		MaxRetries:     2,
		RetryDelay:     time.Second,
		RequestTimeout: 30 * time.Second,
		MaxBodySize:    5 * 1024 * 1024,
		limiter:        rate.NewLimiter(limit, 1),
	}
}

func (f *CollyFetcher) buildCollector(ctx context.Context, host string) *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(f.UserAgent),
		colly.MaxBodySize(f.MaxBodySize),
		colly.AllowedDomains(host),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.DetectCharset(),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(f.RequestTimeout)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")
	})
	return c
}

// Fetch implements Fetcher. Network failures, 429 and 5xx responses are
// retried with a linear delay; other statuses fail immediately.
func (f *CollyFetcher) Fetch(ctx context.Context, targetURL string) (*FetchedDocument, error) {
	parsedURL, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= f.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Printf("[Colly] Retry %d/%d for %s: %v", attempt, f.MaxRetries, targetURL, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * f.RetryDelay):
			}
		}
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		doc, status, err := f.visit(ctx, parsedURL)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryableStatus(status) {
			break
		}
	}
	return nil, lastErr
}

func (f *CollyFetcher) visit(ctx context.Context, target *url.URL) (*FetchedDocument, int, error) {
	c := f.buildCollector(ctx, target.Hostname())

	var result *FetchedDocument
	status := 0
	c.OnResponse(func(r *colly.Response) {
		result = &FetchedDocument{
			URL:         r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        io.NopCloser(bytes.NewReader(r.Body)),
			FetchedAt:   time.Now(),
			Headers:     map[string][]string(r.Headers.Clone()),
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	if err := c.Visit(target.String()); err != nil {
		return nil, status, fmt.Errorf("fetch %s failed (status %d): %w", target, status, err)
	}
	if result == nil {
		return nil, status, fmt.Errorf("no response received for %s", target)
	}
	return result, result.StatusCode, nil
}

func retryableStatus(status int) bool {
	return status == 0 || status == http.StatusTooManyRequests || status >= 500
}
