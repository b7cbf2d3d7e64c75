package enrich

import (
	"context"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/avast/retry-go"
	"github.com/david/assembly-tracker/internal/ai"
	"github.com/david/assembly-tracker/internal/assembly"
	"github.com/david/assembly-tracker/internal/cache"
	"github.com/david/assembly-tracker/internal/crawl"
	"github.com/david/assembly-tracker/internal/models"
	"golang.org/x/sync/singleflight"
)

const (
	defaultMinContentLength = 10
	defaultMaxAttempts      = 5
	defaultBaseDelay        = 2 * time.Second
)

// Enricher attaches the crawled purpose text and a generated summary to a
// bill. Results, failures included, are memoized per bill id.
type Enricher struct {
	Fetcher    crawl.Fetcher
	Summarizer ai.Summarizer
	Cache      cache.Service
	DetailURL  string

	MinContentLength int           // texts this short are not summarized
	MaxAttempts      int           // summarization attempts on rate limiting
	BaseDelay        time.Duration // first backoff delay, doubled per retry

	group singleflight.Group
}

// Enrich returns the detail pair for billID. It never fails: problems are
// reported through the placeholder strings in models.
func (e *Enricher) Enrich(ctx context.Context, billID string) models.Detail {
	key := cache.DetailKey(billID)
	if d, ok := e.cached(key); ok {
		return d
	}

	v, _, _ := e.group.Do(billID, func() (any, error) {
		if d, ok := e.cached(key); ok {
			return d, nil
		}
		d := e.crawl(ctx, billID)
		// A cancelled crawl says nothing about the bill itself.
		if ctx.Err() == nil {
			e.Cache.Set(key, d)
		}
		return d, nil
	})
	return v.(models.Detail)
}

// Remember overwrites the memoized pair for billID.
func (e *Enricher) Remember(billID string, d models.Detail) {
	e.Cache.Set(cache.DetailKey(billID), d)
}

func (e *Enricher) cached(key string) (models.Detail, bool) {
	v, ok := e.Cache.Get(key)
	if !ok {
		return models.Detail{}, false
	}
	d, ok := v.(models.Detail)
	return d, ok
}

func (e *Enricher) crawl(ctx context.Context, billID string) models.Detail {
	doc, err := e.Fetcher.Fetch(ctx, assembly.DetailURL(e.DetailURL, billID))
	if err != nil {
		log.Printf("[Enricher] Error while crawling %s: %v", billID, err)
		return models.Detail{
			Details: models.DetailCrawlFailedPrefix + err.Error(),
			Summary: models.SummaryUnavailable,
		}
	}
	defer doc.Body.Close()

	text, err := assembly.ParseBillPurpose(doc.Body)
	if err != nil {
		log.Printf("[Enricher] No purpose section for %s: %v", billID, err)
		return models.Detail{Details: models.DetailNotFound, Summary: models.SummaryUnavailable}
	}

	return models.Detail{Details: text, Summary: e.SummaryFor(ctx, text)}
}

// SummaryFor summarizes text, or explains why it could not.
func (e *Enricher) SummaryFor(ctx context.Context, text string) string {
	minLen := e.MinContentLength
	if minLen <= 0 {
		minLen = defaultMinContentLength
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) <= minLen {
		return models.SummaryInsufficient
	}
	return e.summarize(ctx, text)
}

// summarize retries only while the backend reports rate limiting; any other
// failure gives up at once.
func (e *Enricher) summarize(ctx context.Context, text string) string {
	attempts := e.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	delay := e.BaseDelay
	if delay <= 0 {
		delay = defaultBaseDelay
	}

	var summary string
	err := retry.Do(
		func() error {
			s, err := e.Summarizer.Summarize(ctx, text)
			if err != nil {
				return err
			}
			summary = s
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(delay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(ai.IsRateLimit),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("[Enricher] Summarization attempt %d/%d failed: %v", n+1, attempts, err)
		}),
	)
	if err != nil {
		log.Printf("[Enricher] Failed to summarize: %v", err)
		return models.SummaryFailed
	}
	if strings.TrimSpace(summary) == "" {
		return models.SummaryFailed
	}
	return summary
}
