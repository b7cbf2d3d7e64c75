package enrich

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/david/assembly-tracker/internal/ai"
	"github.com/david/assembly-tracker/internal/cache"
	"github.com/david/assembly-tracker/internal/crawl"
	"github.com/david/assembly-tracker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const longPurpose = "제안이유<br/>현행법상 공공기관의 정보공개 범위가 불명확하여 국민의 알 권리가 침해되고 있음."

func purposePage(body string) string {
	return `<html><body><div class="textType02 mt30">` + body + `</div></body></html>`
}

// mockFetcher serves canned pages keyed by bill id.
type mockFetcher struct {
	pages map[string]string
	errs  map[string]error
	delay time.Duration
	calls atomic.Int32
}

func (m *mockFetcher) Fetch(ctx context.Context, rawURL string) (*crawl.FetchedDocument, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	id := u.Query().Get("billId")
	if err := m.errs[id]; err != nil {
		return nil, err
	}
	page, ok := m.pages[id]
	if !ok {
		page = "<html><body>없음</body></html>"
	}
	return &crawl.FetchedDocument{URL: rawURL, StatusCode: 200, Body: io.NopCloser(strings.NewReader(page))}, nil
}

// mockSummarizer answers with a queue of results, repeating the last one.
type mockSummarizer struct {
	mu      sync.Mutex
	results []error
	calls   int
}

func (m *mockSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.results) > 0 {
		idx := min(m.calls-1, len(m.results)-1)
		if err := m.results[idx]; err != nil {
			return "", err
		}
	}
	return "요약: " + strings.SplitN(text, "\n", 2)[0], nil
}

func (m *mockSummarizer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var errRateLimited = &ai.Error{Kind: ai.KindRateLimit, StatusCode: 429}

func newTestEnricher(f crawl.Fetcher, s ai.Summarizer) *Enricher {
	return &Enricher{
		Fetcher:    f,
		Summarizer: s,
		Cache:      cache.NewMemory(100, time.Hour),
		DetailURL:  "https://likms.assembly.go.kr/bill/summaryPopup.do",
		BaseDelay:  time.Millisecond,
	}
}

func TestEnrichSummarizesAndMemoizes(t *testing.T) {
	fetcher := &mockFetcher{pages: map[string]string{"B1": purposePage(longPurpose)}}
	summarizer := &mockSummarizer{}
	e := newTestEnricher(fetcher, summarizer)

	first := e.Enrich(context.Background(), "B1")
	second := e.Enrich(context.Background(), "B1")

	assert.Equal(t, first, second)
	assert.Equal(t, "요약: 제안이유", first.Summary)
	assert.True(t, strings.HasPrefix(first.Details, "제안이유\n현행법상"))
	assert.EqualValues(t, 1, fetcher.calls.Load())
	assert.Equal(t, 1, summarizer.Calls())
}

func TestEnrichConcurrentCallsShareOneCrawl(t *testing.T) {
	fetcher := &mockFetcher{pages: map[string]string{"B1": purposePage(longPurpose)}, delay: 20 * time.Millisecond}
	e := newTestEnricher(fetcher, &mockSummarizer{})

	var wg sync.WaitGroup
	results := make([]models.Detail, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.Enrich(context.Background(), "B1")
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, fetcher.calls.Load())
	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
}

func TestEnrichShortContentSkipsSummarizer(t *testing.T) {
	fetcher := &mockFetcher{pages: map[string]string{"B1": purposePage("짧은 내용")}}
	summarizer := &mockSummarizer{}
	d := newTestEnricher(fetcher, summarizer).Enrich(context.Background(), "B1")

	assert.Equal(t, "짧은 내용", d.Details)
	assert.Equal(t, models.SummaryInsufficient, d.Summary)
	assert.Equal(t, 0, summarizer.Calls())
}

func TestEnrichMissingContainerIsMemoized(t *testing.T) {
	fetcher := &mockFetcher{}
	e := newTestEnricher(fetcher, &mockSummarizer{})

	d := e.Enrich(context.Background(), "B2")
	assert.Equal(t, models.DetailNotFound, d.Details)
	assert.Equal(t, models.SummaryUnavailable, d.Summary)

	e.Enrich(context.Background(), "B2")
	assert.EqualValues(t, 1, fetcher.calls.Load())
}

func TestEnrichFetchError(t *testing.T) {
	fetcher := &mockFetcher{errs: map[string]error{"B3": errors.New("connection reset")}}
	d := newTestEnricher(fetcher, &mockSummarizer{}).Enrich(context.Background(), "B3")

	assert.Equal(t, models.DetailCrawlFailedPrefix+"connection reset", d.Details)
	assert.Equal(t, models.SummaryUnavailable, d.Summary)
}

func TestEnrichCancelledContextIsNotMemoized(t *testing.T) {
	fetcher := &mockFetcher{errs: map[string]error{"B4": context.Canceled}}
	e := newTestEnricher(fetcher, &mockSummarizer{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e.Enrich(ctx, "B4")

	assert.False(t, e.Cache.Has(cache.DetailKey("B4")))
}

func TestSummarizeRetriesOnRateLimit(t *testing.T) {
	fetcher := &mockFetcher{pages: map[string]string{"B1": purposePage(longPurpose)}}
	summarizer := &mockSummarizer{results: []error{errRateLimited, errRateLimited, nil}}
	d := newTestEnricher(fetcher, summarizer).Enrich(context.Background(), "B1")

	assert.Equal(t, "요약: 제안이유", d.Summary)
	assert.Equal(t, 3, summarizer.Calls())
}

func TestSummarizeGivesUpAfterMaxAttempts(t *testing.T) {
	fetcher := &mockFetcher{pages: map[string]string{"B1": purposePage(longPurpose)}}
	summarizer := &mockSummarizer{results: []error{errRateLimited}}
	d := newTestEnricher(fetcher, summarizer).Enrich(context.Background(), "B1")

	assert.Equal(t, models.SummaryFailed, d.Summary)
	assert.Equal(t, 5, summarizer.Calls())
}

func TestSummarizeAbortsOnOtherErrors(t *testing.T) {
	fetcher := &mockFetcher{pages: map[string]string{"B1": purposePage(longPurpose)}}
	summarizer := &mockSummarizer{results: []error{&ai.Error{Kind: ai.KindAuth, StatusCode: 401}}}
	d := newTestEnricher(fetcher, summarizer).Enrich(context.Background(), "B1")

	assert.Equal(t, models.SummaryFailed, d.Summary)
	assert.Equal(t, 1, summarizer.Calls())
}

// fakeSummaryStore records summary updates in memory.
type fakeSummaryStore struct {
	bills   []models.Bill
	updated map[string]string
}

func (f *fakeSummaryStore) ListBillsBySummary(ctx context.Context, summary string) ([]models.Bill, error) {
	var out []models.Bill
	for _, b := range f.bills {
		if b.Summary == summary {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeSummaryStore) UpdateBillSummary(ctx context.Context, billID, summary string) error {
	if f.updated == nil {
		f.updated = map[string]string{}
	}
	f.updated[billID] = summary
	return nil
}

func TestSummaryRetrier(t *testing.T) {
	store := &fakeSummaryStore{bills: []models.Bill{
		{BillID: "B1", Details: "제안이유\n충분히 긴 법안 설명이 들어 있는 본문입니다.", Summary: models.SummaryFailed},
		{BillID: "B2", Details: "짧음", Summary: models.SummaryFailed},
		{BillID: "B3", Details: "이미 요약된 법안의 본문입니다.", Summary: "기존 요약"},
	}}
	e := newTestEnricher(&mockFetcher{}, &mockSummarizer{})
	retrier := &SummaryRetrier{Store: store, Enricher: e}

	fixed, err := retrier.RetryFailed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, fixed)
	assert.Equal(t, "요약: 제안이유", store.updated["B1"])
	assert.Equal(t, models.SummaryInsufficient, store.updated["B2"])
	assert.NotContains(t, store.updated, "B3")

	cached := e.Enrich(context.Background(), "B1")
	assert.Equal(t, "요약: 제안이유", cached.Summary)
}

func TestSummaryRetrierKeepsFailures(t *testing.T) {
	store := &fakeSummaryStore{bills: []models.Bill{
		{BillID: "B1", Details: "제안이유\n충분히 긴 법안 설명이 들어 있는 본문입니다.", Summary: models.SummaryFailed},
	}}
	e := newTestEnricher(&mockFetcher{}, &mockSummarizer{results: []error{&ai.Error{Kind: ai.KindTransient}}})

	fixed, err := (&SummaryRetrier{Store: store, Enricher: e}).RetryFailed(context.Background())
	require.NoError(t, err)
	assert.Zero(t, fixed)
	assert.Empty(t, store.updated)
}
