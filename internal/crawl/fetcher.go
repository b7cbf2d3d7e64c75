package crawl

import (
	"context"
	"io"
	"time"
)

// FetchedDocument is the raw result of a fetch.
type FetchedDocument struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
	FetchedAt   time.Time
	Headers     map[string][]string
}

// Fetcher retrieves raw page content.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedDocument, error)
}
