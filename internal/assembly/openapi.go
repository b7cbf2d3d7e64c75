package assembly

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// Open data services used by the tracker.
const (
	ServicePrimaryBills = "nzmimeepazxkubdpn" // bills by representative proposer
	ServiceSessionBills = "nwbpacrgavhjryiph" // all bills of a session
	ServiceVoteResults  = "nojepdqqaweusdfbi" // per-member roll-call results
)

const (
	resultOK     = "INFO-000"
	resultNoData = "INFO-200"
)

// Row is one record of an open data response. Values are left untyped
// because the API mixes numbers and strings between services.
type Row map[string]any

// String returns the value under key as text, or "" when absent.
func (r Row) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

type apiResult struct {
	Code    string `json:"CODE"`
	Message string `json:"MESSAGE"`
}

type OpenAPIOptions struct {
	BaseURL         string
	APIKey          string
	Age             string
	BillPageSize    int
	SessionPageSize int
	RateLimitRPS    float64
	Timeout         time.Duration
}

// OpenAPIClient talks to the National Assembly open data portal.
type OpenAPIClient struct {
	http            *resty.Client
	apiKey          string
	age             string
	billPageSize    int
	sessionPageSize int
	limiter         *rate.Limiter
}

func NewOpenAPIClient(opts OpenAPIOptions) *OpenAPIClient {
	if opts.BillPageSize <= 0 {
		opts.BillPageSize = 100
	}
	if opts.SessionPageSize <= 0 {
		opts.SessionPageSize = 10
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if opts.RateLimitRPS > 0 {
		limit = rate.Limit(opts.RateLimitRPS)
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json")

	return &OpenAPIClient{
		http:            client,
		apiKey:          opts.APIKey,
		age:             opts.Age,
		billPageSize:    opts.BillPageSize,
		sessionPageSize: opts.SessionPageSize,
		limiter:         rate.NewLimiter(limit, 1),
	}
}

// FetchPage requests a single page of service and returns its rows. A
// response without the service envelope yields no rows.
func (c *OpenAPIClient) FetchPage(ctx context.Context, service string, page, size int, params map[string]string) ([]Row, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := map[string]string{
		"Key":    c.apiKey,
		"Type":   "json",
		"pIndex": strconv.Itoa(page),
		"pSize":  strconv.Itoa(size),
	}
	for k, v := range params {
		query[k] = v
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get("/" + service)
	if err != nil {
		return nil, fmt.Errorf("%w: %s page %d: %v", ErrTransient, service, page, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: %s page %d returned status %d", ErrTransient, service, page, resp.StatusCode())
	}
	return parseEnvelope(service, resp.Body())
}

// parseEnvelope extracts rows from {"<service>": [{"head": ...}, {"row": [...]}]}.
func parseEnvelope(service string, data []byte) ([]Row, error) {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, service, err)
	}

	raw, ok := body[service]
	if !ok {
		// No envelope: either an empty page or an API-level error.
		if res, ok := body["RESULT"]; ok {
			var result apiResult
			if err := json.Unmarshal(res, &result); err == nil && result.Code != resultNoData {
				log.Printf("[OpenAPI] %s returned %s: %s", service, result.Code, result.Message)
			}
		}
		return nil, nil
	}

	var sections []json.RawMessage
	if err := json.Unmarshal(raw, &sections); err != nil {
		return nil, fmt.Errorf("%w: %s envelope: %v", ErrParse, service, err)
	}
	if len(sections) < 2 {
		return nil, nil
	}

	var head struct {
		Head []struct {
			Result *apiResult `json:"RESULT"`
		} `json:"head"`
	}
	if err := json.Unmarshal(sections[0], &head); err == nil {
		for _, h := range head.Head {
			if h.Result != nil && h.Result.Code != resultOK {
				log.Printf("[OpenAPI] %s head reports %s: %s", service, h.Result.Code, h.Result.Message)
			}
		}
	}

	var page struct {
		Row []Row `json:"row"`
	}
	if err := json.Unmarshal(sections[1], &page); err != nil {
		return nil, fmt.Errorf("%w: %s rows: %v", ErrParse, service, err)
	}
	return page.Row, nil
}

// FetchAllPages walks service from page 1 until a page comes back empty.
// The API's total counts are unreliable, so the empty page is the only stop
// condition. On failure the rows gathered so far are returned with the error.
func (c *OpenAPIClient) FetchAllPages(ctx context.Context, service string, size int, params map[string]string) ([]Row, error) {
	var all []Row
	for page := 1; ; page++ {
		rows, err := c.FetchPage(ctx, service, page, size, params)
		if err != nil {
			return all, fmt.Errorf("page %d: %w", page, err)
		}
		if len(rows) == 0 {
			return all, nil
		}
		all = append(all, rows...)
	}
}

// FetchPrimaryBills returns every bill the member introduced as representative proposer.
func (c *OpenAPIClient) FetchPrimaryBills(ctx context.Context, memberName string) ([]Row, error) {
	return c.FetchAllPages(ctx, ServicePrimaryBills, c.billPageSize, map[string]string{
		"PROPOSER": memberName,
		"AGE":      c.age,
	})
}

// FetchSessionBillIDs lists the identifiers of every bill in the session.
func (c *OpenAPIClient) FetchSessionBillIDs(ctx context.Context) ([]string, error) {
	rows, err := c.FetchAllPages(ctx, ServiceSessionBills, c.sessionPageSize, map[string]string{
		"AGE": c.age,
	})
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if id := row.String("BILL_ID"); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, err
}

// FetchVotes returns the member's roll-call rows for one bill.
func (c *OpenAPIClient) FetchVotes(ctx context.Context, billID, memberName string) ([]Row, error) {
	return c.FetchPage(ctx, ServiceVoteResults, 1, c.billPageSize, map[string]string{
		"BILL_ID": billID,
		"AGE":     c.age,
		"HG_NM":   memberName,
	})
}
