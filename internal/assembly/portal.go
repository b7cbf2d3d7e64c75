package assembly

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const (
	portalListingPath = "/portal/assm/assmPrpl/prplMst.do"
	portalSearchPath  = "/portal/assm/assmPrpl/findCollaPrpsBill.json"

	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	acceptLanguage   = "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7"
)

// CollabRow is one entry of the member's co-sponsored bill listing.
type CollabRow struct {
	BillID      string `json:"billId"`
	BillName    string `json:"billName"`
	ProposeDate string `json:"proposeDt"`
	Committee   string `json:"currCommittee"`
	Proposer    string `json:"proposer"`
	BillLink    string `json:"billLinkUrl"`
}

type CollabPage struct {
	PaginationInfo struct {
		TotalPageCount int `json:"totalPageCount"`
	} `json:"paginationInfo"`
	ResultList []CollabRow `json:"resultList"`
}

// PortalSession carries the cookies and CSRF token issued by the listing
// page. It is created once per listing fetch and reused for every page.
type PortalSession struct {
	Token   string
	Cookies []*http.Cookie

	client *resty.Client
}

// PortalClient scrapes the co-sponsorship tab of a member's page on the
// Assembly portal. The search endpoint only answers requests that echo the
// page's CSRF token and session cookies.
type PortalClient struct {
	BaseURL    string
	MemberCode string
	Age        string
	RowSize    int
	Represent  string
	Timeout    time.Duration
}

// OpenSession loads the listing page and captures its anti-forgery token.
func (c *PortalClient) OpenSession(ctx context.Context) (*PortalSession, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("error creating cookie jar: %w", err)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(c.BaseURL, "/")).
		SetCookieJar(jar).
		SetTimeout(timeout).
		SetHeader("User-Agent", browserUserAgent).
		SetHeader("Accept-Language", acceptLanguage)

	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetQueryParams(map[string]string{
			"monaCd":   c.MemberCode,
			"st":       c.Age,
			"viewType": "CONTBODY",
			"tabId":    "collabill",
		}).
		Get(portalListingPath)
	if err != nil {
		return nil, fmt.Errorf("%w: listing page: %v", ErrAuthentication, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: listing page returned status %d", ErrAuthentication, resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("%w: listing page: %v", ErrAuthentication, err)
	}
	token := strings.TrimSpace(doc.Find(`meta[name="_csrf"]`).AttrOr("content", ""))
	if token == "" {
		return nil, fmt.Errorf("%w: csrf token not found", ErrAuthentication)
	}

	session := &PortalSession{Token: token, client: client}
	if u, err := url.Parse(c.BaseURL); err == nil {
		session.Cookies = jar.Cookies(u)
	}
	log.Printf("[Portal] Session opened (%d cookies)", len(session.Cookies))
	return session, nil
}

// SearchPage posts the co-sponsorship search form for one page.
func (c *PortalClient) SearchPage(ctx context.Context, session *PortalSession, page int) (*CollabPage, error) {
	rowSize := c.RowSize
	if rowSize <= 0 {
		rowSize = 10
	}

	resp, err := session.client.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"X-CSRF-TOKEN":     session.Token,
			"X-Requested-With": "XMLHttpRequest",
			"Accept":           "application/json, text/javascript, */*; q=0.01",
			"Origin":           c.BaseURL,
			"Referer":          c.BaseURL + portalListingPath,
		}).
		SetFormData(map[string]string{
			"pageIndex":     strconv.Itoa(page),
			"rowSize":       strconv.Itoa(rowSize),
			"represent":     c.Represent,
			"monaCd":        c.MemberCode,
			"age":           "",
			"billName":      "",
			"procResultCd":  "",
			"searchStartDt": "",
			"searchEndDt":   "",
		}).
		Post(portalSearchPath)
	if err != nil {
		return nil, fmt.Errorf("%w: search page %d: %v", ErrTransient, page, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: search page %d returned status %d", ErrTransient, page, resp.StatusCode())
	}

	var result CollabPage
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("%w: search page %d: %v", ErrParse, page, err)
	}
	return &result, nil
}

// FetchCollaborativeBills collects every page of the co-sponsorship listing.
// Failing to open the session or to read the first page aborts the fetch;
// later pages that fail are logged and skipped.
func (c *PortalClient) FetchCollaborativeBills(ctx context.Context) ([]CollabRow, error) {
	session, err := c.OpenSession(ctx)
	if err != nil {
		return nil, err
	}

	first, err := c.SearchPage(ctx, session, 1)
	if err != nil {
		return nil, fmt.Errorf("first page: %w", err)
	}

	totalPages := first.PaginationInfo.TotalPageCount
	rows := append([]CollabRow(nil), first.ResultList...)
	for page := 2; page <= totalPages; page++ {
		if err := ctx.Err(); err != nil {
			return rows, err
		}
		result, err := c.SearchPage(ctx, session, page)
		if err != nil {
			log.Printf("[Portal] ⚠️ page %d/%d failed, skipping: %v", page, totalPages, err)
			continue
		}
		rows = append(rows, result.ResultList...)
	}

	// The portal highlights matches in names with inline spans.
	for i := range rows {
		rows[i].BillName = StripMarkup(rows[i].BillName)
	}

	log.Printf("[Portal] Collected %d co-sponsored bills from %d pages", len(rows), max(totalPages, 1))
	return rows, nil
}
