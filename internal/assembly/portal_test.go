package assembly

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingPage = `<html><head><meta name="_csrf" content="tok-123"/><meta name="_csrf_header" content="X-CSRF-TOKEN"/></head><body></body></html>`

// fakePortal emulates the listing page and its CSRF-guarded search endpoint.
type fakePortal struct {
	totalPages int
	failPages  map[int]int // page -> status
	noToken    bool
	posts      atomic.Int32
}

func (p *fakePortal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case portalListingPath:
		if p.noToken {
			fmt.Fprint(w, `<html><head></head></html>`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "sess-1", Path: "/"})
		fmt.Fprint(w, listingPage)
	case portalSearchPath:
		p.posts.Add(1)
		cookie, err := r.Cookie("JSESSIONID")
		if err != nil || cookie.Value != "sess-1" || r.Header.Get("X-CSRF-TOKEN") != "tok-123" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("represent") != "법률안" || r.PostForm.Get("monaCd") != "FIE6569O" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var page int
		fmt.Sscanf(r.PostForm.Get("pageIndex"), "%d", &page)
		if status, ok := p.failPages[page]; ok {
			w.WriteHeader(status)
			return
		}
		var result CollabPage
		result.PaginationInfo.TotalPageCount = p.totalPages
		result.ResultList = []CollabRow{{
			BillID:   fmt.Sprintf("C%d", page),
			BillName: fmt.Sprintf(`<span class="hl">법안</span> %d`, page),
		}}
		_ = json.NewEncoder(w).Encode(result)
	default:
		http.NotFound(w, r)
	}
}

func newPortalClient(url string) *PortalClient {
	return &PortalClient{
		BaseURL:    url,
		MemberCode: "FIE6569O",
		Age:        "22",
		RowSize:    10,
		Represent:  "법률안",
	}
}

func TestOpenSessionCapturesTokenAndCookies(t *testing.T) {
	srv := httptest.NewServer(&fakePortal{totalPages: 1})
	defer srv.Close()

	session, err := newPortalClient(srv.URL).OpenSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", session.Token)
	require.Len(t, session.Cookies, 1)
	assert.Equal(t, "JSESSIONID", session.Cookies[0].Name)
}

func TestOpenSessionWithoutToken(t *testing.T) {
	srv := httptest.NewServer(&fakePortal{noToken: true})
	defer srv.Close()

	_, err := newPortalClient(srv.URL).OpenSession(context.Background())
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestOpenSessionNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newPortalClient(srv.URL).OpenSession(context.Background())
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestFetchCollaborativeBillsWalksAllPages(t *testing.T) {
	portal := &fakePortal{totalPages: 3}
	srv := httptest.NewServer(portal)
	defer srv.Close()

	rows, err := newPortalClient(srv.URL).FetchCollaborativeBills(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "C1", rows[0].BillID)
	assert.Equal(t, "C3", rows[2].BillID)
	assert.Equal(t, "법안 1", rows[0].BillName)
	assert.EqualValues(t, 3, portal.posts.Load())
}

func TestFetchCollaborativeBillsSkipsFailedPage(t *testing.T) {
	portal := &fakePortal{totalPages: 3, failPages: map[int]int{2: http.StatusInternalServerError}}
	srv := httptest.NewServer(portal)
	defer srv.Close()

	rows, err := newPortalClient(srv.URL).FetchCollaborativeBills(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "C1", rows[0].BillID)
	assert.Equal(t, "C3", rows[1].BillID)
}

func TestFetchCollaborativeBillsFirstPageFatal(t *testing.T) {
	portal := &fakePortal{totalPages: 3, failPages: map[int]int{1: http.StatusInternalServerError}}
	srv := httptest.NewServer(portal)
	defer srv.Close()

	rows, err := newPortalClient(srv.URL).FetchCollaborativeBills(context.Background())
	assert.ErrorIs(t, err, ErrTransient)
	assert.Empty(t, rows)
	assert.EqualValues(t, 1, portal.posts.Load())
}
