// Package testutil provides a scriptable fake of the review listing site.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse is one scripted reply for a page.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration

	// Drop closes the connection without writing a response.
	Drop bool
}

// Request is a recorded request to the site.
type Request struct {
	ID        string
	Page      int
	Referer   string
	UserAgent string
	RawQuery  string
}

type pageKey struct {
	id   string
	page int
}

type product struct {
	total  int
	window int // 0 links every page
}

// MockSite is an httptest server that serves review pages.
//
// Registered products answer every page in 1..total with a review page whose
// paging control references other pages. Scripted responses queued with
// Enqueue take precedence and are consumed in order.
type MockSite struct {
	server *httptest.Server

	mu       sync.Mutex
	products map[string]product
	scripts  map[pageKey][]MockResponse
	requests []Request
}

// NewMockSite starts a mock site.
func NewMockSite() *MockSite {
	m := &MockSite{
		products: make(map[string]product),
		scripts:  make(map[pageKey][]MockResponse),
	}
	m.server = httptest.NewUnstartedServer(http.HandlerFunc(m.handle))
	// Fresh connections only: net/http silently replays idempotent requests
	// that fail on a reused connection, which would hide dropped connections.
	m.server.Config.SetKeepAlivesEnabled(false)
	m.server.Start()
	return m
}

// URL returns the base URL standing in for http://www.amazon.<domain>.
func (m *MockSite) URL() string {
	return m.server.URL
}

// Close shuts down the server.
func (m *MockSite) Close() {
	m.server.Close()
}

// SetProduct registers a product with total pages whose paging control
// links every page.
func (m *MockSite) SetProduct(id string, total int) {
	m.SetProductWindow(id, total, 0)
}

// SetProductWindow registers a product whose paging control only links
// pages within window of the current page, so the last page is discovered
// progressively.
func (m *MockSite) SetProductWindow(id string, total, window int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[id] = product{total: total, window: window}
}

// Enqueue scripts responses for a page, served before the default page.
func (m *MockSite) Enqueue(id string, page int, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pageKey{id, page}
	m.scripts[k] = append(m.scripts[k], responses...)
}

// Requests returns a copy of all recorded requests.
func (m *MockSite) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestCount returns the number of requests served.
func (m *MockSite) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// PageRequests returns how many times a page was requested.
func (m *MockSite) PageRequests(id string, page int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.requests {
		if r.ID == id && r.Page == page {
			n++
		}
	}
	return n
}

// RequestedPages returns the page numbers requested for id, in order.
func (m *MockSite) RequestedPages(id string) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pages []int
	for _, r := range m.requests {
		if r.ID == id {
			pages = append(pages, r.Page)
		}
	}
	return pages
}

// Reset clears recorded requests and scripted responses.
func (m *MockSite) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.scripts = make(map[pageKey][]MockResponse)
}

func (m *MockSite) handle(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(r.URL.Path)
	page, err := strconv.Atoi(r.URL.Query().Get("pageNumber"))
	if !ok || err != nil {
		http.NotFound(w, r)
		return
	}

	m.mu.Lock()
	m.requests = append(m.requests, Request{
		ID:        id,
		Page:      page,
		Referer:   r.Header.Get("Referer"),
		UserAgent: r.Header.Get("User-Agent"),
		RawQuery:  r.URL.RawQuery,
	})
	k := pageKey{id, page}
	var scripted *MockResponse
	if queue := m.scripts[k]; len(queue) > 0 {
		scripted = &queue[0]
		m.scripts[k] = queue[1:]
	}
	p, known := m.products[id]
	m.mu.Unlock()

	if scripted != nil {
		write(w, *scripted)
		return
	}
	if !known || page < 1 || page > p.total {
		http.NotFound(w, r)
		return
	}
	write(w, NewPageResponse(ReviewPage(id, page, p.total, p.window)))
}

func write(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	if resp.Drop {
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				conn.Close()
				return
			}
		}
		panic(http.ErrAbortHandler)
	}
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func productID(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, "/product-reviews/")
	if !ok {
		return "", false
	}
	id := strings.Trim(rest, "/")
	return id, id != "" && !strings.Contains(id, "/")
}

// ReviewPage renders a review listing page with a paging control. With
// window 0 every page is linked, otherwise only pages within window of page.
func ReviewPage(id string, page, total, window int) string {
	lo, hi := 1, total
	if window > 0 {
		lo = max(1, page-window)
		hi = min(total, page+window)
	}
	links := make([]int, 0, hi-lo+1)
	for p := lo; p <= hi; p++ {
		if p != page {
			links = append(links, p)
		}
	}
	sort.Ints(links)

	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><meta charset=\"utf-8\"><title>Reviews %s</title></head><body>\n", id)
	fmt.Fprintf(&b, "<div id=\"cm_cr-review_list\"><div class=\"review\">review %d of %s</div></div>\n", page, id)
	b.WriteString("<ul class=\"a-pagination\">\n")
	for _, p := range links {
		fmt.Fprintf(&b,
			"<li class=\"a-normal\"><a href=\"/product-reviews/%s/ref=cm_cr_arp_d_paging_btm_%d?ie=UTF8&amp;pageNumber=%d\">%d</a></li>\n",
			id, p, p, p)
	}
	b.WriteString("</ul>\n</body></html>\n")
	return b.String()
}

// CaptchaPage is the body of an anti-bot interstitial.
func CaptchaPage() string {
	return `<html><body><h4>Enter the characters you see below</h4>
<form method="get" action="/errors/validateCaptcha">
<img src="https://images-na.ssl-images-amazon.com/captcha/usvmgloq/Captcha_kwrrnqwkph.jpg">
<input type="text" name="field-keywords">
</form></body></html>`
}

// NewPageResponse creates a 200 OK HTML response.
func NewPageResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "text/html; charset=utf-8"},
	}
}

// NewCaptchaResponse creates a 200 OK challenge page.
func NewCaptchaResponse() MockResponse {
	return NewPageResponse(CaptchaPage())
}

// NewServiceUnavailableResponse creates the 503 the site sends when throttling.
func NewServiceUnavailableResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       "<html><body>Service Unavailable</body></html>",
		Headers:    map[string]string{"Content-Type": "text/html"},
	}
}

// NewNotFoundResponse creates a 404 response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{StatusCode: http.StatusNotFound, Body: "not found"}
}

// NewDroppedConnection creates a response that fails at the connection level.
func NewDroppedConnection() MockResponse {
	return MockResponse{Drop: true}
}
