// Package testutil provides testing utilities for the MLBAM client.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// RecordedRequest is what the mock upstream saw of one request.
type RecordedRequest struct {
	Path            string
	IfModifiedSince string
	UserAgent       string
}

type resource struct {
	body        []byte
	contentType string
	modTime     time.Time
}

// MockUpstream is an httptest server that serves in-memory resources with
// If-Modified-Since semantics. It runs on its own clock: every response
// carries a Date header taken from that clock, and SetResource advances
// the clock by one second before stamping the resource, so a changed
// resource is always newer than any Date handed out before.
type MockUpstream struct {
	server *httptest.Server

	mu        sync.RWMutex
	now       time.Time
	resources map[string]*resource
	statuses  map[string]int
	handlers  map[string]http.HandlerFunc
	omitDate  bool
	requests  []RecordedRequest
}

// NewMockUpstream starts a new mock upstream server.
func NewMockUpstream() *MockUpstream {
	m := &MockUpstream{
		now:       time.Date(2017, time.July, 8, 12, 0, 0, 0, time.UTC),
		resources: make(map[string]*resource),
		statuses:  make(map[string]int),
		handlers:  make(map[string]http.HandlerFunc),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

// URL returns the server base URL.
func (m *MockUpstream) URL() string {
	return m.server.URL
}

// URLFor returns the absolute URL of path on the server.
func (m *MockUpstream) URLFor(path string) string {
	return m.server.URL + path
}

// Client returns an HTTP client wired to the server.
func (m *MockUpstream) Client() *http.Client {
	return m.server.Client()
}

// Close shuts down the server.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// Advance moves the server clock forward.
func (m *MockUpstream) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Now returns the current server clock.
func (m *MockUpstream) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// SetResource creates or replaces the resource at path.
func (m *MockUpstream) SetResource(path, body string) {
	m.SetResourceWithType(path, body, "application/xml")
}

// SetResourceWithType is SetResource with an explicit Content-Type.
func (m *MockUpstream) SetResourceWithType(path, body, contentType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(time.Second)
	m.resources[path] = &resource{
		body:        []byte(body),
		contentType: contentType,
		modTime:     m.now,
	}
}

// RemoveResource makes path answer 404.
func (m *MockUpstream) RemoveResource(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.resources, path)
}

// SetStatus forces path to answer with code until ClearStatus is called.
func (m *MockUpstream) SetStatus(path string, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[path] = code
}

// ClearStatus removes a forced status.
func (m *MockUpstream) ClearStatus(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, path)
}

// SetHandler installs a custom handler for path. Requests are still recorded.
func (m *MockUpstream) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// OmitDate stops the server from sending a Date header.
func (m *MockUpstream) OmitDate(omit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.omitDate = omit
}

// Requests returns every request seen so far, oldest first.
func (m *MockUpstream) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestsFor returns the requests seen for path, oldest first.
func (m *MockUpstream) RequestsFor(path string) []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []RecordedRequest
	for _, r := range m.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// RequestCount returns the number of requests made to the server.
func (m *MockUpstream) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// ConditionalCount returns the number of requests carrying If-Modified-Since.
func (m *MockUpstream) ConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.requests {
		if r.IfModifiedSince != "" {
			n++
		}
	}
	return n
}

// Reset clears the recorded requests.
func (m *MockUpstream) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

func (m *MockUpstream) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requests = append(m.requests, RecordedRequest{
		Path:            r.URL.Path,
		IfModifiedSince: r.Header.Get("If-Modified-Since"),
		UserAgent:       r.Header.Get("User-Agent"),
	})
	now := m.now
	omitDate := m.omitDate
	handler := m.handlers[r.URL.Path]
	status, forced := m.statuses[r.URL.Path]
	res := m.resources[r.URL.Path]
	m.mu.Unlock()

	if omitDate {
		// nil suppresses the header net/http would add on its own
		w.Header()["Date"] = nil
	} else {
		w.Header().Set("Date", now.Format(http.TimeFormat))
	}

	if handler != nil {
		handler(w, r)
		return
	}

	if forced {
		w.WriteHeader(status)
		return
	}

	if res == nil {
		http.NotFound(w, r)
		return
	}

	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		if since, err := http.ParseTime(ims); err == nil && !res.modTime.After(since) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.Header().Set("Content-Type", res.contentType)
	w.Header().Set("Last-Modified", res.modTime.Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.body)
}
