package cache

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/mlbam-client/pkg/logging"
	"github.com/rs/zerolog"
)

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// PageOptions configures how a page talks to its upstream.
type PageOptions struct {
	// HTTPClient performs requests (default: http.Client with a 30s timeout).
	HTTPClient Doer

	// UserAgent is sent with every request when set.
	UserAgent string

	// Verbose logs a notice whenever the upstream answers 304.
	Verbose bool

	// Logger overrides the default "page-cache" component logger.
	Logger *zerolog.Logger
}

func (o PageOptions) withDefaults() PageOptions {
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if o.Logger == nil {
		logger := logging.NewLogger(logging.ComponentPage)
		o.Logger = &logger
	}
	return o
}

// Page fetches a single URL and remembers the last successful response so
// that later fetches can be made conditional.
type Page struct {
	url  string
	opts PageOptions

	// fetchMu serialises fetches of this page.
	fetchMu sync.Mutex
	entry   atomic.Pointer[Entry]
}

// NewPage creates a page for rawURL. Nothing is fetched until Fetch is called.
func NewPage(rawURL string, opts PageOptions) *Page {
	return &Page{
		url:  rawURL,
		opts: opts.withDefaults(),
	}
}

// URL returns the page's URL.
func (p *Page) URL() string {
	return p.url
}

// Entry returns the most recent successful fetch, or nil if there was none.
func (p *Page) Entry() *Entry {
	return p.entry.Load()
}

// Content returns the last fetched body, or nil if the page was never fetched.
func (p *Page) Content() []byte {
	if e := p.Entry(); e != nil {
		return e.Data
	}
	return nil
}

// LastModified returns the freshness token of the last successful fetch.
// ok is false until the first successful fetch.
func (p *Page) LastModified() (token string, ok bool) {
	if e := p.Entry(); e != nil {
		return e.LastModified, true
	}
	return "", false
}

// Fetch returns the page content, revalidating it with the upstream.
//
// The first fetch is unconditional and must be answered with 200. Later
// fetches send If-Modified-Since; a 200 replaces the stored entry and a 304
// keeps it. Any other outcome returns a *FetchError and leaves the stored
// entry untouched. The returned slice is shared and must not be modified.
func (p *Page) Fetch(ctx context.Context) ([]byte, error) {
	p.fetchMu.Lock()
	defer p.fetchMu.Unlock()

	logger := p.opts.Logger.With().Str("url", p.url).Logger()

	if err := validateURL(p.url); err != nil {
		p.recordError(ErrorClassRequest)
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		p.recordError(ErrorClassRequest)
		return nil, &FetchError{URL: p.url, Class: ErrorClassRequest, Err: err}
	}
	if p.opts.UserAgent != "" {
		req.Header.Set("User-Agent", p.opts.UserAgent)
	}

	current := p.entry.Load()
	conditional := current != nil
	if conditional {
		AddConditionalHeaders(req, current)
		ConditionalRequestsSent.Inc()
		logger.Debug().Str("if_modified_since", current.LastModified).Msg("Making conditional request")
	}

	start := time.Now()
	resp, err := p.opts.HTTPClient.Do(req)
	FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.recordError(ErrorClassNetwork)
		logger.Warn().Err(err).Str("error_class", string(ErrorClassNetwork)).Msg("Page request failed")
		return nil, &FetchError{URL: p.url, Class: ErrorClassNetwork, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		entry, err := ResponseToEntry(resp)
		if err != nil {
			p.recordError(ErrorClassNetwork)
			logger.Warn().Err(err).Str("error_class", string(ErrorClassNetwork)).Msg("Reading page body failed")
			return nil, &FetchError{URL: p.url, Class: ErrorClassNetwork, StatusCode: resp.StatusCode, Err: err}
		}

		changed := current == nil || current.Digest != entry.Digest
		p.entry.Store(entry)

		PageFetches.WithLabelValues("fetched").Inc()
		FetchedBytes.Add(float64(len(entry.Data)))
		logger.Debug().
			Int("bytes", len(entry.Data)).
			Str("digest", entry.Digest).
			Bool("changed", changed).
			Dur("duration", time.Since(start)).
			Msg("Page fetched")

		return entry.Data, nil

	case resp.StatusCode == http.StatusNotModified && conditional:
		drainBody(resp)
		PageFetches.WithLabelValues("not_modified").Inc()
		NotModifiedResponses.Inc()
		if p.opts.Verbose {
			logger.Info().Str("last_modified", current.LastModified).Msg("Page not modified since last fetch")
		}
		return current.Data, nil

	default:
		drainBody(resp)
		p.recordError(ErrorClassStatus)
		logger.Warn().
			Int("status", resp.StatusCode).
			Bool("conditional", conditional).
			Str("error_class", string(ErrorClassStatus)).
			Msg("Unexpected page status")
		return nil, &FetchError{
			URL:        p.url,
			Class:      ErrorClassStatus,
			StatusCode: resp.StatusCode,
			Err:        ErrUnexpectedStatus,
		}
	}
}

func (p *Page) recordError(class ErrorClass) {
	PageFetches.WithLabelValues("error").Inc()
	FetchErrors.WithLabelValues(string(class)).Inc()
}
