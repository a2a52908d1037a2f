package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/Sternrassler/mlbam-client/pkg/logging"
	"github.com/rs/zerolog"
)

// DefaultCapacity is the number of pages a requester keeps when no
// capacity is configured.
const DefaultCapacity = 32

// EvictionPolicy decides which page is dropped when a requester is full.
type EvictionPolicy string

const (
	// PolicyFIFO evicts the page whose URL was inserted first. Reading an
	// already tracked URL does not change its position.
	PolicyFIFO EvictionPolicy = "fifo"

	// PolicyLRU evicts the page read least recently. Every read moves the
	// URL to the back of the order.
	PolicyLRU EvictionPolicy = "lru"
)

// ParsePolicy converts a policy name to an EvictionPolicy. An empty name
// selects PolicyFIFO.
func ParsePolicy(name string) (EvictionPolicy, error) {
	switch EvictionPolicy(name) {
	case "", PolicyFIFO:
		return PolicyFIFO, nil
	case PolicyLRU:
		return PolicyLRU, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, name)
	}
}

// Config holds the requester configuration.
type Config struct {
	// Capacity is the maximum number of URLs tracked at once. Must be > 0.
	Capacity int

	// Policy selects the eviction order (default: PolicyFIFO).
	Policy EvictionPolicy

	// PageOptions is handed to every page the requester creates.
	PageOptions
}

// DefaultConfig returns a FIFO configuration with DefaultCapacity.
func DefaultConfig() Config {
	return Config{
		Capacity: DefaultCapacity,
		Policy:   PolicyFIFO,
	}
}

// Requester multiplexes many URLs over Pages while tracking at most
// Capacity of them. It is safe for concurrent use.
type Requester struct {
	capacity int
	policy   EvictionPolicy
	pageOpts PageOptions
	logger   zerolog.Logger

	// mu guards order and entries together; both always hold the same URLs.
	mu      sync.Mutex
	order   *list.List // of *Page, oldest at the front
	entries map[string]*list.Element
}

// NewRequester creates an empty requester.
func NewRequester(cfg Config) (*Requester, error) {
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidCapacity, cfg.Capacity)
	}

	policy, err := ParsePolicy(string(cfg.Policy))
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger(logging.ComponentRequester)
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Requester{
		capacity: cfg.Capacity,
		policy:   policy,
		pageOpts: cfg.PageOptions.withDefaults(),
		logger:   logger,
		order:    list.New(),
		entries:  make(map[string]*list.Element, cfg.Capacity),
	}, nil
}

// Read returns the content of rawURL, fetching it through the page tracked
// for that URL. An untracked URL gets a new page, evicting one first if the
// requester is full. Fetch errors are returned unchanged.
func (r *Requester) Read(ctx context.Context, rawURL string) ([]byte, error) {
	if err := validateURL(rawURL); err != nil {
		FetchErrors.WithLabelValues(string(ErrorClassRequest)).Inc()
		return nil, err
	}

	page := r.track(rawURL)
	return page.Fetch(ctx)
}

// track returns the page for rawURL, creating and inserting it if needed.
func (r *Requester) track(rawURL string) *Page {
	r.mu.Lock()
	defer r.mu.Unlock()

	if elem, ok := r.entries[rawURL]; ok {
		RequesterLookups.WithLabelValues("hit").Inc()
		if r.policy == PolicyLRU {
			r.order.MoveToBack(elem)
		}
		return elem.Value.(*Page)
	}

	RequesterLookups.WithLabelValues("miss").Inc()

	if r.order.Len() >= r.capacity {
		r.evictOldest()
	}

	page := NewPage(rawURL, r.pageOpts)
	r.entries[rawURL] = r.order.PushBack(page)
	RequesterPages.Inc()

	return page
}

// evictOldest removes the front of the order. Callers must hold r.mu.
func (r *Requester) evictOldest() {
	front := r.order.Front()
	if front == nil {
		return
	}
	evicted := r.order.Remove(front).(*Page)
	delete(r.entries, evicted.URL())

	RequesterEvictions.Inc()
	RequesterPages.Dec()
	r.logger.Debug().
		Str("evicted", evicted.URL()).
		Str("policy", string(r.policy)).
		Msg("Page evicted")
}

// Capacity returns the maximum number of tracked URLs.
func (r *Requester) Capacity() int {
	return r.capacity
}

// Policy returns the eviction policy in use.
func (r *Requester) Policy() EvictionPolicy {
	return r.policy
}

// Len returns the number of tracked URLs.
func (r *Requester) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// URLs returns the tracked URLs, next to be evicted first.
func (r *Requester) URLs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	urls := make([]string, 0, r.order.Len())
	for e := r.order.Front(); e != nil; e = e.Next() {
		urls = append(urls, e.Value.(*Page).URL())
	}
	return urls
}

// Contains reports whether rawURL is tracked. It does not affect eviction order.
func (r *Requester) Contains(rawURL string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[rawURL]
	return ok
}

// Page returns the page tracked for rawURL without fetching it.
func (r *Requester) Page(rawURL string) (*Page, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	elem, ok := r.entries[rawURL]
	if !ok {
		return nil, false
	}
	return elem.Value.(*Page), true
}
