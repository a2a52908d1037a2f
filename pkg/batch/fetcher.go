package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/mlbam-client/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	batchURLs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mlbam_batch_urls_total",
		Help: "URLs read by batch fetches by outcome",
	}, []string{"outcome"})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mlbam_batch_duration_seconds",
		Help:    "Wall time of a whole batch fetch",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

// ErrPartial is returned by FetchAll when at least one URL failed.
var ErrPartial = errors.New("batch completed with failures")

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel reads
	MaxConcurrency int
	// Timeout per URL read, retries of the reader included
	Timeout time.Duration
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 8,
		Timeout:        15 * time.Second,
	}
}

// Reader returns the current body of a URL. *cache.Requester implements it.
type Reader interface {
	Read(ctx context.Context, url string) ([]byte, error)
}

// Result is the outcome of reading one URL
type Result struct {
	Index int
	URL   string
	Data  []byte
	Err   error
}

// Fetcher reads many URLs in parallel
type Fetcher struct {
	reader Reader
	config Config
	logger zerolog.Logger
}

// NewFetcher creates a new batch fetcher
func NewFetcher(reader Reader, config Config) *Fetcher {
	def := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = def.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}

	return &Fetcher{
		reader: reader,
		config: config,
		logger: logging.NewLogger(logging.ComponentBatch),
	}
}

// FetchAll reads every URL and returns one Result per URL in input order.
// The error is nil when every read succeeded; otherwise it wraps ErrPartial
// and the first failure, and the successful results are still returned.
// URLs never started because ctx was cancelled carry ctx.Err().
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) ([]Result, error) {
	start := time.Now()
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	results := make([]Result, len(urls))
	if len(urls) == 0 {
		return results, nil
	}

	workers := f.config.MaxConcurrency
	if workers > len(urls) {
		workers = len(urls)
	}

	f.logger.Debug().
		Int("urls", len(urls)).
		Int("workers", workers).
		Msg("Starting batch fetch")

	queue := make(chan int, len(urls))
	for i := range urls {
		queue <- i
	}
	close(queue)

	// each worker writes only the indexes it took from the queue
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go f.worker(ctx, urls, queue, results, &wg, w)
	}
	wg.Wait()

	failed := 0
	var firstErr error
	for i := range results {
		if results[i].Err != nil {
			failed++
			if firstErr == nil {
				firstErr = results[i].Err
			}
			batchURLs.WithLabelValues("error").Inc()
			continue
		}
		batchURLs.WithLabelValues("ok").Inc()
	}

	f.logger.Info().
		Int("urls", len(urls)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Batch fetch complete")

	if failed > 0 {
		return results, fmt.Errorf("%w (%d/%d urls): %w", ErrPartial, failed, len(urls), firstErr)
	}
	return results, nil
}

// worker processes URL indexes from the queue
func (f *Fetcher) worker(ctx context.Context, urls []string, queue <-chan int, results []Result, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for i := range queue {
		results[i] = Result{Index: i, URL: urls[i]}

		// drain the queue without reading once cancelled
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}

		readCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
		data, err := f.reader.Read(readCtx, urls[i])
		cancel()

		if err != nil {
			f.logger.Warn().
				Err(err).
				Int("worker_id", workerID).
				Str("url", urls[i]).
				Msg("URL read failed")
			results[i].Err = err
			continue
		}

		results[i].Data = data
		processed++
	}

	f.logger.Debug().
		Int("worker_id", workerID).
		Int("processed", processed).
		Msg("Worker completed")
}
