// Package batch reads many feed URLs in parallel through a shared page cache.
//
// A scoreboard refresh typically revalidates dozens of game files at once.
// This package implements a worker pool pattern on top of any Reader (usually
// a *cache.Requester) and hands back one Result per URL, in input order.
//
// Example usage:
//
//	requester, _ := cache.NewRequester(cache.DefaultConfig())
//	fetcher := batch.NewFetcher(requester, batch.DefaultConfig())
//	results, err := fetcher.FetchAll(ctx, urls)
//
// The fetcher:
//   - Spawns a worker pool (default 8 workers)
//   - Gives every URL its own timeout
//   - Keeps going when single URLs fail and reports them in their Result
//   - Stops handing out work when ctx is cancelled
package batch
