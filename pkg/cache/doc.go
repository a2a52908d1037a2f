// Package cache provides conditional page fetching and a bounded
// multi-URL requester built on top of it.
//
// A Page owns the fetch state of one URL:
//
//   - the first fetch is an unconditional GET that must return 200
//   - the response Date header is kept verbatim as the freshness token
//   - later fetches send If-Modified-Since with that token
//   - 304 Not Modified keeps the stored body and counts as success
//   - any other status, or a transport failure, leaves the state untouched
//
// A Requester keeps up to Capacity pages keyed by URL. When a new URL
// arrives and the requester is full, the page whose URL was inserted first
// is dropped (PolicyFIFO). Re-reading a tracked URL does not move it.
// PolicyLRU is available as an opt-in and moves a URL to the back on
// every read.
//
// # Basic Usage
//
//	requester, err := cache.NewRequester(cache.Config{Capacity: 32})
//	if err != nil {
//		return err
//	}
//
//	data, err := requester.Read(ctx, "http://gd2.mlb.com/components/game/mlb/year_2017/month_07/day_08/gid_2017_07_08_miamlb_sfnmlb_1/game_events.xml")
//	if err != nil {
//		switch cache.ClassOf(err) {
//		case cache.ErrorClassNetwork:
//			// transport failure, caller may retry
//		case cache.ErrorClassStatus:
//			// unexpected status, see cache.StatusOf(err)
//		}
//	}
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - mlbam_page_fetches_total{outcome} - fetched, not_modified, error
//   - mlbam_conditional_requests_total - requests sent with If-Modified-Since
//   - mlbam_304_responses_total - 304 Not Modified responses
//   - mlbam_fetch_errors_total{class} - network, status, request
//   - mlbam_fetch_duration_seconds - round trip time
//   - mlbam_fetched_bytes_total - body bytes of 200 responses
//   - mlbam_requester_lookups_total{result} - hit, miss
//   - mlbam_requester_evictions_total - pages evicted
//   - mlbam_requester_pages - pages currently tracked
//
// Nothing is persisted; a requester lives as long as the value does.
package cache
