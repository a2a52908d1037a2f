package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Sternrassler/mlbam-client/internal/testutil"
	"github.com/Sternrassler/mlbam-client/pkg/cache"
	"github.com/Sternrassler/mlbam-client/pkg/client"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFeeds struct {
	err           error
	broadcastDate time.Time
	standingsDate time.Time
}

func (f *fakeFeeds) LeagueInfo(context.Context) (client.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return client.Record{"club": "mlb"}, nil
}

func (f *fakeFeeds) Teams(context.Context) ([]client.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []client.Record{{"club": "nya"}, {"club": "bos"}}, nil
}

func (f *fakeFeeds) ImportantDates(_ context.Context, year int) (client.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	if year < 1876 {
		return nil, fmt.Errorf("important dates for %d: %w", year, client.ErrNotFound)
	}
	return client.Record{"year": fmt.Sprint(year)}, nil
}

func (f *fakeFeeds) BroadcastInfo(_ context.Context, teamID string, date time.Time) ([]client.Record, error) {
	f.broadcastDate = date
	if f.err != nil {
		return nil, f.err
	}
	if teamID == "0" {
		return nil, nil
	}
	return []client.Record{{"source_desc": "YES", "game_date": date.Format("2006-01-02T00:00:00")}}, nil
}

func (f *fakeFeeds) Roster(_ context.Context, teamID string) (*client.Roster, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &client.Roster{TeamID: teamID, Players: []client.Record{{"name_full": "Aaron Judge"}}}, nil
}

func (f *fakeFeeds) Standings(_ context.Context, date time.Time) (*client.Standings, error) {
	f.standingsDate = date
	if f.err != nil {
		return nil, f.err
	}
	return &client.Standings{
		Source:    client.StandingsSourceHistorical,
		Divisions: []client.Division{{Name: "AL East", Teams: []client.Record{{"team_full": "Boston Red Sox"}}}},
	}, nil
}

func (f *fakeFeeds) Injuries(context.Context) ([]client.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []client.Record{{"name_last": "Judge", "due_back": "September"}}, nil
}

type fakeState struct{}

func (fakeState) Capacity() int                { return 2 }
func (fakeState) Policy() cache.EvictionPolicy { return cache.PolicyFIFO }
func (fakeState) URLs() []string               { return []string{"http://gd2.mlb.com/a.xml"} }

func do(t *testing.T, h http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	h := New(&fakeFeeds{}, nil).Handler()

	rec := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	h := New(&fakeFeeds{}, nil).Handler()

	rec := do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mlbam_requester_evictions_total")
}

func TestFeedEndpoints(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   string
	}{
		{name: "league", target: "/v1/league", want: `{"club":"mlb"}`},
		{name: "teams", target: "/v1/teams", want: `[{"club":"nya"},{"club":"bos"}]`},
		{name: "important dates", target: "/v1/important-dates/2017", want: `{"year":"2017"}`},
		{name: "broadcast", target: "/v1/broadcast/147?date=2017-07-08", want: `[{"game_date":"2017-07-08T00:00:00","source_desc":"YES"}]`},
		{name: "broadcast without games", target: "/v1/broadcast/0?date=2017-07-08", want: `[]`},
		{name: "roster", target: "/v1/roster/147", want: `{"team_id":"147","players":[{"name_full":"Aaron Judge"}]}`},
		{name: "standings", target: "/v1/standings?date=2017-07-08", want: `{"source":"historical_standings_schedule_date","divisions":[{"name":"AL East","teams":[{"team_full":"Boston Red Sox"}]}]}`},
		{name: "injuries", target: "/v1/injuries", want: `[{"due_back":"September","name_last":"Judge"}]`},
		{name: "cache", target: "/v1/cache", want: `{"capacity":2,"policy":"fifo","len":1,"urls":["http://gd2.mlb.com/a.xml"]}`},
	}

	h := New(&fakeFeeds{}, fakeState{}).Handler()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.target, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.want, rec.Body.String())
			assert.NotEmpty(t, rec.Header().Get("ETag"))
		})
	}
}

func TestCacheRouteRequiresState(t *testing.T) {
	h := New(&fakeFeeds{}, nil).Handler()

	rec := do(t, h, http.MethodGet, "/v1/cache", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBroadcastDefaultsToToday(t *testing.T) {
	feeds := &fakeFeeds{}
	s := New(feeds, nil)
	s.now = func() time.Time { return time.Date(2017, time.July, 8, 19, 5, 0, 0, time.UTC) }

	rec := do(t, s.Handler(), http.MethodGet, "/v1/broadcast/147", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 8, feeds.broadcastDate.Day())
}

func TestStandingsDate(t *testing.T) {
	feeds := &fakeFeeds{}
	s := New(feeds, nil)
	s.now = func() time.Time { return time.Date(2017, time.July, 8, 19, 5, 0, 0, time.UTC) }
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/v1/standings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, s.now(), feeds.standingsDate)

	rec = do(t, h, http.MethodGet, "/v1/standings?date=2016-05-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2016, time.May, 1, 0, 0, 0, 0, time.UTC), feeds.standingsDate)
}

func TestETagRevalidation(t *testing.T) {
	h := New(&fakeFeeds{}, nil).Handler()

	first := do(t, h, http.MethodGet, "/v1/teams", nil)
	require.Equal(t, http.StatusOK, first.Code)
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	second := do(t, h, http.MethodGet, "/v1/teams", http.Header{"If-None-Match": {etag}})
	assert.Equal(t, http.StatusNotModified, second.Code)
	assert.Empty(t, second.Body.String())

	third := do(t, h, http.MethodGet, "/v1/teams", http.Header{"If-None-Match": {`"stale"`}})
	assert.Equal(t, http.StatusOK, third.Code)
}

func TestETagRevalidation_TagLists(t *testing.T) {
	h := New(&fakeFeeds{}, nil).Handler()

	etag := do(t, h, http.MethodGet, "/v1/teams", nil).Header().Get("ETag")
	require.NotEmpty(t, etag)

	tests := []struct {
		name   string
		header []string
		status int
	}{
		{name: "list", header: []string{`"stale", ` + etag}, status: http.StatusNotModified},
		{name: "list without spaces", header: []string{`"a","b",` + etag}, status: http.StatusNotModified},
		{name: "weak", header: []string{"W/" + etag}, status: http.StatusNotModified},
		{name: "wildcard", header: []string{"*"}, status: http.StatusNotModified},
		{name: "repeated header", header: []string{`"stale"`, etag}, status: http.StatusNotModified},
		{name: "no match", header: []string{`"a", W/"b"`}, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/v1/teams", http.Header{"If-None-Match": tt.header})
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestBadRequests(t *testing.T) {
	h := New(&fakeFeeds{}, nil).Handler()

	for _, target := range []string{
		"/v1/important-dates/next",
		"/v1/important-dates/-1",
		"/v1/broadcast/147?date=07/08/2017",
		"/v1/standings?date=2017-13-01",
	} {
		t.Run(target, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, target, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var p problem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
			assert.NotEmpty(t, p.Error)
		})
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{
			name:   "not found",
			err:    fmt.Errorf("important dates: %w", client.ErrNotFound),
			status: http.StatusNotFound,
		},
		{
			name:   "upstream 404",
			err:    &cache.FetchError{Class: cache.ErrorClassStatus, StatusCode: 404, Err: cache.ErrUnexpectedStatus},
			status: http.StatusNotFound,
		},
		{
			name:   "upstream 503 after retries",
			err:    fmt.Errorf("%w: %w", client.ErrRetryExhausted, &cache.FetchError{Class: cache.ErrorClassStatus, StatusCode: 503, Err: cache.ErrUnexpectedStatus}),
			status: http.StatusBadGateway,
		},
		{
			name:   "network",
			err:    &cache.FetchError{Class: cache.ErrorClassNetwork, Err: errors.New("connection refused")},
			status: http.StatusBadGateway,
		},
		{
			name:   "deadline",
			err:    &cache.FetchError{Class: cache.ErrorClassNetwork, Err: context.DeadlineExceeded},
			status: http.StatusGatewayTimeout,
		},
		{
			name:   "malformed",
			err:    client.ErrMalformedPayload,
			status: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(&fakeFeeds{err: tt.err}, nil).Handler()
			rec := do(t, h, http.MethodGet, "/v1/league", nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestEndToEnd_ThroughRequester(t *testing.T) {
	upstream := testutil.NewMockUpstream()
	defer upstream.Close()
	upstream.SetResource("/properties.xml", `<mlb><leagues><league club="mlb"><teams><team club="nya"/></teams></league></leagues></mlb>`)

	logger := zerolog.Nop()
	requester, err := cache.NewRequester(cache.Config{
		Capacity: 4,
		PageOptions: cache.PageOptions{
			HTTPClient: upstream.Client(),
			Logger:     &logger,
		},
	})
	require.NoError(t, err)

	feeds, err := client.New(requester, client.Config{
		Endpoints: client.Endpoints{Properties: upstream.URLFor("/properties.xml")},
		Retry:     client.RetryConfig{MaxAttempts: 1, InitialBackoff: time.Millisecond},
	})
	require.NoError(t, err)

	h := New(feeds, requester).Handler()

	rec := do(t, h, http.MethodGet, "/v1/teams", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"club":"nya"}]`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/v1/league", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"club":"mlb"}`, rec.Body.String())

	assert.Equal(t, 1, upstream.ConditionalCount())

	rec = do(t, h, http.MethodGet, "/v1/cache", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var state cacheResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, []string{upstream.URLFor("/properties.xml")}, state.URLs)

	upstream.SetStatus("/properties.xml", http.StatusInternalServerError)
	rec = do(t, h, http.MethodGet, "/v1/league", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
