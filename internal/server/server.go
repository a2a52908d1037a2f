// Package server exposes the feed client over a small JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/mlbam-client/pkg/cache"
	"github.com/Sternrassler/mlbam-client/pkg/client"
	"github.com/Sternrassler/mlbam-client/pkg/logging"
	"github.com/Sternrassler/mlbam-client/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Feeds is the feed API served by the server. *client.Client implements it.
type Feeds interface {
	LeagueInfo(ctx context.Context) (client.Record, error)
	Teams(ctx context.Context) ([]client.Record, error)
	ImportantDates(ctx context.Context, year int) (client.Record, error)
	BroadcastInfo(ctx context.Context, teamID string, date time.Time) ([]client.Record, error)
	Roster(ctx context.Context, teamID string) (*client.Roster, error)
	Standings(ctx context.Context, date time.Time) (*client.Standings, error)
	Injuries(ctx context.Context) ([]client.Record, error)
}

// CacheState reports what the page cache currently tracks.
// *cache.Requester implements it.
type CacheState interface {
	Capacity() int
	Policy() cache.EvictionPolicy
	URLs() []string
}

// Server serves the JSON API.
type Server struct {
	feeds   Feeds
	state   CacheState
	now     func() time.Time
	timeout time.Duration
	logger  zerolog.Logger
}

// New creates a server. state may be nil, in which case /v1/cache is not
// registered.
func New(feeds Feeds, state CacheState) *Server {
	return &Server{
		feeds:   feeds,
		state:   state,
		now:     time.Now,
		timeout: 60 * time.Second,
		logger:  logging.NewLogger(logging.ComponentServer),
	}
}

// Handler returns the HTTP handler with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(s.timeout))
		r.Get("/league", s.league)
		r.Get("/teams", s.teams)
		r.Get("/important-dates/{year}", s.importantDates)
		r.Get("/broadcast/{teamID}", s.broadcast)
		r.Get("/roster/{teamID}", s.roster)
		r.Get("/standings", s.standings)
		r.Get("/injuries", s.injuries)
		if s.state != nil {
			r.Get("/cache", s.cacheState)
		}
	})

	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) league(w http.ResponseWriter, r *http.Request) {
	rec, err := s.feeds.LeagueInfo(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, rec)
}

func (s *Server) teams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.feeds.Teams(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, teams)
}

func (s *Server) importantDates(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year <= 0 {
		writeProblem(w, http.StatusBadRequest, "year must be a positive integer")
		return
	}

	rec, err := s.feeds.ImportantDates(r.Context(), year)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, rec)
}

func (s *Server) broadcast(w http.ResponseWriter, r *http.Request) {
	date, ok := s.queryDate(w, r)
	if !ok {
		return
	}

	rows, err := s.feeds.BroadcastInfo(r.Context(), chi.URLParam(r, "teamID"), date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []client.Record{}
	}
	s.writeJSON(w, r, rows)
}

func (s *Server) roster(w http.ResponseWriter, r *http.Request) {
	roster, err := s.feeds.Roster(r.Context(), chi.URLParam(r, "teamID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	players := roster.Players
	if players == nil {
		players = []client.Record{}
	}
	s.writeJSON(w, r, rosterResponse{TeamID: roster.TeamID, Players: players})
}

func (s *Server) standings(w http.ResponseWriter, r *http.Request) {
	date, ok := s.queryDate(w, r)
	if !ok {
		return
	}

	standings, err := s.feeds.Standings(r.Context(), date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, standings)
}

func (s *Server) injuries(w http.ResponseWriter, r *http.Request) {
	rows, err := s.feeds.Injuries(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []client.Record{}
	}
	s.writeJSON(w, r, rows)
}

// queryDate reads the optional date=YYYY-MM-DD parameter, defaulting to
// today. On a malformed date it writes a 400 and returns false.
func (s *Server) queryDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return s.now(), true
	}
	date, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func (s *Server) cacheState(w http.ResponseWriter, r *http.Request) {
	urls := s.state.URLs()
	s.writeJSON(w, r, cacheResponse{
		Capacity: s.state.Capacity(),
		Policy:   string(s.state.Policy()),
		Len:      len(urls),
		URLs:     urls,
	})
}

type rosterResponse struct {
	TeamID  string          `json:"team_id"`
	Players []client.Record `json:"players"`
}

type cacheResponse struct {
	Capacity int      `json:"capacity"`
	Policy   string   `json:"policy"`
	Len      int      `json:"len"`
	URLs     []string `json:"urls"`
}

type problem struct {
	Error string `json:"error"`
}

// writeJSON writes v with a content ETag and answers 304 when the client
// already holds that representation.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Failed to encode response")
		writeProblem(w, http.StatusInternalServerError, "encode response")
		return
	}

	etag := `"` + cache.Digest(body)[:32] + `"`
	w.Header().Set("ETag", etag)
	if etagMatches(r.Header.Values("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// etagMatches reports whether any If-None-Match value names etag. Values
// may list several tags; weak tags compare by their opaque part.
func etagMatches(values []string, etag string) bool {
	for _, value := range values {
		for _, tag := range strings.Split(value, ",") {
			tag = strings.TrimSpace(tag)
			if tag == "*" || strings.TrimPrefix(tag, "W/") == etag {
				return true
			}
		}
	}
	return false
}

// writeError maps feed errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn().
			Err(err).
			Str("path", r.URL.Path).
			Int("status", status).
			Msg("Upstream request failed")
	}
	writeProblem(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, client.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case cache.StatusOf(err) == http.StatusNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func writeProblem(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem{Error: msg})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("Request served")
	})
}
