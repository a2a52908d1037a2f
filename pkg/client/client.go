// Package client provides typed access to the MLBAM data feeds on top of a
// conditional-GET page cache, with retries and error classification.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/mlbam-client/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for feed client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mlbam_client_requests_total",
		Help: "Total feed requests by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mlbam_client_request_duration_seconds",
		Help:    "Feed request duration in seconds by endpoint, retries included",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})
)

// Endpoint names used in metrics and logs.
const (
	EndpointLeague         = "league"
	EndpointTeams          = "teams"
	EndpointImportantDates = "important_dates"
	EndpointBroadcastInfo  = "broadcast_info"
	EndpointRoster         = "roster"
	EndpointStandings      = "standings"
	EndpointInjuries       = "injuries"
)

// gameDateLayout is how the broadcast feed writes game_date.
const gameDateLayout = "2006-01-02T00:00:00"

// Reader returns the current body of a URL. *cache.Requester implements it.
type Reader interface {
	Read(ctx context.Context, url string) ([]byte, error)
}

// Endpoints holds the feed URL templates.
type Endpoints struct {
	// Properties is the league properties XML (no verbs).
	Properties string

	// ImportantDates takes the season year (%d).
	ImportantDates string

	// BroadcastInfo takes the team id (%s) and season year (%d).
	BroadcastInfo string

	// Roster takes the team id (%s).
	Roster string

	// Standings and HistoricalStandings take the season year (%d) and the
	// game date as YYYY/MM/DD (%s).
	Standings           string
	HistoricalStandings string

	// Injuries is the injury report (no verbs).
	Injuries string
}

// Config holds the client configuration.
type Config struct {
	Endpoints Endpoints
	Retry     RetryConfig
}

// Client reads MLBAM feeds through a Reader and decodes them.
type Client struct {
	reader Reader
	config Config
	now    func() time.Time
	logger zerolog.Logger
}

// Roster is the 40-man roster of a team.
type Roster struct {
	TeamID  string
	Players []Record
}

// New creates a new feed client.
func New(reader Reader, cfg Config) (*Client, error) {
	if reader == nil {
		return nil, ErrNoReader
	}
	cfg.Retry = cfg.Retry.withDefaults()

	return &Client{
		reader: reader,
		config: cfg,
		now:    time.Now,
		logger: logging.NewLogger(logging.ComponentClient),
	}, nil
}

// LeagueInfo returns the attributes of the league element of the
// properties feed.
func (c *Client) LeagueInfo(ctx context.Context) (rec Record, err error) {
	defer c.observe(EndpointLeague, time.Now(), &err)

	league, err := c.league(ctx)
	if err != nil {
		return nil, err
	}
	return league.record(), nil
}

// Teams returns the attributes of every team of the league, in feed order.
func (c *Client) Teams(ctx context.Context) (teams []Record, err error) {
	defer c.observe(EndpointTeams, time.Now(), &err)

	league, err := c.league(ctx)
	if err != nil {
		return nil, err
	}
	for _, team := range league.find("teams").findAll("team") {
		teams = append(teams, team.record())
	}
	return teams, nil
}

// ImportantDates returns the season calendar of year. A season the feed
// knows nothing about yields ErrNotFound.
func (c *Client) ImportantDates(ctx context.Context, year int) (rec Record, err error) {
	defer c.observe(EndpointImportantDates, time.Now(), &err)

	data, err := c.read(ctx, fmt.Sprintf(c.config.Endpoints.ImportantDates, year))
	if err != nil {
		return nil, err
	}
	root, err := parseXML(data)
	if err != nil {
		return nil, err
	}
	row := root.findPath("queryResults", "row")
	if row == nil {
		return nil, fmt.Errorf("important dates for %d: %w", year, ErrNotFound)
	}
	return row.record(), nil
}

// BroadcastInfo returns the broadcasts of teamID's games on date. The season
// is taken from date; only the calendar day of date is compared.
func (c *Client) BroadcastInfo(ctx context.Context, teamID string, date time.Time) (out []Record, err error) {
	defer c.observe(EndpointBroadcastInfo, time.Now(), &err)

	data, err := c.read(ctx, fmt.Sprintf(c.config.Endpoints.BroadcastInfo, teamID, date.Year()))
	if err != nil {
		return nil, err
	}
	rows, err := queryRows(data, "mlb_broadcast_info")
	if err != nil {
		return nil, err
	}

	gameDate := date.Format(gameDateLayout)
	for _, row := range rows {
		if row["game_date"] == gameDate {
			out = append(out, row)
		}
	}
	return out, nil
}

// Roster returns the 40-man roster of teamID.
func (c *Client) Roster(ctx context.Context, teamID string) (roster *Roster, err error) {
	defer c.observe(EndpointRoster, time.Now(), &err)

	data, err := c.read(ctx, fmt.Sprintf(c.config.Endpoints.Roster, teamID))
	if err != nil {
		return nil, err
	}
	players, err := queryRows(data, "roster_40")
	if err != nil {
		return nil, err
	}
	return &Roster{TeamID: teamID, Players: players}, nil
}

func (c *Client) league(ctx context.Context) (*xmlNode, error) {
	data, err := c.read(ctx, c.config.Endpoints.Properties)
	if err != nil {
		return nil, err
	}
	root, err := parseXML(data)
	if err != nil {
		return nil, err
	}
	league := root.findPath("leagues", "league")
	if league == nil {
		return nil, fmt.Errorf("%w: properties feed has no leagues/league element", ErrMalformedPayload)
	}
	return league, nil
}

// read fetches url through the reader, retrying transient failures.
func (c *Client) read(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	err := retryWithBackoff(ctx, c.config.Retry, c.logger.With().Str("url", url).Logger(), func() error {
		var readErr error
		data, readErr = c.reader.Read(ctx, url)
		return readErr
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// observe records the outcome of one client call.
func (c *Client) observe(endpoint string, start time.Time, errp *error) {
	requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	err := *errp
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, ErrMalformedPayload):
		outcome = "malformed"
	default:
		outcome = "error"
	}
	requestsTotal.WithLabelValues(endpoint, outcome).Inc()

	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("endpoint", endpoint).
			Str("outcome", outcome).
			Str("error_class", errorClass(err)).
			Msg("Feed request failed")
		return
	}
	c.logger.Debug().
		Str("endpoint", endpoint).
		Dur("duration", time.Since(start)).
		Msg("Feed request complete")
}
