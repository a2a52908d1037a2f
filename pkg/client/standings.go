package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// standingsDateLayout is how the standings endpoints take the game date.
const standingsDateLayout = "2006/01/02"

// Standings sources. The current feed only answers for today; any other
// date is served by the historical feed.
const (
	StandingsSourceCurrent    = "standings_schedule_date"
	StandingsSourceHistorical = "historical_standings_schedule_date"
)

// Standings are the division standings of both leagues on one date.
type Standings struct {
	Source    string     `json:"source"`
	Divisions []Division `json:"divisions"`
}

// Division is one division with its teams in feed order.
type Division struct {
	Name  string   `json:"name"`
	Teams []Record `json:"teams"`
}

type divisionInfo struct {
	id   string
	name string
}

// leagueDivisions maps league_id to its divisions in display order.
var leagueDivisions = map[string][]divisionInfo{
	"103": {{"201", "AL East"}, {"202", "AL Central"}, {"200", "AL West"}},
	"104": {{"204", "NL East"}, {"205", "NL Central"}, {"203", "NL West"}},
}

// Standings returns the standings on date. Today's standings come from the
// current feed, every other date from the historical feed. Leagues other
// than the AL and NL are ignored.
func (c *Client) Standings(ctx context.Context, date time.Time) (standings *Standings, err error) {
	defer c.observe(EndpointStandings, time.Now(), &err)

	source, template := StandingsSourceHistorical, c.config.Endpoints.HistoricalStandings
	if sameDay(date, c.now().In(date.Location())) {
		source, template = StandingsSourceCurrent, c.config.Endpoints.Standings
	}

	data, err := c.read(ctx, fmt.Sprintf(template, date.Year(), date.Format(standingsDateLayout)))
	if err != nil {
		return nil, err
	}
	return decodeStandings(data, source)
}

// Injuries returns the current injury report rows.
func (c *Client) Injuries(ctx context.Context) (injuries []Record, err error) {
	defer c.observe(EndpointInjuries, time.Now(), &err)

	data, err := c.read(ctx, c.config.Endpoints.Injuries)
	if err != nil {
		return nil, err
	}
	return queryRows(data, "wsfb_news_injury")
}

// decodeStandings reads
//
//	{"<source>": {"standings_all_date_rptr": {"standings_all_date": [
//	    {"league_id": "103", "queryResults": {"row": [...]}}, ...]}}}
func decodeStandings(data []byte, source string) (*Standings, error) {
	var doc map[string]struct {
		Report *struct {
			Leagues []struct {
				LeagueID     string `json:"league_id"`
				QueryResults struct {
					Row json.RawMessage `json:"row"`
				} `json:"queryResults"`
			} `json:"standings_all_date"`
		} `json:"standings_all_date_rptr"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	body, ok := doc[source]
	if !ok || body.Report == nil {
		return nil, fmt.Errorf("%w: missing %s.standings_all_date_rptr", ErrMalformedPayload, source)
	}

	standings := &Standings{Source: source, Divisions: []Division{}}
	for _, league := range body.Report.Leagues {
		divisions, ok := leagueDivisions[league.LeagueID]
		if !ok {
			continue
		}
		rows, err := decodeRows(league.QueryResults.Row)
		if err != nil {
			return nil, err
		}
		for _, div := range divisions {
			teams := []Record{}
			for _, row := range rows {
				if row["division_id"] == div.id {
					teams = append(teams, row)
				}
			}
			standings.Divisions = append(standings.Divisions, Division{Name: div.name, Teams: teams})
		}
	}
	return standings, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
