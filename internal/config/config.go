// Package config loads the mlbam client configuration from a YAML file,
// environment variables and defaults, in that order of precedence
// (environment wins over the file).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/mlbam-client/pkg/cache"
	"github.com/Sternrassler/mlbam-client/pkg/logging"
	"gopkg.in/yaml.v3"
)

// Default endpoint templates. Each template is expanded with fmt.Sprintf.
const (
	DefaultPropertiesURL     = "http://mlb.mlb.com/properties/mlb_properties.xml"
	DefaultImportantDatesURL = "http://lookup-service-prod.mlb.com/named.org_history.bam?org_id=1&season=%d"
	DefaultBroadcastInfoURL  = "http://mlb.mlb.com/lookup/json/named.mlb_broadcast_info.bam?team_id=%s&season=%d"
	DefaultRosterURL         = "http://mlb.mlb.com/lookup/json/named.roster_40.bam?team_id=%s"
	DefaultInjuriesURL       = "http://mlb.mlb.com/fantasylookup/json/named.wsfb_news_injury.bam"

	// The standings lookups quote the date with %27, escaped here as %%27.
	DefaultStandingsURL           = "http://mlb.mlb.com/lookup/json/named.standings_schedule_date.bam?season=%d&schedule_game_date.game_date=%%27%s%%27&sit_code=%%27h0%%27&league_id=103&league_id=104&all_star_sw=%%27N%%27&version=2"
	DefaultHistoricalStandingsURL = "http://mlb.mlb.com/lookup/json/named.historical_standings_schedule_date.bam?season=%d&game_date=%%27%s%%27&sit_code=%%27h0%%27&league_id=103&league_id=104&all_star_sw=%%27N%%27&version=48"
)

type Config struct {
	Cache     CacheConfig     `yaml:"cache"`
	HTTP      HTTPConfig      `yaml:"http"`
	Retry     RetryConfig     `yaml:"retry"`
	Endpoints EndpointsConfig `yaml:"endpoints"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

type CacheConfig struct {
	// Capacity is the number of distinct URLs the requester tracks.
	Capacity int    `yaml:"capacity"`
	Policy   string `yaml:"policy"`
	// Verbose logs a notice on every 304.
	Verbose bool `yaml:"verbose"`
}

type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

type EndpointsConfig struct {
	Properties     string `yaml:"properties"`
	ImportantDates string `yaml:"important_dates"`
	BroadcastInfo  string `yaml:"broadcast_info"`
	Roster         string `yaml:"roster"`

	Standings           string `yaml:"standings"`
	HistoricalStandings string `yaml:"historical_standings"`
	Injuries            string `yaml:"injuries"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Cache: CacheConfig{
			Capacity: cache.DefaultCapacity,
			Policy:   string(cache.PolicyFIFO),
		},
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "mlbam-client/0.1.0",
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 1 * time.Second,
			MaxBackoff:     30 * time.Second,
		},
		Endpoints: EndpointsConfig{
			Properties:     DefaultPropertiesURL,
			ImportantDates: DefaultImportantDatesURL,
			BroadcastInfo:  DefaultBroadcastInfoURL,
			Roster:         DefaultRosterURL,

			Standings:           DefaultStandingsURL,
			HistoricalStandings: DefaultHistoricalStandingsURL,
			Injuries:            DefaultInjuriesURL,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level: string(logging.LevelInfo),
		},
	}
}

// Load reads path on top of the defaults. An empty path returns the defaults.
// Fields missing from the file keep their default value.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s does not exist", ErrReadConfigFail, path)
		}
		return cfg, fmt.Errorf("%w: %v", ErrReadConfigFail, err)
	}

	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrConfigParsingFail, err)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from MLBAM_* environment variables.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("MLBAM_CAPACITY"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: MLBAM_CAPACITY: %v", ErrInvalidConfig, err)
		}
		c.Cache.Capacity = n
	}
	if v, ok := lookup("MLBAM_POLICY"); ok {
		c.Cache.Policy = v
	}
	if v, ok := lookup("MLBAM_VERBOSE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: MLBAM_VERBOSE: %v", ErrInvalidConfig, err)
		}
		c.Cache.Verbose = b
	}
	if v, ok := lookup("MLBAM_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: MLBAM_TIMEOUT: %v", ErrInvalidConfig, err)
		}
		c.HTTP.Timeout = d
	}
	if v, ok := lookup("MLBAM_USER_AGENT"); ok {
		c.HTTP.UserAgent = v
	}
	if v, ok := lookup("MLBAM_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := lookup("MLBAM_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	return nil
}

// Validate checks the configuration for values the rest of the program
// cannot work with.
func (c Config) Validate() error {
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("%w: cache.capacity must be > 0 (got %d)", ErrInvalidConfig, c.Cache.Capacity)
	}
	if _, err := cache.ParsePolicy(c.Cache.Policy); err != nil {
		return fmt.Errorf("%w: cache.policy: %v", ErrInvalidConfig, err)
	}
	if c.HTTP.Timeout < 0 {
		return fmt.Errorf("%w: http.timeout must not be negative", ErrInvalidConfig)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: retry.max_attempts must be >= 1 (got %d)", ErrInvalidConfig, c.Retry.MaxAttempts)
	}
	if c.Retry.InitialBackoff < 0 || c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		return fmt.Errorf("%w: retry backoff must satisfy 0 <= initial_backoff <= max_backoff", ErrInvalidConfig)
	}
	if _, ok := logging.ParseLevel(logging.LogLevel(c.Log.Level)); !ok {
		return fmt.Errorf("%w: unknown log.level %q", ErrInvalidConfig, c.Log.Level)
	}
	return nil
}

// RequesterConfig builds the cache configuration. The policy must already
// be valid (see Validate).
func (c Config) RequesterConfig() cache.Config {
	policy, _ := cache.ParsePolicy(c.Cache.Policy)
	return cache.Config{
		Capacity: c.Cache.Capacity,
		Policy:   policy,
		PageOptions: cache.PageOptions{
			UserAgent: c.HTTP.UserAgent,
			Verbose:   c.Cache.Verbose,
		},
	}
}

// LoggingConfig builds the logging configuration.
func (c Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	return cfg
}
