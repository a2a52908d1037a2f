// Package cli implements the mlbam command line.
package cli

import (
	"fmt"
	"net/http"

	"github.com/Sternrassler/mlbam-client/internal/config"
	"github.com/Sternrassler/mlbam-client/pkg/cache"
	"github.com/Sternrassler/mlbam-client/pkg/client"
	"github.com/Sternrassler/mlbam-client/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	cfgFile   string
	capacity  int
	policy    string
	userAgent string
	logLevel  string
	pretty    bool
	verbose   bool
}

// NewRootCommand builds the mlbam command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "mlbam",
		Short: "Read MLBAM data feeds through a conditional-GET page cache.",
		Long: `mlbam reads MLB Advanced Media feeds over HTTP. Every URL is kept in a
bounded page cache and revalidated with If-Modified-Since, so unchanged feeds
are answered with 304 Not Modified instead of a full download.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config-file", "", "YAML config file path")
	flags.IntVar(&opts.capacity, "capacity", cache.DefaultCapacity, "number of distinct URLs kept in the page cache")
	flags.StringVar(&opts.policy, "policy", string(cache.PolicyFIFO), "eviction policy (fifo or lru)")
	flags.StringVar(&opts.userAgent, "user-agent", "", "User-Agent header for feed requests")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.BoolVar(&opts.pretty, "pretty", false, "human readable log output")
	flags.BoolVar(&opts.verbose, "verbose", false, "log a notice whenever a page was not modified")

	root.AddCommand(newFetchCommand(opts))
	root.AddCommand(newServeCommand(opts))

	return root
}

// loadConfig resolves the configuration: defaults, then the config file,
// then MLBAM_* environment variables, then flags set on the command line.
func (o *options) loadConfig(flags *pflag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}

	if flags.Changed("capacity") {
		cfg.Cache.Capacity = o.capacity
	}
	if flags.Changed("policy") {
		cfg.Cache.Policy = o.policy
	}
	if flags.Changed("user-agent") {
		cfg.HTTP.UserAgent = o.userAgent
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if flags.Changed("pretty") {
		cfg.Log.Pretty = o.pretty
	}
	if flags.Changed("verbose") {
		cfg.Cache.Verbose = o.verbose
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// setup loads the configuration, configures logging and builds the
// requester every subcommand reads through.
func (o *options) setup(cmd *cobra.Command) (config.Config, *cache.Requester, error) {
	cfg, err := o.loadConfig(cmd.Flags())
	if err != nil {
		return cfg, nil, err
	}

	logCfg := cfg.LoggingConfig()
	logCfg.Output = cmd.ErrOrStderr()
	logging.Setup(logCfg)

	rc := cfg.RequesterConfig()
	rc.HTTPClient = &http.Client{Timeout: cfg.HTTP.Timeout}

	requester, err := cache.NewRequester(rc)
	if err != nil {
		return cfg, nil, fmt.Errorf("create requester: %w", err)
	}
	return cfg, requester, nil
}

// clientConfig maps the file configuration onto the feed client.
func clientConfig(cfg config.Config) client.Config {
	return client.Config{
		Endpoints: client.Endpoints{
			Properties:          cfg.Endpoints.Properties,
			ImportantDates:      cfg.Endpoints.ImportantDates,
			BroadcastInfo:       cfg.Endpoints.BroadcastInfo,
			Roster:              cfg.Endpoints.Roster,
			Standings:           cfg.Endpoints.Standings,
			HistoricalStandings: cfg.Endpoints.HistoricalStandings,
			Injuries:            cfg.Endpoints.Injuries,
		},
		Retry: client.RetryConfig{
			MaxAttempts:       cfg.Retry.MaxAttempts,
			InitialBackoff:    cfg.Retry.InitialBackoff,
			MaxBackoff:        cfg.Retry.MaxBackoff,
			BackoffMultiplier: 2.0,
		},
	}
}
