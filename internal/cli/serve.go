package cli

import (
	"github.com/Sternrassler/mlbam-client/internal/server"
	"github.com/Sternrassler/mlbam-client/pkg/client"
	"github.com/spf13/cobra"
)

func newServeCommand(opts *options) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve league, team, schedule and roster feeds as JSON.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, requester, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}

			feeds, err := client.New(requester, clientConfig(cfg))
			if err != nil {
				return err
			}

			return server.New(feeds, requester).Run(cmd.Context(), cfg.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")

	return cmd
}
