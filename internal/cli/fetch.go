package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Sternrassler/mlbam-client/pkg/batch"
	"github.com/Sternrassler/mlbam-client/pkg/cache"
	"github.com/spf13/cobra"
)

type fetchOptions struct {
	repeat      int
	interval    time.Duration
	concurrency int
	timeout     time.Duration
}

func newFetchCommand(opts *options) *cobra.Command {
	fo := &fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch URL...",
		Short: "Read URLs through the page cache and report what changed.",
		Long: `fetch reads every URL through one page cache, --repeat times, sleeping
--interval between rounds. For each URL and round it prints the body size,
a digest of the body and whether the body changed since the previous round.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if fo.repeat < 1 {
				return fmt.Errorf("--repeat must be >= 1 (got %d)", fo.repeat)
			}

			_, requester, err := opts.setup(cmd)
			if err != nil {
				return err
			}

			fetcher := batch.NewFetcher(requester, batch.Config{
				MaxConcurrency: fo.concurrency,
				Timeout:        fo.timeout,
			})
			return runFetch(cmd, fetcher, requester, args, fo)
		},
	}

	cmd.Flags().IntVar(&fo.repeat, "repeat", 1, "number of rounds")
	cmd.Flags().DurationVar(&fo.interval, "interval", 30*time.Second, "pause between rounds")
	cmd.Flags().IntVar(&fo.concurrency, "concurrency", 4, "parallel reads per round")
	cmd.Flags().DurationVar(&fo.timeout, "url-timeout", 15*time.Second, "timeout per URL read")

	return cmd
}

// runFetch runs the fetch rounds. A round with failures is reported and the
// next round still runs; the command fails if the last round had failures.
func runFetch(cmd *cobra.Command, fetcher *batch.Fetcher, requester *cache.Requester, urls []string, fo *fetchOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	previous := make(map[string]string, len(urls))

	var lastErr error
	for round := 1; round <= fo.repeat; round++ {
		if round > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(fo.interval):
			}
		}

		results, err := fetcher.FetchAll(ctx, urls)
		lastErr = err
		for _, r := range results {
			printResult(out, round, r, previous)
		}
		if err != nil && !errors.Is(err, batch.ErrPartial) {
			return err
		}
	}

	fmt.Fprintf(out, "cache: %d/%d pages (%s)\n", requester.Len(), requester.Capacity(), requester.Policy())
	return lastErr
}

func printResult(out io.Writer, round int, r batch.Result, previous map[string]string) {
	if r.Err != nil {
		fmt.Fprintf(out, "round=%d url=%s error_class=%s error=%q\n", round, r.URL, cache.ClassOf(r.Err), r.Err.Error())
		return
	}

	digest := cache.Digest(r.Data)
	last, seen := previous[r.URL]
	previous[r.URL] = digest

	state := "new"
	if seen {
		state = "unchanged"
		if last != digest {
			state = "changed"
		}
	}
	fmt.Fprintf(out, "round=%d url=%s bytes=%d digest=%s state=%s\n", round, r.URL, len(r.Data), digest[:16], state)
}
