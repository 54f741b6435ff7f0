package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/telemetry-monitor/internal/service/stats"
)

var (
	// statsURL is the metrics endpoint to scrape.
	statsURL string
	// statsInterval is the refresh period.
	statsInterval time.Duration
	// statsOnce prints a single snapshot.
	statsOnce bool

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Print live processor counters from the metrics endpoint.",
		Long: `Scrapes the processor Prometheus endpoint and prints received, dropped and
persisted counts together with alarms per type. Refreshes every interval until
interrupted, or prints once with --once.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return stats.Run(ctx, &stats.Options{
				URL:      statsURL,
				Interval: statsInterval,
				Once:     statsOnce,
				Out:      cmd.OutOrStdout(),
			})
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	statsCmd.Flags().StringVarP(&statsURL, "url", "u", stats.DefaultURL, "metrics endpoint URL")
	statsCmd.Flags().DurationVarP(&statsInterval, "interval", "i", stats.DefaultInterval, "refresh interval")
	statsCmd.Flags().BoolVar(&statsOnce, "once", false, "print a single snapshot and exit")
}
