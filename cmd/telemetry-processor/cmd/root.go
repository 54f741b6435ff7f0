package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/telemetry-monitor/internal/config"
	"github.com/oshokin/telemetry-monitor/internal/logger"
	"github.com/oshokin/telemetry-monitor/internal/service/processor"
	"github.com/oshokin/telemetry-monitor/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides log.level from the configuration.
	logLevel string
	// brokerURL overrides mqtt.broker_url.
	brokerURL string
	// embeddedBroker starts the in-process broker.
	embeddedBroker bool
	// singleInstance refuses to start next to another processor.
	singleInstance bool

	// rootCmd represents the base command for running the processor.
	rootCmd = &cobra.Command{
		Use:   processor.BinaryName,
		Short: "Process sensor telemetry and raise threshold and inactivity alarms.",
		Long: `Subscribes to sensor topics on an MQTT broker and processes every reading.

The first reading of a sensor only seeds its state. Every later reading is
persisted together with its band alarm (low, good or high). A sweep runs on a
fixed interval and raises an inactive alarm for every sensor that missed the
configured number of periods, on every tick until it reports again.

Readings and alarms go to the configured storage driver (log, postgres or
memory). Prometheus metrics and a gRPC health endpoint are served alongside.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			defer logger.Sync()

			options := &processor.Options{
				ConfigPath:     configPath,
				LogLevel:       logLevel,
				BrokerURL:      brokerURL,
				EmbeddedBroker: embeddedBroker,
				SingleInstance: singleInstance,
			}

			return processor.Run(ctx, options)
		},
	}
)

// Execute runs the telemetry-processor CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(statsCmd, healthCmd, initConfigCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level override (debug, info, warn, error)")
	rootCmd.Flags().StringVarP(&brokerURL, "broker", "b", "", "MQTT broker URL override")
	rootCmd.Flags().BoolVar(&embeddedBroker, "embedded-broker", false, "start the in-process MQTT broker")
	rootCmd.Flags().BoolVar(&singleInstance, "single-instance", false, "refuse to start when another processor runs")
}
