package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/telemetry-monitor/internal/config"
	"github.com/oshokin/telemetry-monitor/internal/logger"
	"github.com/oshokin/telemetry-monitor/internal/service/collector"
	"github.com/oshokin/telemetry-monitor/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides log.level from the configuration.
	logLevel string
	// brokerURL overrides mqtt.broker_url.
	brokerURL string
	// apiKey overrides collector.api_key.
	apiKey string

	// rootCmd represents the base command for running the collector.
	rootCmd = &cobra.Command{
		Use:   collector.BinaryName,
		Short: "Publish weather observations as temperature and humidity telemetry.",
		Long: `Polls the current-weather API for the configured city and publishes the
temperature and humidity as readings of one machine.

On start the machine manifest is published on the registration topic. Every
interval one payload per sensor is published on /sensors/<machine_id>/<sensor_id>
with a UTC timestamp. Failed API calls are logged and the cycle is skipped.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			defer logger.Sync()

			return collector.Run(ctx, &collector.Options{
				ConfigPath: configPath,
				LogLevel:   logLevel,
				BrokerURL:  brokerURL,
				APIKey:     apiKey,
			})
		},
	}
)

// Execute runs the telemetry-collector CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level override (debug, info, warn, error)")
	rootCmd.Flags().StringVarP(&brokerURL, "broker", "b", "", "MQTT broker URL override")
	rootCmd.Flags().StringVar(&apiKey, "api-key", os.Getenv("OPENWEATHER_API_KEY"), "weather API key")
}
