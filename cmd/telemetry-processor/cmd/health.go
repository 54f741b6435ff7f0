package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/telemetry-monitor/internal/api/grpc/health"
	"github.com/oshokin/telemetry-monitor/internal/config"
	"github.com/oshokin/telemetry-monitor/internal/service/common"
)

// errNotServing is returned when the processor reports anything but SERVING.
var errNotServing = errors.New("processor is not serving")

var (
	// healthAddress is the gRPC health endpoint.
	healthAddress string
	// healthTimeout bounds the check.
	healthTimeout time.Duration

	healthCmd = &cobra.Command{
		Use:          "health",
		Short:        "Probe the processor gRPC health endpoint.",
		Long:         "Exits with status 0 when the processor holds a broker session, non-zero otherwise.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			client, err := common.Dial(ctx, healthAddress, common.WithCallTimeout(healthTimeout))
			if err != nil {
				return err
			}

			defer func() {
				_ = client.Close()
			}()

			status, err := client.Check(ctx, health.ServiceName)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), status.String())

			if status != healthpb.HealthCheckResponse_SERVING {
				return errNotServing
			}

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	healthCmd.Flags().StringVarP(&healthAddress, "address", "a", "127.0.0.1"+config.DefaultHealthAddr, "health endpoint address")
	healthCmd.Flags().DurationVarP(&healthTimeout, "timeout", "t", common.DefaultCallTimeout, "check timeout")
}
