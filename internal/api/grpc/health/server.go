package health

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/telemetry-monitor/internal/logger"
)

// ServiceName is the component name reported next to the overall status.
const ServiceName = "telemetry.Processor"

// Server exposes processor liveness over gRPC.
type Server struct {
	// health tracks serving statuses per service name.
	health *grpchealth.Server
	// grpc is the transport the health service is registered on.
	grpc *grpc.Server
}

// NewServer creates a server reporting NOT_SERVING until SetServing(true).
func NewServer() *Server {
	s := &Server{
		health: grpchealth.NewServer(),
		grpc:   grpc.NewServer(),
	}

	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.SetServing(false)

	return s
}

// SetServing flips the overall and component status.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Serve blocks until ctx is canceled or the server stops.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	// Done channel is closed after GracefulStop finishes.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		s.grpc.GracefulStop()
		close(done)
	}()

	logger.InfoKV(ctx, "Health endpoint listening", "address", lis.Addr().String())

	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done

	return nil
}
