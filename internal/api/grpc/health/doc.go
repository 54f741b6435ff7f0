// Package health implements the gRPC transport for processor liveness.
//
// It serves the standard grpc.health.v1 API. The overall status and the
// per-component statuses follow the broker connection of the processor.
package health
