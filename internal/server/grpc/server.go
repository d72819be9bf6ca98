// Package grpc serves the gRPC surface of hortus-auth: the standard health
// service behind the access-token interceptor.
package grpc

import (
	"context"
	"net"

	"github.com/realforestry/hortus-auth/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is reported by the health service alongside the overall "" entry.
const ServiceName = "hortus.auth"

type GRPCServer struct {
	address    string
	authorizer Authorizer
	logger     logging.Logger
	health     *health.Server
}

func NewGRPCServer(a string, l logging.Logger, authorizer Authorizer) *GRPCServer {
	return &GRPCServer{
		address:    a,
		logger:     l.With("module", "grpc_server"),
		authorizer: authorizer,
		health:     health.NewServer(),
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		AccessTokenInterceptor(s.authorizer, s.logger, healthpb.Health_Check_FullMethodName),
	))

	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
