package server

import (
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/doc-intake/internal/common"
)

// NewGRPCServer registers svc and the health service behind the rate limit,
// error, owner and recovery interceptors.
func NewGRPCServer(svc IntakeServer, cfg common.ServerConfig, logger *slog.Logger) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	limiter := NewRateLimiter(cfg.RateLimit, cfg.RateBurst)

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		limiter.UnaryInterceptor(),
		ErrorInterceptor(logger),
		OwnerInterceptor(logger),
		RecoveryInterceptor(logger),
	))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	// Reflection for grpcurl
	reflection.Register(grpcServer)

	RegisterIntakeServer(grpcServer, svc)
	return grpcServer, hs
}
