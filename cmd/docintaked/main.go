package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/doc-intake/internal/app"
	"github.com/joseph-ayodele/doc-intake/internal/common"
	"github.com/joseph-ayodele/doc-intake/internal/server"
)

func main() {
	os.Exit(run())
}

// run returns the exit code so deferred cleanup finishes before main exits.
func run() int {
	v := common.NewViper()
	fs := pflag.NewFlagSet("docintaked", pflag.ExitOnError)
	common.BindFlags(fs, v)
	skipDup := fs.Bool("skip-duplicates", false, "return early for files the owner already saved")
	_ = fs.Parse(os.Args[1:])

	cfg := common.LoadConfigFrom(v)
	logger := common.NewLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, *skipDup, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = a.Store.Ping(pingCtx)
	cancel()
	if err != nil {
		logger.Error("failed to ping store", "error", err)
		return 1
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		return 1
	}

	if len(cfg.Server.IntakeRoots) == 0 {
		logger.Warn("no intake roots configured, ProcessFile will reject every path")
	}
	svc := server.NewIntakeService(a.Processor, a.Documents, a.Exporter, cfg.Server.IntakeRoots, logger)
	grpcServer, healthServer := server.NewGRPCServer(svc, cfg.Server, logger)

	logger.Info("docintaked listening", "addr", cfg.Server.GRPCAddr, "store", cfg.Store.Backend, "intake_roots", cfg.Server.IntakeRoots)
	serveErr := make(chan error, 1)
	go func() { serveErr <- grpcServer.Serve(lis) }()

	code := 0
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		logger.Error("gRPC serve error", "error", err)
		code = 1
	}
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(server.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	grpcServer.GracefulStop()
	logger.Info("stopped")
	return code
}
