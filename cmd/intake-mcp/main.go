package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/joseph-ayodele/doc-intake/internal/app"
	"github.com/joseph-ayodele/doc-intake/internal/common"
	"github.com/joseph-ayodele/doc-intake/internal/mcp"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	v := common.NewViper()
	fs := pflag.NewFlagSet("intake-mcp", pflag.ExitOnError)
	common.BindFlags(fs, v)
	owner := fs.String("owner", "local", "owner id files are ingested for")
	_ = fs.Parse(os.Args[1:])

	cfg := common.LoadConfigFrom(v)
	// stdout carries the protocol
	logger := common.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proc, _, err := app.NewProcessor(cfg, nil, nil, false, logger)
	if err != nil {
		logger.Error("failed to build processor", "error", err)
		return 1
	}
	srv, err := mcp.NewServer(mcp.Config{Name: "doc-intake", Version: version, OwnerID: *owner}, proc, logger)
	if err != nil {
		logger.Error("failed to create mcp server", "error", err)
		return 1
	}
	if err := srv.Run(ctx); err != nil {
		logger.Error("mcp server stopped", "error", err)
		return 1
	}
	return 0
}
