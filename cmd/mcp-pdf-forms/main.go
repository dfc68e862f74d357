package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/a3tai/mcp-pdf-forms/internal/config"
	"github.com/a3tai/mcp-pdf-forms/internal/logging"
	"github.com/a3tai/mcp-pdf-forms/internal/mcp"
	"github.com/a3tai/mcp-pdf-forms/internal/pipeline"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

func main() {
	cfg, err := config.LoadFromFlags()
	if errors.Is(err, config.ErrVersionRequested) {
		printVersion(os.Stdout)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(2)
	}

	applyVersion(cfg)
	logger := logging.New(cfg)
	slog.SetDefault(logger)

	// SIGHUP ends the session too, since a stdio parent hanging up closes our pipes
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// run builds the pipeline and serves MCP until ctx is cancelled or the transport ends
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.IsDebug() {
		logger.Debug("starting with configuration", "config", cfg.String())
	}

	service, closeService, err := pipeline.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}
	defer func() {
		if err := closeService(); err != nil {
			logger.Warn("closing provider clients", "err", err)
		}
	}()

	server, err := mcp.NewServer(cfg, service, logger)
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	return server.Run(ctx)
}

// applyVersion records the build version on the configuration
func applyVersion(cfg *config.Config) {
	if version != "dev" {
		cfg.Version = version
	}
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "MCP PDF Forms\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
