package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"marketledger/cmd/internal/passphrase"
	"marketledger/config"
	"marketledger/observability/logging"
	telemetry "marketledger/observability/otel"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	allowMigrate := flag.Bool("allow-migrate", false, "Allow starting with a mismatched state schema (manual migrations only)")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("MARKET_ENV"))
	logger := logging.Setup("marketd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger = logging.SetupWithOptions("marketd", env, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})

	if cfg.Telemetry.Enabled {
		endpoint, headers := cfg.TelemetryEndpoint()
		shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
			ServiceName: "marketd",
			Environment: env,
			Endpoint:    endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     telemetry.ParseHeaders(headers),
			Metrics:     true,
			Traces:      true,
		})
		if err != nil {
			logger.Error("Failed to initialise telemetry", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			_ = shutdownTelemetry(context.Background())
		}()
	}

	passSource := passphrase.NewSource(cfg.AuthorityPassphraseEnv, "authority")
	n, err := openNode(cfg, logger, *allowMigrate, passSource.Get)
	if err != nil {
		logger.Error("Failed to start ledger", slog.Any("error", err))
		os.Exit(1)
	}
	defer n.Close()

	listener, err := net.Listen("tcp", cfg.RPCAddress)
	if err != nil {
		logger.Error("Failed to bind RPC listener", slog.String("addr", cfg.RPCAddress), slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- n.server.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("RPC server stopped", slog.Any("error", err))
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := n.server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("RPC shutdown incomplete", slog.Any("error", err))
		}
	}
}
