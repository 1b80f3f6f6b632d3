// Package main implements the event brief autofill API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WessleyAI/eventbrief/engine/brief"
	"github.com/WessleyAI/eventbrief/pkg/config"
	"github.com/WessleyAI/eventbrief/pkg/metrics"
	"github.com/WessleyAI/eventbrief/pkg/mid"
	"github.com/spf13/pflag"
)

const serviceName = "eventbrief-api"

func main() {
	fs := pflag.NewFlagSet("api", pflag.ExitOnError)
	config.RegisterFlags(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()
	fm := metrics.NewFillMetrics(reg)

	svc, cleanup, err := brief.Build(ctx, cfg, fm, logger)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer cleanup()

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return fmt.Errorf("upload dir: %w", err)
	}

	api := &server{
		svc:       svc,
		metrics:   fm,
		registry:  reg,
		uploadDir: cfg.UploadDir,
		log:       logger,
	}
	handler := mid.Chain(api.routes(),
		mid.Recover(logger),
		mid.RequestID(),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel(serviceName),
	)

	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
