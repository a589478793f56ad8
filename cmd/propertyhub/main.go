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

	"github.com/spf13/cobra"

	"github.com/propertyhub/propertyhub/internal/app"
	"github.com/propertyhub/propertyhub/internal/devapi"
	"github.com/propertyhub/propertyhub/internal/platform/cache"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "propertyhub",
		Short:        "PropertyHub dashboard gateway",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), devapiCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := app.NewLogger(cfg.LogFormat)
			ctx := cmd.Context()

			redisClient, err := cache.New(ctx, cfg.RedisAddr)
			if err != nil {
				return err
			}
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			}()

			gw, err := app.NewGateway(cfg, logger, redisClient, nil)
			if err != nil {
				return err
			}
			logger.Info("gateway configured", slog.String("upstream", cfg.UpstreamURL))
			return listen(ctx, logger, &http.Server{
				Addr:         cfg.AppAddr,
				Handler:      gw.Handler,
				ReadTimeout:  cfg.AppReadTimeout,
				WriteTimeout: cfg.AppWriteTimeout,
			})
		},
	}
}

func devapiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devapi",
		Short: "Run the in-memory development backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadDevAPIConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := app.NewLogger(cfg.LogFormat)
			backend, err := devapi.New(devapi.Config{
				Secret:         cfg.Secret,
				TokenTTL:       cfg.TokenTTL,
				RenewalTTL:     cfg.RenewalTTL,
				SeedPassword:   cfg.SeedPassword,
				LoginRateLimit: cfg.LoginLimit,
			}, logger)
			if err != nil {
				return err
			}
			return listen(cmd.Context(), logger, &http.Server{
				Addr:              cfg.Addr,
				Handler:           backend.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			})
		},
	}
}

// listen serves until ctx is cancelled, then shuts down gracefully.
func listen(ctx context.Context, logger *slog.Logger, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
