package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ryandielhenn/sessionstore/internal/config"
	"github.com/ryandielhenn/sessionstore/internal/logging"
	"github.com/ryandielhenn/sessionstore/internal/telemetry"
	"github.com/ryandielhenn/sessionstore/pkg/session"
	"github.com/ryandielhenn/sessionstore/pkg/store"
)

// Set with -ldflags "-X main.version=... -X main.gitSHA=...".
var (
	version = "dev"
	gitSHA  = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var configFile string

	cmd := &cobra.Command{
		Use:          "sessionstore",
		Short:        "Serve bounded reasoning-session history over HTTP",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.BindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "path to a config file (yaml, toml or json)")
	f.Int("max-history", 100, "maximum history items kept per session")
	f.Int("max-domains", 1000, "maximum number of sessions")
	f.Int("ttl-minutes", 60, "minutes before a history item expires")
	f.Duration("cleanup-interval", 5*time.Minute, "interval between cleanup passes")
	f.String("listen-addr", ":8080", "HTTP listen address")
	f.String("log-level", "info", "log level (debug, info, warn, error)")
	f.String("log-format", "json", "log format (json or console)")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer log.Sync()

	// 1. Bounded store for session history
	st, err := session.NewStore(
		cfg.MaxDomains, cfg.MaxHistory, cfg.TTL(),
		store.WithLogger(log.Named("store")),
		store.WithMetrics(telemetry.StoreMetrics{}),
	)
	if err != nil {
		return err
	}
	telemetry.SetBuildInfo(version, gitSHA)
	if err := telemetry.Registry.Register(telemetry.NewStoreCollector(st.Stats, prometheus.Labels{"store": "sessions"})); err != nil {
		return fmt.Errorf("failed to register store collector: %w", err)
	}

	// 2. HTTP endpoints
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           session.NewServer(st, log.Named("http")).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info("starting",
		zap.String("addr", cfg.ListenAddr),
		zap.Int("max_sessions", cfg.MaxDomains),
		zap.Int("max_history", cfg.MaxHistory),
		zap.Duration("ttl", cfg.TTL()),
		zap.Duration("cleanup_interval", cfg.CleanupInterval))

	// 3. Serve, sweep and shut down together
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		st.RunJanitor(gctx, cfg.CleanupInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
