package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bio-mcp/interprod/internal/config"
	"github.com/bio-mcp/interprod/internal/executor"
	"github.com/bio-mcp/interprod/internal/httpapi"
	"github.com/bio-mcp/interprod/internal/interpro"
	"github.com/bio-mcp/interprod/internal/jobs"
	"github.com/bio-mcp/interprod/internal/notify"
	"github.com/bio-mcp/interprod/internal/workspace"
)

var flagVerbose bool

var rootCmd = &cobra.Command{
	Use:          "interprod",
	Short:        "Background job service wrapping InterProScan protein analysis",
	SilenceUsage: true,
	RunE:         run,
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")
	if err := rootCmd.Execute(); err != nil {
		slog.Error("interprod failed", "error", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	// .env is optional; real deployments set BIO_MCP_* in the environment.
	_ = godotenv.Load()

	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := config.Load()

	var store jobs.Store
	if cfg.BadgerDir != "" {
		s, err := jobs.OpenBadgerStore(cfg.BadgerDir)
		if err != nil {
			return err
		}
		store = s
	} else {
		store = jobs.NewMemoryStore()
	}
	defer store.Close()

	streamer := jobs.NewProgressStreamer()
	manager, err := jobs.NewManager(
		jobs.ManagerConfig{
			Slots:         cfg.PoolSize,
			Timeout:       cfg.Timeout(),
			MaxFileSize:   cfg.MaxFileSize,
			ResultDir:     cfg.ResultDir,
			QueueCapacity: cfg.QueueCapacity,
		},
		store,
		executor.NewExecRunner(),
		workspace.NewManager(cfg.TempDir),
		interpro.New(cfg.InterproPath),
		notify.NewHTTPSender(cfg.NotifyTimeout, cfg.NotifyMaxRetries),
		streamer,
	)
	if err != nil {
		return err
	}
	defer manager.Stop()

	sweeper, err := jobs.NewSweeper(store, cfg.Retention, cfg.SweepInterval)
	if err != nil {
		return err
	}
	sweeper.Start()
	defer func() {
		if err := sweeper.Stop(); err != nil {
			slog.Error("sweeper shutdown error", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpapi.NewRouter(manager, streamer),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", cfg.ListenAddr, "tool", cfg.InterproPath, "slots", cfg.PoolSize)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
