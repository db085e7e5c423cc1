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

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"agentsites/internal/httpapi"
	"agentsites/internal/scheduler"
)

var (
	configPath string
	syncOnce   bool
	version    = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:           "platform",
	Short:         "Agent microsite build and property sync platform",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the Apex27 webhook, admin and metrics endpoints",
	RunE:  runServe,
}

var builderCmd = &cobra.Command{
	Use:   "builder",
	Short: "Drain the build queue on an interval",
	RunE:  runBuilder,
}

var buildCmd = &cobra.Command{
	Use:   "build <build-id>",
	Short: "Process one queued build if it is at the head of the queue",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuild,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run full Apex27 property syncs on an interval",
	RunE:  runSync,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("platform %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "config file path")
	syncCmd.Flags().BoolVar(&syncOnce, "once", false, "run a single sync and exit")
	rootCmd.AddCommand(serveCmd, builderCmd, buildCmd, syncCmd, versionCmd)
}

func runServe(*cobra.Command, []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	api := httpapi.NewServer(a.propertySync(), a.buildQueue(), a.db, a.cfg.HTTP.WebhookSecret, a.logger)
	srv := &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      api.Routes(),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	a.logger.Info("http server stopped")
	return nil
}

func runBuilder(*cobra.Command, []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	a.serveMetrics(ctx)

	a.logger.Info("starting builder",
		"interval", a.cfg.Builder.Interval,
		"max_concurrent", a.cfg.Builder.MaxConcurrent,
	)

	sched := scheduler.NewScheduler("builder", a.builder(), a.cfg.Builder.Interval, a.cfg.Builder.RunTimeout, a.logger)
	if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("builder scheduler: %w", err)
	}
	return nil
}

func runBuild(_ *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("parse build id: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	result := a.builder().ProcessBuild(ctx, id)
	fmt.Println(result.BuildLogs)
	if !result.Success {
		return fmt.Errorf("build %s failed: %s", id, result.ErrorMessage)
	}
	a.logger.Info("build deployed", "build_id", id, "url", result.DeploymentURL)
	return nil
}

func runSync(*cobra.Command, []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	sync := a.propertySync()

	if syncOnce {
		stats, err := sync.FullSync(ctx)
		if err != nil {
			return fmt.Errorf("full sync: %w", err)
		}
		a.logger.Info("full sync finished", "synced", stats.Synced, "skipped", stats.Skipped, "errors", stats.Errors)
		return nil
	}

	a.serveMetrics(ctx)

	a.logger.Info("starting property syncer", "source", a.listingSource().ID(), "interval", a.cfg.Sync.Interval)

	sched := scheduler.NewScheduler("property_sync", sync, a.cfg.Sync.Interval, a.cfg.Sync.Interval, a.logger)
	if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("sync scheduler: %w", err)
	}
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
