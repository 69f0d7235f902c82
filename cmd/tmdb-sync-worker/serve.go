package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vipul43/tmdb-sync-worker/internal/database"
	"github.com/vipul43/tmdb-sync-worker/internal/scheduler"
)

func serveCmd(c *cli) *cobra.Command {
	var (
		migrate     bool
		syncOnStart bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the batch workers, the daily scheduler and the metrics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(c, migrate, syncOnStart)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before starting")
	cmd.Flags().BoolVar(&syncOnStart, "sync-on-start", false, "trigger a sync run immediately")
	return cmd
}

func serve(c *cli, migrate, syncOnStart bool) error {
	cfg := c.cfg

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if migrate {
		log.Info("Running database migrations...")
		if err := database.RunMigrations(a.db); err != nil {
			return err
		}
		log.Info("Migrations completed successfully")
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if err := a.recorder.Serve(ctx, cfg.MetricsAddr); err != nil {
				log.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	sched, err := scheduler.New(ctx, cfg.SyncSchedule, cfg.SyncJobName, a.processor)
	if err != nil {
		return err
	}
	sched.Start()
	defer func() {
		<-sched.Stop().Done()
	}()

	if syncOnStart {
		go sched.Run()
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start watcher in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- a.watcher.Start(ctx)
	}()

	// Wait for shutdown signal or error
	select {
	case <-sigChan:
		log.Info("Shutdown signal received")
		cancel()

		// Wait for graceful shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
		defer shutdownCancel()

		select {
		case <-shutdownCtx.Done():
			log.Warn("Shutdown timeout exceeded")
		case err := <-errChan:
			if err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("Watcher error")
			}
		}

		log.Info("Application stopped")
		return nil

	case err := <-errChan:
		return err
	}
}
