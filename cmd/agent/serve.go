package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/renderdeck/renderdeck-agent/internal/api"
	"github.com/renderdeck/renderdeck-agent/internal/config"
	"github.com/renderdeck/renderdeck-agent/internal/db"
	"github.com/renderdeck/renderdeck-agent/internal/ffmpeg"
	"github.com/renderdeck/renderdeck-agent/internal/jobs"
	"github.com/renderdeck/renderdeck-agent/internal/library"
	"github.com/renderdeck/renderdeck-agent/internal/logging"
	"github.com/renderdeck/renderdeck-agent/internal/render"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the export agent as a local HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.ScratchDir(), 0o755); err != nil {
		return fmt.Errorf("creating scratch dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting renderdeck agent",
		"version", config.Version,
		"data_dir", cfg.DataDir(),
		"port", cfg.Port(),
	)

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer database.Close()

	runner, err := ffmpeg.NewRunner(ffmpeg.Config{
		FFmpegPath:  cfg.FFmpegPath(),
		FFprobePath: cfg.FFprobePath(),
		Logger:      logging.WithComponent(logger, "ffmpeg"),
	})
	if err != nil {
		return err
	}

	librarySvc := library.NewService(
		library.NewRepository(database.Conn()),
		runner,
		logging.WithComponent(logger, "library"),
	)

	engine := render.NewEngine(render.EngineConfig{
		Runner:      runner,
		Logger:      logging.WithComponent(logger, "render"),
		ScratchRoot: cfg.ScratchDir(),
		FrameRate:   cfg.FrameRate(),
		Workers:     cfg.Workers(),
	})

	jobRepo := jobs.NewRepository(database.Conn())
	broadcaster := jobs.NewBroadcaster()
	jobRunner := jobs.NewRunner(jobRepo, engine, broadcaster, logging.WithComponent(logger, "jobs"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go jobRunner.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:        cfg.Port(),
		Library:     librarySvc,
		Jobs:        jobRepo,
		Runner:      jobRunner,
		Broadcaster: broadcaster,
		Logger:      logging.WithComponent(logger, "api"),
		StartTime:   startTime,
		AuthToken:   cfg.AuthToken(),
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
