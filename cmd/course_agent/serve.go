package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/course-builder/internal/db"
	"github.com/jonathan/course-builder/internal/pipeline"
	"github.com/jonathan/course-builder/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes REST endpoints for generating surveys and running course pipelines.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	orch := pipeline.New(a.executor, a.artifacts, a.guidance, pipeline.Options{
		MaxConcurrentRuns: cfg.Pipeline.MaxConcurrentRuns,
		Logger:            logger.With("component", "pipeline"),
	})
	if err := orch.StartJanitor(cfg.Pipeline.JanitorSchedule, cfg.Pipeline.Retention); err != nil {
		return fmt.Errorf("failed to start janitor: %w", err)
	}

	deps := server.Deps{
		Pipelines: orch,
		Surveys:   a.executor,
		Guidance:  a.guidance,
		Artifacts: a.artifacts,
		Logger:    logger.With("component", "server"),
	}
	if a.database != nil {
		recorder := db.NewRunRecorder(a.database)
		orch.OnChange(recorder.Observe)
		deps.History = recorder
	}

	srv, err := server.New(cfg.Server, cfg.Auth, deps)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	serveErr := srv.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := orch.Shutdown(shutdownCtx); err != nil {
		logger.Warn("pipeline shutdown incomplete", "error", err.Error())
	}
	return serveErr
}
