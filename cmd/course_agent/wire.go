package main

import (
	"context"
	"fmt"

	"github.com/jonathan/course-builder/internal/config"
	"github.com/jonathan/course-builder/internal/db"
	"github.com/jonathan/course-builder/internal/guidance"
	"github.com/jonathan/course-builder/internal/llm"
	"github.com/jonathan/course-builder/internal/logging"
	"github.com/jonathan/course-builder/internal/stage"
	"github.com/jonathan/course-builder/internal/store"
)

// app holds the long-lived dependencies shared by the commands.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	database  *db.DB
	artifacts store.Store
	guidance  guidance.Lookup
	client    *llm.Client
	executor  *stage.Executor
}

// loadConfig reads settings and builds the logger.
func loadConfig() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newApp wires storage, guidance and the generation client from cfg.
func newApp(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*app, error) {
	if err := cfg.LLM.RequireAPIKey(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	if cfg.Store.Backend == config.StorePostgres {
		database, err := db.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		if err := database.EnsureSchema(ctx); err != nil {
			database.Close()
			return nil, err
		}
		a.database = database
	}
	a.artifacts = newStore(cfg.Store, a.database)
	a.guidance = newGuidance(cfg.Guidance, a.database)

	client, err := llm.NewGeminiClient(ctx, cfg.LLM.ClientConfig(), cfg.LLM.APIKey, llm.WithLogger(logger.With("component", "llm")))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create generation client: %w", err)
	}
	a.client = client
	a.executor = stage.New(client, cfg.Stage, stage.WithLogger(logger.With("component", "stage")))
	return a, nil
}

// newStore picks the artifact backend. The postgres backend needs database.
func newStore(cfg config.StoreConfig, database *db.DB) store.Store {
	switch cfg.Backend {
	case config.StorePostgres:
		return db.NewArtifactStore(database)
	case config.StoreMemory:
		return store.NewMemoryStore()
	default:
		return store.NewFileStore(cfg.Dir)
	}
}

// newGuidance prefers a guidance directory, then the database, then nothing.
func newGuidance(cfg config.GuidanceConfig, database *db.DB) guidance.Lookup {
	switch {
	case cfg.Dir != "":
		return guidance.NewDirLookup(cfg.Dir)
	case database != nil:
		return db.NewGuidanceStore(database)
	default:
		return guidance.Static{}
	}
}

// Close releases the client and database.
func (a *app) Close() {
	if a.client != nil {
		if err := a.client.Close(); err != nil {
			a.logger.Warn("failed to close generation client", "error", err.Error())
		}
	}
	if a.database != nil {
		a.database.Close()
	}
	a.logger.Sync()
}
