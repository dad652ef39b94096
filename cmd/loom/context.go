package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"loom/internal/assets"
	"loom/internal/config"
	"loom/internal/engine"
	"loom/internal/jobs"
	"loom/internal/logging"
	"loom/internal/reconcile"
	"loom/internal/results"
	"loom/internal/services"
	"loom/internal/workflows"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// appServices holds the wired service graph for one command run.
type appServices struct {
	cfg       *config.Config
	logger    *slog.Logger
	assets    *assets.Store
	results   *results.Store
	workflows *workflows.Service
	reconcile *reconcile.Service
	jobs      *jobs.Orchestrator
}

// withServices opens the stores, wires the services, runs fn, and tears the
// stores down again. Every invocation gets a fresh correlation ID so log
// lines from one command run can be grouped.
func (c *commandContext) withServices(fn func(*appServices) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	logger = logger.With(logging.String(logging.FieldCorrelationID, uuid.NewString()))

	assetStore, err := assets.Open(cfg)
	if err != nil {
		return err
	}
	defer assetStore.Close()

	resultStore, err := results.Open(cfg)
	if err != nil {
		return err
	}
	defer resultStore.Close()

	client := engine.NewHTTPClient(cfg)
	wf := workflows.NewService(client, workflows.NewMemoryCache(), logger)
	rec := reconcile.NewService(cfg, client, assetStore, resultStore, wf, logger)
	orch := jobs.NewOrchestrator(cfg, client, assetStore, resultStore, wf, rec, logger)

	return fn(&appServices{
		cfg:       cfg,
		logger:    logger,
		assets:    assetStore,
		results:   resultStore,
		workflows: wf,
		reconcile: rec,
		jobs:      orch,
	})
}

// tallyError folds a batch tally into a command exit error.
func tallyError[T any](tally services.BatchTally[T]) error {
	return tally.Err()
}
