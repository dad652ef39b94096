package reconcile

import (
	"log/slog"
	"time"

	"loom/internal/assets"
	"loom/internal/config"
	"loom/internal/engine"
	"loom/internal/logging"
	"loom/internal/results"
	"loom/internal/workflows"
)

// Service reconciles the local result table against the engine.
type Service struct {
	cfg       *config.Config
	engine    engine.Client
	assets    *assets.Store
	results   *results.Store
	workflows *workflows.Service
	logger    *slog.Logger

	now func() time.Time
}

// NewService wires a reconciliation service.
func NewService(cfg *config.Config, client engine.Client, assetStore *assets.Store, resultStore *results.Store, wf *workflows.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		cfg:       cfg,
		engine:    client,
		assets:    assetStore,
		results:   resultStore,
		workflows: wf,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) statusWindow() time.Duration {
	return time.Duration(s.cfg.Refresh.StatusWindowMinutes) * time.Minute
}

func (s *Service) tableWindow() time.Duration {
	return time.Duration(s.cfg.Refresh.TableWindowMinutes) * time.Minute
}
