package workflows

import (
	"context"
	"log/slog"
	"sync"

	"loom/internal/engine"
	"loom/internal/logging"
)

// Service answers workflow questions against the engine, memoizing name
// lookups in the injected cache and the workflow listing in process memory.
// Both caches invalidate only through ClearCaches.
type Service struct {
	client engine.Client
	names  Cache
	logger *slog.Logger

	mu     sync.Mutex
	listed []engine.Workflow
}

// NewService builds a Service. A nil cache gets a MemoryCache.
func NewService(client engine.Client, names Cache, logger *slog.Logger) *Service {
	if names == nil {
		names = NewMemoryCache()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{client: client, names: names, logger: logger}
}

// List returns the workflows visible on the engine, served from cache after
// the first successful call.
func (s *Service) List(ctx context.Context) ([]engine.Workflow, error) {
	s.mu.Lock()
	cached := s.listed
	s.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	listed, err := s.client.ListWorkflows(ctx)
	if err != nil {
		return nil, err
	}
	if listed == nil {
		listed = []engine.Workflow{}
	}
	s.mu.Lock()
	s.listed = listed
	s.mu.Unlock()
	return listed, nil
}

// Name resolves a workflow ID to its display name. Lookup failures fall back
// to the ID itself, and the fallback is cached so a renamed or deleted
// workflow doesn't trigger a remote call per result row.
func (s *Service) Name(ctx context.Context, workflowID string) string {
	if workflowID == "" {
		return ""
	}
	if name, ok := s.names.Get(workflowID); ok {
		return name
	}

	name := workflowID
	def, err := s.client.GetWorkflowDefinition(ctx, workflowID)
	if err != nil {
		s.logger.Warn("workflow name lookup failed, falling back to ID",
			logging.String(logging.FieldWorkflowID, workflowID),
			logging.Error(err))
	} else if def.Name != "" {
		name = def.Name
	}
	s.names.Put(workflowID, name)
	return name
}

// ClearCaches drops the memoized workflow names and listing.
func (s *Service) ClearCaches() {
	s.names.Clear()
	s.mu.Lock()
	s.listed = nil
	s.mu.Unlock()
}

// CachedNames reports how many workflow names are memoized.
func (s *Service) CachedNames() int {
	return s.names.Size()
}
