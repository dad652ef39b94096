package testsupport

import (
	"context"
	"fmt"
	"sync"

	"loom/internal/engine"
	"loom/internal/services"
)

// FakeEngine is an in-memory engine.Client for tests. Submitted invocations,
// uploads, and visibility toggles are recorded so tests can assert on what
// reached the engine.
type FakeEngine struct {
	mu sync.Mutex

	Workflows   []engine.Workflow
	Definitions map[string]*engine.WorkflowDefinition
	Invocations map[string][]engine.Invocation
	Details     map[string]*engine.InvocationDetail
	Outputs     map[string]*engine.Output

	Submitted   []*engine.InvocationRequest
	Uploaded    []string
	Containers  []string
	Visibility  map[string]bool
	SubmitErr   error
	UploadErr   error
	nextDataset int
	nextInvoke  int
}

// NewFakeEngine returns an empty fake engine.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{
		Definitions: make(map[string]*engine.WorkflowDefinition),
		Invocations: make(map[string][]engine.Invocation),
		Details:     make(map[string]*engine.InvocationDetail),
		Outputs:     make(map[string]*engine.Output),
		Visibility:  make(map[string]bool),
	}
}

var _ engine.Client = (*FakeEngine)(nil)

func (f *FakeEngine) ListWorkflows(ctx context.Context) ([]engine.Workflow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.Workflow(nil), f.Workflows...), nil
}

func (f *FakeEngine) GetWorkflowDefinition(ctx context.Context, workflowID string) (*engine.WorkflowDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	def, ok := f.Definitions[workflowID]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "engine", "get workflow definition", workflowID, nil)
	}
	return def, nil
}

func (f *FakeEngine) ListInvocations(ctx context.Context, owner, workflowID, containerRef string) ([]engine.Invocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []engine.Invocation
	for _, invs := range f.Invocations {
		for _, inv := range invs {
			if workflowID != "" && inv.WorkflowID != workflowID {
				continue
			}
			if containerRef != "" && inv.ContainerRef != containerRef {
				continue
			}
			matched = append(matched, inv)
		}
	}
	return matched, nil
}

func (f *FakeEngine) GetInvocationDetail(ctx context.Context, workflowID, invocationID string) (*engine.InvocationDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	detail, ok := f.Details[invocationID]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "engine", "get invocation detail", invocationID, nil)
	}
	return detail, nil
}

func (f *FakeEngine) GetOutput(ctx context.Context, containerRef, outputID string) (*engine.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out, ok := f.Outputs[outputID]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "engine", "get output", outputID, nil)
	}
	copied := *out
	return &copied, nil
}

func (f *FakeEngine) SetOutputVisible(ctx context.Context, containerRef, outputID string, visible bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Outputs[outputID]; !ok {
		return services.Wrap(services.ErrNotFound, "engine", "set output visible", outputID, nil)
	}
	f.Outputs[outputID].Visible = visible
	f.Visibility[outputID] = visible
	return nil
}

func (f *FakeEngine) SubmitInvocation(ctx context.Context, req *engine.InvocationRequest) (*engine.InvocationResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubmitErr != nil {
		return nil, f.SubmitErr
	}
	f.Submitted = append(f.Submitted, req)
	f.nextInvoke++
	id := fmt.Sprintf("inv-%d", f.nextInvoke)
	inv := engine.Invocation{
		ID:           id,
		WorkflowID:   req.WorkflowID,
		ContainerRef: req.ContainerRef,
		State:        "new",
	}
	f.Invocations[req.WorkflowID] = append(f.Invocations[req.WorkflowID], inv)
	return &engine.InvocationResponse{
		InvocationID: id,
		ContainerRef: req.ContainerRef,
	}, nil
}

func (f *FakeEngine) UploadAsset(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UploadErr != nil {
		return "", f.UploadErr
	}
	f.Uploaded = append(f.Uploaded, path)
	f.nextDataset++
	return fmt.Sprintf("dataset-%d", f.nextDataset), nil
}

func (f *FakeEngine) CreateContainer(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Containers = append(f.Containers, name)
	return fmt.Sprintf("container-%d", len(f.Containers)), nil
}

// AddOutput registers an output the fake engine will serve.
func (f *FakeEngine) AddOutput(out *engine.Output) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Outputs[out.ID] = out
}

// AddInvocationDetail registers a full invocation detail, also listing it
// under its workflow.
func (f *FakeEngine) AddInvocationDetail(detail *engine.InvocationDetail) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Details[detail.ID] = detail
	f.Invocations[detail.WorkflowID] = append(f.Invocations[detail.WorkflowID], detail.Invocation)
}
