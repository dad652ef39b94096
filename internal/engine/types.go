package engine

import "time"

// Workflow is a summary entry from the workflow index.
type Workflow struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// InputSpec describes one declared input slot of a workflow.
type InputSpec struct {
	Label string `json:"label"`
	Value string `json:"value,omitempty"`
}

// StepDef describes one step of a workflow definition.
type StepDef struct {
	ToolID     string            `json:"tool_id"`
	ToolInputs map[string]string `json:"tool_inputs,omitempty"`
}

// WorkflowDefinition is the full definition of a workflow, keyed by the
// engine's slot and step identifiers.
type WorkflowDefinition struct {
	ID     string               `json:"id"`
	Name   string               `json:"name"`
	Inputs map[string]InputSpec `json:"inputs"`
	Steps  map[string]StepDef   `json:"steps"`
}

// Invocation is a summary entry from the invocation index.
type Invocation struct {
	ID           string    `json:"id"`
	WorkflowID   string    `json:"workflow_id"`
	ContainerRef string    `json:"container_ref"`
	State        string    `json:"state"`
	UpdateTime   time.Time `json:"update_time"`
}

// Job is one execution of a tool within an invocation step.
type Job struct {
	ID         string    `json:"id"`
	ToolID     string    `json:"tool_id"`
	State      string    `json:"state"`
	CreateTime time.Time `json:"create_time"`
	UpdateTime time.Time `json:"update_time"`
}

// OutputRef points at an output produced by a step.
type OutputRef struct {
	ID string `json:"id"`
}

// StepDetail is one step of an invocation, with its jobs and named outputs.
type StepDetail struct {
	ID         string               `json:"id"`
	UpdateTime time.Time            `json:"update_time"`
	Jobs       []Job                `json:"jobs"`
	Outputs    map[string]OutputRef `json:"outputs"`
}

// InvocationDetail is a full invocation record including step details.
type InvocationDetail struct {
	Invocation
	Steps []StepDetail `json:"steps"`
}

// Output is one artifact stored in an output container.
type Output struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	State      string    `json:"state"`
	Visible    bool      `json:"visible"`
	Deleted    bool      `json:"deleted"`
	Purged     bool      `json:"purged"`
	CreateTime time.Time `json:"create_time"`
	UpdateTime time.Time `json:"update_time"`
	FileExt    string    `json:"file_ext"`
	FileName   string    `json:"file_name"`
}

// Excluded reports whether the output no longer participates in results, i.e.
// it has been deleted, purged, or discarded on the engine side.
func (o *Output) Excluded() bool {
	return o == nil || o.Deleted || o.Purged || o.State == "deleted" || o.State == "discarded"
}

// Input source types understood by the engine's positional binding protocol.
const (
	SourceDataset = "dataset"
	SourceOutput  = "output"
)

// InvocationInput binds one value to a declared input slot.
type InvocationInput struct {
	ID     string `json:"id"`
	Source string `json:"src"`
}

// InvocationRequest is a workflow submission: positional slot bindings plus
// per-step parameters, targeted at an existing output container.
type InvocationRequest struct {
	WorkflowID   string                       `json:"workflow_id"`
	ContainerRef string                       `json:"container_ref"`
	Inputs       map[string]InvocationInput   `json:"inputs"`
	Parameters   map[string]map[string]string `json:"parameters,omitempty"`
}

// SetParameter records a parameter value for one step, allocating the nested
// map on first use.
func (r *InvocationRequest) SetParameter(stepID, name, value string) {
	if r.Parameters == nil {
		r.Parameters = make(map[string]map[string]string)
	}
	params := r.Parameters[stepID]
	if params == nil {
		params = make(map[string]string)
		r.Parameters[stepID] = params
	}
	params[name] = value
}

// Parameter returns the recorded value of a step parameter, if any.
func (r *InvocationRequest) Parameter(stepID, name string) (string, bool) {
	params := r.Parameters[stepID]
	if params == nil {
		return "", false
	}
	v, ok := params[name]
	return v, ok
}

// InvocationResponse is the engine's acknowledgement of a submission.
type InvocationResponse struct {
	InvocationID string   `json:"id"`
	ContainerRef string   `json:"container_ref"`
	OutputIDs    []string `json:"outputs"`
}

// UploadResult carries the handle of an uploaded asset.
type UploadResult struct {
	DatasetRef string `json:"id"`
}

// Container is an engine-side grouping of outputs for one asset.
type Container struct {
	Ref  string `json:"id"`
	Name string `json:"name"`
}
