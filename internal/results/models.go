package results

import "time"

// Result mirrors one output of one step of one invocation on the engine.
// OutputID is the natural key; the row ID only exists for persistence.
type Result struct {
	ID int64

	// Identity on the engine side.
	OutputID     string
	InvocationID string
	StepID       string
	WorkflowID   string
	ContainerRef string

	// Owning asset and its hierarchy, denormalized for dashboard queries.
	AssetID        int64
	AssetName      string
	ItemName       string
	CollectionName string

	// Descriptive fields refreshed from the engine on every pass.
	WorkflowName string
	StepName     string
	OutputName   string
	OutputType   string
	OutputPath   string
	ToolInfo     string
	Submitter    string

	// State.
	Status   Status
	Relevant bool
	// IsFinal is user-curated and never cleared by reconciliation.
	IsFinal bool

	DateCreated time.Time
	DateUpdated time.Time
	// DateRefreshed is local bookkeeping: the last time a full sweep touched
	// this row. Targeted refreshes leave it alone.
	DateRefreshed time.Time
}

// SearchQuery selects rows by workflow/step/output names, any of which may be
// the Wildcard, optionally constrained by relevance.
type SearchQuery struct {
	WorkflowID string
	StepName   string
	OutputName string
	Relevant   *bool
}

// Wildcard matches every value of a search field.
const Wildcard = "*"
