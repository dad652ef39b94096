package jobs_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"loom/internal/assets"
	"loom/internal/config"
	"loom/internal/engine"
	"loom/internal/jobs"
	"loom/internal/reconcile"
	"loom/internal/results"
	"loom/internal/testsupport"
	"loom/internal/workflows"
)

type fixture struct {
	cfg    *config.Config
	eng    *testsupport.FakeEngine
	assets *assets.Store
	store  *results.Store
	orch   *jobs.Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	eng := testsupport.NewFakeEngine()
	assetStore := testsupport.MustOpenAssetStore(t, cfg)
	resultStore := testsupport.MustOpenResultStore(t, cfg)
	wf := workflows.NewService(eng, nil, nil)
	recorder := reconcile.NewService(cfg, eng, assetStore, resultStore, wf, nil)
	return &fixture{
		cfg:    cfg,
		eng:    eng,
		assets: assetStore,
		store:  resultStore,
		orch:   jobs.NewOrchestrator(cfg, eng, assetStore, resultStore, wf, recorder, nil),
	}
}

func singleInputWorkflow(id string) *engine.WorkflowDefinition {
	return &engine.WorkflowDefinition{
		ID:     id,
		Name:   "Transcription",
		Inputs: map[string]engine.InputSpec{"0": {Label: "media"}},
		Steps: map[string]engine.StepDef{
			"s1": {ToolID: "aws_transcribe"},
		},
	}
}

func TestSubmitStagesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.eng.Definitions["wf-1"] = singleInputWorkflow("wf-1")
	asset := testsupport.NewAsset(t, f.assets, "interview-001")

	first := f.orch.Submit(ctx, jobs.SubmitRequest{AssetID: asset.ID, WorkflowID: "wf-1"})
	if first.Err != nil {
		t.Fatalf("Submit: %v", first.Err)
	}
	if first.InvocationID == "" || first.ContainerRef == "" {
		t.Fatalf("incomplete submission: %+v", first)
	}

	second := f.orch.Submit(ctx, jobs.SubmitRequest{AssetID: asset.ID, WorkflowID: "wf-1"})
	if second.Err != nil {
		t.Fatalf("Submit again: %v", second.Err)
	}
	if second.ContainerRef != first.ContainerRef {
		t.Fatalf("resubmission switched containers: %s vs %s", second.ContainerRef, first.ContainerRef)
	}
	if len(f.eng.Uploaded) != 1 {
		t.Fatalf("expected a single upload, got %d", len(f.eng.Uploaded))
	}
	if len(f.eng.Containers) != 1 {
		t.Fatalf("expected a single container, got %d", len(f.eng.Containers))
	}
	if f.eng.Containers[0] != "Output Container for Asset-"+itoa(asset.ID) {
		t.Fatalf("unexpected container name %q", f.eng.Containers[0])
	}
}

func TestSubmitNeverPanicsOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Unknown workflow.
	asset := testsupport.NewAsset(t, f.assets, "interview-001")
	sub := f.orch.Submit(ctx, jobs.SubmitRequest{AssetID: asset.ID, WorkflowID: "wf-missing"})
	if !errors.Is(sub.Err, jobs.ErrWorkflowNotFound) {
		t.Fatalf("expected ErrWorkflowNotFound, got %v", sub.Err)
	}

	// Unknown asset.
	sub = f.orch.Submit(ctx, jobs.SubmitRequest{AssetID: 9999, WorkflowID: "wf-1"})
	if !errors.Is(sub.Err, jobs.ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound, got %v", sub.Err)
	}

	// Engine refusal surfaces on the submission, not as a panic or return.
	f.eng.Definitions["wf-1"] = singleInputWorkflow("wf-1")
	f.eng.SubmitErr = errors.New("engine on fire")
	sub = f.orch.Submit(ctx, jobs.SubmitRequest{AssetID: asset.ID, WorkflowID: "wf-1"})
	if sub.Err == nil || !strings.Contains(sub.Err.Error(), "engine on fire") {
		t.Fatalf("expected engine error, got %v", sub.Err)
	}
}

func TestSubmitInputCountMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	def := singleInputWorkflow("wf-1")
	def.Inputs["1"] = engine.InputSpec{Label: "transcript"}
	f.eng.Definitions["wf-1"] = def
	asset := testsupport.NewAsset(t, f.assets, "interview-001")

	sub := f.orch.Submit(ctx, jobs.SubmitRequest{AssetID: asset.ID, WorkflowID: "wf-1"})
	if !errors.Is(sub.Err, jobs.ErrInputCountMismatch) {
		t.Fatalf("expected ErrInputCountMismatch, got %v", sub.Err)
	}
	if len(f.eng.Submitted) != 0 {
		t.Fatal("mismatched submission reached the engine")
	}
}

func TestSubmitWithSupplementaryInputs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	def := singleInputWorkflow("wf-2")
	def.Inputs["1"] = engine.InputSpec{Label: "transcript"}
	f.eng.Definitions["wf-2"] = def
	asset := testsupport.NewAsset(t, f.assets, "interview-001")
	if err := f.assets.SetEngineRefs(ctx, asset.ID, "ds-1", "hist-1"); err != nil {
		t.Fatalf("SetEngineRefs: %v", err)
	}

	prior := &results.Result{
		OutputID:     "out-prior",
		ContainerRef: "hist-1",
		AssetID:      asset.ID,
		Status:       results.StatusComplete,
	}
	if err := f.store.Save(ctx, prior); err != nil {
		t.Fatalf("Save prior: %v", err)
	}

	sub := f.orch.Submit(ctx, jobs.SubmitRequest{
		AssetID:       asset.ID,
		WorkflowID:    "wf-2",
		SupplementIDs: []int64{prior.ID},
	})
	if sub.Err != nil {
		t.Fatalf("Submit: %v", sub.Err)
	}

	req := f.eng.Submitted[0]
	if got := req.Inputs["0"]; got.ID != "ds-1" || got.Source != engine.SourceDataset {
		t.Fatalf("slot 0 bound to %+v", got)
	}
	if got := req.Inputs["1"]; got.ID != "out-prior" || got.Source != engine.SourceOutput {
		t.Fatalf("slot 1 bound to %+v", got)
	}
}

func TestSubmitWithoutStagedMedia(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.eng.Definitions["wf-1"] = singleInputWorkflow("wf-1")

	bare := &assets.Asset{Name: "no-media"}
	if err := f.assets.Create(ctx, bare); err != nil {
		t.Fatalf("Create: %v", err)
	}

	sub := f.orch.Submit(ctx, jobs.SubmitRequest{AssetID: bare.ID, WorkflowID: "wf-1"})
	if !errors.Is(sub.Err, jobs.ErrAssetNotStaged) {
		t.Fatalf("expected ErrAssetNotStaged, got %v", sub.Err)
	}
	if len(f.eng.Submitted) != 0 {
		t.Fatal("unstaged submission reached the engine")
	}
}

func TestSubmitFromPriorOutputsOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.eng.Definitions["wf-next"] = singleInputWorkflow("wf-next")
	asset := testsupport.NewAsset(t, f.assets, "interview-001")
	if err := f.assets.SetEngineRefs(ctx, asset.ID, "ds-1", "hist-1"); err != nil {
		t.Fatalf("SetEngineRefs: %v", err)
	}

	prior := &results.Result{
		OutputID:     "out-prior",
		ContainerRef: "hist-1",
		AssetID:      asset.ID,
		Status:       results.StatusComplete,
	}
	if err := f.store.Save(ctx, prior); err != nil {
		t.Fatalf("Save prior: %v", err)
	}

	sub := f.orch.Submit(ctx, jobs.SubmitRequest{
		WorkflowID:    "wf-next",
		SupplementIDs: []int64{prior.ID},
	})
	if sub.Err != nil {
		t.Fatalf("Submit: %v", sub.Err)
	}
	if sub.AssetID != asset.ID {
		t.Fatalf("submission credited to asset %d, want %d", sub.AssetID, asset.ID)
	}
	if len(f.eng.Uploaded) != 0 || len(f.eng.Containers) != 0 {
		t.Fatal("prior-output submission re-staged the asset")
	}

	req := f.eng.Submitted[0]
	if got := req.Inputs["0"]; got.ID != "out-prior" || got.Source != engine.SourceOutput {
		t.Fatalf("slot 0 bound to %+v", got)
	}
}

func TestSubmitInconsistentInputSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	def := singleInputWorkflow("wf-2")
	def.Inputs["1"] = engine.InputSpec{Label: "transcript"}
	f.eng.Definitions["wf-2"] = def

	mine := testsupport.NewAsset(t, f.assets, "mine")
	other := testsupport.NewAsset(t, f.assets, "other")
	if err := f.assets.SetEngineRefs(ctx, mine.ID, "ds-1", "hist-1"); err != nil {
		t.Fatalf("SetEngineRefs: %v", err)
	}

	foreign := &results.Result{
		OutputID:     "out-foreign",
		ContainerRef: "hist-2",
		AssetID:      other.ID,
		Status:       results.StatusComplete,
	}
	if err := f.store.Save(ctx, foreign); err != nil {
		t.Fatalf("Save foreign: %v", err)
	}

	sub := f.orch.Submit(ctx, jobs.SubmitRequest{
		AssetID:       mine.ID,
		WorkflowID:    "wf-2",
		SupplementIDs: []int64{foreign.ID},
	})
	if !errors.Is(sub.Err, jobs.ErrInconsistentInputSet) {
		t.Fatalf("expected ErrInconsistentInputSet, got %v", sub.Err)
	}
}

func TestHumanStepsShareContext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.cfg.Media.BaseURL = "https://media.test"
	f.eng.Definitions["wf-3"] = &engine.WorkflowDefinition{
		ID:     "wf-3",
		Name:   `Transcript "Review"`,
		Inputs: map[string]engine.InputSpec{"0": {Label: "media"}},
		Steps: map[string]engine.StepDef{
			"s1": {ToolID: "hmgm_transcript_editor"},
			"s2": {ToolID: "hmgm_ner_editor"},
			"s3": {ToolID: "aws_transcribe"},
		},
	}
	asset := testsupport.NewAsset(t, f.assets, `O'Brien "interview"`)

	sub := f.orch.Submit(ctx, jobs.SubmitRequest{AssetID: asset.ID, WorkflowID: "wf-3"})
	if sub.Err != nil {
		t.Fatalf("Submit: %v", sub.Err)
	}

	req := f.eng.Submitted[0]
	first, ok := req.Parameter("s1", "context_json")
	if !ok {
		t.Fatal("s1 missing context_json")
	}
	second, ok := req.Parameter("s2", "context_json")
	if !ok {
		t.Fatal("s2 missing context_json")
	}
	if first != second {
		t.Fatal("human steps received different contexts")
	}
	if _, ok := req.Parameter("s3", "context_json"); ok {
		t.Fatal("machine step received a context")
	}
	if strings.Contains(first, `O'Brien`) {
		t.Fatalf("quotes not sanitized: %s", first)
	}
	if !strings.Contains(first, "O%27Brien") || !strings.Contains(first, "%22interview%22") {
		t.Fatalf("expected hex-escaped quotes in context: %s", first)
	}
	if !strings.Contains(first, "https://media.test/units/1/O%27Brien %22interview%22.mp4") {
		t.Fatalf("expected escaped media URL in context: %s", first)
	}
	if !strings.Contains(first, `"workflow_id":"wf-3"`) || !strings.Contains(first, "Transcript %22Review%22") {
		t.Fatalf("expected workflow identity in context: %s", first)
	}

	// A caller-supplied context is system-overwritten; the context is not a
	// user-facing parameter.
	sub = f.orch.Submit(ctx, jobs.SubmitRequest{
		AssetID:    asset.ID,
		WorkflowID: "wf-3",
		Parameters: map[string]map[string]string{"s1": {"context_json": "{}"}},
	})
	if sub.Err != nil {
		t.Fatalf("Submit with preset context: %v", sub.Err)
	}
	req = f.eng.Submitted[len(f.eng.Submitted)-1]
	if got, _ := req.Parameter("s1", "context_json"); got != first {
		t.Fatalf("caller-supplied context survived: %s", got)
	}
}

func TestTrainingPhotosResolution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.eng.Definitions["wf-4"] = &engine.WorkflowDefinition{
		ID:     "wf-4",
		Inputs: map[string]engine.InputSpec{"0": {Label: "media"}},
		Steps: map[string]engine.StepDef{
			"s1": {ToolID: "dlib_face_recognition", ToolInputs: map[string]string{"training_photos": "faces"}},
		},
	}
	asset := testsupport.NewAsset(t, f.assets, "interview-001")

	// Unregistered training set fails the submission.
	sub := f.orch.Submit(ctx, jobs.SubmitRequest{AssetID: asset.ID, WorkflowID: "wf-4"})
	if !errors.Is(sub.Err, jobs.ErrMissingTrainingAsset) {
		t.Fatalf("expected ErrMissingTrainingAsset, got %v", sub.Err)
	}

	// The static tool input resolves through the registry.
	if err := f.assets.RegisterTrainingAsset(ctx, asset.CollectionID, "faces", "/training/faces.zip"); err != nil {
		t.Fatalf("RegisterTrainingAsset: %v", err)
	}
	sub = f.orch.Submit(ctx, jobs.SubmitRequest{AssetID: asset.ID, WorkflowID: "wf-4"})
	if sub.Err != nil {
		t.Fatalf("Submit: %v", sub.Err)
	}
	req := f.eng.Submitted[len(f.eng.Submitted)-1]
	if got, _ := req.Parameter("s1", "training_photos"); got != "/training/faces.zip" {
		t.Fatalf("training_photos = %q", got)
	}

	// A caller-supplied set name overrides the static one.
	if err := f.assets.RegisterTrainingAsset(ctx, asset.CollectionID, "custom", "/training/custom.zip"); err != nil {
		t.Fatalf("RegisterTrainingAsset: %v", err)
	}
	sub = f.orch.Submit(ctx, jobs.SubmitRequest{
		AssetID:    asset.ID,
		WorkflowID: "wf-4",
		Parameters: map[string]map[string]string{"s1": {"training_photos": "custom"}},
	})
	if sub.Err != nil {
		t.Fatalf("Submit with override: %v", sub.Err)
	}
	req = f.eng.Submitted[len(f.eng.Submitted)-1]
	if got, _ := req.Parameter("s1", "training_photos"); got != "/training/custom.zip" {
		t.Fatalf("overridden training_photos = %q", got)
	}
}

func TestSubmitBatchIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.eng.Definitions["wf-1"] = singleInputWorkflow("wf-1")
	good := testsupport.NewAsset(t, f.assets, "good")

	submissions, tally := f.orch.SubmitBatch(ctx, "wf-1", []int64{good.ID, 9999}, nil)
	if len(submissions) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(submissions))
	}
	if tally.Succeeded != 1 || tally.Failed() != 1 {
		t.Fatalf("unexpected tally: %+v", tally)
	}
	if submissions[0].Err != nil {
		t.Fatalf("good asset failed: %v", submissions[0].Err)
	}
	if !errors.Is(submissions[1].Err, jobs.ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound, got %v", submissions[1].Err)
	}
}

func TestSubmitBundle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.eng.Definitions["wf-1"] = singleInputWorkflow("wf-1")
	one := testsupport.NewAsset(t, f.assets, "one")
	two := testsupport.NewAsset(t, f.assets, "two")
	for _, id := range []int64{one.ID, two.ID} {
		if err := f.assets.AddToBundle(ctx, "batch-a", id); err != nil {
			t.Fatalf("AddToBundle: %v", err)
		}
	}

	submissions, tally, err := f.orch.SubmitBundle(ctx, "wf-1", "batch-a", nil)
	if err != nil {
		t.Fatalf("SubmitBundle: %v", err)
	}
	if len(submissions) != 2 || tally.Succeeded != 2 {
		t.Fatalf("unexpected outcome: %d submissions, tally %+v", len(submissions), tally)
	}

	if _, _, err := f.orch.SubmitBundle(ctx, "wf-1", "empty", nil); err == nil {
		t.Fatal("expected error for empty bundle")
	}
}

func TestListInvocations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.eng.Definitions["wf-1"] = singleInputWorkflow("wf-1")
	asset := testsupport.NewAsset(t, f.assets, "interview-001")

	// Unstaged asset has nothing on the engine.
	invs, err := f.orch.ListInvocations(ctx, asset.ID, "")
	if err != nil {
		t.Fatalf("ListInvocations: %v", err)
	}
	if len(invs) != 0 {
		t.Fatalf("expected no invocations, got %d", len(invs))
	}

	sub := f.orch.Submit(ctx, jobs.SubmitRequest{AssetID: asset.ID, WorkflowID: "wf-1"})
	if sub.Err != nil {
		t.Fatalf("Submit: %v", sub.Err)
	}
	invs, err = f.orch.ListInvocations(ctx, asset.ID, "wf-1")
	if err != nil {
		t.Fatalf("ListInvocations after submit: %v", err)
	}
	if len(invs) != 1 || invs[0].ID != sub.InvocationID {
		t.Fatalf("unexpected invocations: %+v", invs)
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
