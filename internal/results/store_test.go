package results_test

import (
	"context"
	"testing"
	"time"

	"loom/internal/results"
	"loom/internal/testsupport"
)

func newResult(outputID string, assetID int64) *results.Result {
	return &results.Result{
		OutputID:       outputID,
		InvocationID:   "inv-1",
		StepID:         "step-1",
		WorkflowID:     "wf-1",
		ContainerRef:   "hist-1",
		AssetID:        assetID,
		AssetName:      "interview-001",
		ItemName:       "Test Item",
		CollectionName: "Test Collection",
		WorkflowName:   "transcription",
		StepName:       "aws_transcribe_stt",
		OutputName:     "amp_transcript",
		OutputType:     "json",
		Submitter:      "loom",
		Status:         results.StatusInProgress,
		Relevant:       true,
		DateCreated:    time.Now().UTC(),
		DateUpdated:    time.Now().UTC(),
	}
}

func TestSaveAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenResultStore(t, cfg)
	ctx := context.Background()

	result := newResult("out-1", 1)
	if err := store.Save(ctx, result); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if result.ID == 0 {
		t.Fatal("expected assigned ID")
	}

	loaded, err := store.GetByID(ctx, result.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected row")
	}
	if loaded.OutputID != "out-1" || loaded.Status != results.StatusInProgress {
		t.Fatalf("unexpected row: %+v", loaded)
	}
	if !loaded.Relevant {
		t.Fatal("expected relevant row")
	}
	if !loaded.DateRefreshed.IsZero() {
		t.Fatal("new row should have no refresh timestamp")
	}

	loaded.Status = results.StatusComplete
	if err := store.Save(ctx, loaded); err != nil {
		t.Fatalf("Save update: %v", err)
	}
	again, err := store.GetByID(ctx, result.ID)
	if err != nil {
		t.Fatalf("GetByID after update: %v", err)
	}
	if again.Status != results.StatusComplete {
		t.Fatalf("status not updated: %s", again.Status)
	}
}

func TestDuplicateOutputIDsObservable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenResultStore(t, cfg)
	ctx := context.Background()

	first := newResult("out-42", 1)
	second := newResult("out-42", 1)
	second.IsFinal = true
	for _, r := range []*results.Result{first, second} {
		if err := store.Save(ctx, r); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	rows, err := store.FindByOutputID(ctx, "out-42")
	if err != nil {
		t.Fatalf("FindByOutputID: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected both duplicates visible, got %d", len(rows))
	}
}

func TestFindStale(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenResultStore(t, cfg)
	ctx := context.Background()
	now := time.Now().UTC()

	fresh := newResult("out-fresh", 1)
	fresh.DateRefreshed = now
	stale := newResult("out-stale", 1)
	stale.DateRefreshed = now.Add(-time.Hour)
	never := newResult("out-never", 1)
	done := newResult("out-done", 1)
	done.Status = results.StatusComplete
	for _, r := range []*results.Result{fresh, stale, never, done} {
		if err := store.Save(ctx, r); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	found, err := store.FindStale(ctx, now.Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("FindStale: %v", err)
	}
	ids := map[string]bool{}
	for _, r := range found {
		ids[r.OutputID] = true
	}
	if len(found) != 2 || !ids["out-stale"] || !ids["out-never"] {
		t.Fatalf("unexpected stale set: %v", ids)
	}
}

func TestFindObsoleteAndDelete(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenResultStore(t, cfg)
	ctx := context.Background()
	now := time.Now().UTC()

	kept := newResult("out-kept", 1)
	kept.DateRefreshed = now
	gone := newResult("out-gone", 1)
	gone.DateRefreshed = now.Add(-24 * time.Hour)
	for _, r := range []*results.Result{kept, gone} {
		if err := store.Save(ctx, r); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	obsolete, err := store.FindObsolete(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("FindObsolete: %v", err)
	}
	if len(obsolete) != 1 || obsolete[0].OutputID != "out-gone" {
		t.Fatalf("unexpected obsolete set: %+v", obsolete)
	}

	deleted, err := store.Delete(ctx, obsolete[0].ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deletion, got %d", deleted)
	}
	remaining, err := store.FindByAsset(ctx, 1)
	if err != nil {
		t.Fatalf("FindByAsset: %v", err)
	}
	if len(remaining) != 1 || remaining[0].OutputID != "out-kept" {
		t.Fatalf("unexpected survivors: %+v", remaining)
	}
}

func TestOldestRefreshedByAsset(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenResultStore(t, cfg)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	if _, ok, err := store.OldestRefreshedByAsset(ctx, 7); err != nil || ok {
		t.Fatalf("expected no rows: ok=%v err=%v", ok, err)
	}

	older := newResult("out-a", 7)
	older.DateRefreshed = now.Add(-2 * time.Hour)
	newer := newResult("out-b", 7)
	newer.DateRefreshed = now
	for _, r := range []*results.Result{older, newer} {
		if err := store.Save(ctx, r); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	ts, ok, err := store.OldestRefreshedByAsset(ctx, 7)
	if err != nil {
		t.Fatalf("OldestRefreshedByAsset: %v", err)
	}
	if !ok {
		t.Fatal("expected ok")
	}
	if !ts.Equal(now.Add(-2 * time.Hour)) {
		t.Fatalf("unexpected timestamp %s", ts)
	}

	// A never-refreshed row pins the asset as stale.
	blank := newResult("out-c", 7)
	if err := store.Save(ctx, blank); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, ok, err := store.OldestRefreshedByAsset(ctx, 7); err != nil || ok {
		t.Fatalf("expected not-ok with unrefreshed row: ok=%v err=%v", ok, err)
	}
}

func TestSetFinal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenResultStore(t, cfg)
	ctx := context.Background()

	result := newResult("out-1", 1)
	if err := store.Save(ctx, result); err != nil {
		t.Fatalf("Save: %v", err)
	}

	flipped, err := store.SetFinal(ctx, result.ID, true)
	if err != nil {
		t.Fatalf("SetFinal: %v", err)
	}
	if !flipped.IsFinal {
		t.Fatal("expected final flag set")
	}

	same, err := store.SetFinal(ctx, result.ID, true)
	if err != nil {
		t.Fatalf("SetFinal repeat: %v", err)
	}
	if !same.IsFinal {
		t.Fatal("repeat call changed the flag")
	}

	if _, err := store.SetFinal(ctx, result.ID+99, true); err == nil {
		t.Fatal("expected error for missing row")
	}

	finals, err := store.FindFinalByAsset(ctx, 1)
	if err != nil {
		t.Fatalf("FindFinalByAsset: %v", err)
	}
	if len(finals) != 1 {
		t.Fatalf("expected 1 final row, got %d", len(finals))
	}
}

func TestSearch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenResultStore(t, cfg)
	ctx := context.Background()

	a := newResult("out-a", 1)
	b := newResult("out-b", 1)
	b.StepName = "ina_speech_segmenter"
	b.OutputName = "amp_segments"
	b.Relevant = false
	for _, r := range []*results.Result{a, b} {
		if err := store.Save(ctx, r); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	all, err := store.Search(ctx, results.SearchQuery{
		WorkflowID: results.Wildcard,
		StepName:   results.Wildcard,
		OutputName: results.Wildcard,
	})
	if err != nil {
		t.Fatalf("Search wildcard: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("wildcard should match all, got %d", len(all))
	}

	byStep, err := store.Search(ctx, results.SearchQuery{StepName: "ina_speech_segmenter"})
	if err != nil {
		t.Fatalf("Search by step: %v", err)
	}
	if len(byStep) != 1 || byStep[0].OutputID != "out-b" {
		t.Fatalf("unexpected step match: %+v", byStep)
	}

	relevant := true
	byRelevance, err := store.Search(ctx, results.SearchQuery{Relevant: &relevant})
	if err != nil {
		t.Fatalf("Search by relevance: %v", err)
	}
	if len(byRelevance) != 1 || byRelevance[0].OutputID != "out-a" {
		t.Fatalf("unexpected relevance match: %+v", byRelevance)
	}
}

func TestToolInfo(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenResultStore(t, cfg)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := store.RegisterToolVersion(ctx, "aws_transcribe", "AWS Transcribe", "1.0", base); err != nil {
		t.Fatalf("RegisterToolVersion: %v", err)
	}
	if err := store.RegisterToolVersion(ctx, "aws_transcribe", "AWS Transcribe", "2.0", base.AddDate(0, 6, 0)); err != nil {
		t.Fatalf("RegisterToolVersion: %v", err)
	}

	info, err := store.ToolInfo(ctx, "aws_transcribe", base.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("ToolInfo: %v", err)
	}
	if info != "AWS Transcribe 1.0" {
		t.Fatalf("expected version effective at invocation time, got %q", info)
	}

	info, err = store.ToolInfo(ctx, "aws_transcribe", base.AddDate(1, 0, 0))
	if err != nil {
		t.Fatalf("ToolInfo: %v", err)
	}
	if info != "AWS Transcribe 2.0" {
		t.Fatalf("expected latest version, got %q", info)
	}

	info, err = store.ToolInfo(ctx, "unregistered", base)
	if err != nil {
		t.Fatalf("ToolInfo unregistered: %v", err)
	}
	if info != "" {
		t.Fatalf("expected empty info, got %q", info)
	}
}
