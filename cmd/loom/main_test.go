package main

import (
	"testing"

	"loom/internal/results"
)

func TestParseParamFlags(t *testing.T) {
	params, err := parseParamFlags([]string{
		"s1:context_json={}",
		"s2:training_photos=faces",
		"s2:threshold=0.8",
	})
	if err != nil {
		t.Fatalf("parseParamFlags: %v", err)
	}
	if params["s1"]["context_json"] != "{}" {
		t.Fatalf("unexpected s1 params: %v", params["s1"])
	}
	if params["s2"]["training_photos"] != "faces" || params["s2"]["threshold"] != "0.8" {
		t.Fatalf("unexpected s2 params: %v", params["s2"])
	}

	if _, err := parseParamFlags([]string{"no-colon"}); err == nil {
		t.Fatal("expected error for flag without step")
	}
	if _, err := parseParamFlags([]string{"s1:no-equals"}); err == nil {
		t.Fatal("expected error for flag without value")
	}
	if params, err := parseParamFlags(nil); err != nil || params != nil {
		t.Fatalf("empty flags: params=%v err=%v", params, err)
	}
}

func TestDisplayStatus(t *testing.T) {
	cases := []struct {
		in   results.Status
		want string
	}{
		{results.StatusInProgress, "In Progress"},
		{results.StatusComplete, "Complete"},
		{results.StatusScheduled, "Scheduled"},
	}
	for _, tc := range cases {
		if got := displayStatus(tc.in); got != tc.want {
			t.Errorf("displayStatus(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRelevanceCriteria(t *testing.T) {
	criteria, err := relevanceCriteria(nil, "wf-1", results.Wildcard, "amp_transcript")
	if err != nil {
		t.Fatalf("relevanceCriteria: %v", err)
	}
	if len(criteria) != 1 || criteria[0].WorkflowID != "wf-1" || criteria[0].OutputName != "amp_transcript" {
		t.Fatalf("unexpected criteria: %+v", criteria)
	}

	criteria, err = relevanceCriteria([]string{"*:aws_transcribe_stt:*", "wf-2:*:amp_segments"},
		results.Wildcard, results.Wildcard, results.Wildcard)
	if err != nil {
		t.Fatalf("relevanceCriteria: %v", err)
	}
	if len(criteria) != 2 || criteria[0].StepName != "aws_transcribe_stt" || criteria[1].WorkflowID != "wf-2" {
		t.Fatalf("unexpected criteria: %+v", criteria)
	}

	if _, err := relevanceCriteria([]string{"only-two:parts"}, "", "", ""); err == nil {
		t.Fatal("expected error for malformed --match")
	}
}
