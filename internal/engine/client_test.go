package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"loom/internal/engine"
	"loom/internal/services"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *engine.HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return engine.NewHTTPClientWithDoer(server.URL, "test-key", server.Client())
}

func TestGetWorkflowDefinitionSendsAuth(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if r.URL.Path != "/api/workflows/wf-1" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(engine.WorkflowDefinition{
			ID:   "wf-1",
			Name: "Transcription",
			Inputs: map[string]engine.InputSpec{
				"0": {Label: "media"},
			},
			Steps: map[string]engine.StepDef{
				"2": {ToolID: "aws_transcribe_stt"},
			},
		})
	})

	def, err := client.GetWorkflowDefinition(context.Background(), "wf-1")
	if err != nil {
		t.Fatalf("GetWorkflowDefinition: %v", err)
	}
	if def.Name != "Transcription" || len(def.Inputs) != 1 {
		t.Fatalf("unexpected definition: %+v", def)
	}
}

func TestGetWorkflowDefinitionNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such workflow", http.StatusNotFound)
	})

	_, err := client.GetWorkflowDefinition(context.Background(), "missing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListInvocationsBuildsQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("owner") != "svc" || q.Get("container_ref") != "c-9" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode([]engine.Invocation{{ID: "inv-1", WorkflowID: "wf-1", ContainerRef: "c-9"}})
	})

	invocations, err := client.ListInvocations(context.Background(), "svc", "", "c-9")
	if err != nil {
		t.Fatalf("ListInvocations: %v", err)
	}
	if len(invocations) != 1 || invocations[0].ID != "inv-1" {
		t.Fatalf("unexpected invocations: %+v", invocations)
	}
}

func TestSubmitInvocationRoundTrip(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		var req engine.InvocationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Inputs["0"].Source != engine.SourceDataset {
			t.Errorf("unexpected input binding: %+v", req.Inputs)
		}
		if v, ok := req.Parameter("2", "language"); !ok || v != "en" {
			t.Errorf("expected step parameter, got %+v", req.Parameters)
		}
		json.NewEncoder(w).Encode(engine.InvocationResponse{
			InvocationID: "inv-2",
			ContainerRef: req.ContainerRef,
			OutputIDs:    []string{"out-1"},
		})
	})

	req := &engine.InvocationRequest{
		WorkflowID:   "wf-1",
		ContainerRef: "c-1",
		Inputs: map[string]engine.InvocationInput{
			"0": {ID: "ds-1", Source: engine.SourceDataset},
		},
	}
	req.SetParameter("2", "language", "en")

	resp, err := client.SubmitInvocation(context.Background(), req)
	if err != nil {
		t.Fatalf("SubmitInvocation: %v", err)
	}
	if resp.InvocationID != "inv-2" || len(resp.OutputIDs) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestSetOutputVisible(t *testing.T) {
	var gotBody map[string]bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("unexpected method %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	})

	if err := client.SetOutputVisible(context.Background(), "c-1", "out-1", false); err != nil {
		t.Fatalf("SetOutputVisible: %v", err)
	}
	if visible, ok := gotBody["visible"]; !ok || visible {
		t.Fatalf("unexpected body: %+v", gotBody)
	}
}

func TestUploadAssetStreamsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, []byte("RIFF...."), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			file.Close()
			if header.Filename != "clip.wav" {
				t.Errorf("unexpected filename %q", header.Filename)
			}
		}
		json.NewEncoder(w).Encode(engine.UploadResult{DatasetRef: "ds-42"})
	})

	ref, err := client.UploadAsset(context.Background(), path)
	if err != nil {
		t.Fatalf("UploadAsset: %v", err)
	}
	if ref != "ds-42" {
		t.Fatalf("unexpected dataset ref %q", ref)
	}
}

func TestOutputExcluded(t *testing.T) {
	cases := []struct {
		name   string
		output *engine.Output
		want   bool
	}{
		{"nil", nil, true},
		{"deleted flag", &engine.Output{State: "ok", Deleted: true}, true},
		{"purged flag", &engine.Output{State: "ok", Purged: true}, true},
		{"discarded state", &engine.Output{State: "discarded"}, true},
		{"deleted state", &engine.Output{State: "deleted"}, true},
		{"live", &engine.Output{State: "ok", Visible: true}, false},
	}
	for _, tc := range cases {
		if got := tc.output.Excluded(); got != tc.want {
			t.Errorf("%s: Excluded() = %v, want %v", tc.name, got, tc.want)
		}
	}
}
