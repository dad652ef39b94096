package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"loom/internal/config"
	"loom/internal/services"
)

// Client describes the engine operations loom depends on.
type Client interface {
	ListWorkflows(ctx context.Context) ([]Workflow, error)
	GetWorkflowDefinition(ctx context.Context, workflowID string) (*WorkflowDefinition, error)
	ListInvocations(ctx context.Context, owner, workflowID, containerRef string) ([]Invocation, error)
	GetInvocationDetail(ctx context.Context, workflowID, invocationID string) (*InvocationDetail, error)
	GetOutput(ctx context.Context, containerRef, outputID string) (*Output, error)
	SetOutputVisible(ctx context.Context, containerRef, outputID string, visible bool) error
	SubmitInvocation(ctx context.Context, req *InvocationRequest) (*InvocationResponse, error)
	UploadAsset(ctx context.Context, path string) (string, error)
	CreateContainer(ctx context.Context, name string) (string, error)
}

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// HTTPClient implements Client against the engine's JSON HTTP API.
type HTTPClient struct {
	baseURL       string
	apiKey        string
	client        HTTPDoer
	uploadTimeout time.Duration
}

// NewHTTPClient constructs an engine client from configuration.
func NewHTTPClient(cfg *config.Config) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.Engine.BaseURL, "/"),
		apiKey:  cfg.Engine.APIKey,
		client: &http.Client{
			Timeout: time.Duration(cfg.Engine.TimeoutSeconds) * time.Second,
		},
		uploadTimeout: time.Duration(cfg.Engine.UploadTimeoutSeconds) * time.Second,
	}
}

// NewHTTPClientWithDoer constructs an engine client with a custom HTTP backend.
func NewHTTPClientWithDoer(baseURL, apiKey string, client HTTPDoer) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

func (c *HTTPClient) ListWorkflows(ctx context.Context) ([]Workflow, error) {
	var workflows []Workflow
	if err := c.doJSON(ctx, http.MethodGet, "/api/workflows", nil, &workflows); err != nil {
		return nil, err
	}
	return workflows, nil
}

func (c *HTTPClient) GetWorkflowDefinition(ctx context.Context, workflowID string) (*WorkflowDefinition, error) {
	var def WorkflowDefinition
	path := "/api/workflows/" + url.PathEscape(workflowID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

func (c *HTTPClient) ListInvocations(ctx context.Context, owner, workflowID, containerRef string) ([]Invocation, error) {
	query := url.Values{}
	if owner != "" {
		query.Set("owner", owner)
	}
	if workflowID != "" {
		query.Set("workflow_id", workflowID)
	}
	if containerRef != "" {
		query.Set("container_ref", containerRef)
	}
	path := "/api/invocations"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var invocations []Invocation
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &invocations); err != nil {
		return nil, err
	}
	return invocations, nil
}

func (c *HTTPClient) GetInvocationDetail(ctx context.Context, workflowID, invocationID string) (*InvocationDetail, error) {
	var detail InvocationDetail
	path := fmt.Sprintf("/api/workflows/%s/invocations/%s?full=true",
		url.PathEscape(workflowID), url.PathEscape(invocationID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *HTTPClient) GetOutput(ctx context.Context, containerRef, outputID string) (*Output, error) {
	var output Output
	path := fmt.Sprintf("/api/containers/%s/outputs/%s",
		url.PathEscape(containerRef), url.PathEscape(outputID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &output); err != nil {
		return nil, err
	}
	return &output, nil
}

func (c *HTTPClient) SetOutputVisible(ctx context.Context, containerRef, outputID string, visible bool) error {
	path := fmt.Sprintf("/api/containers/%s/outputs/%s",
		url.PathEscape(containerRef), url.PathEscape(outputID))
	body := map[string]bool{"visible": visible}
	return c.doJSON(ctx, http.MethodPut, path, body, nil)
}

func (c *HTTPClient) SubmitInvocation(ctx context.Context, req *InvocationRequest) (*InvocationResponse, error) {
	var resp InvocationResponse
	path := fmt.Sprintf("/api/workflows/%s/invocations", url.PathEscape(req.WorkflowID))
	if err := c.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) CreateContainer(ctx context.Context, name string) (string, error) {
	var container Container
	body := map[string]string{"name": name}
	if err := c.doJSON(ctx, http.MethodPost, "/api/containers", body, &container); err != nil {
		return "", err
	}
	if container.Ref == "" {
		return "", services.Wrap(services.ErrRemote, "engine", "create container", "missing container ref in response", nil)
	}
	return container.Ref, nil
}

// UploadAsset streams a local media file into the engine's shared dataset
// store and returns the dataset ref. Uploads use a dedicated timeout since
// media files dwarf the other request bodies.
func (c *HTTPClient) UploadAsset(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open asset for upload: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("read asset contents: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finish multipart body: %w", err)
	}

	if c.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.uploadTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/datasets", &buf)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.applyAuth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrRemote, "engine", "upload asset", path, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, http.MethodPost, "/api/datasets"); err != nil {
		return "", err
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if result.DatasetRef == "" {
		return "", services.Wrap(services.ErrRemote, "engine", "upload asset", "missing dataset ref in response", nil)
	}
	return result.DatasetRef, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.applyAuth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrRemote, "engine", method+" "+path, "request failed", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, method, path); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) applyAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func checkStatus(resp *http.Response, method, path string) error {
	if resp.StatusCode < 400 {
		return nil
	}
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	detail := strings.TrimSpace(string(bodyBytes))
	if resp.StatusCode == http.StatusNotFound {
		return services.Wrap(services.ErrNotFound, "engine", method+" "+path, detail, nil)
	}
	return services.Wrap(services.ErrRemote, "engine",
		fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode), detail, nil)
}
