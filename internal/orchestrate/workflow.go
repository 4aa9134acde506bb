package orchestrate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"feedback-backend/internal/shared/telemetry"
)

// WorkflowClient executes one automation workflow against the external
// workflow engine.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, kind Kind, payload map[string]any) (externalRef string, response map[string]any, err error)
}

// HTTPWorkflowClient calls the workflow engine's REST API.
type HTTPWorkflowClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewHTTPWorkflowClient constructs a workflow engine client.
func NewHTTPWorkflowClient(apiKey, baseURL string, timeout time.Duration) (*HTTPWorkflowClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("ORCHESTRATE_API_KEY is required")
	}
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("ORCHESTRATE_BASE_URL is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPWorkflowClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type workflowResponse struct {
	RunID  string         `json:"run_id"`
	Status string         `json:"status"`
	Output map[string]any `json:"output"`
	Error  string         `json:"error"`
}

// ExecuteWorkflow runs the workflow named after the job kind.
func (c *HTTPWorkflowClient) ExecuteWorkflow(ctx context.Context, kind Kind, payload map[string]any) (string, map[string]any, error) {
	data, err := json.Marshal(map[string]any{"input": payload})
	if err != nil {
		return "", nil, err
	}

	url := c.baseURL + "/v1/workflows/" + string(kind) + "/run"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return "", nil, fmt.Errorf("workflow request timeout: %w", err)
		}
		return "", nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", nil, fmt.Errorf("workflow engine: http status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed workflowResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", nil, fmt.Errorf("workflow response parse: %w", err)
	}
	if parsed.Error != "" {
		return "", nil, fmt.Errorf("workflow engine: %s", parsed.Error)
	}
	return parsed.RunID, parsed.Output, nil
}

// LogWorkflowClient records executions without calling out anywhere.
// Used in development when the workflow engine is not configured.
type LogWorkflowClient struct{}

// ExecuteWorkflow logs the would-be execution and reports success.
func (LogWorkflowClient) ExecuteWorkflow(ctx context.Context, kind Kind, payload map[string]any) (string, map[string]any, error) {
	_ = ctx
	telemetry.Info("workflow_noop", map[string]any{
		"kind":    string(kind),
		"payload": payload,
	})
	return "local-" + string(kind), map[string]any{"noop": true}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ WorkflowClient = (*HTTPWorkflowClient)(nil)
