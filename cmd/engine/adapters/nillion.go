package adapters

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chigozzdevv/zecflow-sub000/common/config"
	"github.com/chigozzdevv/zecflow-sub000/common/logger"
)

// NillionClient talks to the private-compute service. Graph submissions
// run on ephemeral workloads that are always torn down, success or
// failure.
type NillionClient struct {
	rest         *restClient
	pollInterval time.Duration
	pollAttempts int
	log          *logger.Logger
}

// NewNillionClient creates a client from adapter configuration
func NewNillionClient(cfg config.AdapterConfig, log *logger.Logger) *NillionClient {
	return &NillionClient{
		rest:         newRESTClient(cfg.NillionBaseURL, cfg.NillionAPIKey, cfg.HTTPTimeout, log),
		pollInterval: cfg.MPCPollInterval,
		pollAttempts: cfg.MPCPollAttempts,
		log:          log,
	}
}

type workloadEnvelope struct {
	Response    any            `json:"response"`
	Attestation map[string]any `json:"attestation"`
	Result      any            `json:"result"`
}

// Execute forwards input as the POST body to the resolved workload URL
func (c *NillionClient) Execute(ctx context.Context, workloadID string, input any, relativePath string) (*MPCResult, error) {
	if workloadID == "" {
		return nil, fmt.Errorf("unknown workload: empty workload id")
	}
	if relativePath == "" {
		relativePath = "/"
	}
	if !strings.HasPrefix(relativePath, "/") {
		relativePath = "/" + relativePath
	}

	var envelope workloadEnvelope
	path := fmt.Sprintf("/v1/workloads/%s/invoke%s", workloadID, relativePath)
	if err := c.rest.doJSON(ctx, http.MethodPost, path, input, &envelope); err != nil {
		return nil, err
	}

	result := envelope.Result
	if result == nil {
		result = envelope.Response
	}

	return &MPCResult{
		Response:    envelope.Response,
		Attestation: envelope.Attestation,
		Result:      result,
	}, nil
}

type createWorkloadResponse struct {
	WorkloadID string `json:"workload_id"`
	Tier       string `json:"tier"`
}

type graphOutputResponse struct {
	Status      string         `json:"status"`
	Output      map[string]any `json:"output"`
	Attestation map[string]any `json:"attestation"`
	Error       string         `json:"error"`
}

// ExecuteBlockGraph submits a computation graph as one job: create an
// ephemeral workload on an adapter-chosen tier, poll for output with
// bounded retries, collect attestation, and tear the workload down on
// every exit path.
func (c *NillionClient) ExecuteBlockGraph(ctx context.Context, g *MPCGraph, inputs map[string]any, runTag string) (*MPCGraphResult, error) {
	if g == nil || len(g.Nodes) == 0 {
		return nil, fmt.Errorf("empty computation graph")
	}

	var created createWorkloadResponse
	createReq := map[string]any{
		"kind":   "block-graph",
		"tier":   tierFor(len(g.Nodes)),
		"tag":    runTag,
		"graph":  g,
		"inputs": inputs,
	}
	if err := c.rest.doJSON(ctx, http.MethodPost, "/v1/workloads", createReq, &created); err != nil {
		return nil, fmt.Errorf("create graph workload: %w", err)
	}

	// Scoped acquisition: the workload handle is released no matter how
	// polling ends. Teardown uses a fresh context so cancellation of
	// the run cannot leak the workload.
	defer func() {
		teardownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		path := fmt.Sprintf("/v1/workloads/%s", created.WorkloadID)
		if err := c.rest.doJSON(teardownCtx, http.MethodDelete, path, nil, nil); err != nil {
			c.log.Warn("graph workload teardown failed", "workload_id", created.WorkloadID, "error", err)
		}
	}()

	return c.pollOutput(ctx, created.WorkloadID)
}

func (c *NillionClient) pollOutput(ctx context.Context, workloadID string) (*MPCGraphResult, error) {
	path := fmt.Sprintf("/v1/workloads/%s/output", workloadID)

	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var out graphOutputResponse
		if err := c.rest.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
			return nil, err
		}

		switch out.Status {
		case "completed":
			return &MPCGraphResult{Output: out.Output, Attestation: out.Attestation}, nil
		case "failed":
			return nil, fmt.Errorf("graph computation failed: %s", out.Error)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	return nil, fmt.Errorf("graph computation timed out after %d attempts", c.pollAttempts)
}

// tierFor picks a compute tier by graph size
func tierFor(nodes int) string {
	switch {
	case nodes <= 4:
		return "small"
	case nodes <= 16:
		return "medium"
	default:
		return "large"
	}
}
