package adapters

import (
	"context"
	"fmt"
	"net/http"

	"github.com/chigozzdevv/zecflow-sub000/common/config"
	"github.com/chigozzdevv/zecflow-sub000/common/logger"
)

// NilaiClient runs private LLM inference. The service speaks a
// chat-completions dialect whose responses carry a signature and
// verifying key over the message; the engine passes that evidence
// through without inspecting it.
type NilaiClient struct {
	rest  *restClient
	model string
	log   *logger.Logger
}

// NewNilaiClient creates a client from adapter configuration
func NewNilaiClient(cfg config.AdapterConfig, log *logger.Logger) *NilaiClient {
	return &NilaiClient{
		rest:  newRESTClient(cfg.NilaiBaseURL, cfg.NilaiAPIKey, cfg.HTTPTimeout, log),
		model: cfg.NilaiModel,
		log:   log,
	}
}

type nilaiChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Signature    string         `json:"signature"`
	VerifyingKey string         `json:"verifying_key"`
	Attestation  map[string]any `json:"attestation"`
}

// RunInference sends a single-turn prompt and returns the signed reply
func (c *NilaiClient) RunInference(ctx context.Context, prompt string) (*LLMResult, error) {
	req := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	var resp nilaiChatResponse
	if err := c.rest.doJSON(ctx, http.MethodPost, "/v1/chat/completions", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("inference returned no choices")
	}

	return &LLMResult{
		Message:      resp.Choices[0].Message.Content,
		Signature:    resp.Signature,
		VerifyingKey: resp.VerifyingKey,
		Attestation:  resp.Attestation,
		Raw: map[string]any{
			"model": c.model,
		},
	}, nil
}
