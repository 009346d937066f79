package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chigozzdevv/zecflow-sub000/common/logger"
)

// HTTPAdapter performs generic connector and custom HTTP action calls
type HTTPAdapter struct {
	client *http.Client
	log    *logger.Logger
}

// NewHTTPAdapter creates an adapter with the given default timeout
func NewHTTPAdapter(timeout time.Duration, log *logger.Logger) *HTTPAdapter {
	return &HTTPAdapter{
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Do executes the request and returns the decoded response body. JSON
// bodies decode to maps/slices; anything else is returned as a string.
// Non-2xx responses are errors carrying the status and body.
func (a *HTTPAdapter) Do(ctx context.Context, req *HTTPRequest) (any, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("missing request URL")
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var reader io.Reader
	if req.Body != nil {
		switch body := req.Body.(type) {
		case string:
			reader = bytes.NewReader([]byte(body))
		case []byte:
			reader = bytes.NewReader(body)
		default:
			payload, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("marshal request body: %w", err)
			}
			reader = bytes.NewReader(payload)
		}
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	a.log.Debug("connector request completed",
		"method", method,
		"url", req.URL,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: %d %s", method, req.URL, resp.StatusCode, bytes.TrimSpace(respBody))
	}

	var decoded any
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return string(respBody), nil
	}
	return decoded, nil
}
