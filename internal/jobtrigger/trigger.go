// Package jobtrigger requests execution from the external build
// service that actually runs a marker's test suite.
package jobtrigger

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
)

// Request carries the merged build inputs. Env holds the final
// environment-variable set after project-type mapping.
type Request struct {
	MarkerID  string            `json:"marker_id"`
	RunID     string            `json:"run_id"`
	SourceRef string            `json:"source_ref"`
	Branch    string            `json:"branch,omitempty"`
	Region    string            `json:"region,omitempty"`
	Env       map[string]string `json:"env"`
}

// Trigger starts the external job and returns its opaque handle.
type Trigger interface {
	TriggerBuild(ctx context.Context, req Request) (string, error)
}

// HTTPTrigger talks to the build service over HTTP with a bounded
// per-call timeout.
type HTTPTrigger struct {
	baseURL string
	client  *http.Client
}

func NewHTTPTrigger(baseURL string, timeout time.Duration) (*HTTPTrigger, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("build service url is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPTrigger{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (t *HTTPTrigger) TriggerBuild(ctx context.Context, req Request) (string, error) {
	if t == nil || t.client == nil {
		return "", errors.New("trigger not initialized")
	}
	if strings.TrimSpace(req.MarkerID) == "" {
		return "", errors.New("marker id is required")
	}
	if req.Env == nil {
		req.Env = map[string]string{}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode build request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/builds", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("trigger build: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("trigger build: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		BuildID string `json:"build_id"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("decode build response: %w", err)
	}
	if strings.TrimSpace(out.BuildID) == "" {
		return "", errors.New("build service returned no build id")
	}
	return out.BuildID, nil
}
