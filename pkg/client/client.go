// Package client calls a text generation API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gfcontext "github.com/vnykmshr/rateguard/pkg/common/context"
	gferrors "github.com/vnykmshr/rateguard/pkg/common/errors"
)

// DefaultBaseURL is the generateContent endpoint root.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// DefaultMaxResponseBytes caps how much of a response body is read.
const DefaultMaxResponseBytes = 4 << 20

const apiKeyHeader = "x-goog-api-key"

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("generate: status %d: %s", e.StatusCode, e.Body)
}

// Unwrap lets callers match throttling responses with errors.Is.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusTooManyRequests {
		return gferrors.ErrRateLimited
	}
	return nil
}

// HTTPGenerator calls the generateContent REST endpoint.
type HTTPGenerator struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration

	// MaxResponseBytes bounds the response body. Zero means DefaultMaxResponseBytes.
	MaxResponseBytes int64
}

// NewHTTPGenerator returns a generator with defaults applied.
func NewHTTPGenerator(baseURL, apiKey string) *HTTPGenerator {
	u := strings.TrimSpace(baseURL)
	if u == "" {
		u = DefaultBaseURL
	}
	return &HTTPGenerator{
		BaseURL: u,
		APIKey:  strings.TrimSpace(apiKey),
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Generate sends prompt to model and returns the concatenated text of the
// first candidate.
func (g *HTTPGenerator) Generate(ctx context.Context, model, prompt string) (string, error) {
	if g == nil {
		return "", fmt.Errorf("generator not configured")
	}
	if g.APIKey == "" {
		return "", fmt.Errorf("api key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	ctx, cancel := gfcontext.WithOptionalTimeout(ctx, g.Timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	// The key travels in a header so it never appears in a *url.Error.
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(g.BaseURL, "/"), url.PathEscape(model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, g.APIKey)

	client := g.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	limit := g.MaxResponseBytes
	if limit <= 0 {
		limit = DefaultMaxResponseBytes
	}
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	truncated := int64(len(respBody)) > limit
	if truncated {
		respBody = respBody[:limit]
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	if truncated {
		return "", fmt.Errorf("read response: body exceeds %d bytes", limit)
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		return "", fmt.Errorf("decode response: no candidates")
	}

	var sb strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// EchoGenerator answers without network access. It is used for dry runs.
type EchoGenerator struct{}

// Generate returns a deterministic response derived from the prompt.
func (EchoGenerator) Generate(ctx context.Context, model, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("[%s] %s", model, prompt), nil
}
