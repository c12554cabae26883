package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gferrors "github.com/vnykmshr/rateguard/pkg/common/errors"
)

func TestHTTPGenerator_Generate(t *testing.T) {
	var gotPath, gotKey, gotQuery string
	var gotBody generateRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		gotQuery = r.URL.RawQuery
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"1. Why? "},{"text":"2. How?"}]}}]}`))
	}))
	defer srv.Close()

	g := NewHTTPGenerator(srv.URL, " secret ")
	text, err := g.Generate(context.Background(), "gemini-2.0-flash", "hello")
	require.NoError(t, err)

	assert.Equal(t, "1. Why? 2. How?", text)
	assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.Empty(t, gotQuery)
	require.Len(t, gotBody.Contents, 1)
	assert.Equal(t, "hello", gotBody.Contents[0].Parts[0].Text)
}

func TestHTTPGenerator_DefaultModel(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	defer srv.Close()

	_, err := NewHTTPGenerator(srv.URL, "k").Generate(context.Background(), "", "p")
	require.NoError(t, err)
	assert.Equal(t, "/v1beta/models/"+DefaultModel+":generateContent", gotPath)
}

func TestHTTPGenerator_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantAPI    bool
		wantLimit  bool
		wantSubstr string
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: "quota exceeded", wantAPI: true, wantLimit: true},
		{name: "server error", status: http.StatusInternalServerError, body: "boom", wantAPI: true},
		{name: "bad json", status: http.StatusOK, body: "{", wantSubstr: "decode response"},
		{name: "no candidates", status: http.StatusOK, body: `{"candidates":[]}`, wantSubstr: "no candidates"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewHTTPGenerator(srv.URL, "k").Generate(context.Background(), "m", "p")
			require.Error(t, err)

			var apiErr *APIError
			assert.Equal(t, tt.wantAPI, errors.As(err, &apiErr))
			if tt.wantAPI {
				assert.Equal(t, tt.status, apiErr.StatusCode)
				assert.Equal(t, tt.body, apiErr.Body)
			}
			assert.Equal(t, tt.wantLimit, errors.Is(err, gferrors.ErrRateLimited))
			assert.Equal(t, tt.wantLimit, gferrors.IsRetryable(err))
			if tt.wantSubstr != "" {
				assert.Contains(t, err.Error(), tt.wantSubstr)
			}
		})
	}
}

func TestHTTPGenerator_RequiresKey(t *testing.T) {
	_, err := NewHTTPGenerator("", "").Generate(context.Background(), "m", "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key is required")
}

func TestHTTPGenerator_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	g := NewHTTPGenerator(srv.URL, "k")
	g.Timeout = 20 * time.Millisecond

	_, err := g.Generate(context.Background(), "m", "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEchoGenerator(t *testing.T) {
	text, err := EchoGenerator{}.Generate(context.Background(), "m", "hi")
	require.NoError(t, err)
	assert.Equal(t, "[m] hi", text)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = EchoGenerator{}.Generate(ctx, "m", "hi")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPGenerator_KeyNotInErrors(t *testing.T) {
	const key = "SECRET-KEY-123"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, err := NewHTTPGenerator(addr, key).Generate(context.Background(), "m", "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
	assert.NotContains(t, err.Error(), key)
}

func TestHTTPGenerator_ResponseLimit(t *testing.T) {
	large := `{"candidates":[{"content":{"parts":[{"text":"` + strings.Repeat("x", 64) + `"}]}}]}`

	tests := []struct {
		name       string
		status     int
		wantAPI    bool
		wantSubstr string
	}{
		{name: "oversized success", status: http.StatusOK, wantSubstr: "exceeds 32 bytes"},
		{name: "oversized error body truncated", status: http.StatusBadGateway, wantAPI: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(large))
			}))
			defer srv.Close()

			g := NewHTTPGenerator(srv.URL, "k")
			g.MaxResponseBytes = 32
			_, err := g.Generate(context.Background(), "m", "p")
			require.Error(t, err)

			if tt.wantAPI {
				var apiErr *APIError
				require.True(t, errors.As(err, &apiErr))
				assert.Len(t, apiErr.Body, 32)
				return
			}
			assert.Contains(t, err.Error(), tt.wantSubstr)
		})
	}
}
