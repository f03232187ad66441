package httpclient

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestClient_Do(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := New(DefaultConfig())
	resp, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClient_Post_SetsContentType(t *testing.T) {
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(DefaultConfig())
	resp, err := client.Post(context.Background(), server.URL, "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "application/json", gotContentType)
}

func TestClient_Do_NoRetry(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(DefaultConfig())
	resp, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestClient_Do_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := New(DefaultConfig())
	_, err := client.Get(context.Background(), server.URL)
	assert.Error(t, err)
}

func TestCircuitBreaker_NonOKResponsesDoNotTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer server.Close()

	cb := NewCircuitBreakerClient(New(DefaultConfig()), DefaultCircuitBreakerConfig("test-5xx"), testLogger())

	for i := 0; i < 10; i++ {
		resp, err := cb.Do(context.Background(), mustRequest(t, server.URL))
		require.NoError(t, err)

		// The body must still be readable downstream.
		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		require.NoError(t, readErr)
		assert.Equal(t, `{"error":"boom"}`, string(body))
	}

	assert.Equal(t, "closed", cb.State().String())
}

func TestCircuitBreaker_TransportFailuresTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	cfg := DefaultCircuitBreakerConfig("test-trip")
	cfg.MinRequests = 3
	cb := NewCircuitBreakerClient(New(Config{Timeout: time.Second, MaxConnsPerHost: 10}), cfg, testLogger())

	for i := 0; i < 5; i++ {
		_, _ = cb.Do(context.Background(), mustRequest(t, url))
	}

	assert.Equal(t, "open", cb.State().String())

	_, err := cb.Do(context.Background(), mustRequest(t, url))
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_FallbackWhenOpen(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	cfg := DefaultCircuitBreakerConfig("test-fallback")
	cfg.MinRequests = 3
	cb := NewCircuitBreakerClient(New(Config{Timeout: time.Second, MaxConnsPerHost: 10}), cfg, testLogger())

	for i := 0; i < 5; i++ {
		_, _ = cb.Do(context.Background(), mustRequest(t, url))
	}
	require.Equal(t, "open", cb.State().String())

	withFallback := cb.WithFallback(func(ctx context.Context, err error) (*http.Response, error) {
		rec := httptest.NewRecorder()
		rec.WriteHeader(http.StatusServiceUnavailable)
		return rec.Result(), nil
	})

	resp, err := withFallback.Do(context.Background(), mustRequest(t, url))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func mustRequest(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, http.NoBody)
	require.NoError(t, err)
	return req
}
