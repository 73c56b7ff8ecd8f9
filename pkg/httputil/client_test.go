package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/dqpipe/backend/pkg/config"
	"github.com/wonny/dqpipe/backend/pkg/logger"
)

var alertPayload = map[string]string{"ingest_date": "2025-12-10"}

func newTestClient() *Client {
	return New(&config.Config{Env: "test"}, logger.NewNop())
}

func TestNew(t *testing.T) {
	client := newTestClient()

	if client.httpClient == nil {
		t.Error("Expected http.Client to be initialized")
	}

	if client.retryConfig.MaxRetries != 3 {
		t.Errorf("Expected MaxRetries=3, got %d", client.retryConfig.MaxRetries)
	}
}

func TestNewWithTimeout(t *testing.T) {
	client := NewWithTimeout(&config.Config{Env: "test"}, logger.NewNop(), 5*time.Second)

	if client.httpClient.Timeout != 5*time.Second {
		t.Errorf("Expected timeout=5s, got %v", client.httpClient.Timeout)
	}
}

func TestWithRetry(t *testing.T) {
	client := newTestClient().WithRetry(5, 2*time.Second)

	if client.retryConfig.MaxRetries != 5 {
		t.Errorf("Expected MaxRetries=5, got %d", client.retryConfig.MaxRetries)
	}

	if client.retryConfig.InitialDelay != 2*time.Second {
		t.Errorf("Expected InitialDelay=2s, got %v", client.retryConfig.InitialDelay)
	}
}

func TestDisableRetry(t *testing.T) {
	if newTestClient().DisableRetry().retryConfig.Enabled {
		t.Error("Expected retry to be disabled")
	}
}

func TestPostJSON_MarshalError(t *testing.T) {
	_, err := newTestClient().PostJSON(context.Background(), "http://127.0.0.1:0", map[string]interface{}{"bad": make(chan int)})
	if err == nil {
		t.Fatal("Expected marshal error")
	}
	if !strings.Contains(err.Error(), "marshal") {
		t.Errorf("Expected marshal error, got %v", err)
	}
}

func TestPostJSON_RetryReplaysBody(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected Content-Type=application/json, got %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"ingest_date":"2025-12-10"}` {
			t.Errorf("attempt %d: unexpected body %q", atomic.LoadInt32(&attempts)+1, body)
		}

		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := newTestClient().WithRetry(3, 10*time.Millisecond)
	resp, err := client.PostJSON(context.Background(), server.URL, map[string]string{"ingest_date": "2025-12-10"})
	if err != nil {
		t.Fatalf("POST request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("Expected status 202, got %d", resp.StatusCode)
	}
	if n := atomic.LoadInt32(&attempts); n != 3 {
		t.Errorf("Expected 3 attempts, got %d", n)
	}
}

func TestRetryGivesUp(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	resp, err := newTestClient().WithRetry(2, time.Millisecond).PostJSON(context.Background(), server.URL, alertPayload)
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("Expected final 502, got %d", resp.StatusCode)
	}
	if n := atomic.LoadInt32(&attempts); n != 3 {
		t.Errorf("Expected 3 attempts, got %d", n)
	}
}

func TestWithLimiter_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	// burst 1, then one token per hour
	client := newTestClient().WithLimiter(rate.NewLimiter(rate.Every(time.Hour), 1))

	resp, err := client.PostJSON(context.Background(), server.URL, alertPayload)
	if err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := client.PostJSON(ctx, server.URL, alertPayload); err == nil {
		t.Error("Expected throttled request to fail with the context deadline")
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		statusCode int
		want       bool
	}{
		{200, false},
		{400, false},
		{404, false},
		{429, true}, // Too Many Requests - should retry
		{500, true},
		{503, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.statusCode), func(t *testing.T) {
			if got := IsRetryableError(tt.statusCode); got != tt.want {
				t.Errorf("IsRetryableError(%d) = %v, want %v", tt.statusCode, got, tt.want)
			}
		})
	}
}
