package openai

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestRetryTransport(attempts int) *retryTransport {
	return &retryTransport{
		next:        http.DefaultTransport,
		maxAttempts: attempts,
		baseDelay:   time.Millisecond,
	}
}

func TestRetryTransport_RecoversAfterServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"ping":true}` {
			t.Errorf("retried request body = %q, want original payload", string(body))
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := &http.Client{Transport: newTestRetryTransport(5)}

	req, _ := http.NewRequest("POST", server.URL, bytes.NewReader([]byte(`{"ping":true}`)))
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server saw %d calls, want 3", got)
	}
}

func TestRetryTransport_RetriesRateLimit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := &http.Client{Transport: newTestRetryTransport(3)}

	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("server saw %d calls, want 2", got)
	}
}

func TestRetryTransport_DoesNotRetryClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := &http.Client{Transport: newTestRetryTransport(5)}

	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server saw %d calls, want 1", got)
	}
}

func TestRetryTransport_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := &http.Client{Transport: newTestRetryTransport(4)}

	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 4 {
		t.Errorf("server saw %d calls, want 4", got)
	}
}

func TestRetryTransport_TimeoutIsPerAttempt(t *testing.T) {
	// A slow provider must not consume the whole schedule's budget on the
	// first attempt: every retry gets a fresh deadline.
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	transport := &retryTransport{
		next:           http.DefaultTransport,
		maxAttempts:    3,
		baseDelay:      time.Millisecond,
		attemptTimeout: 50 * time.Millisecond,
	}
	client := &http.Client{Transport: transport}

	start := time.Now()
	_, err := client.Get(server.URL)
	if err == nil {
		t.Fatal("Expected error from persistently slow server, got nil")
	}

	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server saw %d attempts, want all 3", got)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("exchange took %v, attempts are not individually bounded", elapsed)
	}
}

func TestRetryTransport_FullScheduleSurvivesAttemptTimeout(t *testing.T) {
	// Fast failures with a configured attempt budget must still exhaust the
	// whole schedule rather than dying at an overall deadline.
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	transport := &retryTransport{
		next:           http.DefaultTransport,
		maxAttempts:    retryMaxAttempts,
		baseDelay:      time.Millisecond,
		attemptTimeout: time.Second,
	}
	client := &http.Client{Transport: transport}

	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != retryMaxAttempts {
		t.Errorf("server saw %d attempts, want %d", got, retryMaxAttempts)
	}
}

func TestRetryTransport_ContextCancelDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	transport := &retryTransport{
		next:        http.DefaultTransport,
		maxAttempts: 10,
		baseDelay:   10 * time.Second,
	}
	client := &http.Client{Transport: transport}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	req, _ := http.NewRequestWithContext(ctx, "GET", server.URL, nil)
	start := time.Now()
	_, err := client.Do(req)
	if err == nil {
		t.Fatal("Expected cancellation error, got nil")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("cancellation took %v, backoff was not interrupted", elapsed)
	}
}
