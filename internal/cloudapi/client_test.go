package cloudapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	client := NewClient("test-token")

	if client.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %s, want %s", client.baseURL, DefaultBaseURL)
	}
	if client.httpClient == nil {
		t.Error("httpClient not initialized")
	}
	if client.retry.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", client.retry.MaxRetries)
	}
	if client.retry.RetryDelay != time.Second {
		t.Errorf("RetryDelay = %v, want 1s", client.retry.RetryDelay)
	}
	if client.Units == nil || client.Volumes == nil || client.Snapshots == nil {
		t.Error("service groups not initialized")
	}
}

func TestClientOptions(t *testing.T) {
	client := NewClient("test-token",
		WithBaseURL("https://custom.api.dev/"),
		WithTimeout(60*time.Second),
		WithRetryConfig(RetryConfig{MaxRetries: 5, RetryDelay: 2 * time.Second}),
	)

	if client.baseURL != "https://custom.api.dev" {
		t.Errorf("baseURL = %s, want trailing slash trimmed", client.baseURL)
	}
	if client.httpClient.Timeout != 60*time.Second {
		t.Errorf("timeout = %v, want 60s", client.httpClient.Timeout)
	}
	if client.retry.MaxRetries != 5 || client.retry.RetryDelay != 2*time.Second {
		t.Errorf("retry = %+v, want 5/2s", client.retry)
	}
}

func TestNewRequest(t *testing.T) {
	client := NewClient("test-token")

	req, err := client.NewRequest(context.Background(), "GET", "/units", nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}

	if req.Method != "GET" {
		t.Errorf("method = %s, want GET", req.Method)
	}
	if got := req.URL.String(); got != DefaultBaseURL+"/units" {
		t.Errorf("URL = %s", got)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer test-token" {
		t.Errorf("Authorization = %q, want bearer token", got)
	}
	if got := req.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := req.Header.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q", got)
	}
}

func TestNewDataRequest_RegionTemplate(t *testing.T) {
	client := NewClient("test-token")

	req, err := client.NewDataRequest(context.Background(), "us-east", "GET", "/units/u1/logs", nil)
	if err != nil {
		t.Fatalf("NewDataRequest failed: %v", err)
	}
	want := "https://data.us-east.skybox.dev/v1/units/u1/logs"
	if got := req.URL.String(); got != want {
		t.Errorf("URL = %s, want %s", got, want)
	}
}

func TestNewDataRequest_VerbatimURL(t *testing.T) {
	client := NewClient("test-token", WithDataURL("http://127.0.0.1:9999"))

	req, err := client.NewDataRequest(context.Background(), "us-east", "GET", "/units/u1/logs", nil)
	if err != nil {
		t.Fatalf("NewDataRequest failed: %v", err)
	}
	if got := req.URL.String(); got != "http://127.0.0.1:9999/units/u1/logs" {
		t.Errorf("URL = %s", got)
	}
}

func TestDo_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	client := NewClient("test-token", WithBaseURL(server.URL))

	req, _ := client.NewRequest(context.Background(), "GET", "/test", nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestDo_RetryOn5xx(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient("test-token",
		WithBaseURL(server.URL),
		WithRetryConfig(RetryConfig{MaxRetries: 3, RetryDelay: time.Millisecond}),
	)

	req, _ := client.NewRequest(context.Background(), "GET", "/test", nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200 after retries", resp.StatusCode)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDo_NoRetryOn4xx(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient("test-token",
		WithBaseURL(server.URL),
		WithRetryConfig(RetryConfig{MaxRetries: 3, RetryDelay: time.Millisecond}),
	)

	req, _ := client.NewRequest(context.Background(), "GET", "/test", nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on 4xx)", attempts)
	}
}

func TestDo_ExhaustedRetriesReturnLastResponse(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient("test-token",
		WithBaseURL(server.URL),
		WithRetryConfig(RetryConfig{MaxRetries: 2, RetryDelay: time.Millisecond}),
	)

	req, _ := client.NewRequest(context.Background(), "GET", "/test", nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3 (initial + 2 retries)", attempts)
	}
}

// flakyTransport fails the first N round trips at the transport level,
// then delegates.
type flakyTransport struct {
	failures int
	calls    int
	base     http.RoundTripper
}

func (t *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.calls++
	if t.calls <= t.failures {
		return nil, errors.New("connection reset by peer")
	}
	return t.base.RoundTrip(req)
}

func TestDo_RetriesTransportErrors(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport := &flakyTransport{failures: 2, base: http.DefaultTransport}
	client := NewClient("test-token",
		WithBaseURL(server.URL),
		WithHTTPClient(&http.Client{Transport: transport}),
		WithRetryConfig(RetryConfig{MaxRetries: 3, RetryDelay: time.Millisecond}),
	)

	req, _ := client.NewRequest(context.Background(), "GET", "/test", nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do failed after transient errors: %v", err)
	}
	defer resp.Body.Close()

	if transport.calls != 3 {
		t.Errorf("transport calls = %d, want 3", transport.calls)
	}
	if hits != 1 {
		t.Errorf("server hits = %d, want 1", hits)
	}
}

func TestDo_ExhaustedTransportErrorIsNetworkError(t *testing.T) {
	transport := &flakyTransport{failures: 100, base: http.DefaultTransport}
	client := NewClient("test-token",
		WithBaseURL("http://127.0.0.1:0"),
		WithHTTPClient(&http.Client{Transport: transport}),
		WithRetryConfig(RetryConfig{MaxRetries: 2, RetryDelay: time.Millisecond}),
	)

	req, _ := client.NewRequest(context.Background(), "GET", "/test", nil)
	_, err := client.Do(req)
	if err == nil {
		t.Fatal("expected error")
	}

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("error type = %T, want *NetworkError", err)
	}
	if !netErr.Transient() {
		t.Error("NetworkError.Transient() = false, want true")
	}
	if transport.calls != 3 {
		t.Errorf("transport calls = %d, want 3", transport.calls)
	}
}

func TestDo_ReplaysBodyOnRetry(t *testing.T) {
	var bodies []string
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(body))
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"id": "u1", "status": "running"}`))
	}))
	defer server.Close()

	client := NewClient("test-token",
		WithBaseURL(server.URL),
		WithRetryConfig(RetryConfig{MaxRetries: 3, RetryDelay: time.Millisecond}),
	)

	unit, err := client.Units.Create(context.Background(), CreateUnitRequest{
		Name:       "skybox-fix-auth",
		VolumeSlug: "skybox-vol-fix-auth",
		Region:     "us-east",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if unit.ID != "u1" {
		t.Errorf("unit.ID = %q, want u1", unit.ID)
	}

	if len(bodies) != 3 {
		t.Fatalf("got %d request bodies, want 3", len(bodies))
	}
	for i, body := range bodies {
		if body != bodies[0] || body == "" {
			t.Errorf("attempt %d body = %q, want identical non-empty payloads", i+1, body)
		}
	}
}
