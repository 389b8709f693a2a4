package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDefaultClient_UserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := DefaultClient()
	_, _ = client.GetBody(context.Background(), server.URL)

	if gotUA != "formula" {
		t.Errorf("default User-Agent = %q, want %q", gotUA, "formula")
	}
}

func TestClient_WithUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	base := DefaultClient()
	client := base.WithUserAgent("custom-agent/2.0")
	_, _ = client.GetBody(context.Background(), server.URL)

	if gotUA != "custom-agent/2.0" {
		t.Errorf("User-Agent = %q, want %q", gotUA, "custom-agent/2.0")
	}
	if base.userAgent != "formula" {
		t.Errorf("WithUserAgent mutated the original client")
	}
}

func TestClient_Head(t *testing.T) {
	var gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	status, err := DefaultClient().Head(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if gotMethod != http.MethodHead {
		t.Errorf("method = %s, want HEAD", gotMethod)
	}
	if status != http.StatusNoContent {
		t.Errorf("status = %d, want 204", status)
	}
}

func TestClient_GetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"python@3.12","versions":{"stable":"3.12.8"}}`))
	}))
	defer server.Close()

	var resp struct {
		Name     string `json:"name"`
		Versions struct {
			Stable string `json:"stable"`
		} `json:"versions"`
	}
	if err := DefaultClient().GetJSON(context.Background(), server.URL, &resp); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if resp.Name != "python@3.12" || resp.Versions.Stable != "3.12.8" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestClient_GetJSONInvalid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	var v map[string]any
	if err := DefaultClient().GetJSON(context.Background(), server.URL, &v); err == nil {
		t.Error("expected decode error")
	}
}

func TestClient_NotFoundIsNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewClient(WithBaseDelay(time.Millisecond)).GetBody(context.Background(), server.URL)

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %T: %v", err, err)
	}
	if !httpErr.IsNotFound() {
		t.Errorf("IsNotFound() = false for status %d", httpErr.StatusCode)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	body, err := NewClient(WithBaseDelay(time.Millisecond)).GetBody(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("GetBody failed: %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("body = %q", body)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestClient_MaxRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(WithMaxRetries(2), WithBaseDelay(time.Millisecond))
	_, err := client.GetBody(context.Background(), server.URL)

	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected *RateLimitError, got %T: %v", err, err)
	}
	if rateErr.RetryAfter != 7 {
		t.Errorf("RetryAfter = %d, want 7", rateErr.RetryAfter)
	}

	// Initial attempt + 2 retries = 3 total
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestNotFoundError(t *testing.T) {
	err := &NotFoundError{Ecosystem: "brew", Name: "python", Version: "3.99"}
	if !errors.Is(err, ErrNotFound) {
		t.Error("NotFoundError should unwrap to ErrNotFound")
	}
	if err.Error() != "brew: package python version 3.99 not found" {
		t.Errorf("Error() = %q", err.Error())
	}
	err.Version = ""
	if err.Error() != "brew: package python not found" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestBuildURLs(t *testing.T) {
	urls := &BaseURLs{
		RegistryFn: func(name, version string) string { return "https://example.com/" + name },
	}

	got := BuildURLs(urls, "tool", "1.0")
	if got["registry"] != "https://example.com/tool" {
		t.Errorf("registry = %q", got["registry"])
	}
	if got["purl"] != "pkg:generic/tool@1.0" {
		t.Errorf("purl = %q", got["purl"])
	}
	if _, ok := got["download"]; ok {
		t.Error("empty download URL should be omitted")
	}
	if p := urls.PURL("tool", ""); p != "pkg:generic/tool" {
		t.Errorf("PURL without version = %q", p)
	}
}
