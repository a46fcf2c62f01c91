package upstream

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func fastRetryConfig() Config {
	return Config{
		Retry: RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2,
		},
	}
}

func TestGetRetriesOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("tile-bytes"))
	}))
	defer srv.Close()

	c := New(fastRetryConfig())
	resp, err := c.Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.Status)
	}
	if string(resp.Body) != "tile-bytes" {
		t.Errorf("body = %q, want tile-bytes", resp.Body)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestGetGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(fastRetryConfig())
	resp, err := c.Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("get should not error on exhausted retries, returns last response: %v", err)
	}
	if resp.Status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.Status)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (1 initial + 2 retries)", calls)
	}
}

func TestGetDecompressesGzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write([]byte("decompressed-body"))
	gz.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	c := New(fastRetryConfig())
	resp, err := c.Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(resp.Body) != "decompressed-body" {
		t.Errorf("body = %q, want decompressed-body", resp.Body)
	}
}

func TestGetMergesHeaders(t *testing.T) {
	var gotAccept, gotCustom, gotHost string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotCustom = r.Header.Get("X-Source-Token")
		gotHost = r.Header.Get("Host")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := fastRetryConfig()
	cfg.RequestHeaders = map[string]string{"X-Source-Token": "abc123"}
	c := New(cfg)

	passthrough := http.Header{}
	passthrough.Set("Host", "should-be-stripped")
	passthrough.Set("Accept", "text/custom")

	if _, err := c.Get(context.Background(), srv.URL, passthrough); err != nil {
		t.Fatalf("get: %v", err)
	}
	if gotAccept != "text/custom" {
		t.Errorf("Accept = %q, want pass-through override", gotAccept)
	}
	if gotCustom != "abc123" {
		t.Errorf("X-Source-Token = %q, want abc123", gotCustom)
	}
	if gotHost != "" {
		t.Errorf("Host should be stripped, got %q", gotHost)
	}
}

func TestMergeHeadersLayering(t *testing.T) {
	source := map[string]string{"Accept": "source/override"}
	pass := http.Header{}
	pass.Set("X-Client", "yes")
	pass.Set("Connection", "close")

	merged := MergeHeaders(source, pass)
	if merged["Accept"] != "source/override" {
		t.Errorf("Accept = %q, want source override", merged["Accept"])
	}
	if merged["X-Client"] != "yes" {
		t.Errorf("X-Client = %q, want yes", merged["X-Client"])
	}
	if _, ok := merged["Connection"]; !ok {
		t.Errorf("Connection should retain default value since passthrough value is stripped")
	}
	if merged["Connection"] != "keep-alive" {
		t.Errorf("Connection = %q, want default keep-alive (passthrough stripped)", merged["Connection"])
	}
}
