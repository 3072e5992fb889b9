package httpcache

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAPICallRoundTrip(t *testing.T) {
	c := NewMemoryOnly(time.Hour, testLogger())

	if _, found := c.APICall("search", []byte(`{"q":"a"}`)); found {
		t.Fatal("empty cache reported a hit")
	}
	if err := c.SetAPICall("search", []byte(`{"q":"a"}`), []byte("result")); err != nil {
		t.Fatalf("SetAPICall() error = %v", err)
	}

	data, found := c.APICall("search", []byte(`{"q":"a"}`))
	if !found || string(data) != "result" {
		t.Errorf("APICall() = %q, %v; want result, true", data, found)
	}
	if _, found := c.APICall("search", []byte(`{"q":"b"}`)); found {
		t.Error("different payload should miss")
	}
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	c, err := New(ctx, dir, time.Hour, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.SetAPICall("GET https://example.com/a", nil, []byte("page")); err != nil {
		t.Fatalf("SetAPICall() error = %v", err)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := New(ctx, dir, time.Hour, testLogger())
	if err != nil {
		t.Fatalf("New() reopen error = %v", err)
	}
	defer func() {
		if err := reopened.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	data, found := reopened.APICall("GET https://example.com/a", nil)
	if !found || string(data) != "page" {
		t.Errorf("APICall() after reopen = %q, %v", data, found)
	}
}

func TestCachedHTTPClientPOST(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("reading body: %v", err)
		}
		if _, err := w.Write([]byte("echo:" + string(body))); err != nil {
			t.Errorf("write: %v", err)
		}
	}))
	defer server.Close()

	client := NewCachedHTTPClient(NewMemoryOnly(time.Hour, testLogger()), server.Client(), testLogger())

	do := func(payload string) string {
		t.Helper()
		req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, server.URL, strings.NewReader(payload))
		if err != nil {
			t.Fatalf("NewRequest: %v", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		defer resp.Body.Close() //nolint:errcheck // test
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		return string(b)
	}

	if got := do("one"); got != "echo:one" {
		t.Errorf("first response = %q", got)
	}
	if got := do("one"); got != "echo:one" {
		t.Errorf("cached response = %q", got)
	}
	if got := do("two"); got != "echo:two" {
		t.Errorf("third response = %q", got)
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("server hits = %d, want 2", n)
	}
}

func TestCachedHTTPClientSkipsErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewCachedHTTPClient(NewMemoryOnly(time.Hour, testLogger()), server.Client(), testLogger())
	for range 2 {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, http.NoBody)
		if err != nil {
			t.Fatal(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("status = %d", resp.StatusCode)
		}
		resp.Body.Close() //nolint:errcheck,gosec // test
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("server hits = %d, want 2 (errors must not be cached)", n)
	}
}

func TestCachedHTTPClientSkipsLargeBodies(t *testing.T) {
	page := strings.Repeat("x", maxBodySize+10)
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		if _, err := w.Write([]byte(page)); err != nil {
			t.Errorf("write: %v", err)
		}
	}))
	defer server.Close()

	cache := NewMemoryOnly(time.Hour, testLogger())
	client := NewCachedHTTPClient(cache, server.Client(), testLogger())
	for range 2 {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, http.NoBody)
		if err != nil {
			t.Fatal(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		b, err := io.ReadAll(resp.Body)
		resp.Body.Close() //nolint:errcheck,gosec // test
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if len(b) != len(page) {
			t.Errorf("body length = %d, want %d", len(b), len(page))
		}
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("server hits = %d, want 2 (oversized bodies must not be cached)", n)
	}
	if cache.Len() != 0 {
		t.Errorf("Len() = %d, want 0", cache.Len())
	}
}
