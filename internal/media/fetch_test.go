// ABOUTME: Tests for the media fetcher
// ABOUTME: Tests HTTP download, caching, and error handling
package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("fake audio data"))
	}))
	defer server.Close()

	f := NewFetcher(time.Minute)

	data, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	if string(data) != "fake audio data" {
		t.Errorf("expected content 'fake audio data', got '%s'", string(data))
	}

	if !f.Cached(server.URL) {
		t.Error("expected download to be cached")
	}
}

func TestFetchCaching(t *testing.T) {
	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("fake audio data"))
	}))
	defer server.Close()

	f := NewFetcher(time.Minute)

	// First fetch - should hit server
	if _, err := f.Fetch(context.Background(), server.URL); err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}
	if requests.Load() != 1 {
		t.Errorf("expected 1 request, got %d", requests.Load())
	}

	// Second fetch - should use cache
	if _, err := f.Fetch(context.Background(), server.URL); err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	if requests.Load() != 1 {
		t.Errorf("expected cached fetch to not hit server, but got %d requests", requests.Load())
	}

	// Flush forces a new download
	f.Flush()
	if _, err := f.Fetch(context.Background(), server.URL); err != nil {
		t.Fatalf("third fetch failed: %v", err)
	}
	if requests.Load() != 2 {
		t.Errorf("expected flush to force a download, got %d requests", requests.Load())
	}
}

func TestFetchWithoutCache(t *testing.T) {
	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte("x"))
	}))
	defer server.Close()

	f := NewFetcher(0)
	for i := 0; i < 2; i++ {
		if _, err := f.Fetch(context.Background(), server.URL); err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
	}

	if requests.Load() != 2 {
		t.Errorf("expected 2 requests with caching disabled, got %d", requests.Load())
	}
	if f.Cached(server.URL) {
		t.Error("expected nothing cached")
	}
}

func TestFetchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := NewFetcher(time.Minute)

	_, err := f.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if !strings.Contains(err.Error(), "HTTP 404") {
		t.Errorf("expected error to mention HTTP 404, got: %v", err)
	}
	if f.Cached(server.URL) {
		t.Error("failed downloads must not be cached")
	}
}

func TestFetchCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewFetcher(time.Minute).Fetch(ctx, server.URL); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestCacheKeyStable(t *testing.T) {
	a := cacheKey("https://example.com/a.mp3")
	if a != cacheKey("https://example.com/a.mp3") {
		t.Error("expected identical keys for identical URLs")
	}
	if a == cacheKey("https://example.com/b.mp3") {
		t.Error("expected different keys for different URLs")
	}
	if len(a) != 16 {
		t.Errorf("expected 16 hex chars, got %d", len(a))
	}
}
