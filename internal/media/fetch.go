// ABOUTME: HTTP fetcher for remote media
// ABOUTME: Keeps downloaded bytes in a TTL cache keyed by URL
package media

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
)

// maxFetchBytes bounds a single download
const maxFetchBytes = 32 << 20

// Fetcher downloads media over HTTP and caches the bytes
type Fetcher struct {
	cache  *cache.Cache
	client *http.Client
}

// NewFetcher creates a fetcher whose entries expire after ttl.
// A zero ttl disables caching.
func NewFetcher(ttl time.Duration) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: 30 * time.Second},
	}
	if ttl > 0 {
		f.cache = cache.New(ttl, 2*ttl)
	}
	return f
}

// Fetch returns the body at url, from cache when possible
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	key := cacheKey(url)
	if f.cache != nil {
		if data, ok := f.cache.Get(key); ok {
			log.Printf("Media cache hit: %s", url)
			return data.([]byte), nil
		}
	}

	log.Printf("Downloading media: %s", url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read media: %w", err)
	}
	if len(data) > maxFetchBytes {
		return nil, fmt.Errorf("media larger than %d bytes", maxFetchBytes)
	}

	if f.cache != nil {
		f.cache.SetDefault(key, data)
	}
	log.Printf("Media downloaded: %s (%d bytes)", url, len(data))
	return data, nil
}

// Cached reports whether url is currently cached
func (f *Fetcher) Cached(url string) bool {
	if f.cache == nil {
		return false
	}
	_, ok := f.cache.Get(cacheKey(url))
	return ok
}

// Flush drops every cached download
func (f *Fetcher) Flush() {
	if f.cache != nil {
		f.cache.Flush()
	}
}

func cacheKey(url string) string {
	hash := sha256.Sum256([]byte(url))
	return fmt.Sprintf("%x", hash[:8])
}
