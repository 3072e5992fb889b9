// Package httpcache caches search and model responses between scout runs.
package httpcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"
)

const (
	cacheFile = "scout-cache.gob"
	// maxBodySize is the largest response body CachedHTTPClient stores.
	maxBodySize = 1 << 20
)

// Entry is a cached response body.
type Entry struct {
	ExpiresAt time.Time
	Data      []byte
}

// Cache is an otter-backed TTL cache, optionally persisted to disk.
type Cache struct {
	cache      *otter.Cache[string, Entry]
	logger     *slog.Logger
	saveCancel context.CancelFunc
	dir        string
	saveWg     sync.WaitGroup
	ttl        time.Duration
	mu         sync.Mutex
}

// New creates a cache persisted under dir. Existing unexpired entries are loaded
// and the cache is saved every 15 minutes and on Close.
func New(ctx context.Context, dir string, ttl time.Duration, logger *slog.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	c := newCache(dir, ttl, logger)
	if err := c.loadFromDisk(); err != nil {
		logger.Warn("failed to load cache from disk", "error", err)
	}
	logger.Info("cache initialized", "dir", dir, "entries_loaded", c.Len())

	c.startPeriodicSave(ctx)
	return c, nil
}

// NewMemoryOnly creates a cache that is never written to disk.
func NewMemoryOnly(ttl time.Duration, logger *slog.Logger) *Cache {
	return newCache("", ttl, logger)
}

func newCache(dir string, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		cache: otter.Must(&otter.Options[string, Entry]{
			MaximumSize:      50_000,
			InitialCapacity:  1_000,
			ExpiryCalculator: otter.ExpiryWriting[string, Entry](ttl),
		}),
		dir:    dir,
		ttl:    ttl,
		logger: logger,
	}
}

func key(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cache) get(k, label string) ([]byte, bool) {
	entry, found := c.cache.GetIfPresent(k)
	if !found {
		c.logger.Debug("cache miss", "key", label)
		return nil, false
	}
	if time.Now().After(entry.ExpiresAt) {
		c.logger.Debug("cache expired", "key", label, "expired_at", entry.ExpiresAt)
		c.cache.Invalidate(k)
		return nil, false
	}
	return entry.Data, true
}

func (c *Cache) set(k, label string, data []byte) {
	entry := Entry{Data: data, ExpiresAt: time.Now().Add(c.ttl)}
	c.cache.Set(k, entry)
	c.logger.Debug("cache set", "key", label, "expires_at", entry.ExpiresAt, "size", len(data))
}

// APICall returns a cached response for a request identified by name and payload.
func (c *Cache) APICall(name string, payload []byte) ([]byte, bool) {
	return c.get(key([]byte(name), payload), name)
}

// SetAPICall stores a response for a request identified by name and payload.
func (c *Cache) SetAPICall(name string, payload, data []byte) error {
	c.set(key([]byte(name), payload), name, data)
	return nil
}

// Len returns the approximate number of cached entries.
func (c *Cache) Len() int {
	return c.cache.EstimatedSize()
}

func (c *Cache) loadFromDisk() error {
	path := filepath.Join(c.dir, cacheFile)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			c.logger.Info("no existing cache file found", "path", path)
			return nil
		}
		return fmt.Errorf("opening cache file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			c.logger.Debug("failed to close cache file", "error", err)
		}
	}()

	var entries map[string]Entry
	if err := gob.NewDecoder(f).Decode(&entries); err != nil {
		return fmt.Errorf("decoding cache file: %w", err)
	}

	now := time.Now()
	valid := 0
	for k, e := range entries {
		if now.Before(e.ExpiresAt) {
			c.cache.Set(k, e)
			valid++
		}
	}
	c.logger.Debug("loaded cache from disk", "path", path, "total", len(entries), "valid", valid)
	return nil
}

func (c *Cache) saveToDisk() error {
	if c.dir == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	path := filepath.Join(c.dir, cacheFile)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	defer func() {
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			c.logger.Debug("failed to remove temp cache file", "error", err)
		}
	}()

	entries := make(map[string]Entry)
	now := time.Now()
	for k, e := range c.cache.All() {
		if now.Before(e.ExpiresAt) {
			entries[k] = e
		}
	}

	if err := gob.NewEncoder(f).Encode(entries); err != nil {
		_ = f.Close() //nolint:errcheck // already failing
		return fmt.Errorf("encoding cache: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close() //nolint:errcheck // already failing
		return fmt.Errorf("syncing cache file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing cache file: %w", err)
	}

	c.logger.Debug("cache saved to disk", "entries", len(entries), "path", path)
	return nil
}

func (c *Cache) startPeriodicSave(ctx context.Context) {
	saveCtx, cancel := context.WithCancel(ctx)
	c.saveCancel = cancel

	c.saveWg.Add(1)
	go func() {
		defer c.saveWg.Done()
		ticker := time.NewTicker(15 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-saveCtx.Done():
				return
			case <-ticker.C:
				if err := c.saveToDisk(); err != nil {
					c.logger.Error("periodic cache save failed", "error", err)
				}
			}
		}
	}()
}

// Close stops periodic saving and writes the cache to disk one last time.
func (c *Cache) Close() error {
	if c.saveCancel != nil {
		c.saveCancel()
	}
	c.saveWg.Wait()
	return c.saveToDisk()
}

// HTTPClient is satisfied by *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// CachedHTTPClient serves repeated GET and POST requests from the cache.
// Only 200 responses of at most 1 MiB are stored; larger bodies stream
// through without being buffered in full.
type CachedHTTPClient struct {
	cache      *Cache
	httpClient HTTPClient
	logger     *slog.Logger
}

// NewCachedHTTPClient wraps httpClient. A nil cache disables caching.
func NewCachedHTTPClient(cache *Cache, httpClient HTTPClient, logger *slog.Logger) *CachedHTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedHTTPClient{cache: cache, httpClient: httpClient, logger: logger}
}

// Do performs req, consulting the cache first.
func (c *CachedHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if c.cache == nil || (req.Method != http.MethodGet && req.Method != http.MethodPost) {
		return c.httpClient.Do(req)
	}

	url := req.URL.String()
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
		if err := req.Body.Close(); err != nil {
			c.logger.Debug("failed to close request body", "error", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
	}
	name := req.Method + " " + url

	if data, found := c.cache.APICall(name, body); found {
		resp := &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(data)),
			Header:     make(http.Header),
			Request:    req,
		}
		resp.Header.Set("X-From-Cache", "true")
		return resp, nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close response body", "error", closeErr)
		}
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(data) > maxBodySize {
		c.logger.Debug("response too large to cache", "url", url, "limit", maxBodySize)
		resp.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(data), resp.Body), resp.Body}
		return resp, nil
	}
	if closeErr := resp.Body.Close(); closeErr != nil {
		c.logger.Debug("failed to close response body", "error", closeErr)
	}
	if err := c.cache.SetAPICall(name, body, data); err != nil {
		c.logger.Debug("cache set failed", "url", url, "error", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return resp, nil
}
