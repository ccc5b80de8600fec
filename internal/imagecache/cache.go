package imagecache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultUserAgent identifies the service on every outbound fetch.
const DefaultUserAgent = "vrc-embed/0.0.1 (https://github.com/knuxify/vrc-embed)"

// DefaultIdleTTL is how long an entry may go unread before a prune pass
// removes it.
const DefaultIdleTTL = 12 * time.Hour

// FetchError reports a failed remote fetch: transport failure or a
// non-success HTTP status. Not retried by this layer.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("imagecache: fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("imagecache: fetch %s: unexpected status %d", e.URL, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Config configures a Cache.
type Config struct {
	// Dir is the payload directory. Empty means a private temporary
	// directory, removed by Close.
	Dir string

	// IdleTTL is the idle eviction threshold. Default: DefaultIdleTTL.
	IdleTTL time.Duration

	// UserAgent is sent on every fetch. Default: DefaultUserAgent.
	UserAgent string

	// Client is the HTTP client for downloads.
	// If nil, a default client with 30s timeout is used.
	Client *http.Client
}

// Cache is a single-flight, idle-pruned fetch cache for remote images.
//
// Contract:
// - Concurrency: safe for concurrent use; two concurrent Gets for one
//   uncached URL perform exactly one network fetch.
// - Errors: a failed attempt leaves no partial payload behind and clears the
//   in-flight state before results reach any waiter.
type Cache struct {
	cfg    Config
	dir    string
	ownDir bool

	mu      sync.Mutex
	lastHit map[string]time.Time

	group singleflight.Group

	now func() time.Time
}

// New creates a fetch cache. With an empty Config.Dir the cache owns a fresh
// temporary directory and removes it on Close.
func New(cfg Config) (*Cache, error) {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}

	c := &Cache{
		cfg:     cfg,
		lastHit: make(map[string]time.Time),
		now:     time.Now,
	}
	if cfg.Dir == "" {
		dir, err := os.MkdirTemp("", "vrc-embed-images-*")
		if err != nil {
			return nil, fmt.Errorf("imagecache: create dir: %w", err)
		}
		c.dir = dir
		c.ownDir = true
	} else {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("imagecache: create dir: %w", err)
		}
		c.dir = cfg.Dir
	}
	return c, nil
}

// Dir returns the payload directory.
func (c *Cache) Dir() string { return c.dir }

// Get returns the bytes for url, downloading on first use. The last-hit
// timestamp is refreshed immediately, before hit or miss is known: a request
// arriving while a download is in flight still counts as recent activity.
func (c *Cache) Get(ctx context.Context, url string) ([]byte, error) {
	digest := urlDigest(url)

	c.mu.Lock()
	c.lastHit[digest] = c.now()
	c.mu.Unlock()

	// All concurrent callers for one URL attach to a single in-flight
	// download; the key is forgotten when the attempt completes, success or
	// failure, before the result reaches any waiter.
	v, err, _ := c.group.Do(digest, func() (any, error) {
		path := filepath.Join(c.dir, digest)
		if data, readErr := os.ReadFile(path); readErr == nil {
			return data, nil
		}
		return c.download(ctx, url, path)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// download fetches url and streams the body to path while accumulating it in
// memory. The payload lands under a dot-prefixed temporary first so a failed
// transfer never leaves a partial file at the final path.
func (c *Cache) download(ctx context.Context, url, path string) ([]byte, error) {
	// A caller disconnecting mid-render must not abort a download other
	// waiters may be attached to; committed fetches run to completion.
	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.cfg.Client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, Status: resp.StatusCode}
	}

	tmp := filepath.Join(c.dir, "."+filepath.Base(path))
	f, err := os.Create(tmp)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	var buf bytes.Buffer
	if _, err := io.Copy(io.MultiWriter(f, &buf), resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return nil, &FetchError{URL: url, Err: err}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return nil, &FetchError{URL: url, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return nil, &FetchError{URL: url, Err: err}
	}
	return buf.Bytes(), nil
}

// Prune removes every payload idle beyond the threshold and returns the
// number removed. It iterates a stable snapshot of the last-hit map and
// re-checks each entry under the lock before deletion, so it is safe to call
// concurrently with Get. Idempotent; invoked by an external scheduler.
func (c *Cache) Prune() int {
	cutoff := c.now().Add(-c.cfg.IdleTTL)

	c.mu.Lock()
	snapshot := make([]string, 0, len(c.lastHit))
	for digest, last := range c.lastHit {
		if last.Before(cutoff) {
			snapshot = append(snapshot, digest)
		}
	}
	c.mu.Unlock()

	removed := 0
	for _, digest := range snapshot {
		// Re-check under the lock: a Get may have touched the entry since
		// the snapshot was taken.
		c.mu.Lock()
		last, tracked := c.lastHit[digest]
		stale := tracked && last.Before(cutoff)
		if stale {
			delete(c.lastHit, digest)
		}
		c.mu.Unlock()
		if !stale {
			continue
		}
		_ = os.Remove(filepath.Join(c.dir, digest))
		removed++
	}
	return removed
}

// Len returns the number of tracked entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lastHit)
}

// Close tears down the cache. An owned temporary directory is removed
// recursively; nothing is persisted across restarts.
func (c *Cache) Close() error {
	c.mu.Lock()
	c.lastHit = make(map[string]time.Time)
	c.mu.Unlock()
	if c.ownDir {
		return os.RemoveAll(c.dir)
	}
	return nil
}

// urlDigest keys a payload by the hex SHA-256 of its source URL.
func urlDigest(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
