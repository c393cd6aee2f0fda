// Package index fetches the static index of available app/runtime images
// from a repository and caches the response on disk.
package index

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/allisonkarlitskaya/flatpak-go/ref"
)

// Entry is one image available for a Ref: a fully qualified image reference
// (`{name}@{digest}`) and the raw metadata document bundled alongside it.
type Entry struct {
	Image    string
	Metadata string
}

// indexResponse mirrors the repository's `index/static` JSON shape.
type indexResponse struct {
	Results []struct {
		Name   string `json:"Name"`
		Images []struct {
			Digest string `json:"Digest"`
			Labels struct {
				Ref      string `json:"org.flatpak.ref"`
				Metadata string `json:"org.flatpak.metadata"`
			} `json:"Labels"`
		} `json:"Images"`
	} `json:"Results"`
}

// Client fetches and caches a repository's static index.
type Client struct {
	httpClient *http.Client
	cacheDir   string // "" disables on-disk caching
	ttl        time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithCacheDir overrides the on-disk cache directory (default:
// os.UserCacheDir()/flatpak-go/index).
func WithCacheDir(dir string) Option { return func(c *Client) { c.cacheDir = dir } }

// WithTTL overrides the cache freshness window (default: 1 hour).
func WithTTL(ttl time.Duration) Option { return func(c *Client) { c.ttl = ttl } }

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

// NewClient builds a Client. A missing/unwritable cache directory is not an
// error: the client degrades to uncached fetches.
func NewClient(opts ...Option) *Client {
	c := &Client{httpClient: http.DefaultClient, ttl: time.Hour}

	if dir, err := os.UserCacheDir(); err == nil {
		c.cacheDir = filepath.Join(dir, "flatpak-go", "index")
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ociArch maps Go's GOARCH to the OCI architecture name the index filters
// on, following original_source/src/index.rs's get_oci_arch.
func ociArch() string {
	switch runtime.GOARCH {
	case "arm64":
		return "arm64"
	case "386":
		return "386"
	case "amd64":
		return "amd64"
	default:
		return runtime.GOARCH
	}
}

// Get fetches (or serves from cache) the index of repository, returning a
// table from Ref to the image/metadata pair that satisfies it.
//
// The on-disk cache is a flat directory of JSON blobs keyed by the request
// URL's hash; no library in the example pack implements HTTP GET-with-
// querystring response caching (http_cache_reqwest's cacache-backed store is
// Rust-only), so this is a deliberate stdlib-only corner (see DESIGN.md).
func (c *Client) Get(repository string) (map[ref.Ref]Entry, error) {
	reqURL, err := buildIndexURL(repository)
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}

	if cached, ok := c.readCache(reqURL); ok {
		return parseIndexResponse(cached)
	}

	body, err := c.fetch(reqURL)
	if err != nil {
		return nil, fmt.Errorf("index: fetch %s: %w", reqURL, err)
	}

	c.writeCache(reqURL, body)

	return parseIndexResponse(body)
}

func buildIndexURL(repository string) (string, error) {
	base, err := url.Parse(repository)
	if err != nil {
		return "", fmt.Errorf("invalid repository URL %q: %w", repository, err)
	}

	indexURL, err := base.Parse("index/static")
	if err != nil {
		return "", fmt.Errorf("invalid repository URL %q: %w", repository, err)
	}

	q := indexURL.Query()
	q.Set("architecture", ociArch())
	q.Set("label:org.flatpak.ref:exists", "1")
	q.Set("os", "linux")
	q.Set("tag", "latest")
	indexURL.RawQuery = q.Encode()

	return indexURL.String(), nil
}

func (c *Client) fetch(reqURL string) ([]byte, error) {
	resp, err := c.httpClient.Get(reqURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func parseIndexResponse(body []byte) (map[ref.Ref]Entry, error) {
	var parsed indexResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("index: parsing index JSON failed: %w", err)
	}

	table := make(map[ref.Ref]Entry)

	for _, name := range parsed.Results {
		for _, image := range name.Images {
			r, err := ref.Parse(image.Labels.Ref)
			if err != nil {
				continue
			}

			table[r] = Entry{
				Image:    fmt.Sprintf("%s@%s", name.Name, image.Digest),
				Metadata: image.Labels.Metadata,
			}
		}
	}

	return table, nil
}

func (c *Client) cachePath(reqURL string) (string, bool) {
	if c.cacheDir == "" {
		return "", false
	}

	sum := sha256.Sum256([]byte(reqURL))

	return filepath.Join(c.cacheDir, hex.EncodeToString(sum[:])+".json"), true
}

func (c *Client) readCache(reqURL string) ([]byte, bool) {
	path, ok := c.cachePath(reqURL)
	if !ok {
		return nil, false
	}

	info, err := os.Stat(path)
	if err != nil || time.Since(info.ModTime()) > c.ttl {
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	return data, true
}

func (c *Client) writeCache(reqURL string, body []byte) {
	path, ok := c.cachePath(reqURL)
	if !ok {
		return
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return
	}

	_ = os.Rename(tmp, path)
}
