// Package api reads confessions from the board's REST endpoints and
// mirrors comments as a best-effort secondary write path.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sujalbistaa/blurtbox/internal/models"
)

var ErrNotFound = errors.New("confession not found")

// StatusError is returned for any non-2xx answer other than 404.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
}

const (
	defaultTimeout   = 10 * time.Second
	defaultCacheSize = 256
	defaultCacheTTL  = 30 * time.Second
)

type cacheItem struct {
	item      models.Confession
	expiresAt time.Time
}

// Client talks to one backend. Single-item reads are cached for a short
// TTL; callers invalidate entries when push events change them.
type Client struct {
	baseURL string
	http    *http.Client
	cache   *lru.Cache[string, cacheItem]
	ttl     time.Duration
	now     func() time.Time
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.ttl = ttl }
}

func WithNow(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parsing API base URL: %w", err)
	}
	cache, err := lru.New[string, cacheItem](defaultCacheSize)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		cache:   cache,
		ttl:     defaultCacheTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// List returns every confession, newest first as the backend orders them.
func (c *Client) List(ctx context.Context) ([]models.Confession, error) {
	var items []models.Confession
	if err := c.getJSON(ctx, "/api/confessions", &items); err != nil {
		return nil, err
	}
	return normalize(items), nil
}

// TopUpvoted returns the backend's ranked list.
func (c *Client) TopUpvoted(ctx context.Context) ([]models.Confession, error) {
	var items []models.Confession
	if err := c.getJSON(ctx, "/api/confessions/top-upvoted", &items); err != nil {
		return nil, err
	}
	return normalize(items), nil
}

// Get returns one confession with its comments, or ErrNotFound.
func (c *Client) Get(ctx context.Context, id string) (*models.Confession, error) {
	if cached, ok := c.cache.Get(id); ok {
		if c.now().Before(cached.expiresAt) {
			item := cached.item.Clone()
			return &item, nil
		}
		c.cache.Remove(id)
	}

	var item models.Confession
	if err := c.getJSON(ctx, "/api/confessions/"+url.PathEscape(id), &item); err != nil {
		return nil, err
	}
	if item.ID == "" {
		return nil, ErrNotFound
	}
	item.Normalize()
	c.cache.Add(id, cacheItem{item: item.Clone(), expiresAt: c.now().Add(c.ttl)})
	return &item, nil
}

// Invalidate drops a cached single-item read.
func (c *Client) Invalidate(id string) {
	c.cache.Remove(id)
}

// PostComment mirrors a comment already sent over the real-time channel.
func (c *Client) PostComment(ctx context.Context, id, text string) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}
	path := "/api/confessions/" + url.PathEscape(id) + "/comments"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Method: http.MethodPost, Path: path, Code: resp.StatusCode}
	}
	c.Invalidate(id)
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Method: http.MethodGet, Path: path, Code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func normalize(items []models.Confession) []models.Confession {
	kept := items[:0]
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		item.Normalize()
		kept = append(kept, item)
	}
	return kept
}
