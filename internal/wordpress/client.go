// Package wordpress publishes posts through the WordPress REST API.
package wordpress

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"
)

// HTTPClient lets tests substitute the transport.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIError is a non-2xx response from the WordPress REST API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wordpress: status %d code=%q: %s", e.StatusCode, e.Code, e.Message)
}

// Term is a category or tag as returned by the REST API.
type Term struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Post is the created post as returned by the REST API.
type Post struct {
	ID   int    `json:"id"`
	Link string `json:"link"`
	Slug string `json:"slug"`
}

// Media is an uploaded media item.
type Media struct {
	ID        int    `json:"id"`
	SourceURL string `json:"source_url"`
}

// ClientConfig configures a Client. HTTP and Log default when nil.
type ClientConfig struct {
	BaseURL  string
	Username string
	Password string
	HTTP     HTTPClient
	Log      *slog.Logger
}

// Client talks to one WordPress site. Term lookups are cached for the
// lifetime of the client.
type Client struct {
	baseURL string
	auth    string
	http    HTTPClient
	log     *slog.Logger

	mu         sync.Mutex
	categories map[string]int
	tags       map[string]int

	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg ClientConfig) *Client {
	httpc := cfg.HTTP
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		auth:       "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.Username+":"+cfg.Password)),
		http:       httpc,
		log:        log,
		categories: make(map[string]int),
		tags:       make(map[string]int),
		sleep: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
	}
}

func (c *Client) endpoint(parts ...string) string {
	return c.baseURL + "/wp-json/wp/v2/" + path.Join(parts...)
}

func (c *Client) do(ctx context.Context, method, rawURL string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", c.auth)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var wpErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &wpErr) == nil {
			apiErr.Code = wpErr.Code
			apiErr.Message = wpErr.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, rawURL string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return c.do(ctx, http.MethodPost, rawURL, bytes.NewReader(body), "application/json", out)
}

// resolveTerm finds a term by name on the given taxonomy endpoint,
// creating it when absent. A term_exists conflict on create means a
// concurrent writer won the race, so the term is looked up again.
func (c *Client) resolveTerm(ctx context.Context, taxonomy, name string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("resolve %s: empty name", taxonomy)
	}

	search := c.endpoint(taxonomy) + "?per_page=100&search=" + url.QueryEscape(name)
	var found []Term
	if err := c.do(ctx, http.MethodGet, search, nil, "", &found); err != nil {
		return 0, fmt.Errorf("search %s %q: %w", taxonomy, name, err)
	}
	for _, term := range found {
		if strings.EqualFold(term.Name, name) || strings.EqualFold(term.Slug, name) {
			return term.ID, nil
		}
	}

	var created Term
	err := c.postJSON(ctx, c.endpoint(taxonomy), map[string]string{"name": name}, &created)
	if err == nil {
		return created.ID, nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == "term_exists" {
		if err := c.do(ctx, http.MethodGet, search, nil, "", &found); err != nil {
			return 0, fmt.Errorf("re-search %s %q: %w", taxonomy, name, err)
		}
		for _, term := range found {
			if strings.EqualFold(term.Name, name) || strings.EqualFold(term.Slug, name) {
				return term.ID, nil
			}
		}
	}
	return 0, fmt.Errorf("create %s %q: %w", taxonomy, name, err)
}

// ResolveCategoryNamesToIDs maps category names to IDs, creating
// missing categories. Names that fail to resolve are skipped with a
// warning so one bad category does not block publication.
func (c *Client) ResolveCategoryNamesToIDs(ctx context.Context, names []string) []int {
	return c.resolveAll(ctx, "categories", c.categories, names, 0)
}

// EnsureTagIDs maps tag names to IDs, creating missing tags. At most
// ten tags are resolved.
func (c *Client) EnsureTagIDs(ctx context.Context, names []string) []int {
	return c.resolveAll(ctx, "tags", c.tags, names, 10)
}

func (c *Client) resolveAll(ctx context.Context, taxonomy string, cache map[string]int, names []string, limit int) []int {
	var ids []int
	seen := make(map[string]bool)
	for _, name := range names {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		if limit > 0 && len(ids) >= limit {
			break
		}

		c.mu.Lock()
		id, ok := cache[key]
		c.mu.Unlock()
		if !ok {
			var err error
			id, err = c.resolveTerm(ctx, taxonomy, name)
			if err != nil {
				c.log.Warn("term resolution failed", "taxonomy", taxonomy, "name", name, "error", err)
				continue
			}
			c.mu.Lock()
			cache[key] = id
			c.mu.Unlock()
		}
		ids = append(ids, id)
	}
	return ids
}
