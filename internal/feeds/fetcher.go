// Package feeds handles RSS source configuration, downloading, and parsing.
package feeds

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"pressbot/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads and parses RSS feeds.
type Fetcher struct {
	client  HTTPClient
	timeout time.Duration
}

// New creates a Fetcher. A nil client falls back to a default with a
// 30 second timeout.
func New(client HTTPClient) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{
		client:  client,
		timeout: 30 * time.Second,
	}
}

// Fetch downloads and parses one RSS feed URL into feed items keyed by
// the given source.
func (f *Fetcher) Fetch(ctx context.Context, source model.FeedSource, url string) ([]model.FeedItem, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "pressbot/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]model.FeedItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		items = append(items, model.FeedItem{
			SourceID:    source.ID,
			ExternalID:  itemID(item),
			Title:       item.Title,
			PublishedAt: item.PublishedParsed,
		})
	}
	return items, nil
}

// FetchAll reads every URL of a source in order and concatenates the
// items. A URL error aborts the whole source so the circuit breaker
// counts it as one failure.
func (f *Fetcher) FetchAll(ctx context.Context, source model.FeedSource) ([]model.FeedItem, error) {
	var items []model.FeedItem
	for _, url := range source.URLs {
		part, err := f.Fetch(ctx, source, url)
		if err != nil {
			return nil, fmt.Errorf("feed %s: %w", url, err)
		}
		items = append(items, part...)
	}
	return items, nil
}

// itemID returns the external identifier for an RSS item. The link is
// preferred because downstream extraction needs a fetchable URL; a
// SHA-256 hash of title+GUID covers link-less items.
func itemID(item *gofeed.Item) string {
	if item.Link != "" {
		return item.Link
	}
	if item.GUID != "" {
		return item.GUID
	}
	h := sha256.Sum256([]byte(item.Title + "|" + item.Published))
	return fmt.Sprintf("sha256:%x", h[:16])
}
