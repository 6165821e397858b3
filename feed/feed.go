// Package feed fetches the monitored RSS feed and normalizes its entries.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/SlyMarbo/rss"

	"rss-notifier/pkg/notifier"
)

// transport injects a context and the configured User-Agent into every
// outgoing request so that cancellation and deadlines propagate through the
// rss library.
type transport struct {
	ctx       context.Context
	userAgent string
	base      http.RoundTripper
}

func (t transport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.WithContext(t.ctx)
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}

// Client fetches a single RSS feed.
type Client struct {
	logger    *slog.Logger
	url       string
	userAgent string
}

// New creates a feed client for the given source URL.
func New(url, userAgent string, logger *slog.Logger) *Client {
	return &Client{
		url:       url,
		userAgent: userAgent,
		logger:    logger,
	}
}

// Fetch retrieves the feed and returns its items normalized and sorted
// newest first. Entries missing an ID, link or publish date are dropped and
// logged; they never fail the fetch. A network or parse failure is returned
// as-is: retry policy belongs to the caller.
func (c *Client) Fetch(ctx context.Context) ([]notifier.Item, error) {
	client := &http.Client{
		Transport: transport{ctx: ctx, userAgent: c.userAgent, base: http.DefaultTransport},
		Timeout:   30 * time.Second,
	}

	f, err := rss.FetchByClient(c.url, client)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}

	items := make([]notifier.Item, 0, len(f.Items))
	for _, it := range f.Items {
		if it.ID == "" || it.Link == "" || !it.DateValid || it.Date.IsZero() {
			c.logger.Warn("Dropping feed entry with missing required fields",
				"id", it.ID,
				"link", it.Link,
				"title", it.Title,
				"date_valid", it.DateValid)
			continue
		}

		items = append(items, notifier.Item{
			ID:          it.ID,
			Link:        it.Link,
			Title:       it.Title,
			Description: it.Summary,
			PublishedAt: it.Date,
		})
	}

	// Newest posts first; the planner depends on this ordering.
	sort.Slice(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})

	c.logger.Info("Feed fetched", "url", c.url, "entries", len(f.Items), "items", len(items))
	return items, nil
}
