// Package feed retrieves and normalizes the syndication feeds of the
// mirrored variants.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/retronews/retronews/internal/logger"
	"github.com/retronews/retronews/internal/source"
)

// storyIDPattern matches the trailing numeric segment of a story link.
// Entries whose link does not carry a story ID cannot be mirrored and are
// dropped.
var storyIDPattern = regexp.MustCompile(`orf\.at/stories/(\d+)/`)

// Item is one syndicated entry with its derived story ID.
type Item struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Published string    `json:"published"`
	Updated   string    `json:"updated,omitempty"`
	Snippet   string    `json:"snippet,omitempty"`
	Date      time.Time `json:"date"`
}

// Client fetches feeds over HTTP and parses them with gofeed.
type Client struct {
	httpClient *http.Client
	parser     *gofeed.Parser
	userAgent  string
	log        logger.Interface
}

// NewClient creates a feed client. The http.Client supplies the transport
// timeout; per-request deadlines come from the caller's context.
func NewClient(httpClient *http.Client, userAgent string, log logger.Interface) *Client {
	return &Client{
		httpClient: httpClient,
		parser:     gofeed.NewParser(),
		userAgent:  userAgent,
		log:        log.WithComponent("feed"),
	}
}

// FetchFeed retrieves one variant's feed and returns its items in feed order.
// Entries without a parseable story ID are dropped. Transport and parse
// failures fail the whole call; no partial results are returned.
func (c *Client) FetchFeed(ctx context.Context, cfg source.Config) ([]Item, error) {
	body, err := c.fetch(ctx, cfg.FeedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", cfg.Variant, err)
	}

	parsed, err := c.parser.ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", cfg.Variant, err)
	}

	items := make([]Item, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		id := extractStoryID(entry.Link)
		if id == "" {
			c.log.Debug("Dropping entry without story ID",
				"variant", cfg.Variant, "link", entry.Link)
			continue
		}

		items = append(items, Item{
			ID:        id,
			Title:     entry.Title,
			Link:      entry.Link,
			Published: entry.Published,
			Updated:   entry.Updated,
			Snippet:   entry.Description,
			Date:      publishedAt(entry),
		})
	}

	c.log.Info("Feed fetched",
		"variant", cfg.Variant, "items", len(items), "dropped", len(parsed.Items)-len(items))

	return items, nil
}

// fetch performs the HTTP GET for the feed document.
func (c *Client) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	return string(raw), nil
}

// extractStoryID returns the numeric story ID from a link, or "" when the
// link does not match the stories pattern.
func extractStoryID(link string) string {
	m := storyIDPattern.FindStringSubmatch(link)
	if m == nil {
		return ""
	}
	return m[1]
}

// publishedAt returns the best available timestamp for an entry.
func publishedAt(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return *entry.PublishedParsed
	}
	if entry.UpdatedParsed != nil {
		return *entry.UpdatedParsed
	}
	return time.Time{}
}
