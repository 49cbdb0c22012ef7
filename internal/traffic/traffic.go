// Package traffic serves the Ö3 traffic information snapshot.
package traffic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/retronews/retronews/internal/cache"
	"github.com/retronews/retronews/internal/entities"
	"github.com/retronews/retronews/internal/logger"
)

// DefaultURL is the upstream traffic information endpoint.
const DefaultURL = "https://oe3meta.orf.at/oe3api/ApiV2.php/TrafficInfo.json"

// snapshotKey is the single cache key; the snapshot has no variants.
const snapshotKey = "traffic/snapshot"

// Coordinate is one point of an incident's location.
type Coordinate struct {
	Longitude float64 `json:"Longitude"`
	Latitude  float64 `json:"Latitude"`
}

// Item is one traffic incident. Text, Street and District are entity-encoded
// before the snapshot is cached so every consumer gets safe markup text.
type Item struct {
	Text        string       `json:"Text"`
	Street      string       `json:"Street"`
	District    string       `json:"District"`
	EventCode   int          `json:"EventCode"`
	EventImage  string       `json:"EventImage"`
	Coordinates []Coordinate `json:"Coordinates"`
}

// Snapshot is the full upstream payload.
type Snapshot struct {
	TrafficItems []Item `json:"TrafficItems"`
}

// Config holds the traffic client settings.
type Config struct {
	// URL overrides the upstream endpoint, for tests.
	URL string
	// TTL is the snapshot cache lifetime.
	TTL time.Duration
	// UserAgent is sent on upstream fetches.
	UserAgent string
}

// Client fetches and caches the traffic snapshot.
type Client struct {
	httpClient *http.Client
	url        string
	userAgent  string
	store      *cache.Store[Snapshot]
	log        logger.Interface
}

// NewClient creates a traffic client with a single-entry snapshot cache.
func NewClient(httpClient *http.Client, cfg Config, log logger.Interface) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}

	return &Client{
		httpClient: httpClient,
		url:        cfg.URL,
		userAgent:  cfg.UserAgent,
		store:      cache.New[Snapshot](1, cfg.TTL),
		log:        log.WithComponent("traffic"),
	}
}

// Snapshot returns the cached traffic snapshot, fetching it on a miss.
// Concurrent misses share one upstream fetch.
func (c *Client) Snapshot(ctx context.Context) (Snapshot, error) {
	return c.store.GetOrFetch(ctx, snapshotKey, c.fetch)
}

// Invalidate drops the cached snapshot. Idempotent: invalidating an empty
// cache is a no-op.
func (c *Client) Invalidate() {
	c.store.Invalidate(snapshotKey)
	c.log.Info("Traffic snapshot invalidated")
}

func (c *Client) fetch(ctx context.Context) (Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return Snapshot{}, fmt.Errorf("new request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch traffic info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, fmt.Errorf("traffic info returned status %d", resp.StatusCode)
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode traffic info: %w", err)
	}

	for i := range snap.TrafficItems {
		item := &snap.TrafficItems[i]
		item.Text = entities.Encode(item.Text)
		item.Street = entities.Encode(item.Street)
		item.District = entities.Encode(item.District)
	}

	c.log.Debug("Traffic snapshot fetched", "items", len(snap.TrafficItems))
	return snap, nil
}
