// Package article turns one story page's HTML into a structured article
// using the owning variant's extraction rule.
package article

import (
	"context"
	"fmt"
	"net/http"

	"github.com/PuerkitoBio/goquery"

	"github.com/retronews/retronews/internal/logger"
	"github.com/retronews/retronews/internal/source"
)

// datePlaceholder is the formatted-date slot filled in by the render layer.
const datePlaceholder = "MM.YY. HH:mm"

// Article is the extracted representation of one story page. All text fields
// are entity-encoded and safe for legacy markup.
type Article struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Image         string   `json:"image,omitempty"`
	Paragraphs    []string `json:"paragraphs"`
	FormattedDate string   `json:"formatted_date"`
}

// StatusError reports a non-success HTTP status from the story page fetch.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.Code, e.URL)
}

// Extractor fetches story pages and applies extraction rules.
type Extractor struct {
	httpClient *http.Client
	userAgent  string
	log        logger.Interface
}

// NewExtractor creates an article extractor.
func NewExtractor(httpClient *http.Client, userAgent string, log logger.Interface) *Extractor {
	return &Extractor{
		httpClient: httpClient,
		userAgent:  userAgent,
		log:        log.WithComponent("article"),
	}
}

// FetchArticle retrieves the story page for itemID and extracts it with the
// variant's rule. Transport failures and non-success statuses are hard
// errors; missing nodes degrade to empty fields instead of failing.
func (e *Extractor) FetchArticle(ctx context.Context, cfg source.Config, itemID string) (Article, error) {
	url := cfg.StoryPageURL(itemID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return Article{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return Article{}, fmt.Errorf("fetch article %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Article{}, &StatusError{Code: resp.StatusCode, URL: url}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Article{}, fmt.Errorf("parse article %s: %w", url, err)
	}

	art := Extract(doc, cfg.Rule, itemID)
	e.log.Info("Article extracted",
		"variant", cfg.Variant, "id", itemID,
		"paragraphs", len(art.Paragraphs), "has_image", art.Image != "")

	return art, nil
}
