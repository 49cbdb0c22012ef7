// Package source defines the closed set of mirrored feed variants and the
// selector rules used to extract content from each variant's article markup.
package source

import (
	"errors"
	"fmt"
)

// ErrUnknownVariant is returned when an identifier is outside the variant set.
var ErrUnknownVariant = errors.New("unknown feed variant")

// Variant identifies one of the mirrored syndication sources.
type Variant string

const (
	// VariantNews is the general ORF news feed.
	VariantNews Variant = "news"
	// VariantOE3 is the Ö3 radio news feed.
	VariantOE3 Variant = "oe3"
	// VariantSport is the ORF sport feed.
	VariantSport Variant = "sport"
)

// ExtractionRule holds the CSS selectors for pulling structured content out of
// one variant's article pages. Rules are immutable data; adding a variant is a
// data change, not a code change.
type ExtractionRule struct {
	// Title selectors are tried in order; the first match wins.
	Title []string
	// Image selects the lead image element.
	Image string
	// ImageAttrs are the attributes read from the image element, in
	// preference order. Lazy-load attributes come before src.
	ImageAttrs []string
	// LeadText selects the teaser strong-text node. When present and
	// non-empty it becomes the entire article body.
	LeadText string
	// Paragraphs selects the body paragraph nodes, in document order.
	Paragraphs string
}

// Config describes one feed variant: its URLs, display title, and rule.
type Config struct {
	Variant  Variant
	Title    string
	FeedURL  string
	StoryURL string
	Rule     ExtractionRule
}

// storyRule is shared by the news and sport variants, whose article pages use
// the story-lead layout with lazy-loaded figure images.
var storyRule = ExtractionRule{
	Title:      []string{"h1.story-lead-headline", "#ss-storyText>h1"},
	Image:      ".story-content>div>figure.image>img",
	ImageAttrs: []string{"data-src", "src"},
	LeadText:   ".story-lead-text>strong",
	Paragraphs: ".story-story>p",
}

// oe3Rule covers the Ö3 article layout.
var oe3Rule = ExtractionRule{
	Title:      []string{"#ss-storyText>h1"},
	Image:      ".storyWrapper>img",
	ImageAttrs: []string{"src"},
	LeadText:   ".teaser>strong",
	Paragraphs: "#ss-storyText>p",
}

// variants is the closed variant set, fixed at process start.
var variants = map[Variant]Config{
	VariantNews: {
		Variant:  VariantNews,
		Title:    "ORF News",
		FeedURL:  "https://rss.orf.at/news.xml",
		StoryURL: "https://orf.at/stories",
		Rule:     storyRule,
	},
	VariantOE3: {
		Variant:  VariantOE3,
		Title:    "&#214;3 News",
		FeedURL:  "https://rss.orf.at/oe3.xml",
		StoryURL: "https://oe3.orf.at/stories",
		Rule:     oe3Rule,
	},
	VariantSport: {
		Variant:  VariantSport,
		Title:    "ORF Sport",
		FeedURL:  "https://rss.orf.at/sport.xml",
		StoryURL: "https://sport.orf.at/stories",
		Rule:     storyRule,
	},
}

// order fixes the listing order for All.
var order = []Variant{VariantNews, VariantOE3, VariantSport}

// Parse validates an identifier against the variant set.
func Parse(name string) (Variant, error) {
	v := Variant(name)
	if _, ok := variants[v]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
	return v, nil
}

// Lookup returns the configuration for a variant. The boolean reports whether
// the variant exists.
func Lookup(v Variant) (Config, bool) {
	cfg, ok := variants[v]
	return cfg, ok
}

// All returns the variant configurations in stable order.
func All() []Config {
	configs := make([]Config, 0, len(order))
	for _, v := range order {
		configs = append(configs, variants[v])
	}
	return configs
}

// StoryPageURL builds the canonical article page URL for an item ID.
func (c Config) StoryPageURL(itemID string) string {
	return fmt.Sprintf("%s/%s/", c.StoryURL, itemID)
}
