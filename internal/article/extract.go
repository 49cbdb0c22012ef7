package article

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/retronews/retronews/internal/entities"
	"github.com/retronews/retronews/internal/source"
)

// Extract applies an extraction rule to a parsed story document. It is a pure
// function of document and rule: the same input always yields the same
// article. Missing title, image, or body nodes yield empty fields.
func Extract(doc *goquery.Document, rule source.ExtractionRule, itemID string) Article {
	return Article{
		ID:            itemID,
		Title:         entities.Encode(extractTitle(doc, rule)),
		Image:         extractImage(doc, rule),
		Paragraphs:    sanitizeParagraphs(extractParagraphs(doc, rule)),
		FormattedDate: datePlaceholder,
	}
}

// extractTitle tries the rule's title selectors in order and returns the
// inner markup of the first match.
func extractTitle(doc *goquery.Document, rule source.ExtractionRule) string {
	for _, sel := range rule.Title {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if markup, err := node.Html(); err == nil {
			return markup
		}
	}
	return ""
}

// extractImage returns the lead image URL, honoring the rule's attribute
// preference order so lazy-load attributes win over the eager src.
func extractImage(doc *goquery.Document, rule source.ExtractionRule) string {
	node := doc.Find(rule.Image).First()
	if node.Length() == 0 {
		return ""
	}

	for _, attr := range rule.ImageAttrs {
		if v, ok := node.Attr(attr); ok && v != "" {
			return v
		}
	}
	return ""
}

// extractParagraphs returns the raw body paragraphs. A non-empty lead teaser
// short-circuits the body: it becomes the single paragraph.
func extractParagraphs(doc *goquery.Document, rule source.ExtractionRule) []string {
	lead := doc.Find(rule.LeadText).First()
	if lead.Length() > 0 {
		if markup, err := lead.Html(); err == nil && strings.TrimSpace(markup) != "" {
			return []string{strings.TrimSpace(markup)}
		}
	}

	var paragraphs []string
	doc.Find(rule.Paragraphs).Each(func(_ int, node *goquery.Selection) {
		markup, err := node.Html()
		if err != nil {
			return
		}
		paragraphs = append(paragraphs, strings.TrimSpace(markup))
	})

	return paragraphs
}
