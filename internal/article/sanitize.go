package article

import (
	"strings"

	"github.com/retronews/retronews/internal/entities"
)

// emptyEmphasis is the placeholder paragraph some story pages emit where an
// image caption was removed.
const emptyEmphasis = "<strong></strong>"

// sanitizeParagraphs applies the paragraph pipeline in its fixed order:
// drop empty and placeholder-only paragraphs, normalize break markup to its
// well-formed XML form, then entity-encode the text runs without touching
// tag syntax.
func sanitizeParagraphs(paragraphs []string) []string {
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" || trimmed == emptyEmphasis {
			continue
		}

		out = append(out, entities.EncodeTextNodes(normalizeBreaks(trimmed)))
	}
	return out
}

// normalizeBreaks rewrites every break tag variant to "<br />". The document
// parser may serialize breaks as either "<br>" or "<br/>" depending on the
// source markup.
func normalizeBreaks(s string) string {
	s = strings.ReplaceAll(s, "<br />", "<br>")
	s = strings.ReplaceAll(s, "<br/>", "<br>")
	return strings.ReplaceAll(s, "<br>", "<br />")
}
