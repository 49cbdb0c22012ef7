// Package entities provides markup-safe text encoding for legacy clients.
//
// Old WAP and early-mobile renderers only understand the XML named entities
// plus numeric character references, so everything outside printable ASCII is
// encoded numerically rather than relying on the client's charset handling.
package entities

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// asciiPrintableMax is the highest rune emitted verbatim.
const asciiPrintableMax = 0x7E

// asciiPrintableMin is the lowest rune emitted verbatim.
const asciiPrintableMin = 0x20

// Encode returns text with the five XML named entities escaped and every
// rune outside printable ASCII replaced by a numeric character reference.
func Encode(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	for _, r := range text {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&apos;")
		default:
			if r < asciiPrintableMin || r > asciiPrintableMax {
				fmt.Fprintf(&b, "&#%d;", r)
			} else {
				b.WriteRune(r)
			}
		}
	}

	return b.String()
}

// EncodeTextNodes encodes only the text runs of an HTML fragment, leaving tag
// syntax untouched. Entity references already present in the input are decoded
// by the tokenizer and re-encoded, so the output is well-formed either way.
// Malformed fragments are returned with whatever the tokenizer could salvage.
func EncodeTextNodes(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))

	var b strings.Builder
	b.Grow(len(fragment))

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// EOF or a malformed tail; either way emit what was
			// tokenized.
			return b.String()
		}

		if tt == html.TextToken {
			b.WriteString(Encode(string(z.Text())))
			continue
		}

		b.Write(z.Raw())
	}
}
