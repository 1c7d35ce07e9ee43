package similarity

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// PlainText strips markup from a description and collapses whitespace.
// Input that fails to parse as HTML is returned with whitespace collapsed.
func PlainText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	text := s
	if strings.ContainsAny(s, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
		if err == nil {
			doc.Find("script, style, noscript").Remove()
			text = doc.Text()
		}
	}

	return strings.Join(strings.Fields(text), " ")
}
