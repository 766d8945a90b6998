package websearch

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// CleanSnippet strips any HTML markup from a search result snippet and
// collapses runs of whitespace. Snippets that parse to nothing come back
// empty.
func CleanSnippet(raw string) string {
	text := raw
	if strings.Contains(raw, "<") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw)); err == nil {
			doc.Find("script, style").Remove()
			text = doc.Text()
		}
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}
