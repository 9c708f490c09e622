package feeds

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CleanHTML strips markup and entities from s and collapses whitespace.
// Markup that arrives entity-escaped (&lt;p&gt;) is unescaped first.
func CleanHTML(s string) string {
	doc, ok := parseFragment(s)
	if !ok {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// FirstImage returns the src of the first <img> in s, or "".
func FirstImage(s string) string {
	doc, ok := parseFragment(s)
	if !ok {
		return ""
	}
	src, _ := doc.Find("img[src]").First().Attr("src")
	return strings.TrimSpace(src)
}

func parseFragment(s string) (*goquery.Document, bool) {
	if strings.TrimSpace(s) == "" {
		return nil, false
	}
	if strings.Contains(s, "&lt;") {
		s = html.UnescapeString(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return nil, false
	}
	return doc, true
}
