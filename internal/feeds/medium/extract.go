package medium

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/abelbrown/vibenews/internal/logging"
)

// ErrMalformedItem marks an <item> block that cannot be turned into an
// article.
var ErrMalformedItem = errors.New("medium: malformed item")

// Item is one <item> of the feed, with CDATA wrappers removed.
type Item struct {
	Title       string
	Description string
	Author      string
	PubDate     string
	Link        string
	GUID        string
}

const (
	cdataOpen  = "<![CDATA["
	cdataClose = "]]>"
)

var (
	itemRe        = regexp.MustCompile(`(?s)<item>(.*?)</item>`)
	titleRe       = fieldRe("title")
	descriptionRe = fieldRe("description")
	creatorRe     = fieldRe("dc:creator")
	pubDateRe     = fieldRe("pubDate")
	linkRe        = fieldRe("link")
	guidRe        = fieldRe("guid")
)

// fieldRe matches <tag ...>value</tag>, attributes allowed.
func fieldRe(tag string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)<` + regexp.QuoteMeta(tag) + `(?:\s[^>]*)?>(.*?)</` + regexp.QuoteMeta(tag) + `>`)
}

// ExtractItems returns every well-formed <item> of doc in feed order.
// Malformed items are logged and skipped.
func ExtractItems(doc string) []Item {
	blocks := itemRe.FindAllStringSubmatch(doc, -1)
	items := make([]Item, 0, len(blocks))
	for i, m := range blocks {
		item, err := ParseItem(m[1])
		if err != nil {
			logging.Warn("medium: skipping item", "index", i, "error", err)
			continue
		}
		items = append(items, item)
	}
	return items
}

// ParseItem extracts the fields of one item body (the text between <item>
// and </item>).
func ParseItem(body string) (Item, error) {
	var item Item
	fields := []struct {
		re  *regexp.Regexp
		dst *string
	}{
		{titleRe, &item.Title},
		{descriptionRe, &item.Description},
		{creatorRe, &item.Author},
		{pubDateRe, &item.PubDate},
		{linkRe, &item.Link},
		{guidRe, &item.GUID},
	}
	for _, f := range fields {
		m := f.re.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		v, err := unwrapCDATA(m[1])
		if err != nil {
			return Item{}, err
		}
		*f.dst = v
	}

	if item.Link == "" && item.GUID == "" {
		return Item{}, fmt.Errorf("%w: no link or guid", ErrMalformedItem)
	}
	return item, nil
}

func unwrapCDATA(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if !strings.HasPrefix(v, cdataOpen) {
		return v, nil
	}
	v = strings.TrimPrefix(v, cdataOpen)
	end := strings.LastIndex(v, cdataClose)
	if end < 0 {
		return "", fmt.Errorf("%w: unterminated CDATA", ErrMalformedItem)
	}
	return strings.TrimSpace(v[:end]), nil
}
