package feeds

import "strings"

// KeywordFilter keeps items whose title mentions at least one keyword,
// compared case-insensitively as substrings.
type KeywordFilter struct {
	keywords []string
}

// NewKeywordFilter builds a filter over keywords. Blank keywords are ignored.
func NewKeywordFilter(keywords ...string) *KeywordFilter {
	f := &KeywordFilter{}
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			f.keywords = append(f.keywords, kw)
		}
	}
	return f
}

// Match reports whether title contains any keyword. A filter without
// keywords matches everything.
func (f *KeywordFilter) Match(title string) bool {
	if f == nil || len(f.keywords) == 0 {
		return true
	}
	lower := strings.ToLower(title)
	for _, kw := range f.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Keywords returns the normalized keyword list.
func (f *KeywordFilter) Keywords() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.keywords))
	copy(out, f.keywords)
	return out
}
