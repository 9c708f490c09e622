// Package feeds turns upstream sources into one stream of articles.
//
// Each upstream lives in its own subpackage and implements Fetcher. Guard
// adapts a Fetcher to the Adapter contract the Aggregator consumes: errors
// and panics become an empty result, IDs are numbered from a start value.
package feeds

import (
	"context"

	"github.com/abelbrown/vibenews/internal/model"
)

// Adapter is what the Aggregator fans out to. FetchArticles never fails:
// a source that cannot be read contributes no articles.
type Adapter interface {
	// Name returns the human-readable source name
	Name() string

	// FetchArticles returns the source's articles, numbered from startID
	FetchArticles(ctx context.Context, startID int) []model.Article
}

// Fetcher is implemented by every source subpackage.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]model.Article, error)
}
