package feeds

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/abelbrown/vibenews/internal/logging"
	"github.com/abelbrown/vibenews/internal/model"
)

// FailureFunc is told about every source that produced nothing because of
// an error or panic.
type FailureFunc func(source string, err error)

type failureKey struct{}

// WithFailureHook returns a context whose Guard calls report to fn.
func WithFailureHook(ctx context.Context, fn FailureFunc) context.Context {
	return context.WithValue(ctx, failureKey{}, fn)
}

func reportFailure(ctx context.Context, source string, err error) {
	if fn, ok := ctx.Value(failureKey{}).(FailureFunc); ok && fn != nil {
		fn(source, err)
	}
}

// Guard runs f and adapts it to the Adapter contract. Any error or panic is
// logged, reported to the context's failure hook and turned into an empty,
// non-nil result. Articles are numbered from startID.
func Guard(ctx context.Context, f Fetcher, startID int) (out []model.Article) {
	name := f.Name()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			logging.Error("source panicked", "source", name, "panic", r, "stack", string(debug.Stack()))
			reportFailure(ctx, name, err)
			out = []model.Article{}
		}
	}()

	articles, err := f.Fetch(ctx)
	if err != nil {
		logging.Warn("source fetch failed", "source", name, "error", err)
		reportFailure(ctx, name, err)
		return []model.Article{}
	}

	out = make([]model.Article, 0, len(articles))
	for _, a := range articles {
		if a.Title == "" && a.Content == "" {
			continue
		}
		if a.Source == "" {
			a.Source = name
		}
		if a.Tags == nil {
			a.Tags = []string{}
		}
		a.ID = startID + len(out)
		out = append(out, a)
	}
	return out
}
