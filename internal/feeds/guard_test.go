package feeds

import (
	"context"
	"errors"
	"testing"

	"github.com/abelbrown/vibenews/internal/model"
)

type stubFetcher struct {
	name     string
	articles []model.Article
	err      error
	panics   bool
}

func (s stubFetcher) Name() string { return s.name }

func (s stubFetcher) Fetch(ctx context.Context) ([]model.Article, error) {
	if s.panics {
		panic("unexpected payload shape")
	}
	return s.articles, s.err
}

func TestGuardNumbersFromStartID(t *testing.T) {
	f := stubFetcher{name: "Dev.to", articles: []model.Article{
		{Title: "a", Content: "x"},
		{Title: "b", Content: "y"},
		{Title: "c", Content: "z"},
	}}

	got := Guard(context.Background(), f, 7)

	if len(got) != 3 {
		t.Fatalf("expected 3, got %d", len(got))
	}
	for i, a := range got {
		if a.ID != 7+i {
			t.Errorf("got[%d].ID = %d, want %d", i, a.ID, 7+i)
		}
		if a.Source != "Dev.to" {
			t.Errorf("Source defaulted to %q", a.Source)
		}
		if a.Tags == nil {
			t.Error("Tags should be non-nil")
		}
	}
}

func TestGuardDropsEmptyArticles(t *testing.T) {
	f := stubFetcher{name: "X", articles: []model.Article{
		{Title: "", Content: ""},
		{Title: "kept", Content: ""},
	}}

	got := Guard(context.Background(), f, 1)
	if len(got) != 1 || got[0].Title != "kept" || got[0].ID != 1 {
		t.Errorf("got %+v", got)
	}
}

func TestGuardErrorBecomesEmpty(t *testing.T) {
	var reported []string
	ctx := WithFailureHook(context.Background(), func(source string, err error) {
		reported = append(reported, source+": "+err.Error())
	})

	got := Guard(ctx, stubFetcher{name: "Reddit", err: errors.New("401")}, 1)

	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil result, got %v", got)
	}
	if len(reported) != 1 || reported[0] != "Reddit: 401" {
		t.Errorf("reported = %v", reported)
	}
}

func TestGuardRecoversPanic(t *testing.T) {
	var reported int
	ctx := WithFailureHook(context.Background(), func(string, error) { reported++ })

	got := Guard(ctx, stubFetcher{name: "Medium", panics: true}, 1)

	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil result, got %v", got)
	}
	if reported != 1 {
		t.Errorf("panic reported %d times, want 1", reported)
	}
}

func TestGuardWithoutHook(t *testing.T) {
	got := Guard(context.Background(), stubFetcher{name: "HN", err: errors.New("timeout")}, 1)
	if len(got) != 0 {
		t.Errorf("got %v", got)
	}
}
