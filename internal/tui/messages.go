// Package tui is the terminal browser for one vibenews batch.
package tui

import (
	"time"

	"github.com/abelbrown/vibenews/internal/model"
)

// BatchLoaded is sent when a batch has been fetched, by a refresh or by the
// background poller.
type BatchLoaded struct {
	Articles  []model.Article
	FetchedAt time.Time
	Err       error
}
