package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/abelbrown/vibenews/internal/otel"
)

const (
	// debugChrome is the height taken by DebugPanel's border and padding.
	debugChrome = 4
	// debugRecent is how many of the newest events the overlay lists.
	debugRecent = 20
)

// sourceHealth is the outcome of the most recent fetch from one source.
type sourceHealth struct {
	name  string
	at    time.Time
	count int
	dur   time.Duration
	err   string
}

// latestPerSource folds fetch.complete and fetch.error events into one
// entry per source, in order of first appearance.
func latestPerSource(events []otel.Event) []sourceHealth {
	var order []string
	byName := make(map[string]sourceHealth)
	for _, e := range events {
		if e.Source == "" || (e.Kind != otel.KindFetchComplete && e.Kind != otel.KindFetchError) {
			continue
		}
		if _, seen := byName[e.Source]; !seen {
			order = append(order, e.Source)
		}
		byName[e.Source] = sourceHealth{name: e.Source, at: e.Time, count: e.Count, dur: e.Dur, err: e.Err}
	}

	out := make([]sourceHealth, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out
}

// debugOverlay renders the event ring as a panel: totals, per-source health
// and the newest events. It is empty without a ring.
func debugOverlay(ring *otel.RingBuffer, width, height int, now time.Time) string {
	if ring == nil {
		return ""
	}

	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	stats := ring.Stats()
	line(DebugHeaderStyle.Render("Pipeline Stats"))
	line("  Fetches:    %d started, %d complete, %d errors",
		stats[otel.KindFetchStart], stats[otel.KindFetchComplete], stats[otel.KindFetchError])
	line("  Batches:    %d", stats[otel.KindFetchBatch])
	line("  Store:      %d errors", stats[otel.KindStoreError])
	line("  Buffer:     %d / %d events", ring.Len(), ring.Cap())

	if health := latestPerSource(ring.Snapshot()); len(health) > 0 {
		line("")
		line(DebugHeaderStyle.Render("Sources"))
		for _, h := range health {
			name := runewidth.FillRight(runewidth.Truncate(h.name, 24, "…"), 24)
			if h.err != "" {
				line("  %s  %s  %s", name, ErrorStyle.UnsetPadding().Render("failed"), runewidth.Truncate(h.err, 36, "…"))
				continue
			}
			line("  %s  ok      %3d items in %s, %s ago", name, h.count, formatAge(h.dur), formatAge(now.Sub(h.at)))
		}
	}

	line("")
	line(DebugHeaderStyle.Render("Recent Events"))
	for _, e := range ring.Last(debugRecent) {
		parts := []string{fmt.Sprintf("  %6s  %-16s", formatAge(now.Sub(e.Time)), e.Kind)}
		if e.Source != "" {
			parts = append(parts, runewidth.Truncate(e.Source, 16, "…"))
		}
		if e.Count > 0 {
			parts = append(parts, fmt.Sprintf("n=%d", e.Count))
		}
		if e.Method != "" {
			parts = append(parts, fmt.Sprintf("%s %s %d", e.Method, e.Path, e.Status))
		}
		if e.Msg != "" {
			parts = append(parts, runewidth.Truncate(e.Msg, 40, "…"))
		}
		if e.Err != "" {
			parts = append(parts, "ERR:"+runewidth.Truncate(e.Err, 30, "…"))
		}
		line("%s", strings.Join(parts, "  "))
	}

	rows := strings.Split(strings.TrimSuffix(b.String(), "\n"), "\n")
	rows = rows[:min(len(rows), max(height-debugChrome, 1))]

	return DebugPanel.Width(max(min(76, width-4), 20)).Render(strings.Join(rows, "\n"))
}

// formatAge renders a duration compactly. Negative values clamp to 0ms.
func formatAge(d time.Duration) string {
	switch {
	case d < 0:
		return "0ms"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
}

func debugStatusBar(width int) string {
	return StatusBar.Width(width).Render("  [DEBUG]  " + StatusBarKey.Render("D") + StatusBarText.Render(":close"))
}
