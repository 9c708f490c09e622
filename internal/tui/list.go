package tui

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/abelbrown/vibenews/internal/model"
)

const (
	sourceColWidth = 14
	ageColWidth    = 8
	minTitleWidth  = 20
)

// RenderList renders one line per article, scrolled so the cursor stays
// visible within height lines.
func RenderList(articles []model.Article, cursor, width, height int, now time.Time) string {
	if len(articles) == 0 {
		return HelpStyle.Render("No articles found. Press 'r' to refresh.")
	}
	if height < 1 {
		height = 1
	}

	offset := scrollOffset(cursor, len(articles), height)
	end := min(offset+height, len(articles))

	var b strings.Builder
	for i := offset; i < end; i++ {
		b.WriteString(renderLine(articles[i], i == cursor, width, now))
		b.WriteString("\n")
	}
	return b.String()
}

// scrollOffset returns the first visible index for a window of height rows.
func scrollOffset(cursor, total, height int) int {
	if total == 0 || cursor < 0 {
		return 0
	}
	if cursor >= total {
		cursor = total - 1
	}
	if cursor >= height {
		return cursor - height + 1
	}
	return 0
}

func renderLine(a model.Article, selected bool, width int, now time.Time) string {
	source := runewidth.FillRight(runewidth.Truncate(a.Source, sourceColWidth, "…"), sourceColWidth)
	age := runewidth.FillLeft(formatAgeShort(a, now), ageColWidth)

	titleWidth := max(width-sourceColWidth-ageColWidth-2, minTitleWidth)
	title := runewidth.Truncate(a.Title, titleWidth, "...")
	title = runewidth.FillRight(title, titleWidth)

	if selected {
		return SelectedItem.Render(source + " " + title + " " + age)
	}
	sourceStyle := lipgloss.NewStyle().Foreground(sourcePaletteColor(a.Source))
	return sourceStyle.Render(source) + " " + NormalItem.Render(title) + " " + MetaItem.Render(age)
}

func formatAgeShort(a model.Article, now time.Time) string {
	t, ok := a.Published()
	if !ok {
		return "?"
	}
	age := now.Sub(t)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}

// sourceColors gives each source a stable color in the list.
var sourceColors = []lipgloss.Color{"33", "42", "166", "170", "178", "38", "135", "203"}

func sourcePaletteColor(name string) lipgloss.Color {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return sourceColors[h.Sum32()%uint32(len(sourceColors))]
}

// RenderDetail renders the expanded view of one article.
func RenderDetail(a model.Article, width int, now time.Time) string {
	panelWidth := max(min(width-4, 100), 30)

	lines := []string{
		DetailTitle.Render(a.Title),
		MetaItem.Render(fmt.Sprintf("%s · %s · %s", a.Source, a.Author, a.PublishedLabel(now))),
		"",
		wrap(a.Summary(400), panelWidth-4),
	}
	if len(a.Tags) > 0 {
		lines = append(lines, "", MetaItem.Render("tags: "+strings.Join(a.Tags, ", ")))
	}
	if a.URL != "" {
		lines = append(lines, "", a.URL)
	}
	return DetailPanel.Width(panelWidth).Render(strings.Join(lines, "\n"))
}

// wrap breaks s on spaces so no line is wider than width cells.
func wrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	var b strings.Builder
	lineWidth := 0
	for _, word := range strings.Fields(s) {
		w := runewidth.StringWidth(word)
		if lineWidth > 0 && lineWidth+1+w > width {
			b.WriteString("\n")
			lineWidth = 0
		} else if lineWidth > 0 {
			b.WriteString(" ")
			lineWidth++
		}
		b.WriteString(word)
		lineWidth += w
	}
	return b.String()
}

// RenderStatusBar renders the bottom bar: position or spinner on the left,
// key hints on the right.
func RenderStatusBar(cursor, total, width int, loading string, fetchedAt, now time.Time) string {
	var left string
	switch {
	case loading != "":
		left = loading + " Fetching... "
	case total == 0:
		left = " 0/0 "
	default:
		left = fmt.Sprintf(" %d/%d ", cursor+1, total)
	}
	if !fetchedAt.IsZero() && loading == "" {
		left += StatusBarText.Render("updated " + formatAgeSince(now.Sub(fetchedAt)) + " ")
	}

	keys := []string{
		StatusBarKey.Render("j/k") + StatusBarText.Render(":nav"),
		StatusBarKey.Render("Enter") + StatusBarText.Render(":details"),
		StatusBarKey.Render("r") + StatusBarText.Render(":refresh"),
		StatusBarKey.Render("D") + StatusBarText.Render(":debug"),
		StatusBarKey.Render("q") + StatusBarText.Render(":quit"),
	}
	hints := strings.Join(keys, " ")

	padding := max(width-lipgloss.Width(left)-lipgloss.Width(hints)-2, 0)
	return StatusBar.Width(width).Render(left + strings.Repeat(" ", padding) + hints)
}

func formatAgeSince(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}
