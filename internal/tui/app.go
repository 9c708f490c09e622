package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/vibenews/internal/model"
	"github.com/abelbrown/vibenews/internal/otel"
)

// Batcher produces a fresh batch. *feeds.Aggregator satisfies it.
type Batcher interface {
	FetchLatestArticles(ctx context.Context) []model.Article
}

// FetchCmd returns a command that runs one batch and reports it as
// BatchLoaded.
func FetchCmd(ctx context.Context, b Batcher) func() tea.Cmd {
	return func() tea.Cmd {
		return func() tea.Msg {
			articles := b.FetchLatestArticles(ctx)
			return BatchLoaded{Articles: articles, FetchedAt: time.Now(), Err: ctx.Err()}
		}
	}
}

// App is the root Bubble Tea model.
// App does not fetch on its own; batches arrive as BatchLoaded messages.
type App struct {
	fetch  func() tea.Cmd
	ring   *otel.RingBuffer
	now    func() time.Time
	pushed bool

	articles  []model.Article
	fetchedAt time.Time
	cursor    int
	err       error

	width, height int
	ready         bool
	loading       bool
	detail        bool
	debug         bool

	spinner spinner.Model
}

// NewApp creates an App. fetch may be nil when batches are pushed from
// outside; ring may be nil to disable the debug overlay.
func NewApp(fetch func() tea.Cmd, ring *otel.RingBuffer) App {
	return App{
		fetch:   fetch,
		ring:    ring,
		now:     time.Now,
		loading: fetch != nil,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(SpinnerStyle)),
	}
}

// Pushed returns a copy of a that waits for the first batch to be sent in
// from outside instead of fetching it in Init. fetch still serves refreshes.
func (a App) Pushed() App {
	a.pushed = true
	a.loading = true
	return a
}

// Init starts the first fetch.
func (a App) Init() tea.Cmd {
	switch {
	case a.pushed:
		return a.spinner.Tick
	case a.fetch == nil:
		return nil
	}
	return tea.Batch(a.fetch(), a.spinner.Tick)
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		return a, nil

	case BatchLoaded:
		a.loading = false
		if msg.Err != nil {
			a.err = msg.Err
			return a, nil
		}
		a.err = nil
		a.articles = msg.Articles
		a.fetchedAt = msg.FetchedAt
		if a.cursor >= len(a.articles) {
			a.cursor = max(len(a.articles)-1, 0)
		}
		return a, nil

	case spinner.TickMsg:
		if !a.loading {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a.err = nil

	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit

	case "esc":
		a.detail = false
		a.debug = false

	case "j", "down":
		if a.cursor < len(a.articles)-1 {
			a.cursor++
		}

	case "k", "up":
		if a.cursor > 0 {
			a.cursor--
		}

	case "g", "home":
		a.cursor = 0

	case "G", "end":
		a.cursor = max(len(a.articles)-1, 0)

	case "enter":
		if len(a.articles) > 0 {
			a.detail = !a.detail
		}

	case "D":
		a.debug = !a.debug

	case "r":
		if a.fetch != nil && !a.loading {
			a.loading = true
			return a, tea.Batch(a.fetch(), a.spinner.Tick)
		}
	}

	return a, nil
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}
	now := a.now()

	if a.debug {
		return debugOverlay(a.ring, a.width, a.height-1, now) + "\n" + debugStatusBar(a.width)
	}

	var body string
	if a.detail && a.cursor < len(a.articles) {
		body = RenderDetail(a.articles[a.cursor], a.width, now) + "\n"
	} else {
		contentHeight := a.height - 1
		if a.err != nil {
			contentHeight--
		}
		body = RenderList(a.articles, a.cursor, a.width, contentHeight, now)
	}

	errorBar := ""
	if a.err != nil {
		errorBar = ErrorStyle.Width(a.width).Render("Error: "+a.err.Error()) + "\n"
	}

	loading := ""
	if a.loading {
		loading = a.spinner.View()
	}
	return body + errorBar + RenderStatusBar(a.cursor, len(a.articles), a.width, loading, a.fetchedAt, now)
}

// Cursor returns the current cursor position.
func (a App) Cursor() int {
	return a.cursor
}

// Articles returns the displayed batch.
func (a App) Articles() []model.Article {
	return a.articles
}
