package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/abelbrown/vibenews/internal/model"
	"github.com/abelbrown/vibenews/internal/otel"
)

const titleColWidth = 60

func fetchCmd(cfgPath *string) *cobra.Command {
	var (
		asJSON  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch one batch and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(*cfgPath, setupOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()
			rt.emit(otel.KindStartup, "fetch")

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			articles := rt.agg.FetchLatestArticles(ctx)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), articles)
			}
			return writeTable(cmd.OutOrStdout(), articles, time.Now())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the batch as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "give up on slow sources after this long")
	return cmd
}

func writeJSON(w io.Writer, articles []model.Article) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(articles)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1)
)

func writeTable(w io.Writer, articles []model.Article, now time.Time) error {
	if len(articles) == 0 {
		_, err := fmt.Fprintln(w, "No articles found.")
		return err
	}

	rows := make([][]string, 0, len(articles))
	for _, a := range articles {
		rows = append(rows, []string{
			strconv.Itoa(a.ID),
			a.Source,
			runewidth.Truncate(a.Title, titleColWidth, "..."),
			a.PublishedLabel(now),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("62"))).
		Headers("ID", "SOURCE", "TITLE", "PUBLISHED").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 3:
				return mutedStyle
			default:
				return cellStyle
			}
		})

	_, err := fmt.Fprintf(w, "%s\n%d articles\n", t.Render(), len(articles))
	return err
}
