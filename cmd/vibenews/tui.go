package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/abelbrown/vibenews/internal/coord"
	"github.com/abelbrown/vibenews/internal/otel"
	"github.com/abelbrown/vibenews/internal/tui"
)

func tuiCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Browse the latest batch in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), *cfgPath)
		},
	}
}

func runTUI(parent context.Context, cfgPath string) error {
	rt, err := setup(cfgPath, setupOptions{quietLogs: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	rt.emit(otel.KindStartup, "tui")

	interval := rt.cfg.Fetch.Interval
	if interval <= 0 {
		app := tui.NewApp(tui.FetchCmd(ctx, rt.agg), rt.ring)
		if _, err := tea.NewProgram(app, tea.WithAltScreen()).Run(); err != nil {
			return fmt.Errorf("run tui: %w", err)
		}
		rt.emit(otel.KindShutdown, "tui stopped")
		return nil
	}

	// The poller delivers the first batch and every later one; r runs an
	// extra batch through it so Latest stays current.
	poller := coord.New(rt.agg, interval)
	refresh := func() tea.Cmd {
		return func() tea.Msg {
			b := poller.RunOnce(ctx)
			return tui.BatchLoaded{Articles: b.Articles, FetchedAt: b.FetchedAt, Err: ctx.Err()}
		}
	}

	program := tea.NewProgram(tui.NewApp(refresh, rt.ring).Pushed(), tea.WithAltScreen())
	poller.Start(ctx, func(b coord.Batch) {
		program.Send(tui.BatchLoaded{Articles: b.Articles, FetchedAt: b.FetchedAt})
	})

	_, err = program.Run()
	cancel()
	poller.Wait()
	rt.emit(otel.KindShutdown, "tui stopped")
	if err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
