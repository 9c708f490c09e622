package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abelbrown/vibenews/internal/coord"
	"github.com/abelbrown/vibenews/internal/logging"
	"github.com/abelbrown/vibenews/internal/model"
	"github.com/abelbrown/vibenews/internal/otel"
	"github.com/abelbrown/vibenews/internal/server"
)

func serveCmd(cfgPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Long: "Serve the home page, article previews and the share/click API. " +
			"With fetch.interval set, batches are also fetched in the background.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *cfgPath, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func runServe(parent context.Context, cfgPath, addr string) error {
	rt, err := setup(cfgPath, setupOptions{openStore: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := rt.cfg
	if addr == "" {
		addr = cfg.Server.Addr
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt.emit(otel.KindStartup, "serve "+addr)

	deps := server.Deps{
		Store:    rt.store,
		Articles: rt.agg,
		Events:   rt.events,
		Ring:     rt.ring,
		Metrics:  rt.metrics,
		Gatherer: rt.registry,
	}

	var poller *coord.Coordinator
	if cfg.Fetch.Interval > 0 {
		poller = coord.New(rt.agg, cfg.Fetch.Interval)
		poller.Start(ctx, nil)
		deps.Latest = func() []model.Article { return poller.Latest().Articles }
		logging.Info("background fetching enabled", "interval", poller.Interval())
	}

	srv, err := server.New(server.Options{
		Version:   appVersion(cfg),
		BaseURL:   cfg.Server.BaseURL,
		GinMode:   cfg.Server.GinMode,
		LiveFetch: cfg.Server.LiveFetch,
		APIRate:   cfg.Server.APIRate,
		APIBurst:  cfg.Server.APIBurst,
	}, deps)
	if err != nil {
		stop()
		if poller != nil {
			poller.Wait()
		}
		return err
	}

	err = srv.Run(ctx, addr, cfg.Server.ShutdownTimeout)

	stop()
	if poller != nil {
		poller.Wait()
	}
	rt.emit(otel.KindShutdown, "serve stopped")
	return err
}
