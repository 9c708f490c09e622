// Command vibenews aggregates AI news from Hacker News, Dev.to, Reddit,
// Medium and any configured RSS feeds.
//
// Usage:
//
//	vibenews serve          Run the web server (and the background poller when configured)
//	vibenews fetch          Fetch one batch and print it
//	vibenews fetch --json   Fetch one batch as JSON
//	vibenews tui            Browse a batch in the terminal
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/abelbrown/vibenews/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = ""

func main() {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:           "vibenews",
		Short:         "AI news aggregator",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath, "path to the YAML config file")

	rootCmd.AddCommand(serveCmd(&cfgPath))
	rootCmd.AddCommand(fetchCmd(&cfgPath))
	rootCmd.AddCommand(tuiCmd(&cfgPath))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := version
			if v == "" {
				v = "dev"
			}
			cmd.Printf("vibenews %s\n", v)
			return nil
		},
	}
}
