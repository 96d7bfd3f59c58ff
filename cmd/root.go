// Package cmd implements the shen CLI using cobra.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shen-assistant/shen/internal/app"
	"github.com/shen-assistant/shen/internal/config"
)

const version = "0.1.0"
const logo = "🦊"

var debugFlag bool

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "shen",
	Short: logo + " shen — Personal Assistant",
	Long:  logo + " shen — a personal assistant that runs tasks through plugins and MCP services",
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		setupLogging()
	},
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(pluginsCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(mcpCmd)
}

func setupLogging() {
	level := slog.LevelInfo
	if debugFlag || os.Getenv("SHEN_DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadApp loads the config and builds the service container. Every
// subcommand that needs services goes through here.
func loadApp() (*app.Container, error) {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Debug && !debugFlag {
		debugFlag = true
		setupLogging()
	}
	return app.New(cfg)
}
