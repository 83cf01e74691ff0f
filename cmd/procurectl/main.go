package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"procurement/internal/config"
	"procurement/internal/logging"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=X.Y.Z"
	Version = "0.0.0-dev"
	envFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "procurectl",
	Short: "Procurement assistant command line",
	Long: `procurectl answers questions about California state procurement data
and manages the MongoDB collection behind the assistant.

Commands:
  ask "<question>"           Run one question through the assistant
  ingest --csv <path>        Load purchase orders from a CSV export
  stats                      Show collection statistics

Configuration is read from the environment and an optional .env file.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env-file") {
			fmt.Fprintf(os.Stderr, "⚠️  Could not load %s: %v\n", envFile, err)
		}
		logging.Init()
		if !verbose {
			slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
			log.SetOutput(io.Discard)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show operational logs")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(statsCmd)
}

// loadConfig reads and validates configuration. Commands that never call the
// model skip the credential check.
func loadConfig(needModel bool) (*config.Config, error) {
	cfg := config.Load()
	if needModel {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
