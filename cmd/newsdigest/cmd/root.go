package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"NewsDigest/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "newsdigest",
	Short: "Local-first news digest pipeline",
	Long: `newsdigest ingests top stories from a feed, filters out noise and
semantic duplicates, scores survivors with a local LLM against persona
profiles, and writes daily digest artifacts with optional Telegram delivery.

Commands:
  run       Execute the pipeline once
  schedule  Run the pipeline on a recurring interval
  doctor    Check that external dependencies are reachable`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default from NEWSDIGEST_CONFIG)")
}

// loadConfig honors the --config flag over the environment variable.
func loadConfig() config.Config {
	if cfgFile != "" {
		os.Setenv("NEWSDIGEST_CONFIG", cfgFile)
	}
	return config.Load()
}
