package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"NewsDigest/internal/app"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the digest pipeline once",
	RunE:  runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewWithConfig(loadConfig())
	if err != nil {
		return err
	}
	defer application.Close()

	summary, err := application.RunOnce(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Run complete:\n")
	fmt.Printf("  Ingested:       %d (skipped %d)\n", summary.Ingested, summary.IngestSkipped)
	fmt.Printf("  Considered:     %d\n", summary.Considered)
	fmt.Printf("  After filter:   %d\n", summary.AfterPrefilter)
	fmt.Printf("  After dedup:    %d\n", summary.AfterDedup)
	fmt.Printf("  Evaluations:    %d\n", summary.EvaluationsCreated)
	for _, artifact := range summary.Digests {
		fmt.Printf("  Digest %s: %d kept -> %s\n", artifact.Persona, artifact.Kept, artifact.JSONPath)
	}

	return nil
}
