package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"NewsDigest/internal/app"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check database, Ollama, output, and Telegram configuration",
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewWithConfig(loadConfig())
	if err != nil {
		return err
	}
	defer application.Close()

	if err := application.Doctor(ctx); err != nil {
		return fmt.Errorf("doctor found problems: %w", err)
	}

	fmt.Println("All checks passed.")
	return nil
}
