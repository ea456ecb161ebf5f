package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"MarketScanner/internal/app"
	"MarketScanner/internal/config"
	"MarketScanner/internal/logging"
)

var (
	application *app.Application
	logger      *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "marketscanner",
	Short:         "Competitive analysis runs: discovery, extraction, synthesis and QA",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger = logging.New(cfg.Logging.Level, cfg.Logging.Format)

		application, err = app.New(cmd.Context(), cfg, logger)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if application == nil {
			return nil
		}
		return application.Close()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, projectCmd, runCmd, serveCmd, reportCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		red := color.New(color.FgRed, color.Bold).SprintFunc()
		fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
		stop()
		os.Exit(1)
	}
}
