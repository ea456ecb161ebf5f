package main

import (
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the task scheduler (auto re-runs, log cleanup) until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return application.Serve(cmd.Context())
	},
}
