package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reportRunID string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the stored markdown report of a run",
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := application.Report(cmd.Context(), reportRunID)
		if err != nil {
			return err
		}
		fmt.Println(report.Markdown)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportRunID, "run", "", "run id")
	_ = reportCmd.MarkFlagRequired("run")
}
