package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"MarketScanner/internal/domain"
)

var (
	runProjectID string
	runShowLogs  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Create a run for a project and execute it now",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		outcome, runErr := application.StartRun(ctx, runProjectID)
		if outcome.Run.ID == "" {
			return runErr
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n", cyan("=== Run "+outcome.Run.ID+" ==="))

		status := string(outcome.Run.Status)
		switch outcome.Run.Status {
		case domain.RunStatusComplete:
			status = green(status)
		case domain.RunStatusError:
			status = red(status)
		default:
			status = yellow(status)
		}
		fmt.Printf("Status:   %s\n", status)
		if outcome.Run.LastNote != "" {
			fmt.Printf("Note:     %s\n", gray(outcome.Run.LastNote))
		}
		fmt.Printf("Findings: %d\n", len(outcome.Findings))

		if len(outcome.Alerts) > 0 {
			fmt.Printf("\n%s\n", yellow("Alerts:"))
			for _, a := range outcome.Alerts {
				fmt.Printf("  %s %s\n", yellow("!"), a.Message)
			}
		}

		fmt.Printf("\n%s\n", yellow("Guardrails:"))
		if len(outcome.Issues) == 0 {
			fmt.Printf("  %s all checks passed\n", green("✓"))
		}
		for _, issue := range outcome.Issues {
			fmt.Printf("  %s %s\n", red("✗"), issue)
		}

		if runShowLogs {
			lines, err := application.RunLogs(ctx, outcome.Run.ID)
			if err != nil {
				return err
			}
			fmt.Printf("\n%s\n", yellow("Log:"))
			for _, l := range lines {
				fmt.Printf("  %s %-5s %s\n", gray(l.CreatedAt.Format("15:04:05")), l.Level, l.Message)
			}
		}
		fmt.Println()
		return runErr
	},
}

func init() {
	runCmd.Flags().StringVar(&runProjectID, "project", "", "project id")
	runCmd.Flags().BoolVar(&runShowLogs, "logs", false, "print the run log after completion")
	_ = runCmd.MarkFlagRequired("project")
}
