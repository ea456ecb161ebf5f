package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage project profiles",
}

var projectImportFile string

var projectImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import or update a project profile from YAML",
	Long: `Reads a document with a "project" section, optional "settings"
(aiProvider, aiEnabled, searchProvider, freshnessDays, vertical) and optional
"credits" for the project owner.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(projectImportFile)
		if err != nil {
			return fmt.Errorf("read %s: %w", projectImportFile, err)
		}

		project, err := application.ImportProject(cmd.Context(), raw)
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s imported %s (%s)\n", green("✓"), project.Name, project.ID)
		return nil
	},
}

func init() {
	projectImportCmd.Flags().StringVarP(&projectImportFile, "file", "f", "", "project profile YAML")
	_ = projectImportCmd.MarkFlagRequired("file")
	projectCmd.AddCommand(projectImportCmd)
}
