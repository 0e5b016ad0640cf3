package cmd

import (
	"github.com/spf13/cobra"
)

// appsCmd represents the apps command
var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "Manage Airflow applications",
	Long:  `Query the Airflow applications known to the dashboard.`,
}

func init() {
	rootCmd.AddCommand(appsCmd)
}
