package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/airview/airview/internal/api"
)

var autosyncEnable bool

// autosyncCmd represents the autosync command
var autosyncCmd = &cobra.Command{
	Use:   "autosync [app-name]",
	Short: "Toggle autosync for an application",
	Long:  `Set the ArgoCD autosync flag for the named application. Requires an authenticated dashboard or a dashboard running with auth disabled.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient()

		body := map[string]bool{"autoSync": autosyncEnable}
		resp, err := client.Put("/api/applications/"+args[0]+"/autosync", body)
		if err != nil {
			return fmt.Errorf("error connecting to dashboard: %v", err)
		}
		defer resp.Body.Close()

		if err := CheckResponse(resp); err != nil {
			return err
		}

		var result api.APIResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("error decoding response: %v", err)
		}
		fmt.Println(result.Message)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(autosyncCmd)

	autosyncCmd.Flags().BoolVar(&autosyncEnable, "enable", true, "Enable (true) or disable (false) autosync")
}
