package cmd

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/airview/airview/internal/api"
)

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get [app-name]",
	Short: "Get application details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		client := NewClient()

		q := url.Values{}
		q.Set("search", name)
		q.Set("page", "1")
		q.Set("limit", "100")

		resp, err := client.Get("/api/applications?" + q.Encode())
		if err != nil {
			return fmt.Errorf("error getting application: %v", err)
		}
		defer resp.Body.Close()

		if err := CheckResponse(resp); err != nil {
			return err
		}

		var result api.PaginatedResult[api.ApplicationRecord]
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("error decoding response: %v", err)
		}

		for _, app := range result.Items {
			if app.Name == name {
				PrintJSON(app)
				return nil
			}
		}
		return fmt.Errorf("application %q not found", name)
	},
}

func init() {
	appsCmd.AddCommand(getCmd)
}
