package cmd

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/airview/airview/internal/api"
)

var (
	listSearch    string
	listSortBy    string
	listSortOrder string
	listPage      int
	listPageSize  int
	listJSON      bool
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List Airflow applications",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient()

		q := url.Values{}
		if listSearch != "" {
			q.Set("search", listSearch)
		}
		if listSortBy != "" {
			q.Set("sortBy", listSortBy)
			q.Set("sortOrder", listSortOrder)
		}
		q.Set("page", fmt.Sprint(listPage))
		q.Set("limit", fmt.Sprint(listPageSize))

		resp, err := client.Get("/api/applications?" + q.Encode())
		if err != nil {
			return fmt.Errorf("error fetching applications: %v", err)
		}
		defer resp.Body.Close()

		if err := CheckResponse(resp); err != nil {
			return err
		}

		var result api.PaginatedResult[api.ApplicationRecord]
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("error decoding response: %v", err)
		}

		if listJSON {
			PrintJSON(result)
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "NAME\tNAMESPACE\tPROJECT\tSTATUS\tCHART\tREVISION\tAUTOSYNC")
		for _, app := range result.Items {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
				app.Name, app.Namespace, app.Project, app.Status, app.ChartName, app.ChartRevision, app.AutoSyncEnabled)
		}
		w.Flush()
		fmt.Printf("\nPage %d/%d (%d total)\n", result.PageNumber, result.TotalPages, result.TotalCount)
		return nil
	},
}

func init() {
	appsCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listSearch, "search", "", "Substring filter on name, namespace and project")
	listCmd.Flags().StringVar(&listSortBy, "sort-by", "", "Field to sort by (e.g. name, creationTimestamp)")
	listCmd.Flags().StringVar(&listSortOrder, "sort-order", "asc", "Sort order: asc or desc")
	listCmd.Flags().IntVar(&listPage, "page", 1, "Page number")
	listCmd.Flags().IntVar(&listPageSize, "limit", 10, "Page size")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print raw JSON instead of a table")
}
