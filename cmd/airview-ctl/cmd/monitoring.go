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
	monSearch    string
	monSortBy    string
	monSortOrder string
	monPage      int
	monPageSize  int
	monPeriod    string
	monJSON      bool
)

// monitoringCmd represents the monitoring command
var monitoringCmd = &cobra.Command{
	Use:   "monitoring",
	Short: "Show per-instance resource usage",
	Long:  `Show applications joined with their resource metrics (storage, DB usage, DAG run counts, CPU and memory).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient()

		q := url.Values{}
		if monSearch != "" {
			q.Set("search", monSearch)
		}
		if monSortBy != "" {
			q.Set("sortBy", monSortBy)
			q.Set("sortOrder", monSortOrder)
		}
		if monPeriod != "" {
			q.Set("period", monPeriod)
		}
		q.Set("page", fmt.Sprint(monPage))
		q.Set("limit", fmt.Sprint(monPageSize))

		resp, err := client.Get("/api/monitoring?" + q.Encode())
		if err != nil {
			return fmt.Errorf("error fetching monitoring data: %v", err)
		}
		defer resp.Body.Close()

		if err := CheckResponse(resp); err != nil {
			return err
		}

		var result api.PaginatedResult[api.MonitoredApplicationRecord]
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("error decoding response: %v", err)
		}

		if monJSON {
			PrintJSON(result)
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "NAME\tNAMESPACE\tSTORAGE (GB)\tDB (MB)\tRUNS OK\tRUNS FAILED")
		for _, app := range result.Items {
			fmt.Fprintf(w, "%s\t%s\t%.2f/%.2f\t%.2f\t%d\t%d\n",
				app.Name, app.Namespace,
				app.Metrics.StorageUsedGB, app.Metrics.StorageQuotaGB,
				app.Metrics.DBUsageMB,
				app.Metrics.SuccessfulRunCount, app.Metrics.FailedRunCount)
		}
		w.Flush()
		fmt.Printf("\nPage %d/%d (%d total)\n", result.PageNumber, result.TotalPages, result.TotalCount)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(monitoringCmd)

	monitoringCmd.Flags().StringVar(&monSearch, "search", "", "Substring filter on name, namespace and project")
	monitoringCmd.Flags().StringVar(&monSortBy, "sort-by", "", "Field to sort by (supports dotted paths, e.g. metrics.storageUsedGB)")
	monitoringCmd.Flags().StringVar(&monSortOrder, "sort-order", "asc", "Sort order: asc or desc")
	monitoringCmd.Flags().StringVar(&monPeriod, "period", "", "Metrics aggregation period forwarded to the backend")
	monitoringCmd.Flags().IntVar(&monPage, "page", 1, "Page number")
	monitoringCmd.Flags().IntVar(&monPageSize, "limit", 10, "Page size")
	monitoringCmd.Flags().BoolVar(&monJSON, "json", false, "Print raw JSON instead of a table")
}
