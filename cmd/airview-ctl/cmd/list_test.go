package cmd

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airview/airview/internal/api"
)

func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)

	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	runErr := fn()
	w.Close()

	buf, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(buf), runErr
}

func TestListPrintsChartNameAndRevision(t *testing.T) {
	dashboard := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/applications", r.URL.Path)
		json.NewEncoder(w).Encode(api.PaginatedResult[api.ApplicationRecord]{
			Items: []api.ApplicationRecord{{
				Name:          "airflow-one",
				Namespace:     "ns-one",
				Project:       "aip-x",
				Status:        api.StatusHealthy,
				ChartName:     "airflow-ha",
				ChartRevision: "1.4.2",
			}},
			TotalCount: 1,
			PageNumber: 1,
			PageSize:   10,
			TotalPages: 1,
		})
	}))
	defer dashboard.Close()

	viper.Set("url", dashboard.URL)
	defer viper.Set("url", "")
	listJSON = false

	out, err := captureStdout(t, func() error {
		return listCmd.RunE(listCmd, nil)
	})
	require.NoError(t, err)

	assert.Contains(t, out, "CHART")
	assert.Contains(t, out, "REVISION")
	assert.Contains(t, out, "airflow-ha")
	assert.Contains(t, out, "1.4.2")
}
