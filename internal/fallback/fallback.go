// Package fallback produces synthetic backend-shaped payloads so the
// dashboard stays usable while the backend is unreachable. Output matches
// the real backend's wire contract, snake_case keys included, and is only
// distinguishable from live data by its values.
package fallback

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/airview/airview/internal/api"
)

var (
	projects   = []string{"aip-data-platform", "aip-ml-serving", "aip-ingestion", "aip-analytics"}
	chartNames = []string{"airflow", "airflow-ha", "airflow-slim"}
)

// Applications generates n synthetic application records wrapped the way the
// backend wraps them ({"items": [...]}).
func Applications(n int) []byte {
	items := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("airflow-%s-%d", pick([]string{"team", "dev", "prod", "stage"}), i+1)
		namespace := fmt.Sprintf("airflow-dummy-%d", i+1)
		items = append(items, map[string]any{
			"name":               name,
			"namespace":          namespace,
			"project":            pick(projects),
			"chart_name":         pick(chartNames),
			"chart_revision":     fmt.Sprintf("1.%d.%d", rand.Intn(12), rand.Intn(30)),
			"chart_repo_url":     "https://charts.example.com/airflow",
			"status":             string(pick(api.HealthStatuses)),
			"external_url":       fmt.Sprintf("https://%s.airflow.example.com", namespace),
			"file_browser_url":   fmt.Sprintf("https://files.example.com/%s", namespace),
			"creation_timestamp": randomTimestamp(),
			"auth_sync":          rand.Intn(2) == 0,
		})
	}
	buf, _ := json.Marshal(map[string]any{"items": items})
	return buf
}

// Metrics generates n synthetic instance-metrics records as newline-delimited
// JSON, matching the metrics endpoint's contract. Usage values stay within a
// realistic fraction of their quotas.
func Metrics(n int) []byte {
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		storageQuota := 250.0
		memQuota := 16.0
		cpuQuota := 8.0
		line := map[string]any{
			"namespace":             fmt.Sprintf("airflow-dummy-%d", i+1),
			"dag_run_success_count": rand.Intn(200),
			"dag_run_failure_count": rand.Intn(10),
			"db_usage":              round2(rand.Float64() * 1024),
			"s3_bucket_usage":       round2(rand.Float64() * storageQuota),
			"s3_bucket_quota":       storageQuota,
			"cpu_request_cores":     round2(rand.Float64() * cpuQuota / 2),
			"cpu_limit_cores":       round2(cpuQuota/2 + rand.Float64()*cpuQuota/2),
			"cpu_quota_cores":       cpuQuota,
			"mem_request_gb":        round2(rand.Float64() * memQuota / 2),
			"mem_limit_gb":          round2(memQuota/2 + rand.Float64()*memQuota/2),
			"mem_quota_gb":          memQuota,
		}
		b, _ := json.Marshal(line)
		buf.Write(b)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func pick[T any](options []T) T {
	return options[rand.Intn(len(options))]
}

func randomTimestamp() string {
	age := time.Duration(rand.Intn(90*24)) * time.Hour
	return time.Now().Add(-age).UTC().Format(time.RFC3339)
}

func round2(f float64) float64 {
	return float64(int(f*100)) / 100
}
