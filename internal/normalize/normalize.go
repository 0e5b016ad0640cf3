// Package normalize converts the heterogeneous payload shapes returned by
// the backend into the one canonical record shape the rest of the pipeline
// operates on. It is the only place that branches on payload shape.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/airview/airview/internal/api"
)

// Applications normalizes a raw applications payload. Malformed records are
// dropped and counted, never fatal; a body with no interpretable structure
// returns api.ErrMalformedResponse.
func Applications(raw []byte) ([]api.ApplicationRecord, int, error) {
	objs, err := extractObjects(raw)
	if err != nil {
		return nil, 0, err
	}

	records := make([]api.ApplicationRecord, 0, len(objs))
	dropped := 0
	for _, obj := range objs {
		var rec api.ApplicationRecord
		if err := decodeCanonical(obj, &rec); err != nil || rec.Name == "" || rec.Namespace == "" {
			dropped++
			continue
		}
		if rec.Status == "" {
			rec.Status = api.StatusUnknown
		}
		records = append(records, rec)
	}
	return records, dropped, nil
}

// Metrics normalizes a raw instance-metrics payload. The metrics endpoint
// commonly returns newline-delimited JSON; every shape Applications accepts
// is accepted here too.
func Metrics(raw []byte) ([]api.InstanceMetrics, int, error) {
	objs, err := extractObjects(raw)
	if err != nil {
		return nil, 0, err
	}

	records := make([]api.InstanceMetrics, 0, len(objs))
	dropped := 0
	for _, obj := range objs {
		var rec api.InstanceMetrics
		if err := decodeCanonical(obj, &rec); err != nil || rec.Namespace == "" {
			dropped++
			continue
		}
		records = append(records, rec)
	}
	return records, dropped, nil
}

// extractObjects detects which payload shape it received: a bare array,
// {items: [...]}, {data: [...]}, an array nested one level too deep,
// newline-delimited JSON, or a single record object.
func extractObjects(raw []byte) ([]map[string]any, error) {
	var top any
	if err := json.Unmarshal(raw, &top); err != nil {
		return extractNDJSON(raw)
	}

	switch v := top.(type) {
	case []any:
		return toObjects(unwrapNested(v))
	case map[string]any:
		if items, ok := v["items"].([]any); ok {
			return toObjects(unwrapNested(items))
		}
		if data, ok := v["data"].([]any); ok {
			return toObjects(unwrapNested(data))
		}
		// A one-line NDJSON body parses as a plain object. Without a
		// wrapper key the object is the record.
		return []map[string]any{v}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected top-level %T", api.ErrMalformedResponse, top)
	}
}

// unwrapNested unwraps exactly one surplus nesting level ([[...]]).
func unwrapNested(arr []any) []any {
	if len(arr) == 0 {
		return arr
	}
	if _, ok := arr[0].([]any); !ok {
		return arr
	}
	out := make([]any, 0, len(arr))
	for _, elem := range arr {
		nested, ok := elem.([]any)
		if !ok {
			out = append(out, elem)
			continue
		}
		out = append(out, nested...)
	}
	return out
}

func toObjects(arr []any) ([]map[string]any, error) {
	objs := make([]map[string]any, 0, len(arr))
	for _, elem := range arr {
		// Non-object elements count as malformed records downstream.
		obj, ok := elem.(map[string]any)
		if !ok {
			objs = append(objs, nil)
			continue
		}
		objs = append(objs, obj)
	}
	return objs, nil
}

func extractNDJSON(raw []byte) ([]map[string]any, error) {
	lines := strings.Split(string(raw), "\n")
	objs := make([]map[string]any, 0, len(lines))
	parsed := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			objs = append(objs, nil)
			continue
		}
		parsed = true
		objs = append(objs, obj)
	}
	if !parsed {
		return nil, fmt.Errorf("%w: not JSON and not newline-delimited JSON", api.ErrMalformedResponse)
	}
	return objs, nil
}

// decodeCanonical camel-cases and alias-maps the object's keys, then decodes
// it into the canonical record type. Unknown keys drop silently.
func decodeCanonical(obj map[string]any, out any) error {
	if obj == nil {
		return fmt.Errorf("record is not an object")
	}
	mapped := make(map[string]any, len(obj))
	for k, v := range obj {
		key := snakeToCamel(k)
		if canonical, ok := fieldAliases[key]; ok {
			key = canonical
		}
		if nested, ok := v.(map[string]any); ok {
			inner := make(map[string]any, len(nested))
			for nk, nv := range nested {
				ik := snakeToCamel(nk)
				if canonical, ok := fieldAliases[ik]; ok {
					ik = canonical
				}
				inner[ik] = nv
			}
			v = inner
		}
		mapped[key] = v
	}

	buf, err := json.Marshal(mapped)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, out)
}

// fieldAliases maps every field-name variant observed across backend
// iterations (post camel-casing) onto the canonical names of the record
// types. Keys not present here and not canonical are dropped by the decode.
var fieldAliases = map[string]string{
	// applications
	"externalUrl":    "externalURL",
	"fileBrowserUrl": "fileBrowserURL",
	"authSync":       "autoSyncEnabled",
	"autoSync":       "autoSyncEnabled",
	"creationTime":   "creationTimestamp",

	// metrics: run counts
	"dagRunSuccessCount": "successfulRunCount",
	"dagRunFailureCount": "failedRunCount",
	"dagRunOkCount":      "successfulRunCount",
	"dagRunKoCount":      "failedRunCount",

	// metrics: storage
	"s3Usage":        "storageUsedGB",
	"s3BucketUsage":  "storageUsedGB",
	"s3Quota":        "storageQuotaGB",
	"s3BucketQuota":  "storageQuotaGB",
	"storageUsedGb":  "storageUsedGB",
	"storageQuotaGb": "storageQuotaGB",

	// metrics: database
	"dbUsage":   "dbUsageMB",
	"dbUsageMb": "dbUsageMB",

	// metrics: cpu
	"cpuRequest": "cpuRequestCores",
	"cpuLimit":   "cpuLimitCores",
	"cpuQuota":   "cpuQuotaCores",

	// metrics: memory
	"memRequest":        "memRequestGB",
	"memLimit":          "memLimitGB",
	"memQuota":          "memQuotaGB",
	"memRequestGb":      "memRequestGB",
	"memLimitGb":        "memLimitGB",
	"memQuotaGb":        "memQuotaGB",
	"requestMemoryUsed": "memRequestGB",
	"limitMemoryUsed":   "memLimitGB",
	"limitMemoryQuota":  "memQuotaGB",

	// metrics: key
	"namespaceOrAppKey": "namespace",
	"appKey":            "namespace",
}

// snakeToCamel converts snake_case (and kebab-case) keys to camelCase.
// Keys already camelCased pass through unchanged.
func snakeToCamel(s string) string {
	if !strings.ContainsAny(s, "-_") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	upper := false
	for _, r := range s {
		if r == '_' || r == '-' {
			upper = true
			continue
		}
		if upper {
			b.WriteString(strings.ToUpper(string(r)))
			upper = false
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
