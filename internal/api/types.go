package api

// HealthStatus is the health reported for a deployed application.
// Values mirror the continuous-delivery backend's health states.
type HealthStatus string

const (
	StatusHealthy     HealthStatus = "Healthy"
	StatusProgressing HealthStatus = "Progressing"
	StatusDegraded    HealthStatus = "Degraded"
	StatusSuspended   HealthStatus = "Suspended"
	StatusMissing     HealthStatus = "Missing"
	StatusUnknown     HealthStatus = "Unknown"
)

// HealthStatuses lists every valid health state.
var HealthStatuses = []HealthStatus{
	StatusHealthy,
	StatusProgressing,
	StatusDegraded,
	StatusSuspended,
	StatusMissing,
	StatusUnknown,
}

// ApplicationRecord is the canonical in-memory shape of one deployed
// application. Every record reaching a handler has already passed through the
// normalizer, so downstream code never branches on payload shape.
type ApplicationRecord struct {
	Name              string       `json:"name"`
	Namespace         string       `json:"namespace"`
	Project           string       `json:"project"`
	ChartName         string       `json:"chartName"`
	ChartRevision     string       `json:"chartRevision"`
	ChartRepoURL      string       `json:"chartRepoUrl"`
	Status            HealthStatus `json:"status"`
	ExternalURL       string       `json:"externalURL,omitempty"`
	FileBrowserURL    string       `json:"fileBrowserURL,omitempty"`
	CreationTimestamp string       `json:"creationTimestamp"`
	AutoSyncEnabled   bool         `json:"autoSyncEnabled"`
}

// SearchFields returns the values matched by the free-text filter.
func (a ApplicationRecord) SearchFields() []string {
	return []string{a.Name, a.Namespace, a.Project}
}

// FieldByPath resolves a sort field by its JSON name.
func (a ApplicationRecord) FieldByPath(path string) (any, bool) {
	switch path {
	case "name":
		return a.Name, true
	case "namespace":
		return a.Namespace, true
	case "project":
		return a.Project, true
	case "chartName":
		return a.ChartName, true
	case "chartRevision":
		return a.ChartRevision, true
	case "chartRepoUrl":
		return a.ChartRepoURL, true
	case "status":
		return string(a.Status), true
	case "creationTimestamp":
		return a.CreationTimestamp, true
	case "autoSyncEnabled":
		return a.AutoSyncEnabled, true
	}
	return nil, false
}

// InstanceMetrics is the canonical per-instance resource/usage record, keyed
// by namespace.
type InstanceMetrics struct {
	Namespace          string  `json:"namespace"`
	StorageUsedGB      float64 `json:"storageUsedGB"`
	StorageQuotaGB     float64 `json:"storageQuotaGB"`
	DBUsageMB          float64 `json:"dbUsageMB"`
	SuccessfulRunCount int     `json:"successfulRunCount"`
	FailedRunCount     int     `json:"failedRunCount"`
	CPURequestCores    float64 `json:"cpuRequestCores"`
	CPULimitCores      float64 `json:"cpuLimitCores"`
	CPUQuotaCores      float64 `json:"cpuQuotaCores"`
	MemRequestGB       float64 `json:"memRequestGB"`
	MemLimitGB         float64 `json:"memLimitGB"`
	MemQuotaGB         float64 `json:"memQuotaGB"`
}

// SearchFields returns the values matched by the free-text filter.
func (m InstanceMetrics) SearchFields() []string {
	return []string{m.Namespace}
}

// FieldByPath resolves a sort field by its JSON name.
func (m InstanceMetrics) FieldByPath(path string) (any, bool) {
	switch path {
	case "namespace":
		return m.Namespace, true
	case "storageUsedGB":
		return m.StorageUsedGB, true
	case "storageQuotaGB":
		return m.StorageQuotaGB, true
	case "dbUsageMB":
		return m.DBUsageMB, true
	case "successfulRunCount":
		return m.SuccessfulRunCount, true
	case "failedRunCount":
		return m.FailedRunCount, true
	case "cpuRequestCores":
		return m.CPURequestCores, true
	case "cpuLimitCores":
		return m.CPULimitCores, true
	case "cpuQuotaCores":
		return m.CPUQuotaCores, true
	case "memRequestGB":
		return m.MemRequestGB, true
	case "memLimitGB":
		return m.MemLimitGB, true
	case "memQuotaGB":
		return m.MemQuotaGB, true
	}
	return nil, false
}

// MonitoredApplicationRecord joins an application with its instance metrics
// for the combined monitoring view.
type MonitoredApplicationRecord struct {
	ApplicationRecord
	Metrics InstanceMetrics `json:"metrics"`
}

// FieldByPath resolves dotted paths of the form "metrics.<field>" into the
// nested metrics object, and everything else against the application.
func (r MonitoredApplicationRecord) FieldByPath(path string) (any, bool) {
	const prefix = "metrics."
	if len(path) > len(prefix) && path[:len(prefix)] == prefix {
		return r.Metrics.FieldByPath(path[len(prefix):])
	}
	return r.ApplicationRecord.FieldByPath(path)
}

// CreateApplicationRequest is the provisioning request proxied to the backend.
type CreateApplicationRequest struct {
	ProjectID         string `json:"projectId"`
	MembershipLevel   string `json:"membershipLevel"`
	NasVolumeSizeInGb int    `json:"nasVolumeSizeInGb"`
}

// LifecyclePolicy is the bucket retention policy proxied verbatim.
type LifecyclePolicy struct {
	Days int `json:"days"`
}

// PaginatedResult is one page of a filtered, sorted collection.
type PaginatedResult[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"totalCount"`
	PageNumber int `json:"pageNumber"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}

// APIResponse is a standard wrapper for API responses.
type APIResponse struct {
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// APIError is the structured error payload returned to the browser.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ClientConfig is the non-secret runtime configuration exposed to the
// browser client. Must never carry client secrets or tokens.
type ClientConfig struct {
	AuthEnabled  bool         `json:"authEnabled"`
	ExternalURLs ExternalURLs `json:"externalUrls"`
}

// ExternalURLs are base URLs for linked tools shown in the UI.
type ExternalURLs struct {
	ArgoCDBase  string `json:"argoCdBase"`
	GithubBase  string `json:"githubBase"`
	GrafanaBase string `json:"grafanaBase"`
}
