package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/airview/airview/internal/api"
	"github.com/airview/airview/internal/fallback"
	"github.com/airview/airview/internal/gateway"
	"github.com/airview/airview/internal/normalize"
	"github.com/airview/airview/internal/query"
)

// handleListApplications handles GET /api/applications.
func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)
	if err := params.Validate(); err != nil {
		s.writeError(w, err)
		return
	}

	bearer, err := s.bearerToken(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	records, err := s.fetchApplications(r.Context(), bearer)
	if err != nil {
		s.writeError(w, err)
		return
	}

	page, err := query.Process(records, params)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

// handleMonitoring handles GET /api/monitoring: applications joined with
// their instance metrics by namespace.
func (s *Server) handleMonitoring(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)
	if err := params.Validate(); err != nil {
		s.writeError(w, err)
		return
	}
	period := r.URL.Query().Get("period")

	bearer, err := s.bearerToken(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	apps, err := s.fetchApplications(r.Context(), bearer)
	if err != nil {
		s.writeError(w, err)
		return
	}
	instanceMetrics, err := s.fetchMetrics(r.Context(), bearer, period)
	if err != nil {
		s.writeError(w, err)
		return
	}

	byNamespace := make(map[string]api.InstanceMetrics, len(instanceMetrics))
	for _, m := range instanceMetrics {
		byNamespace[m.Namespace] = m
	}

	joined := make([]api.MonitoredApplicationRecord, 0, len(apps))
	for _, app := range apps {
		joined = append(joined, api.MonitoredApplicationRecord{
			ApplicationRecord: app,
			Metrics:           byNamespace[app.Namespace],
		})
	}

	page, err := query.Process(joined, params)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

// fetchApplications runs the read pipeline for application records: backend
// call, fallback on unavailability, then normalization. Auth failures always
// propagate; they are never masked with synthetic data.
func (s *Server) fetchApplications(ctx context.Context, bearer string) ([]api.ApplicationRecord, error) {
	res := s.Gateway.Call(ctx, http.MethodGet, backendApplicationsPath, nil, nil, bearer)
	if res.Outcome == gateway.AuthRequired {
		return nil, api.ErrAuthenticationRequired
	}
	if res.Outcome == gateway.Success {
		records, dropped, err := normalize.Applications(res.Body)
		if err == nil {
			if dropped > 0 {
				s.Logger.Warn("dropped malformed application records", "count", dropped)
			}
			s.Metrics.RecordBackendSuccess()
			return records, nil
		}
		s.Logger.Warn("malformed applications payload, using fallback", "error", err)
	} else {
		s.Logger.Warn("backend unavailable, using fallback applications", "reason", res.Reason)
	}

	s.Metrics.RecordFallback("applications")
	records, _, err := normalize.Applications(fallback.Applications(s.Config.FallbackCount))
	return records, err
}

// fetchMetrics runs the read pipeline for instance metrics. period selects
// the backend's aggregation window and is forwarded verbatim.
func (s *Server) fetchMetrics(ctx context.Context, bearer, period string) ([]api.InstanceMetrics, error) {
	var q url.Values
	if period != "" {
		q = url.Values{"period": []string{period}}
	}

	res := s.Gateway.Call(ctx, http.MethodGet, backendMetricsPath, q, nil, bearer)
	if res.Outcome == gateway.AuthRequired {
		return nil, api.ErrAuthenticationRequired
	}
	if res.Outcome == gateway.Success {
		records, dropped, err := normalize.Metrics(res.Body)
		if err == nil {
			if dropped > 0 {
				s.Logger.Warn("dropped malformed metric records", "count", dropped)
			}
			s.Metrics.RecordBackendSuccess()
			return records, nil
		}
		s.Logger.Warn("malformed metrics payload, using fallback", "error", err)
	} else {
		s.Logger.Warn("backend unavailable, using fallback metrics", "reason", res.Reason)
	}

	s.Metrics.RecordFallback("metrics")
	records, _, err := normalize.Metrics(fallback.Metrics(s.Config.FallbackCount))
	return records, err
}

// handleToggleAutoSync handles PUT /api/applications/{name}/autosync.
// Mutations always propagate the backend's response; they are never replaced
// with fake success while authentication is enabled.
func (s *Server) handleToggleAutoSync(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var body struct {
		AutoSync bool `json:"autoSync"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, api.NewValidationError("INVALID_BODY", "request body must be {\"autoSync\": bool}"))
		return
	}

	if !s.Config.AuthEnabled {
		// Dev mode: no backend credentials exist, simulate the toggle.
		s.writeJSON(w, http.StatusOK, api.APIResponse{Message: "autosync toggled in dev mode"})
		return
	}

	bearer, err := s.bearerToken(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	path := "/api/v1/argocd/" + s.Config.ArgoCDProject + "/application/" + name + "/autosync"
	res := s.Gateway.Call(r.Context(), http.MethodPut, path, nil, body, bearer)
	s.relayMutation(w, res)
}

// handleGetLifecycle handles GET /api/storage/{namespace}/lifecycle.
func (s *Server) handleGetLifecycle(w http.ResponseWriter, r *http.Request) {
	bearer, err := s.bearerToken(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	res := s.Gateway.Call(r.Context(), http.MethodGet, lifecyclePath(chi.URLParam(r, "namespace")), nil, nil, bearer)
	s.relayMutation(w, res)
}

// handlePutLifecycle handles PUT /api/storage/{namespace}/lifecycle.
func (s *Server) handlePutLifecycle(w http.ResponseWriter, r *http.Request) {
	var policy api.LifecyclePolicy
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		s.writeError(w, api.NewValidationError("INVALID_BODY", "request body must be {\"days\": number}"))
		return
	}

	bearer, err := s.bearerToken(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	res := s.Gateway.Call(r.Context(), http.MethodPut, lifecyclePath(chi.URLParam(r, "namespace")), nil, policy, bearer)
	s.relayMutation(w, res)
}

func lifecyclePath(namespace string) string {
	return "/api/v1/s3/namespace/" + namespace + "/airflow/buckets/config/lifecycle"
}

// handleCreateApplication handles POST /api/applications/create.
func (s *Server) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	var req api.CreateApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, api.NewValidationError("INVALID_BODY", "invalid request body"))
		return
	}
	if !strings.HasPrefix(req.ProjectID, s.Config.ProjectPrefix) {
		s.writeError(w, api.NewValidationError("INVALID_PROJECT_ID",
			"projectId must start with "+strconv.Quote(s.Config.ProjectPrefix)))
		return
	}
	if req.NasVolumeSizeInGb < 0 {
		s.writeError(w, api.NewValidationError("INVALID_VOLUME_SIZE", "nasVolumeSizeInGb must be >= 0"))
		return
	}

	bearer, err := s.bearerToken(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	res := s.Gateway.Call(r.Context(), http.MethodPost, backendCreateAppPath, nil, req, bearer)
	s.relayMutation(w, res)
}

// handleClientConfig handles GET /api/config: the non-secret runtime flags
// the browser client needs.
func (s *Server) handleClientConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Config.ClientConfig())
}

// relayMutation maps a gateway result for a proxied call: success and
// backend errors pass through verbatim, transport failures become 502.
func (s *Server) relayMutation(w http.ResponseWriter, res gateway.Result) {
	switch res.Outcome {
	case gateway.AuthRequired:
		s.writeError(w, api.ErrAuthenticationRequired)
	case gateway.Success:
		s.relayBackend(w, res.Status, res.Body)
	default:
		if res.Status > 0 {
			// The backend answered with an error; show its message verbatim.
			s.relayBackend(w, res.Status, res.Body)
			return
		}
		s.writeError(w, api.ErrBackendUnavailable)
	}
}

// bearerToken resolves the caller's backend credential. With authentication
// disabled the backend is called without a bearer.
func (s *Server) bearerToken(r *http.Request) (string, error) {
	if !s.Config.AuthEnabled {
		return "", nil
	}
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", api.ErrAuthenticationRequired
	}
	return s.Sessions.AccessToken(r.Context(), cookie.Value)
}

// parseListParams derives query parameters from the request. Unparsable
// numbers fall back to defaults; out-of-range values are rejected by
// Parameters.Validate.
func parseListParams(r *http.Request) query.Parameters {
	q := r.URL.Query()
	return query.Parameters{
		Search:    q.Get("search"),
		SortBy:    q.Get("sortBy"),
		SortOrder: query.SortDirection(q.Get("sortOrder")),
		Page:      parseIntParam(q.Get("page"), 1),
		PageSize:  parseIntParam(q.Get("limit"), 10),
	}
}

func parseIntParam(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
