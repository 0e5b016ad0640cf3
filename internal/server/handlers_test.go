package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airview/airview/internal/api"
	"github.com/airview/airview/internal/config"
	"github.com/airview/airview/internal/gateway"
	"github.com/airview/airview/internal/oidc"
	"github.com/airview/airview/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(backendURL string, authEnabled bool) config.Config {
	return config.Config{
		ListenAddr:        ":8080",
		LogLevel:          "info",
		BackendAPIURL:     backendURL,
		BackendTimeout:    2 * time.Second,
		ArgoCDProject:     "default",
		FallbackCount:     5,
		AuthEnabled:       authEnabled,
		OIDCIssuer:        "https://idp.example.com/realms/main",
		OIDCClientID:      "airview",
		OIDCClientSecret:  "super-secret-value",
		OIDCRedirectURL:   "https://airview.example.com/auth/callback",
		OIDCScopes:        []string{"openid", "email"},
		TokenSafetyMargin: 0,
		SessionTTL:        time.Hour,
		StoreType:         config.StoreMemory,
		ProjectPrefix:     "aip-",
		ArgoCDBaseURL:     "https://argocd.example.com",
	}
}

// newTestServer wires a Server against the given fake backend handler.
func newTestServer(t *testing.T, authEnabled bool, backendHandler http.Handler) (*Server, *session.MemoryStore, *httptest.Server) {
	t.Helper()

	backend := httptest.NewServer(backendHandler)
	t.Cleanup(backend.Close)

	cfg := testConfig(backend.URL, authEnabled)
	gw, err := gateway.New(backend.URL, cfg.BackendTimeout, authEnabled, testLogger())
	require.NoError(t, err)

	store := session.NewMemoryStore()
	sessions := session.NewManager(store, nil, 0, testLogger())
	idp := oidc.NewClient(cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret, cfg.OIDCRedirectURL, cfg.OIDCScopes)

	return New(cfg, gw, sessions, idp, nil, testLogger()), store, backend
}

// seedAuthedSession creates a session with a fresh backend credential and
// returns the matching browser cookie.
func seedAuthedSession(t *testing.T, store *session.MemoryStore) *http.Cookie {
	t.Helper()
	sess := &session.Session{
		ID:      "sess-test",
		Subject: "dev",
		Email:   "dev@example.com",
		Credential: session.Credential{
			AccessToken:  "backend-token",
			RefreshToken: "rt",
			ExpiresAt:    time.Now().Add(time.Hour),
		},
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, store.Create(context.Background(), sess))
	return &http.Cookie{Name: sessionCookieName, Value: sess.ID}
}

func doRequest(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	return rec
}

func TestListApplicationsFromBackend(t *testing.T) {
	backendPayload := `{"items": [
		{"name": "airflow-a", "namespace": "ns-a", "project": "aip-x", "status": "Healthy", "auth_sync": true, "external_url": "https://ns-a.example.com"},
		{"name": "airflow-b", "namespace": "ns-b", "project": "aip-y", "status": "Degraded"}
	]}`
	srv, _, _ := newTestServer(t, false, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/applications", r.URL.Path)
		w.Write([]byte(backendPayload))
	}))

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/applications", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var page api.PaginatedResult[api.ApplicationRecord]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))

	assert.Equal(t, 2, page.TotalCount)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "airflow-a", page.Items[0].Name)
	assert.True(t, page.Items[0].AutoSyncEnabled)
	assert.Equal(t, "https://ns-a.example.com", page.Items[0].ExternalURL)
	assert.Equal(t, api.StatusDegraded, page.Items[1].Status)
	// The wire format is camelCase only.
	assert.NotContains(t, rec.Body.String(), "auth_sync")
	assert.NotContains(t, rec.Body.String(), "external_url")
}

func TestListApplicationsFallsBackWhenBackendDown(t *testing.T) {
	srv, _, _ := newTestServer(t, false, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/applications", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var page api.PaginatedResult[api.ApplicationRecord]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, srv.Config.FallbackCount, page.TotalCount)
	assert.NotEmpty(t, page.Items)
}

func TestListApplicationsFallsBackOnMalformedBody(t *testing.T) {
	srv, _, _ := newTestServer(t, false, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>definitely not json</html>"))
	}))

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/applications", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var page api.PaginatedResult[api.ApplicationRecord]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, srv.Config.FallbackCount, page.TotalCount)
}

func TestListApplicationsAuthRequiredIsNeverMasked(t *testing.T) {
	srv, store, _ := newTestServer(t, true, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/applications", nil)
	req.AddCookie(seedAuthedSession(t, store))

	rec := doRequest(srv, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var apiErr api.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, "AUTH_REQUIRED", apiErr.Code)
	// No synthetic records in a 401 response.
	assert.NotContains(t, rec.Body.String(), "items")
}

func TestListApplicationsWithoutSessionCookie(t *testing.T) {
	var backendHits atomic.Int64
	srv, _, _ := newTestServer(t, true, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backendHits.Add(1)
	}))

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/applications", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, backendHits.Load(), "unauthenticated requests must not reach the backend")
}

func TestListApplicationsValidatesBeforeBackendCall(t *testing.T) {
	var backendHits atomic.Int64
	srv, _, _ := newTestServer(t, false, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backendHits.Add(1)
	}))

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/applications?limit=0", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var apiErr api.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, "INVALID_PAGE_SIZE", apiErr.Code)
	assert.Zero(t, backendHits.Load())
}

func TestMonitoringJoinsAndSortsByNestedField(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/applications", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items": [
			{"name": "app-1", "namespace": "ns-1", "status": "Healthy"},
			{"name": "app-2", "namespace": "ns-2", "status": "Healthy"},
			{"name": "app-3", "namespace": "ns-3", "status": "Healthy"}
		]}`))
	})
	var gotPeriod string
	mux.HandleFunc("/api/v1/metrics/instances", func(w http.ResponseWriter, r *http.Request) {
		gotPeriod = r.URL.Query().Get("period")
		w.Write([]byte(`{"namespace": "ns-1", "s3_bucket_usage": 10}
{"namespace": "ns-2", "s3_bucket_usage": 30}
{"namespace": "ns-3", "s3_bucket_usage": 20}
`))
	})
	srv, _, _ := newTestServer(t, false, mux)

	req := httptest.NewRequest(http.MethodGet,
		"/api/monitoring?sortBy=metrics.storageUsedGB&sortOrder=desc&period=7d", nil)
	rec := doRequest(srv, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7d", gotPeriod)

	var page api.PaginatedResult[api.MonitoredApplicationRecord]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 3)
	assert.Equal(t, "app-2", page.Items[0].Name)
	assert.Equal(t, "app-3", page.Items[1].Name)
	assert.Equal(t, "app-1", page.Items[2].Name)
	assert.InDelta(t, 30, page.Items[0].Metrics.StorageUsedGB, 0.001)
}

func TestMonitoringSingleInstanceKeepsRealData(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/applications", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items": [{"name": "app-1", "namespace": "ns-1", "status": "Healthy"}]}`))
	})
	mux.HandleFunc("/api/v1/metrics/instances", func(w http.ResponseWriter, r *http.Request) {
		// A platform with one instance answers with a single object.
		w.Write([]byte(`{"namespace": "ns-1", "s3_bucket_usage": 12.5, "s3_bucket_quota": 250}`))
	})
	srv, _, _ := newTestServer(t, false, mux)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/monitoring", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var page api.PaginatedResult[api.MonitoredApplicationRecord]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "app-1", page.Items[0].Name)
	assert.InDelta(t, 12.5, page.Items[0].Metrics.StorageUsedGB, 0.001)
	assert.InDelta(t, 250, page.Items[0].Metrics.StorageQuotaGB, 0.001)
}

func TestAutosyncDevModeSimulatesSuccess(t *testing.T) {
	var backendHits atomic.Int64
	srv, _, _ := newTestServer(t, false, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backendHits.Add(1)
	}))

	req := httptest.NewRequest(http.MethodPut, "/api/applications/airflow-a/autosync",
		strings.NewReader(`{"autoSync": true}`))
	rec := doRequest(srv, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dev mode")
	assert.Zero(t, backendHits.Load())
}

func TestAutosyncProxiesToBackend(t *testing.T) {
	var gotPath, gotAuth string
	srv, store, _ := newTestServer(t, true, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"message": "autosync toggled"}`))
	}))

	req := httptest.NewRequest(http.MethodPut, "/api/applications/airflow-a/autosync",
		strings.NewReader(`{"autoSync": false}`))
	req.AddCookie(seedAuthedSession(t, store))

	rec := doRequest(srv, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/api/v1/argocd/default/application/airflow-a/autosync", gotPath)
	assert.Equal(t, "Bearer backend-token", gotAuth)
	assert.JSONEq(t, `{"message": "autosync toggled"}`, rec.Body.String())
}

func TestAutosyncRelaysBackendErrorVerbatim(t *testing.T) {
	srv, store, _ := newTestServer(t, true, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message": "sync already in progress", "code": "CONFLICT"}`))
	}))

	req := httptest.NewRequest(http.MethodPut, "/api/applications/airflow-a/autosync",
		strings.NewReader(`{"autoSync": true}`))
	req.AddCookie(seedAuthedSession(t, store))

	rec := doRequest(srv, req)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"message": "sync already in progress", "code": "CONFLICT"}`, rec.Body.String())
}

func TestAutosyncBackendDownIsNotFakeSuccess(t *testing.T) {
	srv, store, backend := newTestServer(t, true, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backend.Close()

	req := httptest.NewRequest(http.MethodPut, "/api/applications/airflow-a/autosync",
		strings.NewReader(`{"autoSync": true}`))
	req.AddCookie(seedAuthedSession(t, store))

	rec := doRequest(srv, req)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var apiErr api.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, "BACKEND_UNAVAILABLE", apiErr.Code)
}

func TestCreateApplicationValidation(t *testing.T) {
	var backendHits atomic.Int64
	srv, _, _ := newTestServer(t, false, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backendHits.Add(1)
	}))

	cases := []struct {
		name string
		body string
		code string
	}{
		{"wrong project prefix", `{"projectId": "team-x", "membershipLevel": "owner", "nasVolumeSizeInGb": 10}`, "INVALID_PROJECT_ID"},
		{"negative volume", `{"projectId": "aip-x", "membershipLevel": "owner", "nasVolumeSizeInGb": -1}`, "INVALID_VOLUME_SIZE"},
		{"garbage body", `{`, "INVALID_BODY"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/applications/create", strings.NewReader(tc.body))
			rec := doRequest(srv, req)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var apiErr api.APIError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
			assert.Equal(t, tc.code, apiErr.Code)
		})
	}
	assert.Zero(t, backendHits.Load())
}

func TestCreateApplicationProxied(t *testing.T) {
	var gotPath string
	var gotBody []byte
	srv, _, _ := newTestServer(t, false, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"message": "provisioning started"}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/applications/create",
		strings.NewReader(`{"projectId": "aip-data", "membershipLevel": "owner", "nasVolumeSizeInGb": 50}`))
	rec := doRequest(srv, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/api/v1/airflow/applications", gotPath)
	assert.JSONEq(t, `{"projectId": "aip-data", "membershipLevel": "owner", "nasVolumeSizeInGb": 50}`, string(gotBody))
}

func TestLifecycleProxied(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody []byte
	srv, _, _ := newTestServer(t, false, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"days": 30}`))
	}))

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/storage/ns-a/lifecycle", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "/api/v1/s3/namespace/ns-a/airflow/buckets/config/lifecycle", gotPath)

	req := httptest.NewRequest(http.MethodPut, "/api/storage/ns-a/lifecycle", strings.NewReader(`{"days": 14}`))
	rec = doRequest(srv, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.JSONEq(t, `{"days": 14}`, string(gotBody))
}

func TestClientConfigExposesNoSecrets(t *testing.T) {
	srv, _, _ := newTestServer(t, true, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.NotContains(t, body, "super-secret-value")
	assert.NotContains(t, body, "clientSecret")
	assert.Contains(t, body, `"authEnabled":true`)
	assert.Contains(t, body, "https://argocd.example.com")
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t, false, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestUtilsFormatEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, false, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/api/utils/format",
		strings.NewReader(`{"input": "{\"name\": \"airflow\"}", "from": "json", "to": "yaml"}`))
	rec := doRequest(srv, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "name: airflow")

	req = httptest.NewRequest(http.MethodPost, "/api/utils/format",
		strings.NewReader(`{"input": "{", "from": "json", "to": "yaml"}`))
	rec = doRequest(srv, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
