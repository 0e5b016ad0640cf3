// Package server exposes the dashboard's own HTTP API: the read pipeline
// (gateway -> fallback -> normalize -> query), the proxied mutations, the
// auth endpoints and the developer utilities.
package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/airview/airview/internal/config"
	"github.com/airview/airview/internal/gateway"
	"github.com/airview/airview/internal/metrics"
	"github.com/airview/airview/internal/oidc"
	"github.com/airview/airview/internal/session"
)

// Backend paths the dashboard proxies to.
const (
	backendApplicationsPath = "/api/v1/applications"
	backendMetricsPath      = "/api/v1/metrics/instances"
	backendCreateAppPath    = "/api/v1/airflow/applications"
)

// Server handles HTTP requests for the dashboard.
type Server struct {
	Config   config.Config
	Gateway  *gateway.Gateway
	Sessions *session.Manager
	IDP      *oidc.Client
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// New creates a new dashboard server.
func New(cfg config.Config, gw *gateway.Gateway, sessions *session.Manager, idp *oidc.Client, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Config:   cfg,
		Gateway:  gw,
		Sessions: sessions,
		IDP:      idp,
		Metrics:  m,
		Logger:   logger,
	}
}

// Routes builds the chi router for the dashboard API.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(s.observe)

	r.Route("/api", func(r chi.Router) {
		r.Get("/applications", s.handleListApplications)
		r.Post("/applications/create", s.handleCreateApplication)
		r.Put("/applications/{name}/autosync", s.handleToggleAutoSync)
		r.Get("/monitoring", s.handleMonitoring)
		r.Route("/storage/{namespace}/lifecycle", func(r chi.Router) {
			r.Get("/", s.handleGetLifecycle)
			r.Put("/", s.handlePutLifecycle)
		})
		r.Get("/config", s.handleClientConfig)

		r.Route("/utils", func(r chi.Router) {
			r.Post("/jwt", s.handleDecodeJWT)
			r.Post("/format", s.handleFormat)
			r.Post("/urlcodec", s.handleURLCodec)
		})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", s.handleLogin)
		r.Get("/callback", s.handleCallback)
		r.Post("/logout", s.handleLogout)
		r.Get("/session", s.handleSessionInfo)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// observe records request count and latency per route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		s.Metrics.RecordRequest(route, strconv.Itoa(ww.Status()), time.Since(start))
	})
}
