// Package config builds the single runtime configuration struct for the
// dashboard. It is constructed once at process start and passed explicitly
// into every component; nothing outside this package reads the environment.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/airview/airview/internal/api"
)

// StoreType selects the session store backend.
type StoreType string

const (
	StoreSQLite   StoreType = "sqlite"
	StorePostgres StoreType = "postgres"
	StoreMemory   StoreType = "memory"
)

// Config contains all runtime configuration for the dashboard server.
type Config struct {
	// Core
	ListenAddr string
	LogLevel   string
	DataDir    string

	// Backend API
	BackendAPIURL  string
	BackendTimeout time.Duration
	ArgoCDProject  string
	FallbackCount  int

	// Authentication
	AuthEnabled        bool
	OIDCIssuer         string
	OIDCClientID       string
	OIDCClientSecret   string
	OIDCRedirectURL    string
	OIDCScopes         []string
	TokenSafetyMargin  time.Duration
	SessionTTL         time.Duration

	// Session store
	StoreType          StoreType
	DBConnectionString string

	// Provisioning
	ProjectPrefix string

	// External links shown in the UI
	ArgoCDBaseURL  string
	GithubBaseURL  string
	GrafanaBaseURL string
}

// Load reads the AIRVIEW_* environment and returns a validated Config.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AIRVIEW")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("data_dir", "/data")
	v.SetDefault("backend_api_url", "http://localhost:8080")
	v.SetDefault("backend_timeout", 5*time.Second)
	v.SetDefault("argocd_project", "default")
	v.SetDefault("fallback_count", 25)
	v.SetDefault("auth_enabled", false)
	v.SetDefault("oidc_scopes", "openid profile email groups")
	v.SetDefault("token_safety_margin", 30*time.Second)
	v.SetDefault("session_ttl", 24*time.Hour)
	v.SetDefault("db_type", string(StoreSQLite))
	v.SetDefault("project_prefix", "aip-")

	cfg := Config{
		ListenAddr:         v.GetString("listen_addr"),
		LogLevel:           v.GetString("log_level"),
		DataDir:            v.GetString("data_dir"),
		BackendAPIURL:      v.GetString("backend_api_url"),
		BackendTimeout:     v.GetDuration("backend_timeout"),
		ArgoCDProject:      v.GetString("argocd_project"),
		FallbackCount:      v.GetInt("fallback_count"),
		AuthEnabled:        v.GetBool("auth_enabled"),
		OIDCIssuer:         v.GetString("oidc_issuer"),
		OIDCClientID:       v.GetString("oidc_client_id"),
		OIDCClientSecret:   v.GetString("oidc_client_secret"),
		OIDCRedirectURL:    v.GetString("oidc_redirect_url"),
		OIDCScopes:         strings.Fields(v.GetString("oidc_scopes")),
		TokenSafetyMargin:  v.GetDuration("token_safety_margin"),
		SessionTTL:         v.GetDuration("session_ttl"),
		StoreType:          StoreType(v.GetString("db_type")),
		DBConnectionString: v.GetString("db_connection_string"),
		ProjectPrefix:      v.GetString("project_prefix"),
		ArgoCDBaseURL:      v.GetString("argocd_base_url"),
		GithubBaseURL:      v.GetString("github_base_url"),
		GrafanaBaseURL:     v.GetString("grafana_base_url"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks configuration constraints.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("AIRVIEW_LISTEN_ADDR must not be empty")
	}
	if _, err := url.Parse(c.BackendAPIURL); err != nil {
		return fmt.Errorf("invalid AIRVIEW_BACKEND_API_URL: %w", err)
	}
	if c.BackendTimeout <= 0 {
		return fmt.Errorf("AIRVIEW_BACKEND_TIMEOUT must be > 0")
	}
	if c.FallbackCount <= 0 {
		return fmt.Errorf("AIRVIEW_FALLBACK_COUNT must be > 0")
	}
	if c.TokenSafetyMargin < 0 {
		return fmt.Errorf("AIRVIEW_TOKEN_SAFETY_MARGIN must be >= 0")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("AIRVIEW_SESSION_TTL must be > 0")
	}

	switch c.StoreType {
	case StoreSQLite, StorePostgres, StoreMemory:
		// ok
	default:
		return fmt.Errorf("invalid AIRVIEW_DB_TYPE: %q (must be sqlite|postgres|memory)", c.StoreType)
	}
	if c.StoreType == StorePostgres && c.DBConnectionString == "" {
		return fmt.Errorf("AIRVIEW_DB_CONNECTION_STRING is required for postgres")
	}

	if c.AuthEnabled {
		if c.OIDCIssuer == "" {
			return fmt.Errorf("AIRVIEW_OIDC_ISSUER is required when auth is enabled")
		}
		if c.OIDCClientID == "" || c.OIDCClientSecret == "" {
			return fmt.Errorf("AIRVIEW_OIDC_CLIENT_ID and AIRVIEW_OIDC_CLIENT_SECRET are required when auth is enabled")
		}
		if c.OIDCRedirectURL == "" {
			return fmt.Errorf("AIRVIEW_OIDC_REDIRECT_URL is required when auth is enabled")
		}
	}

	if c.ProjectPrefix == "" {
		return fmt.Errorf("AIRVIEW_PROJECT_PREFIX must not be empty")
	}

	return nil
}

// ClientConfig returns the subset of configuration that is safe to expose to
// the browser client. Secrets never cross this boundary.
func (c Config) ClientConfig() api.ClientConfig {
	return api.ClientConfig{
		AuthEnabled: c.AuthEnabled,
		ExternalURLs: api.ExternalURLs{
			ArgoCDBase:  c.ArgoCDBaseURL,
			GithubBase:  c.GithubBaseURL,
			GrafanaBase: c.GrafanaBaseURL,
		},
	}
}
