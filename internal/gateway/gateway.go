// Package gateway issues authenticated calls to the backend API and
// classifies their outcome. It deliberately carries no retry logic: the
// fallback path absorbs transient unavailability instead of backoff loops.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// maxBodyBytes bounds how much of a backend response is buffered.
const maxBodyBytes = 10 * 1024 * 1024

// Outcome classifies one backend call.
type Outcome string

const (
	// Success is any 2xx response.
	Success Outcome = "success"
	// AuthRequired is a 401 while authentication is enabled; the caller
	// must force re-authentication, never substitute fallback data.
	AuthRequired Outcome = "auth_required"
	// Unavailable is a transport error, timeout or non-401 error status.
	// Read paths recover from it with fallback data.
	Unavailable Outcome = "unavailable"
)

// Result is the classified outcome of one backend call.
type Result struct {
	Outcome Outcome
	Status  int
	Body    []byte
	Reason  string
}

// Gateway calls the backend API.
type Gateway struct {
	base        *url.URL
	client      *http.Client
	authEnabled bool
	logger      *slog.Logger
}

// New constructs a Gateway. The timeout bounds every call so a slow backend
// degrades to fallback data instead of hanging the request.
func New(baseURL string, timeout time.Duration, authEnabled bool, logger *slog.Logger) (*Gateway, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		base:        u,
		client:      &http.Client{Timeout: timeout},
		authEnabled: authEnabled,
		logger:      logger,
	}, nil
}

// Call issues one backend request. path is backend-relative; query may be
// nil; body (when non-nil) is JSON-encoded. bearer is attached as an
// Authorization header when non-empty.
func (g *Gateway) Call(ctx context.Context, method, path string, query url.Values, body any, bearer string) Result {
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodPost:
	default:
		return Result{Outcome: Unavailable, Reason: fmt.Sprintf("unsupported method %s", method)}
	}

	u := g.base.ResolveReference(&url.URL{Path: path})
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return Result{Outcome: Unavailable, Reason: fmt.Sprintf("encode request body: %v", err)}
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return Result{Outcome: Unavailable, Reason: fmt.Sprintf("build request: %v", err)}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// Every call must reflect current backend state.
	req.Header.Set("Cache-Control", "no-store")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("backend call failed", "method", method, "path", path, "error", err)
		return Result{Outcome: Unavailable, Reason: err.Error()}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		g.logger.Warn("backend body read failed", "method", method, "path", path, "error", err)
		return Result{Outcome: Unavailable, Status: resp.StatusCode, Reason: err.Error()}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Result{Outcome: Success, Status: resp.StatusCode, Body: payload}
	case resp.StatusCode == http.StatusUnauthorized && g.authEnabled:
		return Result{Outcome: AuthRequired, Status: resp.StatusCode, Body: payload}
	default:
		g.logger.Warn("backend returned error status", "method", method, "path", path, "status", resp.StatusCode)
		return Result{Outcome: Unavailable, Status: resp.StatusCode, Body: payload, Reason: fmt.Sprintf("status %d", resp.StatusCode)}
	}
}
