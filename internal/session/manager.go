package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/airview/airview/internal/api"
	"github.com/airview/airview/internal/oidc"
)

// Refresher is the slice of the identity provider the manager needs.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (oidc.Token, error)
}

// RefreshObserver is notified of refresh attempts, typically to feed
// Prometheus counters.
type RefreshObserver interface {
	RecordRefresh(result string)
}

// Manager hands out usable access tokens, refreshing them through the
// identity provider when they expire. Concurrent readers of an expired
// credential share one refresh call per session: most OAuth2 servers rotate
// the refresh token on use, so duplicate refreshes would invalidate each
// other.
type Manager struct {
	store        Store
	idp          Refresher
	safetyMargin time.Duration
	logger       *slog.Logger

	group    singleflight.Group
	now      func() time.Time
	observer RefreshObserver
}

// NewManager creates a session manager.
func NewManager(store Store, idp Refresher, safetyMargin time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:        store,
		idp:          idp,
		safetyMargin: safetyMargin,
		logger:       logger,
		now:          time.Now,
	}
}

// Store exposes the underlying session store.
func (m *Manager) Store() Store { return m.store }

// SetObserver attaches a refresh observer. Must be called before the manager
// serves requests.
func (m *Manager) SetObserver(o RefreshObserver) { m.observer = o }

func (m *Manager) recordRefresh(result string) {
	if m.observer != nil {
		m.observer.RecordRefresh(result)
	}
}

// AccessToken returns a valid bearer token for the session, refreshing it if
// expired. Returns api.ErrAuthenticationRequired when no session exists and
// api.ErrRefreshFailed once a refresh has failed; the failure is sticky for
// the remaining session lifetime so callers force a full sign-out instead of
// hammering the provider.
func (m *Manager) AccessToken(ctx context.Context, sessionID string) (string, error) {
	sess, err := m.lookup(ctx, sessionID)
	if err != nil {
		return "", err
	}

	cred := sess.Credential
	if cred.RefreshFailed {
		return "", api.ErrRefreshFailed
	}
	if cred.Fresh(m.now()) {
		return cred.AccessToken, nil
	}
	if cred.RefreshToken == "" {
		return "", api.ErrAuthenticationRequired
	}

	token, err, _ := m.group.Do(sessionID, func() (any, error) {
		return m.refresh(ctx, sessionID)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// refresh runs inside the single-flight group; at most one instance per
// session id is ever in flight.
func (m *Manager) refresh(ctx context.Context, sessionID string) (string, error) {
	// Re-read under the flight: a queued caller may arrive after a winner
	// already refreshed the credential.
	sess, err := m.lookup(ctx, sessionID)
	if err != nil {
		return "", err
	}
	cred := sess.Credential
	if cred.RefreshFailed {
		return "", api.ErrRefreshFailed
	}
	if cred.Fresh(m.now()) {
		return cred.AccessToken, nil
	}

	// Detach from the inbound request: an aborted browser request must not
	// cancel a refresh other sessions' requests are waiting on.
	callCtx := context.WithoutCancel(ctx)

	tok, err := m.idp.Refresh(callCtx, cred.RefreshToken)
	if err != nil {
		m.recordRefresh("failure")
		m.logger.Warn("token refresh failed", "session", sessionID, "error", err)
		failed := cred
		failed.RefreshFailed = true
		if uerr := m.store.UpdateCredential(callCtx, sessionID, failed); uerr != nil {
			m.logger.Error("failed to record refresh failure", "session", sessionID, "error", uerr)
		}
		return "", api.ErrRefreshFailed
	}

	next := Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    m.now().Add(time.Duration(tok.ExpiresIn)*time.Second - m.safetyMargin),
	}
	if next.RefreshToken == "" {
		// Some providers omit the refresh token when it is not rotated.
		next.RefreshToken = cred.RefreshToken
	}
	if err := m.store.UpdateCredential(callCtx, sessionID, next); err != nil {
		return "", fmt.Errorf("persist refreshed credential: %w", err)
	}

	m.recordRefresh("success")
	m.logger.Debug("access token refreshed", "session", sessionID, "expires_at", next.ExpiresAt)
	return next.AccessToken, nil
}

func (m *Manager) lookup(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, api.ErrAuthenticationRequired
	}
	sess, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return nil, api.ErrAuthenticationRequired
	}
	if sess.Expired(m.now()) {
		_ = m.store.Delete(ctx, sessionID)
		return nil, api.ErrAuthenticationRequired
	}
	return sess, nil
}
