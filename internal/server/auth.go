package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/airview/airview/internal/api"
	"github.com/airview/airview/internal/devtools"
	"github.com/airview/airview/internal/session"
)

const (
	sessionCookieName = "airview_session"
	stateCookieName   = "airview_oauth_state"
)

// handleLogin starts the authorization-code flow.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.Config.AuthEnabled {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.IDP.AuthCodeURL(state), http.StatusFound)
}

// handleCallback finishes the code flow: state check, code exchange, session
// creation. Tokens stay server-side; the browser receives an opaque id.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if !s.Config.AuthEnabled {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		s.writeError(w, api.NewValidationError("INVALID_STATE", "oauth state mismatch"))
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		s.writeError(w, api.NewValidationError("MISSING_CODE", "missing authorization code"))
		return
	}

	tok, err := s.IDP.Exchange(r.Context(), code)
	if err != nil {
		s.Logger.Error("code exchange failed", "error", err)
		s.writeError(w, api.ErrAuthenticationRequired)
		return
	}

	subject, email := identityFromIDToken(tok.IDToken)
	now := time.Now()
	sess := &session.Session{
		ID:      uuid.NewString(),
		Subject: subject,
		Email:   email,
		Credential: session.Credential{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			ExpiresAt:    now.Add(time.Duration(tok.ExpiresIn)*time.Second - s.Config.TokenSafetyMargin),
		},
		CreatedAt: now,
		ExpiresAt: now.Add(s.Config.SessionTTL),
	}
	if err := s.Sessions.Store().Create(r.Context(), sess); err != nil {
		s.Logger.Error("failed to persist session", "error", err)
		s.writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   int(s.Config.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

// handleLogout destroys the session server-side and clears the cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if err := s.Sessions.Store().Delete(r.Context(), cookie.Value); err != nil {
			s.Logger.Warn("failed to delete session", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	s.writeJSON(w, http.StatusOK, api.APIResponse{Message: "signed out"})
}

// handleSessionInfo reports session presence and non-secret profile fields.
// Access and refresh tokens must never appear in this payload.
func (s *Server) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	type info struct {
		Authenticated bool   `json:"authenticated"`
		AuthEnabled   bool   `json:"authEnabled"`
		Subject       string `json:"subject,omitempty"`
		Email         string `json:"email,omitempty"`
	}

	out := info{AuthEnabled: s.Config.AuthEnabled}
	if !s.Config.AuthEnabled {
		out.Authenticated = true
		s.writeJSON(w, http.StatusOK, out)
		return
	}

	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		s.writeJSON(w, http.StatusOK, out)
		return
	}
	sess, err := s.Sessions.Store().Get(r.Context(), cookie.Value)
	if err != nil || sess.Expired(time.Now()) || sess.Credential.RefreshFailed {
		s.writeJSON(w, http.StatusOK, out)
		return
	}

	out.Authenticated = true
	out.Subject = sess.Subject
	out.Email = sess.Email
	s.writeJSON(w, http.StatusOK, out)
}

// identityFromIDToken pulls the display identity out of an ID token without
// verifying it; the token came straight from the provider over TLS.
func identityFromIDToken(idToken string) (subject, email string) {
	if idToken == "" {
		return "", ""
	}
	decoded, err := devtools.DecodeJWT(idToken)
	if err != nil {
		return "", ""
	}
	if v, ok := decoded.Payload["preferred_username"].(string); ok {
		subject = v
	} else if v, ok := decoded.Payload["sub"].(string); ok {
		subject = v
	}
	if v, ok := decoded.Payload["email"].(string); ok {
		email = v
	}
	return subject, email
}
