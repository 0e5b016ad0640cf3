// Package session owns the server-side user sessions and the credential
// refresh lifecycle. Access and refresh tokens live only here; the browser
// holds nothing but an opaque session id cookie.
package session

import (
	"context"
	"errors"
	"time"
)

var ErrSessionNotFound = errors.New("session not found")

// Credential is the OAuth token pair held for one session. It is mutated
// only by the Manager's single-flight refresh path.
type Credential struct {
	AccessToken   string
	RefreshToken  string
	ExpiresAt     time.Time
	RefreshFailed bool
}

// Fresh reports whether the access token is still usable at t.
func (c Credential) Fresh(t time.Time) bool {
	return !c.RefreshFailed && c.AccessToken != "" && t.Before(c.ExpiresAt)
}

// Session is one authenticated browser session.
type Session struct {
	ID         string
	Subject    string
	Email      string
	Credential Credential
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the session itself (not the access token) is past
// its lifetime.
func (s *Session) Expired(t time.Time) bool {
	return t.After(s.ExpiresAt)
}

// Store defines the interface for session persistence.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	UpdateCredential(ctx context.Context, id string, cred Credential) error
	Delete(ctx context.Context, id string) error
	Close()
}
