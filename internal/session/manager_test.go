package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airview/airview/internal/api"
	"github.com/airview/airview/internal/oidc"
)

type fakeIDP struct {
	calls atomic.Int64
	delay time.Duration
	token oidc.Token
	err   error
}

func (f *fakeIDP) Refresh(ctx context.Context, refreshToken string) (oidc.Token, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return oidc.Token{}, f.err
	}
	return f.token, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedSession(t *testing.T, store Store, cred Credential) string {
	t.Helper()
	sess := &Session{
		ID:         "sess-1",
		Subject:    "dev",
		Credential: cred,
		CreatedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(time.Hour),
	}
	require.NoError(t, store.Create(context.Background(), sess))
	return sess.ID
}

func TestAccessTokenFreshCredential(t *testing.T) {
	store := NewMemoryStore()
	idp := &fakeIDP{}
	m := NewManager(store, idp, 30*time.Second, testLogger())

	id := seedSession(t, store, Credential{
		AccessToken:  "fresh-token",
		RefreshToken: "rt",
		ExpiresAt:    time.Now().Add(time.Hour),
	})

	tok, err := m.AccessToken(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", tok)
	assert.Zero(t, idp.calls.Load(), "fresh credential must not hit the provider")
}

func TestAccessTokenUnknownSession(t *testing.T) {
	m := NewManager(NewMemoryStore(), &fakeIDP{}, 0, testLogger())

	_, err := m.AccessToken(context.Background(), "nope")
	assert.ErrorIs(t, err, api.ErrAuthenticationRequired)

	_, err = m.AccessToken(context.Background(), "")
	assert.ErrorIs(t, err, api.ErrAuthenticationRequired)
}

func TestAccessTokenExpiredSession(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, &fakeIDP{}, 0, testLogger())

	sess := &Session{
		ID:         "old",
		Credential: Credential{AccessToken: "t", RefreshToken: "rt", ExpiresAt: time.Now().Add(time.Hour)},
		ExpiresAt:  time.Now().Add(-time.Minute),
	}
	require.NoError(t, store.Create(context.Background(), sess))

	_, err := m.AccessToken(context.Background(), "old")
	assert.ErrorIs(t, err, api.ErrAuthenticationRequired)

	// The expired session is purged on access.
	_, err = store.Get(context.Background(), "old")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestConcurrentRefreshSharesOneProviderCall(t *testing.T) {
	store := NewMemoryStore()
	idp := &fakeIDP{
		delay: 100 * time.Millisecond,
		token: oidc.Token{AccessToken: "refreshed", RefreshToken: "rt-2", ExpiresIn: 300},
	}
	m := NewManager(store, idp, 30*time.Second, testLogger())

	id := seedSession(t, store, Credential{
		AccessToken:  "stale",
		RefreshToken: "rt-1",
		ExpiresAt:    time.Now().Add(-time.Minute),
	})

	const workers = 10
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, workers)
	toks := make([]string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			toks[i], errs[i] = m.AccessToken(context.Background(), id)
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i], "worker %d", i)
		assert.Equal(t, "refreshed", toks[i], "worker %d", i)
	}
	assert.Equal(t, int64(1), idp.calls.Load(), "expired credential must be refreshed exactly once")

	sess, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "rt-2", sess.Credential.RefreshToken)
	assert.True(t, sess.Credential.Fresh(time.Now()))
}

func TestRefreshFailureIsSticky(t *testing.T) {
	store := NewMemoryStore()
	idp := &fakeIDP{err: fmt.Errorf("invalid_grant")}
	m := NewManager(store, idp, 0, testLogger())

	id := seedSession(t, store, Credential{
		AccessToken:  "stale",
		RefreshToken: "rt-1",
		ExpiresAt:    time.Now().Add(-time.Minute),
	})

	_, err := m.AccessToken(context.Background(), id)
	require.ErrorIs(t, err, api.ErrRefreshFailed)
	assert.Equal(t, int64(1), idp.calls.Load())

	// Subsequent calls fail without touching the provider again.
	_, err = m.AccessToken(context.Background(), id)
	require.ErrorIs(t, err, api.ErrRefreshFailed)
	assert.Equal(t, int64(1), idp.calls.Load())
}

func TestRefreshKeepsOldRefreshTokenWhenNotRotated(t *testing.T) {
	store := NewMemoryStore()
	idp := &fakeIDP{token: oidc.Token{AccessToken: "refreshed", ExpiresIn: 300}}
	m := NewManager(store, idp, 0, testLogger())

	id := seedSession(t, store, Credential{
		AccessToken:  "stale",
		RefreshToken: "rt-keep",
		ExpiresAt:    time.Now().Add(-time.Minute),
	})

	tok, err := m.AccessToken(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "refreshed", tok)

	sess, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "rt-keep", sess.Credential.RefreshToken)
}

func TestRefreshSurvivesCallerCancellation(t *testing.T) {
	store := NewMemoryStore()
	idp := &fakeIDP{token: oidc.Token{AccessToken: "refreshed", RefreshToken: "rt-2", ExpiresIn: 300}}
	m := NewManager(store, idp, 0, testLogger())

	id := seedSession(t, store, Credential{
		AccessToken:  "stale",
		RefreshToken: "rt-1",
		ExpiresAt:    time.Now().Add(-time.Minute),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Lookup happens before detaching, so a pre-cancelled context still
	// resolves the session from the in-memory store and refreshes.
	tok, err := m.AccessToken(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "refreshed", tok)
}

func TestCredentialFresh(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		cred Credential
		want bool
	}{
		{"valid", Credential{AccessToken: "t", ExpiresAt: now.Add(time.Minute)}, true},
		{"expired", Credential{AccessToken: "t", ExpiresAt: now.Add(-time.Minute)}, false},
		{"empty token", Credential{ExpiresAt: now.Add(time.Minute)}, false},
		{"refresh failed", Credential{AccessToken: "t", ExpiresAt: now.Add(time.Minute), RefreshFailed: true}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.cred.Fresh(now))
		})
	}
}
