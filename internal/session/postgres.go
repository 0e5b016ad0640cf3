package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists sessions in PostgreSQL for multi-replica
// deployments, where every replica must see the same refreshed credential.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to PostgreSQL and runs the schema migration.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		subject TEXT,
		email TEXT,
		access_token TEXT,
		refresh_token TEXT,
		token_expires_at TIMESTAMPTZ,
		refresh_failed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ,
		expires_at TIMESTAMPTZ
	);
	`
	_, err := s.pool.Exec(ctx, query)
	return err
}

func (s *PostgresStore) Create(ctx context.Context, sess *Session) error {
	query := `
	INSERT INTO sessions (id, subject, email, access_token, refresh_token, token_expires_at, refresh_failed, created_at, expires_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.pool.Exec(
		ctx,
		query,
		sess.ID,
		sess.Subject,
		sess.Email,
		sess.Credential.AccessToken,
		sess.Credential.RefreshToken,
		sess.Credential.ExpiresAt,
		sess.Credential.RefreshFailed,
		sess.CreatedAt,
		sess.ExpiresAt,
	)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Session, error) {
	query := `SELECT id, subject, email, access_token, refresh_token, token_expires_at, refresh_failed, created_at, expires_at FROM sessions WHERE id = $1`
	row := s.pool.QueryRow(ctx, query, id)

	var sess Session
	var tokenExpiresAt, createdAt, expiresAt time.Time
	err := row.Scan(
		&sess.ID,
		&sess.Subject,
		&sess.Email,
		&sess.Credential.AccessToken,
		&sess.Credential.RefreshToken,
		&tokenExpiresAt,
		&sess.Credential.RefreshFailed,
		&createdAt,
		&expiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	sess.Credential.ExpiresAt = tokenExpiresAt
	sess.CreatedAt = createdAt
	sess.ExpiresAt = expiresAt
	return &sess, nil
}

func (s *PostgresStore) UpdateCredential(ctx context.Context, id string, cred Credential) error {
	query := `UPDATE sessions SET access_token = $1, refresh_token = $2, token_expires_at = $3, refresh_failed = $4 WHERE id = $5`
	tag, err := s.pool.Exec(ctx, query, cred.AccessToken, cred.RefreshToken, cred.ExpiresAt, cred.RefreshFailed, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
