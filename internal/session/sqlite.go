package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists sessions in a local SQLite database so sign-ins
// survive server restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore initializes the SQLite database and creates the sessions
// table when missing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		subject TEXT,
		email TEXT,
		access_token TEXT,
		refresh_token TEXT,
		token_expires_at DATETIME,
		refresh_failed INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		expires_at DATETIME
	);
	`
	if _, err := db.Exec(query); err != nil {
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, sess *Session) error {
	query := `
	INSERT INTO sessions (id, subject, email, access_token, refresh_token, token_expires_at, refresh_failed, created_at, expires_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(
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

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Session, error) {
	query := `SELECT id, subject, email, access_token, refresh_token, token_expires_at, refresh_failed, created_at, expires_at FROM sessions WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, id)

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
		if err == sql.ErrNoRows {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	sess.Credential.ExpiresAt = tokenExpiresAt
	sess.CreatedAt = createdAt
	sess.ExpiresAt = expiresAt
	return &sess, nil
}

func (s *SQLiteStore) UpdateCredential(ctx context.Context, id string, cred Credential) error {
	query := `UPDATE sessions SET access_token = ?, refresh_token = ?, token_expires_at = ?, refresh_failed = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, cred.AccessToken, cred.RefreshToken, cred.ExpiresAt, cred.RefreshFailed, id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) Close() {
	s.db.Close()
}
