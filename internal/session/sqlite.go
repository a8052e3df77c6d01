package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sedaguven/davon-library-system/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// OpenSQLite opens (or creates) the credentials database at path
func OpenSQLite(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create session dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open session db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS credentials (
		profile    TEXT PRIMARY KEY,
		token      TEXT NOT NULL,
		identity   TEXT,
		updated_at DATETIME NOT NULL
	);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create credentials table: %w", err)
	}
	return db, nil
}

// SQLiteCredentials stores one profile's credentials in a shared SQLite file.
// Several profiles (e.g. one per chat user) can live in the same database.
type SQLiteCredentials struct {
	db      *sql.DB
	profile string
}

// NewSQLiteCredentials binds a credential store to profile inside db
func NewSQLiteCredentials(db *sql.DB, profile string) *SQLiteCredentials {
	return &SQLiteCredentials{db: db, profile: profile}
}

func (s *SQLiteCredentials) Load(ctx context.Context) (Credentials, error) {
	var (
		token    string
		identity sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT token, identity FROM credentials WHERE profile = ?`, s.profile,
	).Scan(&token, &identity)
	if errors.Is(err, sql.ErrNoRows) {
		return Credentials{}, nil
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to load credentials: %w", err)
	}

	creds := Credentials{Token: token}
	if identity.Valid && identity.String != "" {
		var id models.Identity
		if err := json.Unmarshal([]byte(identity.String), &id); err != nil {
			// keep the token, the identity will be resolved again
			return creds, nil
		}
		creds.Identity = &id
	}
	return creds, nil
}

func (s *SQLiteCredentials) Save(ctx context.Context, creds Credentials) error {
	var identity sql.NullString
	if creds.Identity != nil {
		data, err := json.Marshal(creds.Identity)
		if err != nil {
			return fmt.Errorf("failed to encode identity: %w", err)
		}
		identity = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (profile, token, identity, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(profile) DO UPDATE SET token = excluded.token, identity = excluded.identity, updated_at = excluded.updated_at`,
		s.profile, creds.Token, identity, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

func (s *SQLiteCredentials) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE profile = ?`, s.profile); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}
