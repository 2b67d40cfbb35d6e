package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"github.com/tessro/cadence/internal/core"
)

// SQLiteStore keeps profiles in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens, creating if needed, the profile database at path.
func Open(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create profile directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps :memory: databases shared across calls.
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		name TEXT PRIMARY KEY,
		host TEXT NOT NULL,
		port INTEGER NOT NULL DEFAULT 6600,
		password TEXT NOT NULL DEFAULT '',
		stream_url TEXT NOT NULL DEFAULT '',
		auto_connect INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_auto_connect ON profiles(auto_connect);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	migrations := []string{
		`ALTER TABLE profiles ADD COLUMN stream_url TEXT NOT NULL DEFAULT ''`,
	}
	for _, m := range migrations {
		// Fails harmlessly when the column already exists.
		if _, err := db.Exec(m); err != nil {
			log.Debug().Err(err).Msg("migration skipped")
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const selectProfile = `SELECT name, host, port, password, stream_url, auto_connect FROM profiles`

func scanProfile(row interface{ Scan(...any) error }) (core.ServerProfile, error) {
	var p core.ServerProfile
	err := row.Scan(&p.Name, &p.Host, &p.Port, &p.Password, &p.StreamURL, &p.AutoConnect)
	return p, err
}

// Get returns the profile with the given name.
func (s *SQLiteStore) Get(ctx context.Context, name string) (core.ServerProfile, error) {
	p, err := scanProfile(s.db.QueryRowContext(ctx, selectProfile+` WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return core.ServerProfile{}, ErrNotFound
	}
	return p, err
}

// AutoConnect returns the profile marked for automatic connection.
func (s *SQLiteStore) AutoConnect(ctx context.Context) (core.ServerProfile, error) {
	p, err := scanProfile(s.db.QueryRowContext(ctx, selectProfile+` WHERE auto_connect = 1 LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return core.ServerProfile{}, ErrNotFound
	}
	return p, err
}

// List returns every profile ordered by name.
func (s *SQLiteStore) List(ctx context.Context) ([]core.ServerProfile, error) {
	rows, err := s.db.QueryContext(ctx, selectProfile+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.ServerProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Save inserts or replaces p. Marking p for auto-connect clears the flag
// on every other profile.
func (s *SQLiteStore) Save(ctx context.Context, p core.ServerProfile) error {
	if p.Name == "" {
		return errors.New("profile name is required")
	}
	if p.Host == "" {
		return errors.New("profile host is required")
	}
	if p.Port == 0 {
		p.Port = core.DefaultPort
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if p.AutoConnect {
		if _, err := tx.ExecContext(ctx, `UPDATE profiles SET auto_connect = 0 WHERE name != ?`, p.Name); err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO profiles (name, host, port, password, stream_url, auto_connect)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			host = excluded.host,
			port = excluded.port,
			password = excluded.password,
			stream_url = excluded.stream_url,
			auto_connect = excluded.auto_connect,
			updated_at = CURRENT_TIMESTAMP
	`, p.Name, p.Host, p.Port, p.Password, p.StreamURL, p.AutoConnect)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes the named profile.
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE name = ?`, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
