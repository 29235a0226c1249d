// Package db persists the user table to a local SQLite database file
// inside the per-instance data directory.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/udisondev/chessd/internal/model"
)

// Store wraps the SQLite user table. The in-memory user set is
// authoritative at all times; the store only survives restarts.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging database %s: %w", path, err)
	}
	if err := runMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}
	slog.Info("opened database", "path", path)
	return &Store{db: sqlDB}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadAll reads every persisted user and the highest assigned ID, so the
// caller can advance its ID counter past any loaded row.
func (s *Store) LoadAll(ctx context.Context) ([]*model.User, int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ID, IP, NAME, PW, GAMES, ZERO, HALF, ONE, RATING, WEIGHT, LASTLOGIN FROM USERS`)
	if err != nil {
		return nil, 0, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	var maxID int64
	for rows.Next() {
		u := &model.User{}
		if err := rows.Scan(&u.ID, &u.IP, &u.Name, &u.Password,
			&u.PlayedGames, &u.ScoringZero, &u.ScoringHalf, &u.ScoringOne,
			&u.Rating, &u.EloWeight, &u.LastLogin); err != nil {
			return nil, 0, fmt.Errorf("scanning user row: %w", err)
		}
		maxID = max(maxID, u.ID)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("reading user rows: %w", err)
	}
	return users, maxID, nil
}

// ReplaceAll swaps the entire table for the given user set in one
// transaction. On any failure (a locked database included) the whole
// update is rolled back and the previous rows remain.
func (s *Store) ReplaceAll(ctx context.Context, users []*model.User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning replace transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM USERS`); err != nil {
		return fmt.Errorf("clearing users: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO USERS (ID, IP, NAME, PW, GAMES, ZERO, HALF, ONE, RATING, WEIGHT, LASTLOGIN)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, u := range users {
		if _, err := stmt.ExecContext(ctx, u.ID, u.IP, u.Name, u.Password,
			u.PlayedGames, u.ScoringZero, u.ScoringHalf, u.ScoringOne,
			u.Rating, u.EloWeight, u.LastLogin); err != nil {
			return fmt.Errorf("inserting user %q: %w", u.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing replace: %w", err)
	}
	return nil
}
