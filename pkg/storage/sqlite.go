package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"eoscraper/pkg/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	id       TEXT    NOT NULL,
	position INTEGER NOT NULL,
	name     TEXT    NOT NULL,
	value    TEXT    NOT NULL,
	PRIMARY KEY (id, position)
);`

// SQLite stores the snapshot in a single-table SQLite database. Records with
// no fields keep one row with position -1 so their id survives a reload.
type SQLite struct {
	path string
	db   *sql.DB
}

// OpenSQLite opens (or creates) the database at path
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("checkpoint path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite checkpoint: %w", err)
	}
	// All statements share one connection so ":memory:" stays a single database.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = FULL",
		sqliteSchema,
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialise sqlite checkpoint: %w", err)
		}
	}

	return &SQLite{path: path, db: db}, nil
}

// Load reads every record, restoring field order from the position column
func (s *SQLite) Load(ctx context.Context) (models.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, position, name, value FROM records ORDER BY id, position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoint: %w", err)
	}
	defer rows.Close()

	snap := models.Snapshot{}
	for rows.Next() {
		var (
			id          string
			position    int
			name, value string
		)
		if err := rows.Scan(&id, &position, &name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint row: %w", err)
		}
		rec := snap[models.RecordID(id)]
		if rec == nil {
			rec = models.Record{}
		}
		if position >= 0 {
			rec = append(rec, models.Field{Name: name, Value: value})
		}
		snap[models.RecordID(id)] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read checkpoint rows: %w", err)
	}
	return snap, nil
}

// Save replaces the whole table inside one transaction
func (s *SQLite) Save(ctx context.Context, snap models.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin checkpoint transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (id, position, name, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare checkpoint insert: %w", err)
	}
	defer stmt.Close()

	for id, rec := range snap {
		if len(rec) == 0 {
			if _, err := stmt.ExecContext(ctx, string(id), -1, "", ""); err != nil {
				return fmt.Errorf("failed to insert record %s: %w", id, err)
			}
			continue
		}
		for i, f := range rec {
			if _, err := stmt.ExecContext(ctx, string(id), i, f.Name, f.Value); err != nil {
				return fmt.Errorf("failed to insert record %s: %w", id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	return nil
}

func (s *SQLite) Location() string {
	return "sqlite://" + s.path
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
