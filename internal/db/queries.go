package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/hpungsan/routines/internal/errors"
	"github.com/hpungsan/routines/internal/routine"
)

// Row is a stored routine with its bookkeeping columns.
type Row struct {
	Name       string
	Definition routine.Definition
	Revision   string
	CreatedAt  int64
	UpdatedAt  int64
}

// Upsert writes def under name, replacing any existing entry.
// created_at is preserved on replace.
func Upsert(ctx context.Context, db *sql.DB, name string, def routine.Definition, revision string) error {
	data, err := json.Marshal(def)
	if err != nil {
		return errors.NewInternal(err)
	}

	now := time.Now().Unix()

	query := `
		INSERT INTO routines (name, definition_json, revision, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			definition_json = excluded.definition_json,
			revision = excluded.revision,
			updated_at = excluded.updated_at
	`

	if _, err := db.ExecContext(ctx, query, name, string(data), revision, now, now); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// Delete removes the entry for name. Returns false if nothing was stored under it.
func Delete(ctx context.Context, db *sql.DB, name string) (bool, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM routines WHERE name = ?`, name)
	if err != nil {
		return false, errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return rowsAffected > 0, nil
}

// GetByName retrieves a single routine.
func GetByName(ctx context.Context, db *sql.DB, name string) (*Row, error) {
	query := `
		SELECT name, definition_json, revision, created_at, updated_at
		FROM routines
		WHERE name = ?
	`

	row, err := scanRow(db.QueryRowContext(ctx, query, name))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(name)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return row, nil
}

// GetAll retrieves every stored routine, most recently updated first.
func GetAll(ctx context.Context, db *sql.DB) ([]Row, error) {
	query := `
		SELECT name, definition_json, revision, created_at, updated_at
		FROM routines
		ORDER BY updated_at DESC, name ASC
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	out := make([]Row, 0)
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanRow scans a single row into a Row struct.
func scanRow(s scanner) (*Row, error) {
	var (
		r       Row
		defJSON string
	)

	if err := s.Scan(&r.Name, &defJSON, &r.Revision, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(defJSON), &r.Definition); err != nil {
		return nil, err
	}
	return &r, nil
}
