// Copyright 2025 The ocx Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package history persists chat transcripts in a local SQLite database so
// interactive sessions can seed model context with recent turns.
package history

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ocxlabs/ocx/pkg/errors"
)

// Turn is one recorded chat message.
type Turn struct {
	ID        int64
	Role      string
	Command   string
	Content   string
	CreatedAt time.Time
}

// Store is a SQLite-backed chat transcript.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS turns (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	role       TEXT NOT NULL,
	command    TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_turns_created_at ON turns(created_at);
`

// Open opens (creating if needed) the transcript database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "creating history directory %s", dir)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening history database %s", path)
	}
	// A single writer keeps SQLite happy without WAL tuning.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating history schema")
	}

	return &Store{db: db, logger: logger}, nil
}

// Append records one turn.
func (s *Store) Append(ctx context.Context, role, command, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (role, command, content, created_at) VALUES (?, ?, ?, ?)`,
		role, command, content, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "appending history turn")
	}
	return nil
}

// Recent returns the last n turns in chronological order.
func (s *Store) Recent(ctx context.Context, n int) ([]Turn, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, command, content, created_at FROM turns ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, errors.Wrap(err, "querying history")
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.Role, &t.Command, &t.Content, &t.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning history turn")
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "reading history rows")
	}

	// Newest-first from the query; callers want oldest-first.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Clear deletes every recorded turn.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM turns`); err != nil {
		return errors.Wrap(err, "clearing history")
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
