// Copyright 2025 Tom Barlow
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

// Package cache persists the last settled preload payload per tenant and
// logical key, so the warmer daemon can fall back to a recent snapshot when
// a revalidation fails.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed snapshot store.
//
// WAL mode is enabled for concurrent readers; writes are serialized by
// SQLite itself.
type Store struct {
	db *sql.DB
}

// Open creates or opens the snapshot database at path.
// The schema is migrated automatically.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	connStr := path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `CREATE TABLE IF NOT EXISTS snapshots (
		org_slug   TEXT NOT NULL,
		key        TEXT NOT NULL,
		body       BLOB NOT NULL,
		fetched_at INTEGER NOT NULL,
		PRIMARY KEY (org_slug, key)
	)`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Put stores body as the latest snapshot for (orgSlug, key).
func (s *Store) Put(ctx context.Context, orgSlug, key string, body []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (org_slug, key, body, fetched_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (org_slug, key) DO UPDATE SET
		   body = excluded.body,
		   fetched_at = excluded.fetched_at`,
		orgSlug, key, body, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("store snapshot %s/%s: %w", orgSlug, key, err)
	}
	return nil
}

// Get returns the snapshot for (orgSlug, key) if one exists and is no older
// than maxAge. maxAge <= 0 means any age is acceptable.
func (s *Store) Get(ctx context.Context, orgSlug, key string, maxAge time.Duration) ([]byte, bool, error) {
	var body []byte
	var fetchedAt int64

	err := s.db.QueryRowContext(ctx,
		`SELECT body, fetched_at FROM snapshots WHERE org_slug = ? AND key = ?`,
		orgSlug, key,
	).Scan(&body, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot %s/%s: %w", orgSlug, key, err)
	}

	if maxAge > 0 && time.Since(time.Unix(fetchedAt, 0)) > maxAge {
		return nil, false, nil
	}

	return body, true, nil
}

// Purge deletes snapshots older than olderThan and reports how many rows
// were removed.
func (s *Store) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).Unix()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge snapshots: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
