// Package sqlite persists the relational side of the system: published
// report references and the tracked-channel directory.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agorabot/agora/internal/core/report"
	"github.com/agorabot/agora/internal/core/schedule"
)

const schema = `
CREATE TABLE IF NOT EXISTS published_reports (
	kind       TEXT PRIMARY KEY,
	channel_id INTEGER NOT NULL,
	message_id INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tracked_channels (
	channel_id INTEGER PRIMARY KEY,
	category   TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_tracked_channels_category ON tracked_channels(category);
`

// Store wraps the sqlite database. It implements schedule.RefStore,
// schedule.Directory and schedule.DirectorySyncer.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the published-report reference for a kind, or
// schedule.ErrRefNotFound if the report was never published.
func (s *Store) Get(ctx context.Context, kind string) (schedule.Ref, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT kind, channel_id, message_id FROM published_reports WHERE kind = ?`, kind)

	var ref schedule.Ref
	err := row.Scan(&ref.Kind, &ref.DestinationID, &ref.MessageID)
	if errors.Is(err, sql.ErrNoRows) {
		return schedule.Ref{}, schedule.ErrRefNotFound
	}
	if err != nil {
		return schedule.Ref{}, fmt.Errorf("get report reference: %w", err)
	}
	return ref, nil
}

// Upsert creates or replaces the reference for ref.Kind. The kind is
// the primary key, so at most one reference exists per report.
func (s *Store) Upsert(ctx context.Context, ref schedule.Ref) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO published_reports (kind, channel_id, message_id, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(kind) DO UPDATE SET
			channel_id = excluded.channel_id,
			message_id = excluded.message_id,
			updated_at = excluded.updated_at`,
		ref.Kind, ref.DestinationID, ref.MessageID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("upsert report reference: %w", err)
	}
	return nil
}

// ListEntities returns the tracked channels of a category, newest
// first.
func (s *Store) ListEntities(ctx context.Context, category string) ([]report.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT channel_id, name, created_at
		FROM tracked_channels
		WHERE category = ?
		ORDER BY created_at DESC, channel_id`, category)
	if err != nil {
		return nil, fmt.Errorf("list tracked channels: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var entities []report.Entity
	for rows.Next() {
		var entity report.Entity
		var createdAt int64
		if err := rows.Scan(&entity.ID, &entity.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scan tracked channel: %w", err)
		}
		entity.CreatedAt = time.Unix(createdAt, 0).UTC()
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tracked channels: %w", err)
	}
	return entities, nil
}

// AddChannel registers or updates a tracked channel.
func (s *Store) AddChannel(ctx context.Context, category string, entity report.Entity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracked_channels (channel_id, category, name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(channel_id) DO UPDATE SET
			category = excluded.category,
			name = excluded.name,
			created_at = excluded.created_at`,
		entity.ID, category, entity.Name, entity.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("add tracked channel: %w", err)
	}
	return nil
}

// RemoveChannel drops a channel from the directory.
func (s *Store) RemoveChannel(ctx context.Context, channelID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM tracked_channels WHERE channel_id = ?`, channelID)
	if err != nil {
		return fmt.Errorf("remove tracked channel: %w", err)
	}
	return nil
}

// Sync reconciles a category against the platform's current listing:
// new channels are added, vanished ones removed, names and creation
// times refreshed.
func (s *Store) Sync(ctx context.Context, category string, entities []report.Entity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sync: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	current := make(map[int64]bool, len(entities))
	for _, entity := range entities {
		current[entity.ID] = true
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tracked_channels (channel_id, category, name, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(channel_id) DO UPDATE SET
				category = excluded.category,
				name = excluded.name,
				created_at = excluded.created_at`,
			entity.ID, category, entity.Name, entity.CreatedAt.Unix()); err != nil {
			return fmt.Errorf("sync upsert channel %d: %w", entity.ID, err)
		}
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT channel_id FROM tracked_channels WHERE category = ?`, category)
	if err != nil {
		return fmt.Errorf("sync list channels: %w", err)
	}
	var stale []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return fmt.Errorf("sync scan channel: %w", err)
		}
		if !current[id] {
			stale = append(stale, id)
		}
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("sync close rows: %w", err)
	}

	for _, id := range stale {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM tracked_channels WHERE channel_id = ?`, id); err != nil {
			return fmt.Errorf("sync remove channel %d: %w", id, err)
		}
	}

	return tx.Commit()
}
