package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vk2dls/qsonet/internal/storage"
)

func (s *Store) PutQso(ctx context.Context, record storage.QsoRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	participants, err := json.Marshal(record.Participants)
	if err != nil {
		return fmt.Errorf("marshal participants: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO qsos (id, name, description, frequency, moderator_id, start_time, participants,
    deleted, deleted_by, deleted_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    name = excluded.name,
    description = excluded.description,
    frequency = excluded.frequency,
    moderator_id = excluded.moderator_id,
    start_time = excluded.start_time,
    participants = excluded.participants,
    deleted = excluded.deleted,
    deleted_by = excluded.deleted_by,
    deleted_at = excluded.deleted_at,
    updated_at = excluded.updated_at`,
		record.ID,
		record.Name,
		record.Description,
		record.Frequency,
		record.ModeratorID,
		formatTime(record.StartTime),
		string(participants),
		boolToInt(record.Deleted),
		record.DeletedBy,
		formatTime(record.DeletedAt),
		formatTime(record.CreatedAt),
		formatTime(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put qso: %w", err)
	}
	return nil
}

func (s *Store) GetQso(ctx context.Context, id string) (storage.QsoRecord, error) {
	if s == nil || s.db == nil {
		return storage.QsoRecord{}, fmt.Errorf("sqlite store not initialized")
	}
	if err := ctx.Err(); err != nil {
		return storage.QsoRecord{}, err
	}

	row := s.db.QueryRowContext(ctx, `
SELECT id, name, description, frequency, moderator_id, start_time, participants,
    deleted, deleted_by, deleted_at, created_at, updated_at
FROM qsos WHERE id = ?`, id)

	record, err := scanQso(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.QsoRecord{}, storage.ErrNotFound
		}
		return storage.QsoRecord{}, fmt.Errorf("get qso: %w", err)
	}
	return record, nil
}

func (s *Store) SearchQsosByName(ctx context.Context, term string) ([]storage.QsoRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlite store not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, description, frequency, moderator_id, start_time, participants,
    deleted, deleted_by, deleted_at, created_at, updated_at
FROM qsos
WHERE deleted = 0 AND name LIKE '%' || ? || '%' COLLATE NOCASE
ORDER BY id ASC`, term)
	if err != nil {
		return nil, fmt.Errorf("search qsos: %w", err)
	}
	defer rows.Close()

	return collectQsos(rows)
}

func (s *Store) ListQsosByModerator(ctx context.Context, moderatorID string) ([]storage.QsoRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlite store not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, description, frequency, moderator_id, start_time, participants,
    deleted, deleted_by, deleted_at, created_at, updated_at
FROM qsos
WHERE deleted = 0 AND moderator_id = ?
ORDER BY id ASC`, moderatorID)
	if err != nil {
		return nil, fmt.Errorf("list qsos by moderator: %w", err)
	}
	defer rows.Close()

	return collectQsos(rows)
}

// ResetQsos drops and recreates the read-model table.
func (s *Store) ResetQsos(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS qsos"); err != nil {
		return fmt.Errorf("drop qsos table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, qsosDDL); err != nil {
		return fmt.Errorf("recreate qsos table: %w", err)
	}
	return nil
}

func collectQsos(rows *sql.Rows) ([]storage.QsoRecord, error) {
	var out []storage.QsoRecord
	for rows.Next() {
		record, err := scanQso(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan qso: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate qsos: %w", err)
	}
	return out, nil
}

func scanQso(scan func(dest ...any) error) (storage.QsoRecord, error) {
	var (
		record       storage.QsoRecord
		startTime    string
		participants string
		deleted      int
		deletedAt    string
		createdAt    string
		updatedAt    string
	)
	err := scan(
		&record.ID,
		&record.Name,
		&record.Description,
		&record.Frequency,
		&record.ModeratorID,
		&startTime,
		&participants,
		&deleted,
		&record.DeletedBy,
		&deletedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return storage.QsoRecord{}, err
	}

	if err := json.Unmarshal([]byte(participants), &record.Participants); err != nil {
		return storage.QsoRecord{}, fmt.Errorf("unmarshal participants: %w", err)
	}
	record.Deleted = deleted != 0
	if record.StartTime, err = parseTime(startTime); err != nil {
		return storage.QsoRecord{}, err
	}
	if record.DeletedAt, err = parseTime(deletedAt); err != nil {
		return storage.QsoRecord{}, err
	}
	if record.CreatedAt, err = parseTime(createdAt); err != nil {
		return storage.QsoRecord{}, err
	}
	if record.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return storage.QsoRecord{}, err
	}
	return record, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time: %w", err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
