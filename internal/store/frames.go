package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordFrame inserts a persisted still.
func (s *Store) RecordFrame(ctx context.Context, rec FrameRecord) error {
	if rec.PersistedAt.IsZero() {
		rec.PersistedAt = time.Now().UTC()
	}
	err := s.exec(ctx,
		`INSERT INTO frames (
            run_id, seq, variant, path, width, height, motion, lines, circles, captured_at, persisted_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		rec.Seq,
		rec.Variant,
		rec.Path,
		rec.Width,
		rec.Height,
		rec.Motion,
		rec.Lines,
		rec.Circles,
		formatTime(rec.CapturedAt),
		formatTime(rec.PersistedAt),
	)
	if err != nil {
		return fmt.Errorf("record frame %d: %w", rec.Seq, err)
	}
	return nil
}

// ListFrames returns the frames of a run in sequence order.
func (s *Store) ListFrames(ctx context.Context, runID string) ([]FrameRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, seq, variant, path, width, height, motion, lines, circles, captured_at, persisted_at
         FROM frames WHERE run_id = ? ORDER BY seq, id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	defer rows.Close()

	var frames []FrameRecord
	for rows.Next() {
		var (
			rec         FrameRecord
			capturedRaw sql.NullString
			storedRaw   sql.NullString
		)
		if err := rows.Scan(
			&rec.ID, &rec.RunID, &rec.Seq, &rec.Variant, &rec.Path,
			&rec.Width, &rec.Height, &rec.Motion, &rec.Lines, &rec.Circles,
			&capturedRaw, &storedRaw,
		); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		rec.CapturedAt = parseTime(capturedRaw)
		rec.PersistedAt = parseTime(storedRaw)
		frames = append(frames, rec)
	}
	return frames, rows.Err()
}

// CountFrames returns the number of frames recorded for a run.
func (s *Store) CountFrames(ctx context.Context, runID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM frames WHERE run_id = ?`, runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count frames: %w", err)
	}
	return n, nil
}
