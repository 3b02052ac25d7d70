package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const runColumns = "id, source, status, started_at, stopped_at, ticks, completed, dropped, allocated, released, double_releases, video_path, archive_path, error_message"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run        Run
		status     string
		startedRaw sql.NullString
		stoppedRaw sql.NullString
		videoPath  sql.NullString
		archive    sql.NullString
		errMessage sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.Source,
		&status,
		&startedRaw,
		&stoppedRaw,
		&run.Ticks,
		&run.Completed,
		&run.Dropped,
		&run.Allocated,
		&run.Released,
		&run.DoubleReleases,
		&videoPath,
		&archive,
		&errMessage,
	); err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	run.StartedAt = parseTime(startedRaw)
	run.StoppedAt = parseTime(stoppedRaw)
	run.VideoPath = videoPath.String
	run.ArchivePath = archive.String
	run.ErrorMessage = errMessage.String
	return &run, nil
}

// BeginRun records a new running run. An empty id gets a fresh UUID.
func (s *Store) BeginRun(ctx context.Context, id, source string) (*Run, error) {
	if id == "" {
		id = uuid.NewString()
	}
	run := &Run{
		ID:        id,
		Source:    source,
		Status:    RunRunning,
		StartedAt: time.Now().UTC(),
	}
	err := s.exec(ctx,
		`INSERT INTO runs (id, source, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Source, string(run.Status), formatTime(run.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun persists the final counters and status of run.
func (s *Store) FinishRun(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	if run.StoppedAt.IsZero() {
		run.StoppedAt = time.Now().UTC()
	}
	err := s.exec(ctx,
		`UPDATE runs
         SET status = ?, stopped_at = ?, ticks = ?, completed = ?, dropped = ?,
             allocated = ?, released = ?, double_releases = ?,
             video_path = ?, archive_path = ?, error_message = ?
         WHERE id = ?`,
		string(run.Status),
		formatTime(run.StoppedAt),
		run.Ticks,
		run.Completed,
		run.Dropped,
		run.Allocated,
		run.Released,
		run.DoubleReleases,
		nullableString(run.VideoPath),
		nullableString(run.ArchivePath),
		nullableString(run.ErrorMessage),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun fetches a run by identifier or unique identifier prefix. It
// returns nil when nothing matches.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ORDER BY started_at DESC LIMIT 2`,
		id, id+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	var found []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.ID == id {
			return run, nil
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("run prefix %q is ambiguous", id)
	}
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// MarkAbandoned closes runs left in the running state by a crashed process.
func (s *Store) MarkAbandoned(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE runs SET status = ?, error_message = ? WHERE status = ?`,
			string(RunFailed), "process exited before the run stopped", string(RunRunning),
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("mark abandoned runs: %w", err)
	}
	return affected, nil
}

// PruneRuns deletes all but the newest keep runs along with their frame
// rows. Files on disk are left alone.
func (s *Store) PruneRuns(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	ctx = ensureContext(ctx)
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY started_at DESC LIMIT ?)`,
			keep,
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return affected, nil
}
