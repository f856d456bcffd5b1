package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/jobdeck/internal/common"
	"github.com/Veraticus/jobdeck/internal/job"
	"github.com/Veraticus/jobdeck/internal/model"
)

// SaveRun stores a finished run and its transcript.
func (s *Store) SaveRun(ctx context.Context, run model.RunSummary, transcript []model.LogEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(run.ID, "run.ID"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO job_runs
			(id, kind, status, message, total, completed, successful, failed, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), string(run.Status), run.Message,
		run.Total, run.Completed, run.Successful, run.Failed,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM job_messages WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("failed to clear transcript: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO job_messages (run_id, seq, level, text) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, entry := range transcript {
		if _, err = stmt.ExecContext(ctx, run.ID, i, string(entry.Level), entry.Text); err != nil {
			return fmt.Errorf("failed to save transcript entry %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// ListOptions filters ListRuns.
type ListOptions struct {
	Kind  model.JobKind
	Limit int
}

// ListRuns returns finished runs, newest first.
func (s *Store) ListRuns(ctx context.Context, opts ListOptions) ([]model.RunSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, kind, status, message, total, completed, successful, failed, started_at, finished_at
		FROM job_runs`
	args := []any{}
	if opts.Kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(opts.Kind))
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []model.RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run. The id may be a unique prefix.
func (s *Store) GetRun(ctx context.Context, id string) (model.RunSummary, error) {
	if err := validateContext(ctx); err != nil {
		return model.RunSummary{}, err
	}
	if err := validateString(id, "id"); err != nil {
		return model.RunSummary{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, status, message, total, completed, successful, failed, started_at, finished_at
		FROM job_runs WHERE id LIKE ? || '%' LIMIT 2`, id)
	if err != nil {
		return model.RunSummary{}, fmt.Errorf("failed to query run: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var found []model.RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return model.RunSummary{}, err
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return model.RunSummary{}, fmt.Errorf("error iterating runs: %w", err)
	}

	switch len(found) {
	case 0:
		return model.RunSummary{}, fmt.Errorf("%w: run %s", common.ErrNotFound, id)
	case 1:
		return found[0], nil
	default:
		return model.RunSummary{}, common.NewUserError(fmt.Sprintf("run id %q is ambiguous", id), nil)
	}
}

// Transcript returns the console entries recorded for a run.
func (s *Store) Transcript(ctx context.Context, runID string) ([]model.LogEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT level, text FROM job_messages WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.LogEntry
	for rows.Next() {
		var level, text string
		if err := rows.Scan(&level, &text); err != nil {
			return nil, fmt.Errorf("failed to scan transcript entry: %w", err)
		}
		entries = append(entries, model.LogEntry{Text: text, Level: model.ParseLevel(level)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transcript: %w", err)
	}
	return entries, nil
}

// Prune deletes runs that finished before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM job_messages WHERE run_id IN (SELECT id FROM job_runs WHERE finished_at < ?)`, cutoff.UTC()); err != nil {
		return 0, fmt.Errorf("failed to prune transcripts: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM job_runs WHERE finished_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (model.RunSummary, error) {
	var (
		run          model.RunSummary
		kind, status string
		message      sql.NullString
	)
	err := row.Scan(&run.ID, &kind, &status, &message,
		&run.Total, &run.Completed, &run.Successful, &run.Failed,
		&run.StartedAt, &run.FinishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RunSummary{}, common.ErrNotFound
		}
		return model.RunSummary{}, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Kind = model.JobKind(kind)
	run.Status = model.JobStatus(status)
	run.Message = message.String
	return run, nil
}

// OnJobEvent records terminal transitions. It implements job.Observer.
func (s *Store) OnJobEvent(ev job.Event) {
	if ev.Type != job.EventTransition || ev.Summary == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.SaveRun(ctx, *ev.Summary, ev.Transcript); err != nil {
		slog.Warn("Failed to record job run", "kind", ev.Kind, "run_id", ev.RunID, "error", err)
	}
}
