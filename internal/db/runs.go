package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/course-builder/internal/pipeline"
)

// recordTimeout bounds a single history write from an observer callback
const recordTimeout = 5 * time.Second

// RunRecorder keeps pipeline run history in pipeline_runs
type RunRecorder struct {
	db *DB
}

// NewRunRecorder creates a RunRecorder
func NewRunRecorder(db *DB) *RunRecorder {
	return &RunRecorder{db: db}
}

// Observe is a pipeline.Observer that upserts every snapshot
func (r *RunRecorder) Observe(run pipeline.Run) error {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	return r.Upsert(ctx, RecordFromRun(run))
}

// RecordFromRun converts a pipeline snapshot into a row
func RecordFromRun(run pipeline.Run) RunRecord {
	return RunRecord{
		ID:          run.ID,
		UserID:      run.UserID,
		Subject:     run.Subject,
		Stage:       string(run.Stage),
		Status:      string(run.Status),
		Percent:     run.Percent,
		Step:        run.Step,
		Error:       run.Error,
		FailedStage: string(run.FailedStage),
		RetryCount:  run.RetryCount,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		UpdatedAt:   run.UpdatedAt,
	}
}

// Upsert inserts or updates a run row
func (r *RunRecorder) Upsert(ctx context.Context, rec RunRecord) error {
	if rec.ID == uuid.Nil {
		return errors.New("run ID is required")
	}
	_, err := r.db.pool.Exec(ctx,
		`INSERT INTO pipeline_runs
		   (id, user_id, subject, stage, status, percent, step, error, failed_stage, retry_count, started_at, completed_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		 ON CONFLICT (id) DO UPDATE SET
		   stage = EXCLUDED.stage,
		   status = EXCLUDED.status,
		   percent = EXCLUDED.percent,
		   step = EXCLUDED.step,
		   error = EXCLUDED.error,
		   failed_stage = EXCLUDED.failed_stage,
		   retry_count = EXCLUDED.retry_count,
		   completed_at = EXCLUDED.completed_at,
		   updated_at = NOW()`,
		rec.ID, rec.UserID, rec.Subject, rec.Stage, rec.Status, rec.Percent, rec.Step,
		rec.Error, rec.FailedStage, rec.RetryCount, rec.StartedAt, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", rec.ID, err)
	}
	return nil
}

// GetRun retrieves a run row by ID, returning nil when absent
func (r *RunRecorder) GetRun(ctx context.Context, id uuid.UUID) (*RunRecord, error) {
	rows, err := r.db.pool.Query(ctx, selectRuns+` WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	rec, err := pgx.CollectOneRow(rows, pgx.RowToStructByPos[RunRecord])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	return &rec, nil
}

// ListRuns returns a user's most recent runs, newest first
func (r *RunRecorder) ListRuns(ctx context.Context, userID string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.pool.Query(ctx,
		selectRuns+` WHERE user_id = $1 ORDER BY started_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	runs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[RunRecord])
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	return runs, nil
}

const selectRuns = `SELECT id, user_id, subject, stage, status, percent, step, error, failed_stage,
	retry_count, started_at, completed_at, updated_at FROM pipeline_runs`
