package jobs

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"findoc-backend/internal/documents"
	"findoc-backend/internal/shared/storage/db"
)

// SQLRepo implements Repo on Postgres or SQLite. Queries are written with "?" placeholders
// and rebound for the dialect.
type SQLRepo struct {
	DB      *sql.DB
	Dialect db.Dialect
}

const jobColumns = `id, status, query, document_id, storage_key, file_name, size_bytes, page_count, sha256,
       request_id, result, error_code, error_message, failed_stage, worker_id,
       created_at, claimed_at, completed_at`

func (r *SQLRepo) q(query string) string {
	return db.Rebind(r.Dialect, query)
}

// Create inserts a new job.
func (r *SQLRepo) Create(ctx context.Context, job Job) error {
	const query = `
INSERT INTO jobs (
	id, status, query, document_id, storage_key, file_name, size_bytes, page_count, sha256,
	request_id, created_at
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.DB.ExecContext(ctx, r.q(query),
		job.ID,
		job.Status,
		job.Query,
		job.Document.ID,
		job.Document.StorageKey,
		job.Document.FileName,
		job.Document.SizeBytes,
		job.Document.PageCount,
		job.Document.SHA256,
		job.RequestID,
		job.CreatedAt.UTC(),
	)
	return err
}

// Get returns a job by ID.
func (r *SQLRepo) Get(ctx context.Context, jobID string) (Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = ? LIMIT 1`
	job, err := scanJob(r.DB.QueryRowContext(ctx, r.q(query), jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, err
	}
	return job, nil
}

// Delete removes a job.
func (r *SQLRepo) Delete(ctx context.Context, jobID string) error {
	_, err := r.DB.ExecContext(ctx, r.q(`DELETE FROM jobs WHERE id = ?`), jobID)
	return err
}

func (r *SQLRepo) Claim(ctx context.Context, jobID, workerID string, at time.Time) (Job, error) {
	const query = `UPDATE jobs SET status = ?, worker_id = ?, claimed_at = ? WHERE id = ? AND status = ?`
	res, err := r.DB.ExecContext(ctx, r.q(query), StatusRunning, workerID, at.UTC(), jobID, StatusPending)
	if err != nil {
		return Job{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Job{}, err
	}
	job, err := r.Get(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	if n == 0 {
		return job, ErrNotPending
	}
	return job, nil
}

func (r *SQLRepo) Complete(ctx context.Context, jobID string, outcome Outcome) error {
	const query = `
UPDATE jobs
SET status = ?, result = ?, error_code = ?, error_message = ?, failed_stage = ?, completed_at = ?
WHERE id = ? AND status = ?`
	res, err := r.DB.ExecContext(ctx, r.q(query),
		outcome.Status,
		nullString(outcome.Result),
		nullString(outcome.ErrorCode),
		nullString(outcome.ErrorMessage),
		nullString(outcome.FailedStage),
		outcome.CompletedAt.UTC(),
		jobID,
		StatusRunning,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := r.Get(ctx, jobID); err != nil {
		return err
	}
	return ErrNotRunning
}

func (r *SQLRepo) ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + jobColumns + `
FROM jobs
WHERE status = ? AND created_at < ?
ORDER BY created_at
LIMIT ?`
	rows, err := r.DB.QueryContext(ctx, r.q(query), StatusPending, createdBefore.UTC(), limit)
	if err != nil {
		return nil, err
	}
	return scanJobs(rows)
}

func (r *SQLRepo) Expire(ctx context.Context, jobID string, outcome Outcome) error {
	const query = `
UPDATE jobs
SET status = ?, error_code = ?, error_message = ?, completed_at = ?
WHERE id = ? AND status = ?`
	res, err := r.DB.ExecContext(ctx, r.q(query),
		outcome.Status,
		nullString(outcome.ErrorCode),
		nullString(outcome.ErrorMessage),
		outcome.CompletedAt.UTC(),
		jobID,
		StatusPending,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := r.Get(ctx, jobID); err != nil {
		return err
	}
	return ErrNotPending
}

func (r *SQLRepo) ListExpired(ctx context.Context, claimedBefore time.Time, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + jobColumns + `
FROM jobs
WHERE status = ? AND claimed_at < ?
ORDER BY claimed_at
LIMIT ?`
	rows, err := r.DB.QueryContext(ctx, r.q(query), StatusRunning, claimedBefore.UTC(), limit)
	if err != nil {
		return nil, err
	}
	return scanJobs(rows)
}

func scanJobs(rows *sql.Rows) ([]Job, error) {
	defer rows.Close()

	var out []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func (r *SQLRepo) PurgeTerminal(ctx context.Context, completedBefore time.Time) (int64, error) {
	const query = `DELETE FROM jobs WHERE status IN (?, ?) AND completed_at < ?`
	res, err := r.DB.ExecContext(ctx, r.q(query), StatusSuccess, StatusFailure, completedBefore.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var j Job
	var doc documents.Handle
	var result, errorCode, errorMessage, failedStage, workerID sql.NullString
	var claimedAt, completedAt sql.NullTime
	err := row.Scan(
		&j.ID,
		&j.Status,
		&j.Query,
		&doc.ID,
		&doc.StorageKey,
		&doc.FileName,
		&doc.SizeBytes,
		&doc.PageCount,
		&doc.SHA256,
		&j.RequestID,
		&result,
		&errorCode,
		&errorMessage,
		&failedStage,
		&workerID,
		&j.CreatedAt,
		&claimedAt,
		&completedAt,
	)
	if err != nil {
		return Job{}, err
	}
	doc.CreatedAt = j.CreatedAt
	j.Document = doc
	j.Result = result.String
	j.ErrorCode = errorCode.String
	j.ErrorMessage = errorMessage.String
	j.FailedStage = failedStage.String
	j.WorkerID = workerID.String
	if claimedAt.Valid {
		t := claimedAt.Time
		j.ClaimedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		j.CompletedAt = &t
	}
	return j, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Repo = (*SQLRepo)(nil)
