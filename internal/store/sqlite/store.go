package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oactree/jobmon/internal/log"
	"github.com/oactree/jobmon/internal/model"
)

// DefaultHistoryLimit caps ListJobs when no limit is given.
const DefaultHistoryLimit = 20

// Store records jobs and their log records.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the store at path.
func Open(path string) (*Store, error) {
	db, err := NewDB(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordStatus creates or updates the job row with the job's current status.
func (s *Store) RecordStatus(ctx context.Context, job *model.JobItem) error {
	now := s.now().Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, name, procedure_path, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		job.ID, job.Name, job.ProcedurePath, job.Status(), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to record job status: %w", err)
	}
	return nil
}

// AppendLog stores rec for job, creating the job row on first use.
func (s *Store) AppendLog(ctx context.Context, job *model.JobItem, rec model.LogRecord) error {
	if err := s.RecordStatus(ctx, job); err != nil {
		return err
	}
	m := toLogRecordModel(job.ID, rec)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO log_records (id, job_id, time, severity, source, message) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.JobID, m.Time, m.Severity, m.Source, m.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to insert log record: %w", err)
	}
	return nil
}

// ListJobs returns the most recently updated jobs first.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]JobSummary, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT j.id, j.name, j.procedure_path, j.status, j.created_at, j.updated_at,
			(SELECT COUNT(*) FROM log_records l WHERE l.job_id = j.id)
		FROM jobs j
		ORDER BY j.updated_at DESC, j.rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []JobSummary
	for rows.Next() {
		var js JobSummary
		var created, updated int64
		if err := rows.Scan(&js.ID, &js.Name, &js.ProcedurePath, &js.Status, &created, &updated, &js.LogCount); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		js.CreatedAt = time.Unix(created, 0)
		js.UpdatedAt = time.Unix(updated, 0)
		out = append(out, js)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate jobs: %w", err)
	}
	log.Debug(log.CatStore, "listed jobs", "count", len(out))
	return out, nil
}

// LogRecords returns the log of jobID in append order.
func (s *Store) LogRecords(ctx context.Context, jobID string) ([]model.LogRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, time, severity, source, message FROM log_records WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query log records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.LogRecord
	for rows.Next() {
		var m logRecordModel
		if err := rows.Scan(&m.ID, &m.JobID, &m.Time, &m.Severity, &m.Source, &m.Message); err != nil {
			return nil, fmt.Errorf("failed to scan log record: %w", err)
		}
		out = append(out, m.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate log records: %w", err)
	}
	return out, nil
}
