package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heliogrid/heliogrid/internal/core/domain"
	"github.com/heliogrid/heliogrid/internal/core/ports"
)

const defaultListLimit = 100

const jobColumns = `id, user_id, provider_id, image, command, status, created_at, started_at, finished_at, cost`

func (s *Store) CreateJob(ctx context.Context, userID, image, command string) (domain.Job, error) {
	if userID == "" {
		return domain.Job{}, fmt.Errorf("%w: missing user id", domain.ErrInvalidInput)
	}
	if image == "" {
		return domain.Job{}, fmt.Errorf("%w: missing image reference", domain.ErrInvalidInput)
	}

	job := domain.Job{
		ID:        domain.JobID(uuid.New().String()),
		UserID:    userID,
		Image:     image,
		Command:   command,
		Status:    domain.JobStatusQueued,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, user_id, image, command, status, created_at, cost) VALUES (?, ?, ?, ?, ?, ?, 0)`,
		job.ID, job.UserID, job.Image, job.Command, job.Status, job.CreatedAt,
	)
	if err != nil {
		return domain.Job{}, fmt.Errorf("failed to insert job: %w", err)
	}
	return job, nil
}

// ClaimNextQueuedJob assigns the oldest queued job to the provider in a
// single conditional UPDATE, so exactly one of any number of concurrent
// callers wins a given job. FIFO order, ties broken by id for stability.
func (s *Store) ClaimNextQueuedJob(ctx context.Context, providerID domain.ProviderID) (*domain.Job, error) {
	now := time.Now().UTC()

	var id string
	err := s.db.QueryRowContext(ctx, `
		UPDATE jobs SET status = ?, provider_id = ?, started_at = ?
		WHERE status = ? AND id = (
			SELECT id FROM jobs WHERE status = ? ORDER BY created_at, id LIMIT 1
		)
		RETURNING id`,
		domain.JobStatusAssigned, string(providerID), now,
		domain.JobStatusQueued, domain.JobStatusQueued,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	job, err := s.GetJob(ctx, domain.JobID(id))
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *Store) RequeueJob(ctx context.Context, id domain.JobID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, provider_id = NULL, started_at = NULL WHERE id = ? AND status = ?`,
		domain.JobStatusQueued, id, domain.JobStatusAssigned,
	)
	if err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}
	return s.transitionResult(ctx, id, res)
}

func (s *Store) MarkRunning(ctx context.Context, id domain.JobID) (domain.Job, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ? WHERE id = ? AND status = ?`,
		domain.JobStatusRunning, id, domain.JobStatusAssigned,
	)
	if err != nil {
		return domain.Job{}, fmt.Errorf("failed to mark job running: %w", err)
	}
	if err := s.transitionResult(ctx, id, res); err != nil {
		return domain.Job{}, err
	}
	return s.GetJob(ctx, id)
}

func (s *Store) MarkCompleted(ctx context.Context, id domain.JobID, cost float64) (domain.Job, error) {
	return s.finish(ctx, id, domain.JobStatusCompleted, cost)
}

func (s *Store) MarkFailed(ctx context.Context, id domain.JobID, cost float64) (domain.Job, error) {
	return s.finish(ctx, id, domain.JobStatusFailed, cost)
}

func (s *Store) finish(ctx context.Context, id domain.JobID, status domain.JobStatus, cost float64) (domain.Job, error) {
	if cost < 0 {
		return domain.Job{}, fmt.Errorf("%w: negative cost", domain.ErrInvalidInput)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, finished_at = ?, cost = ? WHERE id = ? AND status IN (?, ?)`,
		status, time.Now().UTC(), cost, id,
		domain.JobStatusAssigned, domain.JobStatusRunning,
	)
	if err != nil {
		return domain.Job{}, fmt.Errorf("failed to mark job %s: %w", status, err)
	}
	if err := s.transitionResult(ctx, id, res); err != nil {
		return domain.Job{}, err
	}
	return s.GetJob(ctx, id)
}

// transitionResult maps a zero-row conditional update to the right typed
// error: the job either does not exist or is not in an eligible state.
func (s *Store) transitionResult(ctx context.Context, id domain.JobID, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := s.GetJob(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: job %s", domain.ErrInvalidTransition, id)
}

func (s *Store) GetJob(ctx context.Context, id domain.JobID) (domain.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)

	job, err := scanJob(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Job{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	if err != nil {
		return domain.Job{}, err
	}
	return job, nil
}

func (s *Store) ListJobs(ctx context.Context, filter ports.JobFilter) ([]domain.Job, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(scan func(...any) error) (domain.Job, error) {
	var (
		j          domain.Job
		idStr      string
		statusStr  string
		providerID *string
	)
	err := scan(
		&idStr, &j.UserID, &providerID, &j.Image, &j.Command,
		&statusStr, &j.CreatedAt, &j.StartedAt, &j.FinishedAt, &j.Cost,
	)
	if err != nil {
		return domain.Job{}, err
	}
	j.ID = domain.JobID(idStr)
	j.Status = domain.JobStatus(statusStr)
	if providerID != nil {
		pid := domain.ProviderID(*providerID)
		j.ProviderID = &pid
	}
	return j, nil
}
