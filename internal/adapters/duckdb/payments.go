package duckdb

import (
	"context"
	"fmt"

	"github.com/heliogrid/heliogrid/internal/core/domain"
)

// RecordPayment appends one settlement record. Payments are immutable; a
// retried charge writes a new row instead of touching this one.
func (s *Store) RecordPayment(ctx context.Context, p domain.Payment) error {
	if p.Amount < 0 {
		return fmt.Errorf("%w: negative payment amount", domain.ErrInvalidInput)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payments (id, job_id, amount, status, simulated, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.JobID, p.Amount, p.Status, p.Simulated, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record payment: %w", err)
	}
	return nil
}

func (s *Store) ListPaymentsForJob(ctx context.Context, id domain.JobID) ([]domain.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, amount, status, simulated, created_at FROM payments WHERE job_id = ? ORDER BY created_at, id`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		var (
			p         domain.Payment
			idStr     string
			jobIDStr  string
			statusStr string
		)
		if err := rows.Scan(&idStr, &jobIDStr, &p.Amount, &statusStr, &p.Simulated, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.ID = domain.PaymentID(idStr)
		p.JobID = domain.JobID(jobIDStr)
		p.Status = domain.PaymentStatus(statusStr)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
