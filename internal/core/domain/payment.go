package domain

import "time"

type PaymentID string

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment is an immutable settlement record. One row is written per charge
// attempt; a retry creates a new row rather than updating an old one.
// Simulated marks outcomes produced by the simulation backend so they can
// never be confused with a real gateway charge.
type Payment struct {
	ID        PaymentID     `json:"id"`
	JobID     JobID         `json:"job_id"`
	Amount    float64       `json:"amount"`
	Status    PaymentStatus `json:"status"`
	Simulated bool          `json:"simulated"`
	CreatedAt time.Time     `json:"created_at"`
}
