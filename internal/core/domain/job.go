package domain

import "time"

type JobID string

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusAssigned  JobStatus = "assigned"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether a status can never change again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid reports whether s is one of the known job statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusAssigned, JobStatusRunning, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// Job is a single unit of requested compute work.
//
// StartedAt is set on assignment and FinishedAt on reaching a terminal
// status. Cost stays 0 until the job completes or fails. Jobs are never
// deleted; terminal rows are kept for audit.
type Job struct {
	ID         JobID       `json:"id"`
	UserID     string      `json:"user_id"`
	ProviderID *ProviderID `json:"provider_id,omitempty"`
	Image      string      `json:"image"`
	Command    string      `json:"command,omitempty"`
	Status     JobStatus   `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Cost       float64     `json:"cost"`
}
