package ports

import (
	"context"
	"encoding/json"

	"github.com/heliogrid/heliogrid/internal/core/domain"
)

// JobFilter narrows ListJobs. Zero values mean "no filter"; Limit <= 0 falls
// back to the store's default cap.
type JobFilter struct {
	UserID string
	Status domain.JobStatus
	Limit  int
}

// JobStore is the sole authority over job state transitions. Every mutation
// is atomic with respect to concurrent callers; in particular
// ClaimNextQueuedJob guarantees that exactly one caller wins a given job.
type JobStore interface {
	// CreateJob inserts a queued job with zero cost.
	CreateJob(ctx context.Context, userID, image, command string) (domain.Job, error)

	// ClaimNextQueuedJob atomically moves the oldest queued job to assigned,
	// binding it to the provider and stamping StartedAt. Returns nil when the
	// queue is empty.
	ClaimNextQueuedJob(ctx context.Context, providerID domain.ProviderID) (*domain.Job, error)

	// RequeueJob returns an assigned job to the queue, clearing the provider
	// binding and StartedAt. Used when config generation fails after a claim.
	RequeueJob(ctx context.Context, id domain.JobID) error

	// MarkRunning transitions assigned -> running.
	MarkRunning(ctx context.Context, id domain.JobID) (domain.Job, error)

	// MarkCompleted transitions assigned|running -> completed, recording cost.
	MarkCompleted(ctx context.Context, id domain.JobID, cost float64) (domain.Job, error)

	// MarkFailed transitions assigned|running -> failed, recording cost.
	MarkFailed(ctx context.Context, id domain.JobID, cost float64) (domain.Job, error)

	GetJob(ctx context.Context, id domain.JobID) (domain.Job, error)

	// ListJobs returns jobs newest-first.
	ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error)
}

// ProviderStore persists worker-node registrations.
type ProviderStore interface {
	// RegisterProvider creates the provider, or updates its capabilities and
	// flips it back online when the id is already known. The bool reports
	// whether a new row was created.
	RegisterProvider(ctx context.Context, id domain.ProviderID, ownerID *string, gpuSpecs json.RawMessage) (domain.Provider, bool, error)

	GetProvider(ctx context.Context, id domain.ProviderID) (domain.Provider, error)

	SetProviderStatus(ctx context.Context, id domain.ProviderID, status domain.ProviderStatus) error

	// ListAvailableProviders returns online providers oldest-registration
	// first, so assignment spreads load across long-lived nodes.
	ListAvailableProviders(ctx context.Context) ([]domain.Provider, error)
}

// PaymentStore is append-only; payments are never updated or deleted.
type PaymentStore interface {
	RecordPayment(ctx context.Context, p domain.Payment) error
	ListPaymentsForJob(ctx context.Context, id domain.JobID) ([]domain.Payment, error)
}

// Store is the full persistence surface backed by one database.
type Store interface {
	JobStore
	ProviderStore
	PaymentStore
}

// ChargeOutcome is the result of one charge attempt against a backend.
// A declined charge is a normal outcome (Status = failed), not an error;
// errors are reserved for transport-level failures.
type ChargeOutcome struct {
	Status    domain.PaymentStatus
	Simulated bool
}

// ChargeBackend abstracts the payment processor. Implementations are chosen
// at construction time: a real HTTP gateway or the built-in simulator.
type ChargeBackend interface {
	Charge(ctx context.Context, jobID domain.JobID, userID string, amount float64, description string) (ChargeOutcome, error)
}
