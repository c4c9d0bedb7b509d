package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heliogrid/heliogrid/internal/core/domain"
	"github.com/heliogrid/heliogrid/internal/core/ports"
)

// memStore is a mutex-guarded in-memory ports.Store with the same
// transition semantics as the duckdb adapter. Keeps service tests fast and
// deterministic; the SQL claim itself is covered by the adapter's own tests.
type memStore struct {
	mu        sync.Mutex
	jobs      map[domain.JobID]*domain.Job
	jobOrder  []domain.JobID
	providers map[domain.ProviderID]*domain.Provider
	provOrder []domain.ProviderID
	payments  []domain.Payment
}

var _ ports.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		jobs:      make(map[domain.JobID]*domain.Job),
		providers: make(map[domain.ProviderID]*domain.Provider),
	}
}

func (m *memStore) CreateJob(ctx context.Context, userID, image, command string) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := domain.Job{
		ID:        domain.JobID(uuid.New().String()),
		UserID:    userID,
		Image:     image,
		Command:   command,
		Status:    domain.JobStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	m.jobs[job.ID] = &job
	m.jobOrder = append(m.jobOrder, job.ID)
	return job, nil
}

func (m *memStore) ClaimNextQueuedJob(ctx context.Context, providerID domain.ProviderID) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.jobOrder {
		job := m.jobs[id]
		if job.Status != domain.JobStatusQueued {
			continue
		}
		now := time.Now().UTC()
		pid := providerID
		job.Status = domain.JobStatusAssigned
		job.ProviderID = &pid
		job.StartedAt = &now
		out := *job
		return &out, nil
	}
	return nil, nil
}

func (m *memStore) RequeueJob(ctx context.Context, id domain.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	if job.Status != domain.JobStatusAssigned {
		return fmt.Errorf("%w: job %s", domain.ErrInvalidTransition, id)
	}
	job.Status = domain.JobStatusQueued
	job.ProviderID = nil
	job.StartedAt = nil
	return nil
}

func (m *memStore) MarkRunning(ctx context.Context, id domain.JobID) (domain.Job, error) {
	return m.transition(id, domain.JobStatusRunning, nil, domain.JobStatusAssigned)
}

func (m *memStore) MarkCompleted(ctx context.Context, id domain.JobID, cost float64) (domain.Job, error) {
	return m.transition(id, domain.JobStatusCompleted, &cost, domain.JobStatusAssigned, domain.JobStatusRunning)
}

func (m *memStore) MarkFailed(ctx context.Context, id domain.JobID, cost float64) (domain.Job, error) {
	return m.transition(id, domain.JobStatusFailed, &cost, domain.JobStatusAssigned, domain.JobStatusRunning)
}

func (m *memStore) transition(id domain.JobID, to domain.JobStatus, cost *float64, from ...domain.JobStatus) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return domain.Job{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	eligible := false
	for _, f := range from {
		if job.Status == f {
			eligible = true
		}
	}
	if !eligible {
		return domain.Job{}, fmt.Errorf("%w: job %s", domain.ErrInvalidTransition, id)
	}
	job.Status = to
	if to.Terminal() {
		now := time.Now().UTC()
		job.FinishedAt = &now
		job.Cost = *cost
	}
	return *job, nil
}

func (m *memStore) GetJob(ctx context.Context, id domain.JobID) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return domain.Job{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	return *job, nil
}

func (m *memStore) ListJobs(ctx context.Context, filter ports.JobFilter) ([]domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Job
	for i := len(m.jobOrder) - 1; i >= 0; i-- {
		job := m.jobs[m.jobOrder[i]]
		if filter.UserID != "" && job.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		out = append(out, *job)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) RegisterProvider(ctx context.Context, id domain.ProviderID, ownerID *string, gpuSpecs json.RawMessage) (domain.Provider, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = domain.ProviderID(uuid.New().String())
	}
	if p, ok := m.providers[id]; ok {
		p.GPUSpecs = gpuSpecs
		p.Status = domain.ProviderStatusOnline
		return *p, false, nil
	}
	p := domain.Provider{
		ID:           id,
		OwnerID:      ownerID,
		Status:       domain.ProviderStatusOnline,
		GPUSpecs:     gpuSpecs,
		RegisteredAt: time.Now().UTC(),
	}
	m.providers[id] = &p
	m.provOrder = append(m.provOrder, id)
	return p, true, nil
}

func (m *memStore) GetProvider(ctx context.Context, id domain.ProviderID) (domain.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.providers[id]
	if !ok {
		return domain.Provider{}, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, id)
	}
	return *p, nil
}

func (m *memStore) SetProviderStatus(ctx context.Context, id domain.ProviderID, status domain.ProviderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.providers[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrProviderNotFound, id)
	}
	p.Status = status
	return nil
}

func (m *memStore) ListAvailableProviders(ctx context.Context) ([]domain.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Provider
	for _, id := range m.provOrder {
		if p := m.providers[id]; p.Status == domain.ProviderStatusOnline {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memStore) RecordPayment(ctx context.Context, p domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments = append(m.payments, p)
	return nil
}

func (m *memStore) ListPaymentsForJob(ctx context.Context, id domain.JobID) ([]domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Payment
	for _, p := range m.payments {
		if p.JobID == id {
			out = append(out, p)
		}
	}
	return out, nil
}

// fakeBackend is a canned ports.ChargeBackend.
type fakeBackend struct {
	mu      sync.Mutex
	outcome ports.ChargeOutcome
	err     error
	calls   int
}

func (f *fakeBackend) Charge(ctx context.Context, jobID domain.JobID, userID string, amount float64, description string) (ports.ChargeOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.outcome, f.err
}
