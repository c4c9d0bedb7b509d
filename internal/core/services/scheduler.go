package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/heliogrid/heliogrid/internal/core/domain"
	"github.com/heliogrid/heliogrid/internal/core/ports"
	"github.com/heliogrid/heliogrid/internal/core/runspec"
)

// BuildConfigFunc generates the run configuration for a claimed job. The
// default wraps runspec.Build; tests substitute failures to exercise the
// requeue path.
type BuildConfigFunc func(image, command string) (runspec.Config, error)

// SchedulerConfig tunes the matching loop and the settlement policy knobs
// that belong to scheduling rather than pricing.
type SchedulerConfig struct {
	TickInterval time.Duration // default 10s
	// FailureCostFactor discounts the wall-clock cost of failed jobs,
	// reflecting partial resource consumption. Default 0.5.
	FailureCostFactor float64
}

// Scheduler drives assignment of queued jobs to available providers and
// handles provider status reports. It holds no authoritative state; every
// transition goes through the store, whose conditional updates are the sole
// arbitration point. Multiple scheduler instances over one store cannot
// double-assign a job.
type Scheduler struct {
	logger      *slog.Logger
	store       ports.Store
	settlement  *Settlement
	bus         *EventBus
	buildConfig BuildConfigFunc
	tick        time.Duration
	failFactor  float64
	now         func() time.Time
}

func NewScheduler(logger *slog.Logger, store ports.Store, settlement *Settlement, bus *EventBus, cfg SchedulerConfig) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 10 * time.Second
	}
	if cfg.FailureCostFactor <= 0 || cfg.FailureCostFactor > 1 {
		cfg.FailureCostFactor = 0.5
	}
	return &Scheduler{
		logger:     logger,
		store:      store,
		settlement: settlement,
		bus:        bus,
		buildConfig: func(image, command string) (runspec.Config, error) {
			return runspec.Build(image, runspec.Options{Command: command})
		},
		tick:       cfg.TickInterval,
		failFactor: cfg.FailureCostFactor,
		now:        time.Now,
	}
}

// Run starts the matching loop. Blocks until ctx is cancelled; a tick in
// progress finishes before the loop exits.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "tick_interval", s.tick)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.Error("tick failed", "error", err)
			}
		}
	}
}

// Tick runs one matching pass: at most one job per available provider, in
// provider registration order. Stops early when the queue is exhausted;
// backlog stays queued for the next tick or the next provider pull.
func (s *Scheduler) Tick(ctx context.Context) error {
	providers, err := s.store.ListAvailableProviders(ctx)
	if err != nil {
		return fmt.Errorf("failed to list providers: %w", err)
	}
	if len(providers) == 0 {
		return nil
	}

	for _, p := range providers {
		job, _, err := s.assignTo(ctx, p.ID)
		if err != nil {
			return err
		}
		if job == nil {
			return nil // queue exhausted
		}
	}
	return nil
}

// Assign is the provider-pull path behind POST /jobs/assign. It uses the
// same claim primitive as the tick, so a polling provider and a concurrent
// tick can never win the same job twice.
func (s *Scheduler) Assign(ctx context.Context, providerID domain.ProviderID) (*domain.Job, *runspec.Config, error) {
	p, err := s.store.GetProvider(ctx, providerID)
	if err != nil {
		return nil, nil, err
	}
	if p.Status != domain.ProviderStatusOnline {
		return nil, nil, fmt.Errorf("%w: provider %s is %s", domain.ErrInvalidTransition, providerID, p.Status)
	}
	return s.assignTo(ctx, providerID)
}

// assignTo claims the next queued job for the provider, generates its run
// config, and marks the provider busy. A config-generation failure is a
// retry path: the job goes back to the queue and the provider stays online.
func (s *Scheduler) assignTo(ctx context.Context, providerID domain.ProviderID) (*domain.Job, *runspec.Config, error) {
	job, err := s.store.ClaimNextQueuedJob(ctx, providerID)
	if err != nil {
		return nil, nil, err
	}
	if job == nil {
		return nil, nil, nil
	}

	cfg, err := s.buildConfig(job.Image, job.Command)
	if err != nil {
		s.logger.Warn("config generation failed, requeueing job",
			"job_id", job.ID, "image", job.Image, "error", err)
		if reqErr := s.store.RequeueJob(ctx, job.ID); reqErr != nil {
			return nil, nil, reqErr
		}
		JobsRequeuedTotal.Inc()
		s.publish(job.ID, EventTypeRequeued, nil)
		return nil, nil, nil
	}

	if err := s.store.SetProviderStatus(ctx, providerID, domain.ProviderStatusBusy); err != nil {
		// Without a busy provider the assignment is not observable by the
		// invariant; undo the claim and surface the store error.
		if reqErr := s.store.RequeueJob(ctx, job.ID); reqErr != nil {
			s.logger.Error("failed to requeue after provider update failure",
				"job_id", job.ID, "error", reqErr)
		}
		return nil, nil, err
	}

	JobsAssignedTotal.Inc()
	s.logger.Info("job assigned", "job_id", job.ID, "provider_id", providerID)
	s.publish(job.ID, EventTypeAssigned, map[string]any{"provider_id": string(providerID)})

	return job, &cfg, nil
}

// ReportStatus handles a provider's status report for an assigned job.
// measuredMinutes, when supplied with a completed report, overrides the
// wall-clock duration for pricing. The terminal transitions are atomic in
// the store, so a retried report fails with ErrInvalidTransition before a
// second charge can happen.
func (s *Scheduler) ReportStatus(ctx context.Context, jobID domain.JobID, providerID domain.ProviderID, status domain.JobStatus, measuredMinutes *float64) (domain.Job, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return domain.Job{}, err
	}
	if job.ProviderID == nil || *job.ProviderID != providerID {
		return domain.Job{}, fmt.Errorf("%w: job %s", domain.ErrForbidden, jobID)
	}

	switch status {
	case domain.JobStatusRunning:
		updated, err := s.store.MarkRunning(ctx, jobID)
		if err != nil {
			return domain.Job{}, err
		}
		s.publish(jobID, EventTypeRunning, nil)
		return updated, nil

	case domain.JobStatusCompleted:
		cost := s.wallClockCost(job)
		if measuredMinutes != nil {
			cost = s.settlement.CostForMinutes(*measuredMinutes)
		}
		updated, err := s.store.MarkCompleted(ctx, jobID, cost)
		if err != nil {
			return domain.Job{}, err
		}
		JobsCompletedTotal.Inc()
		s.settle(ctx, updated, cost, "job completed")
		s.releaseProvider(ctx, providerID)
		s.publish(jobID, EventTypeCompleted, map[string]any{"cost": cost})
		return updated, nil

	case domain.JobStatusFailed:
		// Failed jobs are billed a flat fraction of their wall-clock cost.
		cost := RoundCents(s.wallClockCost(job) * s.failFactor)
		updated, err := s.store.MarkFailed(ctx, jobID, cost)
		if err != nil {
			return domain.Job{}, err
		}
		JobsFailedTotal.Inc()
		if cost > 0 {
			s.settle(ctx, updated, cost, "job failed, partial usage")
		}
		s.releaseProvider(ctx, providerID)
		s.publish(jobID, EventTypeFailed, map[string]any{"cost": cost})
		return updated, nil

	default:
		return domain.Job{}, fmt.Errorf("%w: cannot report status %q", domain.ErrInvalidInput, status)
	}
}

func (s *Scheduler) wallClockCost(job domain.Job) float64 {
	if job.StartedAt == nil {
		return 0
	}
	return s.settlement.ComputeCost(*job.StartedAt, s.now())
}

// settle charges the user for a terminal job. The job is already terminal at
// this point, so a charge failure is logged and left for out-of-band
// reconciliation rather than undoing the transition.
func (s *Scheduler) settle(ctx context.Context, job domain.Job, cost float64, description string) {
	result, err := s.settlement.Charge(ctx, job.ID, job.UserID, cost, description)
	if err != nil {
		s.logger.Error("settlement charge failed", "job_id", job.ID, "error", err)
		return
	}
	if !result.Success {
		s.logger.Warn("charge declined", "job_id", job.ID, "payment_id", result.PaymentID)
	}
	s.logger.Info("provider earnings accrued",
		"job_id", job.ID,
		"earnings", s.settlement.ProviderEarnings(cost))
}

func (s *Scheduler) releaseProvider(ctx context.Context, providerID domain.ProviderID) {
	if err := s.store.SetProviderStatus(ctx, providerID, domain.ProviderStatusOnline); err != nil {
		s.logger.Error("failed to release provider", "provider_id", providerID, "error", err)
	}
}

func (s *Scheduler) publish(jobID domain.JobID, typ EventType, payload map[string]any) {
	if s.bus == nil {
		return
	}
	data := ""
	if payload != nil {
		b, _ := json.Marshal(payload)
		data = string(b)
	}
	s.bus.Publish(Event{
		JobID:     string(jobID),
		Type:      typ,
		Data:      data,
		Timestamp: s.now().UnixMilli(),
	})
}
