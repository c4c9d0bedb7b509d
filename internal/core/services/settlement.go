package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/heliogrid/heliogrid/internal/core/domain"
	"github.com/heliogrid/heliogrid/internal/core/ports"
)

// SettlementConfig carries the pricing policy. The defaults mirror the
// platform's flat tariff; both knobs are plain constants here so future
// tiered pricing only touches this struct.
type SettlementConfig struct {
	RatePerMinute float64 // currency units per job minute
	PayoutShare   float64 // provider's fraction of the charged cost
}

const (
	defaultRatePerMinute = 0.10
	defaultPayoutShare   = 0.8
)

// Settlement computes job cost and executes charges through the configured
// backend, recording one immutable Payment row per non-zero charge attempt.
type Settlement struct {
	logger   *slog.Logger
	backend  ports.ChargeBackend
	payments ports.PaymentStore
	rate     float64
	share    float64
}

func NewSettlement(logger *slog.Logger, backend ports.ChargeBackend, payments ports.PaymentStore, cfg SettlementConfig) *Settlement {
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = defaultRatePerMinute
	}
	if cfg.PayoutShare <= 0 || cfg.PayoutShare > 1 {
		cfg.PayoutShare = defaultPayoutShare
	}
	return &Settlement{
		logger:   logger,
		backend:  backend,
		payments: payments,
		rate:     cfg.RatePerMinute,
		share:    cfg.PayoutShare,
	}
}

func (s *Settlement) RatePerMinute() float64 { return s.rate }

// ComputeCost prices the wall-clock span from startedAt to endedAt.
// Negative spans are treated as zero.
func (s *Settlement) ComputeCost(startedAt, endedAt time.Time) float64 {
	return s.CostForMinutes(endedAt.Sub(startedAt).Minutes())
}

// CostForMinutes prices a measured duration reported by a provider.
func (s *Settlement) CostForMinutes(minutes float64) float64 {
	if minutes < 0 {
		minutes = 0
	}
	return RoundCents(minutes * s.rate)
}

// ProviderEarnings is the provider's payout share of a settled cost.
func (s *Settlement) ProviderEarnings(cost float64) float64 {
	return RoundCents(cost * s.share)
}

// ChargeResult reports the outcome of one settlement charge. PaymentID is
// empty for the zero-amount no-op, which records nothing.
type ChargeResult struct {
	Success   bool             `json:"success"`
	PaymentID domain.PaymentID `json:"payment_id,omitempty"`
	Simulated bool             `json:"simulated,omitempty"`
}

// Charge executes one charge attempt and records its Payment row. A declined
// charge yields Success=false with a failed row, not an error; errors mean
// the backend or the store itself failed.
func (s *Settlement) Charge(ctx context.Context, jobID domain.JobID, userID string, amount float64, description string) (ChargeResult, error) {
	if amount == 0 {
		return ChargeResult{Success: true}, nil
	}
	if amount < 0 {
		return ChargeResult{}, fmt.Errorf("%w: negative charge amount", domain.ErrInvalidInput)
	}

	outcome, err := s.backend.Charge(ctx, jobID, userID, amount, description)
	if err != nil {
		return ChargeResult{}, fmt.Errorf("charge for job %s failed: %w", jobID, err)
	}

	p := domain.Payment{
		ID:        domain.PaymentID(uuid.New().String()),
		JobID:     jobID,
		Amount:    amount,
		Status:    outcome.Status,
		Simulated: outcome.Simulated,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.payments.RecordPayment(ctx, p); err != nil {
		return ChargeResult{}, err
	}

	PaymentsRecordedTotal.Inc()
	if outcome.Status == domain.PaymentStatusSucceeded {
		AmountChargedTotal.Add(amount)
	}

	s.logger.Info("charge settled",
		"job_id", jobID, "amount", amount,
		"status", outcome.Status, "simulated", outcome.Simulated)

	return ChargeResult{
		Success:   outcome.Status == domain.PaymentStatusSucceeded,
		PaymentID: p.ID,
		Simulated: outcome.Simulated,
	}, nil
}

// RoundCents rounds to two decimals using round-half-up.
func RoundCents(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
