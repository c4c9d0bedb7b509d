// Package payment provides the charge backends behind the settlement
// service: a real HTTP gateway client and a simulator for running the
// engine without a payment processor.
package payment

import (
	"context"
	"math/rand/v2"

	"github.com/heliogrid/heliogrid/internal/core/domain"
	"github.com/heliogrid/heliogrid/internal/core/ports"
)

// Simulator approves charges with a configured probability instead of
// talking to a processor. Every outcome is flagged simulated so it can never
// be mistaken for a real charge.
type Simulator struct {
	successProb float64
	randFloat   func() float64
}

var _ ports.ChargeBackend = (*Simulator)(nil)

func NewSimulator(successProb float64) *Simulator {
	if successProb < 0 || successProb > 1 {
		successProb = 0.95
	}
	return &Simulator{
		successProb: successProb,
		randFloat:   rand.Float64,
	}
}

func (s *Simulator) Charge(ctx context.Context, jobID domain.JobID, userID string, amount float64, description string) (ports.ChargeOutcome, error) {
	status := domain.PaymentStatusFailed
	if s.randFloat() < s.successProb {
		status = domain.PaymentStatusSucceeded
	}
	return ports.ChargeOutcome{Status: status, Simulated: true}, nil
}
