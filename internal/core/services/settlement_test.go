package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliogrid/heliogrid/internal/core/domain"
	"github.com/heliogrid/heliogrid/internal/core/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestSettlement(t *testing.T, backend ports.ChargeBackend) (*Settlement, *memStore) {
	t.Helper()
	store := newMemStore()
	s := NewSettlement(testLogger(), backend, store, SettlementConfig{})
	return s, store
}

func TestComputeCost(t *testing.T) {
	s, _ := newTestSettlement(t, &fakeBackend{})
	now := time.Now()

	assert.Equal(t, 0.0, s.ComputeCost(now, now))
	assert.Equal(t, 1.00, s.ComputeCost(now, now.Add(10*time.Minute)))
	assert.Equal(t, 0.25, s.ComputeCost(now, now.Add(150*time.Second)))
	// Negative spans price as zero.
	assert.Equal(t, 0.0, s.ComputeCost(now, now.Add(-time.Minute)))
}

func TestCostForMinutes(t *testing.T) {
	s, _ := newTestSettlement(t, &fakeBackend{})

	assert.Equal(t, 0.50, s.CostForMinutes(5))
	assert.Equal(t, 0.0, s.CostForMinutes(-3))
}

func TestProviderEarnings(t *testing.T) {
	s, _ := newTestSettlement(t, &fakeBackend{})

	assert.Equal(t, 0.80, s.ProviderEarnings(1.00))
	assert.Equal(t, 0.20, s.ProviderEarnings(0.25))
	assert.Equal(t, 0.0, s.ProviderEarnings(0))
}

func TestRoundCents_HalfUp(t *testing.T) {
	assert.Equal(t, 0.13, RoundCents(0.125))
	assert.Equal(t, 0.38, RoundCents(0.375))
	assert.Equal(t, 0.12, RoundCents(0.124))
}

func TestCharge_ZeroAmountIsNoOp(t *testing.T) {
	backend := &fakeBackend{}
	s, store := newTestSettlement(t, backend)

	result, err := s.Charge(context.Background(), "job-1", "user-1", 0, "nothing owed")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.PaymentID)
	assert.Zero(t, backend.calls)

	payments, err := store.ListPaymentsForJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestCharge_RecordsOnePaymentRow(t *testing.T) {
	backend := &fakeBackend{outcome: ports.ChargeOutcome{Status: domain.PaymentStatusSucceeded, Simulated: true}}
	s, store := newTestSettlement(t, backend)

	result, err := s.Charge(context.Background(), "job-1", "user-1", 0.50, "job completed")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Simulated)
	assert.NotEmpty(t, result.PaymentID)

	payments, err := store.ListPaymentsForJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, 0.50, payments[0].Amount)
	assert.Equal(t, domain.PaymentStatusSucceeded, payments[0].Status)
	assert.True(t, payments[0].Simulated)
}

func TestCharge_DeclinedIsAnOutcomeNotAnError(t *testing.T) {
	backend := &fakeBackend{outcome: ports.ChargeOutcome{Status: domain.PaymentStatusFailed}}
	s, store := newTestSettlement(t, backend)

	result, err := s.Charge(context.Background(), "job-2", "user-1", 1.25, "job completed")
	require.NoError(t, err)
	assert.False(t, result.Success)

	payments, err := store.ListPaymentsForJob(context.Background(), "job-2")
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, domain.PaymentStatusFailed, payments[0].Status)
}

func TestCharge_BackendErrorPropagates(t *testing.T) {
	backend := &fakeBackend{err: errors.New("gateway down")}
	s, store := newTestSettlement(t, backend)

	_, err := s.Charge(context.Background(), "job-3", "user-1", 2.00, "job completed")
	require.Error(t, err)

	payments, err := store.ListPaymentsForJob(context.Background(), "job-3")
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestCharge_NegativeAmountRejected(t *testing.T) {
	s, _ := newTestSettlement(t, &fakeBackend{})

	_, err := s.Charge(context.Background(), "job-4", "user-1", -1, "bogus")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}
