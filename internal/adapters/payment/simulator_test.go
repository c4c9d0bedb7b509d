package payment

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliogrid/heliogrid/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSimulator_AlwaysSucceedsAtProbOne(t *testing.T) {
	sim := NewSimulator(1.0)

	for i := 0; i < 50; i++ {
		out, err := sim.Charge(context.Background(), "job-1", "user-1", 0.50, "test")
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusSucceeded, out.Status)
		assert.True(t, out.Simulated)
	}
}

func TestSimulator_AlwaysFailsAtProbZero(t *testing.T) {
	sim := NewSimulator(0)
	sim.randFloat = func() float64 { return 0.5 }

	out, err := sim.Charge(context.Background(), "job-1", "user-1", 0.50, "test")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, out.Status)
	assert.True(t, out.Simulated)
}

func TestSimulator_NormalizesBadProbability(t *testing.T) {
	sim := NewSimulator(7)
	assert.Equal(t, 0.95, sim.successProb)

	sim = NewSimulator(-1)
	assert.Equal(t, 0.95, sim.successProb)
}
