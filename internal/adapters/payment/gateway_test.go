package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliogrid/heliogrid/internal/core/domain"
)

func TestGateway_SuccessfulCharge(t *testing.T) {
	var got chargeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/charges", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(chargeResponse{Status: "succeeded"})
	}))
	defer srv.Close()

	gw := NewGateway(srv.URL, "sk-test", time.Second)
	out, err := gw.Charge(context.Background(), "job-1", "user-1", 1.25, "job completed")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSucceeded, out.Status)
	assert.False(t, out.Simulated)

	assert.Equal(t, "job-1", got.JobID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, 1.25, got.Amount)
	assert.Equal(t, "usd", got.Currency)
}

func TestGateway_DeclineIsAnOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	gw := NewGateway(srv.URL, "sk-test", time.Second)
	out, err := gw.Charge(context.Background(), "job-1", "user-1", 1.25, "job completed")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, out.Status)
}

func TestGateway_DeclinedBodyStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chargeResponse{Status: "declined"})
	}))
	defer srv.Close()

	gw := NewGateway(srv.URL, "sk-test", time.Second)
	out, err := gw.Charge(context.Background(), "job-1", "user-1", 1.25, "job completed")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, out.Status)
}

func TestGateway_ServerErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	gw := NewGateway(srv.URL, "sk-test", time.Second)
	_, err := gw.Charge(context.Background(), "job-1", "user-1", 1.25, "job completed")
	require.Error(t, err)
}

func TestGateway_UnreachableHostPropagates(t *testing.T) {
	gw := NewGateway("http://127.0.0.1:1", "sk-test", 200*time.Millisecond)
	_, err := gw.Charge(context.Background(), "job-1", "user-1", 1.25, "job completed")
	require.Error(t, err)
}

func TestBuild_SelectsBackend(t *testing.T) {
	logger := testLogger()

	backend := Build(logger, "", "", 0.95)
	_, isSim := backend.(*Simulator)
	assert.True(t, isSim)

	backend = Build(logger, "https://pay.example.com", "sk-test", 0.95)
	_, isGateway := backend.(*Gateway)
	assert.True(t, isGateway)
}
