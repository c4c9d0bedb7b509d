package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/heliogrid/heliogrid/internal/core/domain"
	"github.com/heliogrid/heliogrid/internal/core/ports"
)

// Gateway charges users through an external payment processor's HTTP API.
// A declined charge is reported as a failed outcome, never as an error;
// errors are reserved for transport problems.
type Gateway struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

var _ ports.ChargeBackend = (*Gateway)(nil)

func NewGateway(baseURL, apiKey string, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gateway{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

type chargeRequest struct {
	JobID       string  `json:"job_id"`
	UserID      string  `json:"user_id"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description,omitempty"`
}

type chargeResponse struct {
	Status string `json:"status"`
}

func (g *Gateway) Charge(ctx context.Context, jobID domain.JobID, userID string, amount float64, description string) (ports.ChargeOutcome, error) {
	body, err := json.Marshal(chargeRequest{
		JobID:       string(jobID),
		UserID:      userID,
		Amount:      amount,
		Currency:    "usd",
		Description: description,
	})
	if err != nil {
		return ports.ChargeOutcome{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/charges", bytes.NewReader(body))
	if err != nil {
		return ports.ChargeOutcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return ports.ChargeOutcome{}, fmt.Errorf("payment gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var out chargeResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return ports.ChargeOutcome{}, fmt.Errorf("bad gateway response: %w", err)
		}
		status := domain.PaymentStatusSucceeded
		if out.Status == "declined" || out.Status == "failed" {
			status = domain.PaymentStatusFailed
		}
		return ports.ChargeOutcome{Status: status}, nil

	case resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusUnprocessableEntity:
		// Declined by the processor: a normal settlement outcome.
		return ports.ChargeOutcome{Status: domain.PaymentStatusFailed}, nil

	default:
		return ports.ChargeOutcome{}, fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}
}
