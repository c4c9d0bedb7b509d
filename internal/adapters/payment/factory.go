package payment

import (
	"log/slog"
	"time"

	"github.com/heliogrid/heliogrid/internal/core/ports"
)

// Build selects the charge backend at construction time: a gateway when a
// URL is configured, the simulator otherwise. Callers never branch on the
// mode again; they only see ports.ChargeBackend.
func Build(logger *slog.Logger, gatewayURL, gatewayKey string, simSuccessProb float64) ports.ChargeBackend {
	if gatewayURL != "" {
		logger.Info("payment backend: gateway", "url", gatewayURL)
		return NewGateway(gatewayURL, gatewayKey, 10*time.Second)
	}
	logger.Info("payment backend: simulator", "success_prob", simSuccessProb)
	return NewSimulator(simSuccessProb)
}
