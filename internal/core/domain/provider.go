package domain

import (
	"encoding/json"
	"time"
)

type ProviderID string

type ProviderStatus string

const (
	ProviderStatusOffline ProviderStatus = "offline"
	ProviderStatusOnline  ProviderStatus = "online"
	ProviderStatusBusy    ProviderStatus = "busy"
)

func (s ProviderStatus) Valid() bool {
	switch s {
	case ProviderStatusOffline, ProviderStatusOnline, ProviderStatusBusy:
		return true
	}
	return false
}

// Provider is a registered worker node offering compute capacity.
//
// GPUSpecs is an opaque hardware descriptor supplied by the node at
// registration; the engine stores and returns it but never interprets it.
// Invariant: a busy provider has exactly one non-terminal job pointing at it.
type Provider struct {
	ID           ProviderID      `json:"id"`
	OwnerID      *string         `json:"owner_id,omitempty"`
	Status       ProviderStatus  `json:"status"`
	GPUSpecs     json.RawMessage `json:"gpu_specs,omitempty"`
	RegisteredAt time.Time       `json:"registered_at"`
}
