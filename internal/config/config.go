// Package config reads the engine configuration from the environment once
// at startup. Services receive plain values or small config structs; nothing
// reads the environment after boot.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr           string
	DBPath         string
	TickInterval   time.Duration
	RatePerMinute  float64
	PayoutShare    float64
	FailureFactor  float64
	SimSuccessProb float64
	GatewayURL     string // empty selects the simulation backend
	GatewayKey     string
	AllowedOrigins []string
}

// FromEnv builds the config from HELIOGRID_* variables, falling back to
// development defaults.
func FromEnv() Config {
	return Config{
		Addr:           envString("HELIOGRID_ADDR", ":8080"),
		DBPath:         envString("HELIOGRID_DB_PATH", "heliogrid.db"),
		TickInterval:   envDuration("HELIOGRID_TICK_INTERVAL", 10*time.Second),
		RatePerMinute:  envFloat("HELIOGRID_RATE_PER_MINUTE", 0.10),
		PayoutShare:    envFloat("HELIOGRID_PAYOUT_SHARE", 0.8),
		FailureFactor:  envFloat("HELIOGRID_FAILURE_COST_FACTOR", 0.5),
		SimSuccessProb: envFloat("HELIOGRID_SIM_SUCCESS_PROB", 0.95),
		GatewayURL:     os.Getenv("HELIOGRID_GATEWAY_URL"),
		GatewayKey:     os.Getenv("HELIOGRID_GATEWAY_KEY"),
		AllowedOrigins: envList("HELIOGRID_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
