// Package http provides HTTP server infrastructure including module registration.
package http

import (
	"context"

	"manuell_oppgave_backend/internal/events"
	"manuell_oppgave_backend/platform/config"
	"manuell_oppgave_backend/platform/httpkit"
	"manuell_oppgave_backend/platform/logger"
	"manuell_oppgave_backend/platform/metrics"
)

// RouterConfig combines the config interfaces needed by the HTTP router.
type RouterConfig interface {
	config.HTTPConfig
	GetAdminRole() string
}

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Probe reports process liveness and readiness.
type Probe interface {
	Alive() bool
	Ready() bool
}

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	// Config holds the router configuration (HTTP and admin role settings only).
	Config RouterConfig
	// Logger is the structured logger.
	Logger *logger.Logger
	// Health is used for readiness/health checks (e.g., DB ping).
	Health HealthChecker
	// State is the process liveness/readiness state.
	State Probe
	// Metrics backs the /internal/prometheus endpoint and request metrics.
	Metrics *metrics.Metrics
	// Verifier validates caseworker access tokens.
	Verifier *httpkit.TokenVerifier
	// EventBus is the domain event bus for cross-module communication.
	EventBus events.Bus
	// Modules contains all HTTP-facing domain modules.
	Modules []Module
}
