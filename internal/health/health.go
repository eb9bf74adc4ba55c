// SPDX-License-Identifier: MIT

// Package health aggregates component health checks for the service endpoint.
// USSD gateways only probe liveness, so the HTTP handler always answers 200
// and carries the component detail in the body.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sarafrika/camp-ussd/internal/log"
)

// Status represents the overall health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult represents the result of a component health check
type CheckResult struct {
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Response represents the full health check response
type Response struct {
	Status    Status                 `json:"status"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker defines the interface for component health checks
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// CheckerFunc adapts a named ping function into a Checker. A nil error is
// healthy, anything else unhealthy.
type CheckerFunc struct {
	ComponentName string
	Ping          func(ctx context.Context) error
}

func (c CheckerFunc) Name() string { return c.ComponentName }

func (c CheckerFunc) Check(ctx context.Context) CheckResult {
	if err := c.Ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// Manager runs the registered checkers and aggregates their results.
type Manager struct {
	service  string
	version  string
	checkers []Checker
}

func NewManager(service, version string) *Manager {
	return &Manager{service: service, version: version}
}

// RegisterChecker adds a health checker to the manager
func (m *Manager) RegisterChecker(checker Checker) {
	m.checkers = append(m.checkers, checker)
}

// Health checks every registered component. The overall status is unhealthy
// when the session store is down because no request can be served without it;
// a single failing component among several degrades instead.
func (m *Manager) Health(ctx context.Context) Response {
	resp := Response{
		Status:    StatusHealthy,
		Service:   m.service,
		Version:   m.version,
		Timestamp: time.Now().UTC(),
	}
	if len(m.checkers) == 0 {
		return resp
	}

	resp.Checks = make(map[string]CheckResult, len(m.checkers))
	unhealthy := 0
	for _, checker := range m.checkers {
		result := checker.Check(ctx)
		resp.Checks[checker.Name()] = result
		if result.Status == StatusUnhealthy {
			unhealthy++
		}
	}

	switch {
	case unhealthy == len(m.checkers):
		resp.Status = StatusUnhealthy
	case unhealthy > 0:
		resp.Status = StatusDegraded
	}
	return resp
}

// ServeHealth handles HTTP health check requests. Always 200: the gateway
// treats any non-200 as a hard outage and stops routing the short code.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "health")

	resp := m.Health(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "health.encode_error").Msg("failed to encode health response")
	}

	logger.Debug().
		Str(log.FieldEvent, "health.checked").
		Str("status", string(resp.Status)).
		Msg("health check performed")
}
