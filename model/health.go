package model

import (
	"sync"
	"time"
)

// EndpointHealth tracks the health status of a model endpoint.
type EndpointHealth struct {
	// Available indicates if the endpoint is currently usable.
	Available bool `json:"available"`

	// LastSuccess is the time of the last successful request.
	LastSuccess time.Time `json:"last_success,omitempty"`

	// LastFailure is the time of the last failed request.
	LastFailure time.Time `json:"last_failure,omitempty"`

	// FailureCount is the number of consecutive failures.
	FailureCount int `json:"failure_count"`

	// CircuitOpen indicates if the circuit breaker has tripped.
	CircuitOpen bool `json:"circuit_open"`

	// CircuitOpenedAt is when the circuit was opened.
	CircuitOpenedAt time.Time `json:"circuit_opened_at,omitempty"`
}

// HealthConfig configures the circuit-breaker behavior.
type HealthConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// circuit opens.
	FailureThreshold int

	// RecoveryTimeout is how long an open circuit blocks requests before a
	// half-open test request is allowed.
	RecoveryTimeout time.Duration

	// HalfOpenRequests is how many test requests to allow when recovering.
	HalfOpenRequests int
}

// DefaultHealthConfig returns sensible defaults for health tracking.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
		HalfOpenRequests: 1,
	}
}

// healthState stores endpoint health information behind its own lock so
// registry reads never block on health updates.
type healthState struct {
	mu       sync.RWMutex
	config   HealthConfig
	statuses map[string]*EndpointHealth
}

func newHealthState(cfg HealthConfig) *healthState {
	return &healthState{
		config:   cfg,
		statuses: make(map[string]*EndpointHealth),
	}
}

func (h *healthState) markSuccess(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	status, ok := h.statuses[name]
	if !ok {
		status = &EndpointHealth{}
		h.statuses[name] = status
	}
	status.LastSuccess = time.Now()
	status.FailureCount = 0
	status.Available = true
	status.CircuitOpen = false
}

func (h *healthState) markFailure(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	status, ok := h.statuses[name]
	if !ok {
		status = &EndpointHealth{Available: true}
		h.statuses[name] = status
	}
	status.LastFailure = time.Now()
	status.FailureCount++

	if status.FailureCount >= h.config.FailureThreshold {
		status.CircuitOpen = true
		status.CircuitOpenedAt = time.Now()
		status.Available = false
	}
}

func (h *healthState) available(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status, ok := h.statuses[name]
	if !ok {
		// Unknown endpoint: assume available.
		return true
	}
	if !status.CircuitOpen {
		return true
	}
	// Half-open: allow a test request once the recovery window has passed.
	return time.Since(status.CircuitOpenedAt) > h.config.RecoveryTimeout
}

func (h *healthState) snapshot(name string) *EndpointHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status, ok := h.statuses[name]
	if !ok {
		return nil
	}
	cp := *status
	return &cp
}

// MarkEndpointSuccess records a successful request to an endpoint,
// closing its circuit.
func (r *Registry) MarkEndpointSuccess(name string) {
	r.healthTracker().markSuccess(name)
}

// MarkEndpointFailure records a failed request to an endpoint. Reaching
// the failure threshold opens the circuit.
func (r *Registry) MarkEndpointFailure(name string) {
	r.healthTracker().markFailure(name)
}

// IsEndpointAvailable checks if an endpoint is available for requests.
// Returns false only while the circuit breaker is open and the recovery
// timeout has not yet passed.
func (r *Registry) IsEndpointAvailable(name string) bool {
	return r.healthTracker().available(name)
}

// GetEndpointHealth returns a copy of the health status for an endpoint,
// or nil if no requests have been recorded.
func (r *Registry) GetEndpointHealth(name string) *EndpointHealth {
	return r.healthTracker().snapshot(name)
}

// GetAvailableFallbackChain returns the fallback chain filtered to
// available endpoints. If every endpoint is unavailable the full chain is
// returned: better to try something than nothing.
func (r *Registry) GetAvailableFallbackChain(c Capability) []string {
	chain := r.GetFallbackChain(c)
	available := make([]string, 0, len(chain))

	for _, name := range chain {
		if r.IsEndpointAvailable(name) {
			available = append(available, name)
		}
	}

	if len(available) == 0 {
		return chain
	}
	return available
}

// SetHealthConfig updates the health tracking configuration.
func (r *Registry) SetHealthConfig(cfg HealthConfig) {
	h := r.healthTracker()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.config = cfg
}

// ResetEndpointHealth clears the health status for an endpoint.
func (r *Registry) ResetEndpointHealth(name string) {
	h := r.healthTracker()
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.statuses, name)
}

// healthTracker lazily initializes the health state for registries built
// without a constructor (e.g. via UnmarshalJSON into a zero value).
func (r *Registry) healthTracker() *healthState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.health == nil {
		r.health = newHealthState(DefaultHealthConfig())
	}
	return r.health
}
