// Package dto provides Data Transfer Objects for the REST API.
package dto

// APIError represents a standardized error response.
type APIError struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// Details provides additional context about the error.
	Details map[string]string `json:"details,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	// Status is "ok" or "degraded".
	Status string `json:"status"`

	// Version is the server version.
	Version string `json:"version"`

	// Backend names the key store backend in use.
	Backend string `json:"backend,omitempty"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	// Ready indicates if the server is ready to accept requests.
	Ready bool `json:"ready"`

	// Checks lists individual readiness checks.
	Checks map[string]bool `json:"checks,omitempty"`
}
