// Package handlers holds the thin HTTP layer over the query service.
package handlers

import (
	"context"
	"net"
	"net/http"

	"github.com/ai-search-guru/getcito/models"
	"github.com/ai-search-guru/getcito/services/providers"
)

// QueryService runs and retrieves brand-monitoring queries
type QueryService interface {
	// Run fans the request out and returns the aggregated response
	Run(ctx context.Context, req *providers.APIRequest) (*providers.AggregatedResponse, error)

	// Get returns a stored query; a non-empty userID restricts it to that owner
	Get(ctx context.Context, requestID, userID string) (*models.QueryRecord, error)
}

// ProviderCatalog reports which providers can serve requests
type ProviderCatalog interface {
	GetAvailableProviders() []string
	GetProviderStatus() map[string]providers.ProviderStatus
	DefaultProviders() []string
}

// Pinger checks a backing dependency
type Pinger interface {
	Ping(ctx context.Context) error
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// Try X-Forwarded-For first (for proxied requests)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}

	// Try X-Real-IP
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
