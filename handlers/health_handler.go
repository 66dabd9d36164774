package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ai-search-guru/getcito/utils"
)

const (
	statusReady    = "ready"
	statusNotReady = "not_ready"
)

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Providers int               `json:"providers"`
	Checks    map[string]string `json:"checks"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	store   Pinger
	catalog ProviderCatalog
	logger  *zap.Logger
	timeout time.Duration
}

// NewHealthHandler creates a new HealthHandler. store may be nil when
// results are not persisted.
func NewHealthHandler(store Pinger, catalog ProviderCatalog, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		store:   store,
		catalog: catalog,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

// HandleHealth handles GET /healthz
// Basic liveness check - always returns 200 if the process is serving
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, map[string]string{"status": "ok"})
}

// HandleReadiness handles GET /readyz
// Ready when the document store answers and at least one provider has credentials
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := make(map[string]string)
	ready := true

	if h.store == nil {
		checks["store"] = "not_configured"
	} else if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("document store health check failed", zap.Error(err))
		checks["store"] = "unhealthy"
		ready = false
	} else {
		checks["store"] = "healthy"
	}

	available := 0
	if h.catalog != nil {
		available = len(h.catalog.GetAvailableProviders())
	}
	if available == 0 {
		checks["providers"] = "none_available"
		ready = false
	} else {
		checks["providers"] = "available"
	}

	status := statusReady
	httpStatus := http.StatusOK
	if !ready {
		status = statusNotReady
		httpStatus = http.StatusServiceUnavailable
	}

	response := ReadinessResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Providers: available,
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}
