package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/ai-search-guru/getcito/services/providers"

// Manager fans one request out to several providers and aggregates the results
type Manager struct {
	registry *Registry
	defaults []string
	logger   *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewManager creates a manager over a built registry. defaults is the provider
// set used when a request names none; empty means every available provider.
func NewManager(registry *Registry, defaults []string, logger *zap.Logger) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		registry: registry,
		defaults: append([]string(nil), defaults...),
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
}

// target is one resolved position in the dispatch list
type target struct {
	id       string
	provider Provider
	err      *ProviderError
}

// ExecuteRequest dispatches req to every resolved provider concurrently and waits
// for all of them. It always returns a complete response, even if every provider failed.
// Provider calls are detached from ctx cancellation; each adapter enforces its own timeout.
func (m *Manager) ExecuteRequest(ctx context.Context, req *APIRequest) *AggregatedResponse {
	start := m.now()

	ctx, span := m.tracer.Start(ctx, "providers.execute_request",
		trace.WithAttributes(
			attribute.String("request.id", req.ID),
			attribute.Int("providers.requested", len(req.Providers)),
		),
	)
	defer span.End()

	targets := m.resolve(req.Providers)
	results := make([]*ProviderResult, len(targets))
	detached := context.WithoutCancel(ctx)

	var g errgroup.Group
	for i, t := range targets {
		if t.provider == nil {
			results[i] = ErrorResult(t.id, t.err, 0)
			continue
		}
		g.Go(func() error {
			results[i] = m.executeSafe(detached, t, req)
			return nil
		})
	}
	_ = g.Wait()

	resp := &AggregatedResponse{
		RequestID:      req.ID,
		Results:        results,
		AggregatedData: make(map[string]ProviderData, len(results)),
	}
	for _, r := range results {
		resp.TotalCost += r.Cost
		if r.IsSuccess() {
			resp.AggregatedData[r.ProviderID] = r.Data
		}
	}
	resp.CompletedAt = m.now().UTC()

	span.SetAttributes(
		attribute.Int("providers.dispatched", len(results)),
		attribute.Int("providers.succeeded", resp.SuccessCount()),
		attribute.Float64("cost.total", resp.TotalCost),
	)

	m.logger.Info("Request fan-out completed",
		zap.String("request_id", req.ID),
		zap.String("user_id", req.UserID),
		zap.Int("providers", len(results)),
		zap.Int("succeeded", resp.SuccessCount()),
		zap.Float64("cost", resp.TotalCost),
		zap.Int64("latency_ms", resp.CompletedAt.Sub(start).Milliseconds()),
	)

	return resp
}

// executeSafe runs one adapter, turning panics and contract violations into error results
func (m *Manager) executeSafe(ctx context.Context, t target, req *APIRequest) (result *ProviderResult) {
	start := m.now()
	ctx, span := m.tracer.Start(ctx, "provider."+t.id)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Provider panicked",
				zap.String("request_id", req.ID),
				zap.String("provider", t.id),
				zap.Any("panic", r),
			)
			result = ErrorResult(t.id, NewProviderError(t.id, ErrCodeInternal, fmt.Sprintf("provider %s panicked: %v", t.id, r), 0, false, nil), m.now().Sub(start))
		}

		span.SetAttributes(
			attribute.String("provider.status", string(result.Status)),
			attribute.Float64("provider.cost", result.Cost),
			attribute.Int64("provider.response_time_ms", result.ResponseTime),
		)
		if !result.IsSuccess() {
			span.SetStatus(codes.Error, result.Error)
			m.logger.Warn("Provider call failed",
				zap.String("request_id", req.ID),
				zap.String("provider", t.id),
				zap.String("error_code", string(result.ErrorCode)),
				zap.String("error", result.Error),
				zap.Int64("latency_ms", result.ResponseTime),
			)
		}
	}()

	result = t.provider.Execute(ctx, req)
	switch {
	case result == nil:
		result = ErrorResult(t.id, NewProviderError(t.id, ErrCodeInternal, "provider returned no result", 0, false, nil), m.now().Sub(start))
	case result.IsSuccess() && result.Data == nil:
		result = ErrorResult(t.id, InvalidResponseError(t.id, "provider returned no data", nil), m.now().Sub(start))
	}
	result.ProviderID = t.id
	return result
}

// resolve turns the requested ids into the ordered dispatch list.
// Duplicates collapse to their first position; unknown and unavailable ids keep
// their position as error targets.
func (m *Manager) resolve(requested []string) []target {
	ids := requested
	if len(ids) == 0 {
		ids = m.DefaultProviders()
	}

	seen := make(map[string]bool, len(ids))
	targets := make([]target, 0, len(ids))
	for _, raw := range ids {
		id := strings.ToLower(strings.TrimSpace(raw))
		if seen[id] {
			continue
		}
		seen[id] = true

		provider, err := m.registry.GetProvider(id)
		switch {
		case err != nil:
			targets = append(targets, target{
				id:  id,
				err: NewProviderError(id, ErrCodeProviderUnavailable, fmt.Sprintf("provider %q is not supported", raw), 0, false, err),
			})
		case !provider.Available():
			targets = append(targets, target{
				id:  id,
				err: NewProviderError(id, ErrCodeProviderUnavailable, fmt.Sprintf("provider %q is not configured", id), 0, false, nil),
			})
		default:
			targets = append(targets, target{id: id, provider: provider})
		}
	}
	return targets
}

// GetAvailableProviders returns the ids of providers whose credentials are present,
// in registration order
func (m *Manager) GetAvailableProviders() []string {
	var ids []string
	for _, p := range m.registry.Providers() {
		if p.Available() {
			ids = append(ids, p.ID())
		}
	}
	if ids == nil {
		ids = []string{}
	}
	return ids
}

// GetProviderStatus returns a configuration snapshot of every registered provider
func (m *Manager) GetProviderStatus() map[string]ProviderStatus {
	status := make(map[string]ProviderStatus, m.registry.GetProviderCount())
	for _, p := range m.registry.Providers() {
		status[p.ID()] = p.Status()
	}
	return status
}

// DefaultProviders returns the providers a request that names none is sent to:
// the configured defaults, or every available provider when none are configured.
func (m *Manager) DefaultProviders() []string {
	if len(m.defaults) == 0 {
		return m.GetAvailableProviders()
	}
	return append([]string(nil), m.defaults...)
}
