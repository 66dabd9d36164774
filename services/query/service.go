// Package query runs brand-monitoring queries and keeps their results.
package query

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ai-search-guru/getcito/models"
	"github.com/ai-search-guru/getcito/repositories"
	"github.com/ai-search-guru/getcito/services"
	"github.com/ai-search-guru/getcito/services/providers"
)

const defaultSaveTimeout = 5 * time.Second

// Executor fans a request out to providers. *providers.Manager satisfies it.
type Executor interface {
	ExecuteRequest(ctx context.Context, req *providers.APIRequest) *providers.AggregatedResponse
}

// Service executes queries and writes each result through to the repository
type Service struct {
	executor    Executor
	repo        repositories.QueryRepository
	logger      *zap.Logger
	saveTimeout time.Duration
}

// NewService creates a query service. repo may be nil, in which case results
// are not stored and Get always reports not found.
func NewService(executor Executor, repo repositories.QueryRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		executor:    executor,
		repo:        repo,
		logger:      logger,
		saveTimeout: defaultSaveTimeout,
	}
}

// Run executes req against its providers and stores the outcome.
// A storage failure is logged and does not fail the query.
func (s *Service) Run(ctx context.Context, req *providers.APIRequest) (*providers.AggregatedResponse, error) {
	if req == nil {
		return nil, services.ErrInvalidInput
	}

	resp := s.executor.ExecuteRequest(ctx, req)
	if resp == nil {
		return nil, services.WrapInternal("query execution failed", errors.New("executor returned no response"))
	}

	s.logger.Info("query executed",
		zap.String("request_id", resp.RequestID),
		zap.String("user_id", req.UserID),
		zap.Int("providers", len(resp.Results)),
		zap.Int("successes", resp.SuccessCount()),
		zap.Float64("total_cost", resp.TotalCost))

	s.save(ctx, req, resp)
	return resp, nil
}

func (s *Service) save(ctx context.Context, req *providers.APIRequest, resp *providers.AggregatedResponse) {
	if s.repo == nil {
		return
	}

	// the client may already be gone; the record is still worth keeping
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.saveTimeout)
	defer cancel()

	record := models.NewQueryRecord(req, resp)
	if err := s.repo.Save(ctx, record); err != nil {
		s.logger.Warn("failed to store query record",
			zap.String("request_id", record.RequestID),
			zap.Error(err))
	}
}

// Get returns a stored query. When userID is non-empty, records owned by
// another user are reported as not found.
func (s *Service) Get(ctx context.Context, requestID, userID string) (*models.QueryRecord, error) {
	if requestID == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "query id is required", nil).WithDetail("field", "id")
	}
	if s.repo == nil {
		return nil, services.ErrQueryNotFound
	}

	record, err := s.repo.GetByRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repositories.ErrDocumentNotFound) {
			return nil, services.ErrQueryNotFound
		}
		return nil, services.WrapInternal("failed to load query", err)
	}

	if userID != "" && record.UserID != userID {
		return nil, services.ErrQueryNotFound
	}
	return record, nil
}
