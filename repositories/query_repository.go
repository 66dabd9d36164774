package repositories

import (
	"context"
	"fmt"

	"github.com/ai-search-guru/getcito/models"
)

type documentQueryRepository struct {
	store DocumentStore
}

// NewQueryRepository stores query records in the "queries" collection of store
func NewQueryRepository(store DocumentStore) QueryRepository {
	return &documentQueryRepository{store: store}
}

func (r *documentQueryRepository) Save(ctx context.Context, record *models.QueryRecord) error {
	if record == nil || record.RequestID == "" {
		return fmt.Errorf("query record requires a request id")
	}
	if err := r.store.Set(ctx, record.CollectionName(), record.RequestID, record); err != nil {
		return fmt.Errorf("failed to save query record: %w", err)
	}
	return nil
}

func (r *documentQueryRepository) GetByRequestID(ctx context.Context, requestID string) (*models.QueryRecord, error) {
	var record models.QueryRecord
	if err := r.store.Get(ctx, record.CollectionName(), requestID, &record); err != nil {
		return nil, err
	}
	return &record, nil
}
