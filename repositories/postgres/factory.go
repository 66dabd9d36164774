package postgres

import (
	"context"

	"go.uber.org/zap"

	"github.com/ai-search-guru/getcito/config"
)

// NewStore connects to PostgreSQL, ensures the schema and returns a document store
func NewStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*DocumentStore, error) {
	db, err := NewDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := db.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return NewDocumentStore(db, logger), nil
}
