package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ai-search-guru/getcito/repositories"
)

// DocumentStore implements repositories.DocumentStore on a JSONB table
type DocumentStore struct {
	db     *DB
	logger *zap.Logger
	now    func() time.Time
}

var _ repositories.DocumentStore = (*DocumentStore)(nil)

// NewDocumentStore creates a document store on an open connection pool
func NewDocumentStore(db *DB, logger *zap.Logger) *DocumentStore {
	return &DocumentStore{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Set upserts the document
func (s *DocumentStore) Set(ctx context.Context, collection, id string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode document %s/%s: %w", collection, id, err)
	}

	query := `
		INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (collection, id)
		DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, collection, id, data, s.now()); err != nil {
		return fmt.Errorf("failed to store document %s/%s: %w", collection, id, err)
	}

	s.logger.Debug("document stored", zap.String("collection", collection), zap.String("id", id))
	return nil
}

// Get loads the document into dest
func (s *DocumentStore) Get(ctx context.Context, collection, id string, dest any) error {
	query := `SELECT data FROM documents WHERE collection = $1 AND id = $2`

	var data []byte
	err := s.db.QueryRowContext(ctx, query, collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return repositories.ErrDocumentNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load document %s/%s: %w", collection, id, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode document %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}

func (s *DocumentStore) Close() error {
	return s.db.Close()
}
