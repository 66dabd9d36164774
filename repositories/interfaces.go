package repositories

import (
	"context"
	"errors"

	"github.com/ai-search-guru/getcito/models"
)

// ErrDocumentNotFound is returned by Get when no document exists under the key
var ErrDocumentNotFound = errors.New("document not found")

// DocumentStore persists JSON documents addressed by collection and id.
// Values are encoded with encoding/json; Get decodes into dest.
type DocumentStore interface {
	// Set creates or replaces the document
	Set(ctx context.Context, collection, id string, value any) error

	// Get loads the document into dest, or returns ErrDocumentNotFound
	Get(ctx context.Context, collection, id string, dest any) error

	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error

	// Close releases the backend connection
	Close() error
}

// QueryRepository stores fan-out results keyed by request id
type QueryRepository interface {
	// Save stores the record, replacing an earlier one with the same request id
	Save(ctx context.Context, record *models.QueryRecord) error

	// GetByRequestID retrieves a record, or returns ErrDocumentNotFound
	GetByRequestID(ctx context.Context, requestID string) (*models.QueryRecord, error)
}
