package store

import (
	"context"
	"errors"

	"github.com/complaintops/copilot/internal/models"
)

// ErrNotFound is returned when a review id does not exist. Callers map
// it to a not-found response; it is never recovered by fabricating a
// record.
var ErrNotFound = errors.New("review not found")

// ErrInvalidTransition is returned when resolving a record that is
// already APPROVED or REJECTED. Terminal states are not re-enterable.
var ErrInvalidTransition = errors.New("review already resolved")

// ReviewListFilter specifies filters for listing review records.
type ReviewListFilter struct {
	Status models.ReviewStatus
	Limit  int
}

// Store defines the persistence interface for the review gate and the
// SOP snippet index. Two implementations exist: MemoryStore for tests
// and small deployments, and SQLiteStore for durable state. Both
// serialize the read-modify-write path of ResolveReview so concurrent
// resolutions of the same id cannot interleave.
type Store interface {
	// Reviews
	CreateReview(ctx context.Context, r *models.ReviewRecord) error
	GetReview(ctx context.Context, id string) (*models.ReviewRecord, error)
	ListReviews(ctx context.Context, filter ReviewListFilter) ([]*models.ReviewRecord, error)
	ResolveReview(ctx context.Context, id string, status models.ReviewStatus, notes string) (*models.ReviewRecord, error)
	ListAuditEntries(ctx context.Context, reviewID string) ([]*models.AuditEntry, error)

	// SOP chunks
	PutSOPChunks(ctx context.Context, docName string, chunks []*models.SOPChunk) error
	ListSOPChunks(ctx context.Context, category string) ([]*models.SOPChunk, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
