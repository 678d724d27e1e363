package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/complaintops/copilot/internal/models"
)

// MemoryStore implements Store with mutex-guarded maps. It backs tests
// and keyless local runs; state is lost on process exit.
type MemoryStore struct {
	mu       sync.Mutex
	reviews  map[string]*models.ReviewRecord
	audit    []*models.AuditEntry
	auditSeq int64
	chunks   map[string][]*models.SOPChunk // keyed by doc_name
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reviews: make(map[string]*models.ReviewRecord),
		chunks:  make(map[string][]*models.SOPChunk),
	}
}

// Migrate is a no-op for the in-memory backend.
func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }

// Close is a no-op for the in-memory backend.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) appendAuditLocked(reviewID string, status models.ReviewStatus, notes string, at time.Time) {
	s.auditSeq++
	s.audit = append(s.audit, &models.AuditEntry{
		Seq:       s.auditSeq,
		ReviewID:  reviewID,
		Status:    status,
		Notes:     notes,
		CreatedAt: at,
	})
}

func (s *MemoryStore) CreateReview(ctx context.Context, r *models.ReviewRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = newULID()
	}
	now := time.Now().UTC()
	r.Status = models.ReviewStatusPending
	r.CreatedAt = now
	r.UpdatedAt = now

	cp := *r
	s.reviews[r.ID] = &cp
	s.appendAuditLocked(r.ID, r.Status, r.Notes, now)
	return nil
}

func (s *MemoryStore) GetReview(ctx context.Context, id string) (*models.ReviewRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reviews[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) ListReviews(ctx context.Context, filter ReviewListFilter) ([]*models.ReviewRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reviews []*models.ReviewRecord
	for _, r := range s.reviews {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		cp := *r
		reviews = append(reviews, &cp)
	}
	sort.Slice(reviews, func(i, j int) bool {
		if reviews[i].CreatedAt.Equal(reviews[j].CreatedAt) {
			return reviews[i].ID > reviews[j].ID
		}
		return reviews[i].CreatedAt.After(reviews[j].CreatedAt)
	})
	if filter.Limit > 0 && len(reviews) > filter.Limit {
		reviews = reviews[:filter.Limit]
	}
	return reviews, nil
}

func (s *MemoryStore) ResolveReview(ctx context.Context, id string, status models.ReviewStatus, notes string) (*models.ReviewRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reviews[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if r.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, r.Status)
	}

	now := time.Now().UTC()
	// Resolution must land strictly after creation, even on coarse clocks.
	if !now.After(r.CreatedAt) {
		now = r.CreatedAt.Add(time.Nanosecond)
	}
	r.Status = status
	r.Notes = notes
	r.UpdatedAt = now
	s.appendAuditLocked(id, status, notes, now)

	cp := *r
	return &cp, nil
}

func (s *MemoryStore) ListAuditEntries(ctx context.Context, reviewID string) ([]*models.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []*models.AuditEntry
	for _, e := range s.audit {
		if e.ReviewID != reviewID {
			continue
		}
		cp := *e
		entries = append(entries, &cp)
	}
	return entries, nil
}

func (s *MemoryStore) PutSOPChunks(ctx context.Context, docName string, chunks []*models.SOPChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]*models.SOPChunk, 0, len(chunks))
	for _, c := range chunks {
		if c.ChunkID == "" {
			c.ChunkID = newULID()
		}
		cp := *c
		stored = append(stored, &cp)
	}
	s.chunks[docName] = stored
	return nil
}

func (s *MemoryStore) ListSOPChunks(ctx context.Context, category string) ([]*models.SOPChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var docNames []string
	for name := range s.chunks {
		docNames = append(docNames, name)
	}
	sort.Strings(docNames)

	var chunks []*models.SOPChunk
	for _, name := range docNames {
		for _, c := range s.chunks[name] {
			if category != "" && c.Category != "" && c.Category != category {
				continue
			}
			cp := *c
			chunks = append(chunks, &cp)
		}
	}
	return chunks, nil
}
