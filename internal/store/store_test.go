package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complaintops/copilot/internal/models"
)

func newSQLiteTestStore(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

// forEachBackend runs the same test against both Store implementations.
func forEachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	backends := map[string]func(t *testing.T) Store{
		"sqlite": newSQLiteTestStore,
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
	}
	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			fn(t, newStore(t))
		})
	}
}

func pendingReview(text string) *models.ReviewRecord {
	return &models.ReviewRecord{
		MaskedText:         text,
		Category:           "CARD_DISPUTE",
		CategoryConfidence: 0.45,
		Urgency:            "HIGH",
		UrgencyConfidence:  0.90,
	}
}

func TestCreateReview(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		r := pendingReview("my card was charged twice")
		err := s.CreateReview(ctx, r)
		require.NoError(t, err)
		assert.NotEmpty(t, r.ID)
		assert.Equal(t, models.ReviewStatusPending, r.Status)
		assert.False(t, r.CreatedAt.IsZero())
		assert.Equal(t, r.CreatedAt, r.UpdatedAt)

		got, err := s.GetReview(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ReviewStatusPending, got.Status)
		assert.Equal(t, r.MaskedText, got.MaskedText)
		assert.Equal(t, r.CategoryConfidence, got.CategoryConfidence)
		assert.Equal(t, got.CreatedAt, got.UpdatedAt)
	})
}

func TestGetReview_NotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		_, err := s.GetReview(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestResolveReview(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		r := pendingReview("transfer still pending after two days")
		require.NoError(t, s.CreateReview(ctx, r))

		resolved, err := s.ResolveReview(ctx, r.ID, models.ReviewStatusApproved, "ok")
		require.NoError(t, err)
		assert.Equal(t, models.ReviewStatusApproved, resolved.Status)
		assert.Equal(t, "ok", resolved.Notes)
		assert.True(t, resolved.UpdatedAt.After(resolved.CreatedAt),
		"resolution must advance updated_at past created_at")

		got, err := s.GetReview(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ReviewStatusApproved, got.Status)
		assert.Equal(t, "ok", got.Notes)
	})
}

func TestResolveReview_NotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		r := pendingReview("existing record")
		require.NoError(t, s.CreateReview(ctx, r))

		_, err := s.ResolveReview(ctx, "missing", models.ReviewStatusApproved, "")
		assert.ErrorIs(t, err, ErrNotFound)

		// Store unchanged: still exactly one record.
		reviews, err := s.ListReviews(ctx, ReviewListFilter{})
		require.NoError(t, err)
		assert.Len(t, reviews, 1)
	})
}

func TestResolveReview_Terminal(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		r := pendingReview("double resolution attempt")
		require.NoError(t, s.CreateReview(ctx, r))

		_, err := s.ResolveReview(ctx, r.ID, models.ReviewStatusRejected, "spam")
		require.NoError(t, err)

		_, err = s.ResolveReview(ctx, r.ID, models.ReviewStatusApproved, "changed my mind")
		assert.ErrorIs(t, err, ErrInvalidTransition)

		// First resolution stands.
		got, err := s.GetReview(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ReviewStatusRejected, got.Status)
		assert.Equal(t, "spam", got.Notes)
	})
}

func TestCreateReview_Concurrent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		const n = 20

		ids := make([]string, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				r := pendingReview(fmt.Sprintf("complaint %d", i))
				if err := s.CreateReview(ctx, r); err == nil {
					ids[i] = r.ID
				}
			}(i)
		}
		wg.Wait()

		seen := make(map[string]bool)
		for _, id := range ids {
			require.NotEmpty(t, id)
			assert.False(t, seen[id], "duplicate review id %s", id)
			seen[id] = true

			_, err := s.GetReview(ctx, id)
			assert.NoError(t, err)
		}

		reviews, err := s.ListReviews(ctx, ReviewListFilter{})
		require.NoError(t, err)
		assert.Len(t, reviews, n)
	})
}

func TestListReviews_StatusFilter(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		a := pendingReview("first")
		b := pendingReview("second")
		require.NoError(t, s.CreateReview(ctx, a))
		require.NoError(t, s.CreateReview(ctx, b))

		_, err := s.ResolveReview(ctx, a.ID, models.ReviewStatusApproved, "")
		require.NoError(t, err)

		pending, err := s.ListReviews(ctx, ReviewListFilter{Status: models.ReviewStatusPending})
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, b.ID, pending[0].ID)

		approved, err := s.ListReviews(ctx, ReviewListFilter{Status: models.ReviewStatusApproved})
		require.NoError(t, err)
		require.Len(t, approved, 1)
		assert.Equal(t, a.ID, approved[0].ID)
	})
}

func TestAuditTrail(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		r := pendingReview("audited complaint")
		require.NoError(t, s.CreateReview(ctx, r))

		_, err := s.ResolveReview(ctx, r.ID, models.ReviewStatusApproved, "verified")
		require.NoError(t, err)

		entries, err := s.ListAuditEntries(ctx, r.ID)
		require.NoError(t, err)
		require.Len(t, entries, 2, "one entry per lifecycle operation")

		assert.Equal(t, models.ReviewStatusPending, entries[0].Status)
		assert.Equal(t, models.ReviewStatusApproved, entries[1].Status)
		assert.Equal(t, "verified", entries[1].Notes)
		assert.Less(t, entries[0].Seq, entries[1].Seq)

		// Unrelated record's trail stays separate.
		other := pendingReview("other complaint")
		require.NoError(t, s.CreateReview(ctx, other))
		entries, err = s.ListAuditEntries(ctx, r.ID)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})
}

func TestSOPChunks(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		chunks := []*models.SOPChunk{
			{DocName: "chargeback", Source: "Bank_SOP_v1", Category: "CARD_DISPUTE", Text: "File a dispute form within 45 days.", Ordinal: 0},
			{DocName: "chargeback", Source: "Bank_SOP_v1", Category: "CARD_DISPUTE", Text: "Chargeback resolution takes 45-120 days.", Ordinal: 1},
		}
		require.NoError(t, s.PutSOPChunks(ctx, "chargeback", chunks))

		general := []*models.SOPChunk{
			{DocName: "greeting", Source: "Bank_SOP_v1", Text: "Always address the customer politely.", Ordinal: 0},
		}
		require.NoError(t, s.PutSOPChunks(ctx, "greeting", general))

		all, err := s.ListSOPChunks(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 3)

		// Category filter keeps matching and uncategorized chunks.
		disputes, err := s.ListSOPChunks(ctx, "CARD_DISPUTE")
		require.NoError(t, err)
		assert.Len(t, disputes, 3)

		fraud, err := s.ListSOPChunks(ctx, "FRAUD")
		require.NoError(t, err)
		assert.Len(t, fraud, 1)
		assert.Equal(t, "greeting", fraud[0].DocName)

		// Re-ingest replaces, never appends.
		require.NoError(t, s.PutSOPChunks(ctx, "chargeback", chunks[:1]))
		all, err = s.ListSOPChunks(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}
