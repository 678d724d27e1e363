package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complaintops/copilot/internal/draft"
	"github.com/complaintops/copilot/internal/models"
	"github.com/complaintops/copilot/internal/redact"
	"github.com/complaintops/copilot/internal/retrieve"
	"github.com/complaintops/copilot/internal/review"
	"github.com/complaintops/copilot/internal/store"
	"github.com/complaintops/copilot/internal/triage"
)

func setupTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	s := store.NewMemoryStore()

	masker := redact.NewMasker()
	srv := NewServer(
		s,
		masker,
		triage.NewClassifier(),
		review.NewGate(s, review.DefaultThreshold),
		retrieve.NewRetriever(s, retrieve.DefaultTopK),
		draft.NewDrafter("", "", masker), // mock mode
		false,
	)
	return srv, s
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv, _ := setupTestServer(t)

	w := doJSON(t, srv.Router(), "GET", "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, true, resp["mock_llm"])
	assert.Equal(t, 0.60, resp["threshold"])
}

func TestMask(t *testing.T) {
	srv, _ := setupTestServer(t)

	w := doJSON(t, srv.Router(), "POST", "/api/v1/mask", `{"text":"my id is 12345678901"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp maskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "my id is [MASKED_TCKN]", resp.MaskedText)
	assert.Equal(t, []string{redact.EntityTCKN}, resp.MaskedEntities)
	assert.Empty(t, resp.OriginalText, "original text must not leak outside debug mode")
}

func TestMask_DebugEchoesOriginal(t *testing.T) {
	s := store.NewMemoryStore()
	masker := redact.NewMasker()
	srv := NewServer(s, masker, triage.NewClassifier(), review.NewGate(s, 0.60),
		retrieve.NewRetriever(s, 3), draft.NewDrafter("", "", masker), true)

	w := doJSON(t, srv.Router(), "POST", "/api/v1/mask", `{"text":"my id is 12345678901"}`)
	var resp maskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "my id is 12345678901", resp.OriginalText)
}

func TestMask_BadRequest(t *testing.T) {
	srv, _ := setupTestServer(t)

	w := doJSON(t, srv.Router(), "POST", "/api/v1/mask", `{"text":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, srv.Router(), "POST", "/api/v1/mask", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTriage_LowConfidenceOpensReview(t *testing.T) {
	srv, s := setupTestServer(t)

	// Single weak cue: OTHER at confidence 0.5, below threshold.
	w := doJSON(t, srv.Router(), "POST", "/api/v1/triage", `{"text":"the atm ate my card receipt"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Category         string  `json:"category"`
		NeedsHumanReview bool    `json:"needs_human_review"`
		ReviewStatus     string  `json:"review_status"`
		ReviewID         *string `json:"review_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.NeedsHumanReview)
	assert.Equal(t, "PENDING_REVIEW", resp.ReviewStatus)
	require.NotNil(t, resp.ReviewID)
	assert.NotEmpty(t, *resp.ReviewID)

	rec, err := s.GetReview(context.Background(), *resp.ReviewID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusPending, rec.Status)
}

func TestTriage_HighConfidenceAutoApproves(t *testing.T) {
	srv, s := setupTestServer(t)

	w := doJSON(t, srv.Router(), "POST", "/api/v1/triage",
		`{"text":"fraud! an unauthorized purchase without my knowledge, urgent"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Category         string  `json:"category"`
		NeedsHumanReview bool    `json:"needs_human_review"`
		ReviewStatus     string  `json:"review_status"`
		ReviewID         *string `json:"review_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "FRAUD", resp.Category)
	assert.False(t, resp.NeedsHumanReview)
	assert.Equal(t, "AUTO_APPROVED", resp.ReviewStatus)
	assert.Nil(t, resp.ReviewID)

	reviews, err := s.ListReviews(context.Background(), store.ReviewListFilter{})
	require.NoError(t, err)
	assert.Empty(t, reviews)
}

func TestRetrieve(t *testing.T) {
	srv, s := setupTestServer(t)
	ctx := context.Background()

	require.NoError(t, s.PutSOPChunks(ctx, "transfers", []*models.SOPChunk{{
		ChunkID: "transfers_chunk_0", DocName: "transfers", Source: "Bank_SOP_v1", Category: "MONEY_TRANSFER",
		Text: "FAST transfers settle around the clock. Check the inquiry screen if a transfer is delayed.",
	}}))

	w := doJSON(t, srv.Router(), "POST", "/api/v1/retrieve", `{"text":"my transfer is delayed"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Snippets []models.Snippet `json:"snippets"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Snippets, 1)
	assert.Equal(t, "transfers_chunk_0", resp.Snippets[0].ChunkID)
}

func TestGenerate_MockDraft(t *testing.T) {
	srv, _ := setupTestServer(t)

	body := `{"text":"my card was stolen","category":"FRAUD","urgency":"HIGH","snippets":[]}`
	w := doJSON(t, srv.Router(), "POST", "/api/v1/generate", body)
	assert.Equal(t, http.StatusOK, w.Code)

	var d models.Draft
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.NotEmpty(t, d.ActionPlan)
	assert.Contains(t, d.RiskFlags, "MOCK_MODE_ACTIVE")
}

func TestAnalyze_FullPipeline(t *testing.T) {
	srv, s := setupTestServer(t)
	ctx := context.Background()

	require.NoError(t, s.PutSOPChunks(ctx, "fraud", []*models.SOPChunk{{
		ChunkID: "fraud_chunk_0", DocName: "fraud", Source: "Bank_SOP_v1", Category: "FRAUD",
		Text: "On suspected fraud, block the card immediately and notify the security team.",
	}}))

	w := doJSON(t, srv.Router(), "POST", "/api/v1/complaints",
		`{"text":"urgent: fraud, an unauthorized charge without my knowledge, my id is 12345678901"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp analyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.MaskedText, "[MASKED_TCKN]")
	assert.NotContains(t, resp.MaskedText, "12345678901")
	assert.Equal(t, models.CategoryFraud, resp.Category)
	require.NotNil(t, resp.Draft)
	assert.NotEmpty(t, resp.Draft.ActionPlan)
}

func TestReviewLifecycle_API(t *testing.T) {
	srv, s := setupTestServer(t)
	ctx := context.Background()
	router := srv.Router()

	rec := &models.ReviewRecord{
		MaskedText:         "weak signal complaint",
		Category:           "OTHER",
		CategoryConfidence: 0.5,
		Urgency:            "MEDIUM",
		UrgencyConfidence:  0.7,
	}
	require.NoError(t, s.CreateReview(ctx, rec))

	// List
	w := doJSON(t, router, "GET", "/api/v1/reviews?status=PENDING_REVIEW", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var reviews []*models.ReviewRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reviews))
	require.Len(t, reviews, 1)

	// Get
	w = doJSON(t, router, "GET", "/api/v1/reviews/"+rec.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)

	// Approve with notes
	w = doJSON(t, router, "POST", "/api/v1/reviews/"+rec.ID+"/approve", `{"notes":"ok"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	var resolved map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resolved))
	assert.Equal(t, "APPROVED", resolved["status"])
	assert.Equal(t, "ok", resolved["notes"])

	// Double resolve conflicts
	w = doJSON(t, router, "POST", "/api/v1/reviews/"+rec.ID+"/reject", `{"notes":"no"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Audit shows creation + resolution
	w = doJSON(t, router, "GET", "/api/v1/reviews/"+rec.ID+"/audit", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var entries []*models.AuditEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, models.ReviewStatusPending, entries[0].Status)
	assert.Equal(t, models.ReviewStatusApproved, entries[1].Status)
}

func TestListReviews_InvalidStatus(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	w := doJSON(t, router, "GET", "/api/v1/reviews?status=WONTFIX", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReview_NotFound(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	w := doJSON(t, router, "GET", "/api/v1/reviews/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, "POST", "/api/v1/reviews/missing/approve", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, "GET", "/api/v1/reviews/missing/audit", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReject_WithoutBody(t *testing.T) {
	srv, s := setupTestServer(t)
	ctx := context.Background()

	rec := &models.ReviewRecord{MaskedText: "x", Category: "OTHER", Urgency: "LOW"}
	require.NoError(t, s.CreateReview(ctx, rec))

	w := doJSON(t, srv.Router(), "POST", "/api/v1/reviews/"+rec.ID+"/reject", "")
	assert.Equal(t, http.StatusOK, w.Code)

	got, err := s.GetReview(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusRejected, got.Status)
}
