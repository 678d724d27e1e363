// Package api exposes the complaint pipeline and the review queue over
// HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/complaintops/copilot/internal/draft"
	"github.com/complaintops/copilot/internal/models"
	"github.com/complaintops/copilot/internal/redact"
	"github.com/complaintops/copilot/internal/retrieve"
	"github.com/complaintops/copilot/internal/review"
	"github.com/complaintops/copilot/internal/store"
	"github.com/complaintops/copilot/internal/triage"
)

// Server provides the REST API handlers. Collaborators are constructed
// at startup and injected; handlers hold no hidden state.
type Server struct {
	store      store.Store
	masker     *redact.Masker
	classifier *triage.Classifier
	gate       *review.Gate
	retriever  *retrieve.Retriever
	drafter    *draft.Drafter
	debug      bool
}

// NewServer creates a new API server. debug controls whether the mask
// endpoint echoes the original text back.
func NewServer(s store.Store, masker *redact.Masker, classifier *triage.Classifier, gate *review.Gate, retriever *retrieve.Retriever, drafter *draft.Drafter, debug bool) *Server {
	return &Server{
		store:      s,
		masker:     masker,
		classifier: classifier,
		gate:       gate,
		retriever:  retriever,
		drafter:    drafter,
		debug:      debug,
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", s.health)

	mux.HandleFunc("POST /api/v1/mask", s.maskText)
	mux.HandleFunc("POST /api/v1/triage", s.triageComplaint)
	mux.HandleFunc("POST /api/v1/retrieve", s.retrieveSnippets)
	mux.HandleFunc("POST /api/v1/generate", s.generateDraft)
	mux.HandleFunc("POST /api/v1/complaints", s.analyzeComplaint)

	mux.HandleFunc("GET /api/v1/reviews", s.listReviews)
	mux.HandleFunc("GET /api/v1/reviews/{id}", s.getReview)
	mux.HandleFunc("POST /api/v1/reviews/{id}/approve", s.approveReview)
	mux.HandleFunc("POST /api/v1/reviews/{id}/reject", s.rejectReview)
	mux.HandleFunc("GET /api/v1/reviews/{id}/audit", s.listReviewAudit)

	return requestLogger(corsMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request with a generated request id.
// Request bodies hold unmasked complaint text and are never logged.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := ulid.Make().String()
		next.ServeHTTP(w, r)
		slog.Info("request",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps store sentinel errors to HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"mock_llm":  s.drafter.Mock(),
		"threshold": s.gate.Threshold(),
	})
}

// --- Pipeline endpoints ---

type textRequest struct {
	Text string `json:"text"`
}

func decodeText(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

type maskResponse struct {
	OriginalText   string   `json:"original_text,omitempty"`
	MaskedText     string   `json:"masked_text"`
	MaskedEntities []string `json:"masked_entities"`
}

func (s *Server) maskText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decodeText(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	res := s.masker.Mask(req.Text)
	resp := maskResponse{
		MaskedText:     res.MaskedText,
		MaskedEntities: res.MaskedEntities,
	}
	if s.debug {
		resp.OriginalText = res.OriginalText
	}
	writeJSON(w, http.StatusOK, resp)
}

type triageResponse struct {
	models.TriageResult
	review.RoutingDecision
}

func (s *Server) triageComplaint(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decodeText(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	masked := s.masker.Mask(req.Text)
	result := s.classifier.Classify(masked.MaskedText)

	decision, err := s.gate.Route(r.Context(), masked.MaskedText, result)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, triageResponse{TriageResult: result, RoutingDecision: decision})
}

type retrieveRequest struct {
	Text     string `json:"text"`
	Category string `json:"category,omitempty"`
}

func (s *Server) retrieveSnippets(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if !decodeText(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	masked := s.masker.Mask(req.Text)
	snippets, err := s.retriever.Retrieve(r.Context(), masked.MaskedText, req.Category)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snippets": snippets})
}

type generateRequest struct {
	Text     string           `json:"text"`
	Category string           `json:"category"`
	Urgency  string           `json:"urgency"`
	Snippets []models.Snippet `json:"snippets"`
}

func (s *Server) generateDraft(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decodeText(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	masked := s.masker.Mask(req.Text)
	d, err := s.drafter.Generate(r.Context(), masked.MaskedText, req.Category, req.Urgency, req.Snippets)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type analyzeResponse struct {
	MaskedText     string   `json:"masked_text"`
	MaskedEntities []string `json:"masked_entities"`
	models.TriageResult
	review.RoutingDecision
	Snippets []models.Snippet `json:"snippets"`
	Draft    *models.Draft    `json:"draft"`
}

// analyzeComplaint runs the full pipeline. A review case opening does
// not stop the flow: retrieval and drafting proceed with the
// low-confidence labels. A drafting failure degrades to a fallback
// draft so the agent still gets the classification and snippets.
func (s *Server) analyzeComplaint(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decodeText(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	ctx := r.Context()

	masked := s.masker.Mask(req.Text)
	result := s.classifier.Classify(masked.MaskedText)

	decision, err := s.gate.Route(ctx, masked.MaskedText, result)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	snippets, err := s.retriever.Retrieve(ctx, masked.MaskedText, string(result.Category))
	if err != nil {
		slog.Warn("snippet retrieval failed, drafting without grounding", "error", err)
		snippets = []models.Snippet{}
	}

	d, err := s.drafter.Generate(ctx, masked.MaskedText, string(result.Category), string(result.Urgency), snippets)
	if err != nil {
		slog.Error("draft generation failed", "error", err)
		d = &models.Draft{
			ActionPlan:         []string{"Draft generation failed. Review the complaint manually."},
			CustomerReplyDraft: "System error: could not generate a draft.",
			RiskFlags:          []string{"LLM_ERROR"},
			Sources:            []models.Snippet{},
		}
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		MaskedText:      masked.MaskedText,
		MaskedEntities:  masked.MaskedEntities,
		TriageResult:    result,
		RoutingDecision: decision,
		Snippets:        snippets,
		Draft:           d,
	})
}

// --- Review endpoints ---

func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	status := models.ReviewStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status: "+string(status))
		return
	}

	reviews, err := s.store.ListReviews(r.Context(), store.ReviewListFilter{Status: status})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if reviews == nil {
		reviews = []*models.ReviewRecord{}
	}
	writeJSON(w, http.StatusOK, reviews)
}

func (s *Server) getReview(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetReview(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type resolveRequest struct {
	Notes string `json:"notes,omitempty"`
}

func (s *Server) resolveReview(w http.ResponseWriter, r *http.Request, status models.ReviewStatus) {
	var req resolveRequest
	if r.Body != nil && r.ContentLength != 0 {
		if !decodeText(w, r, &req) {
			return
		}
	}

	rec, err := s.gate.Resolve(r.Context(), r.PathValue("id"), status, req.Notes)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"review_id": rec.ID,
		"status":    rec.Status,
		"notes":     rec.Notes,
	})
}

func (s *Server) approveReview(w http.ResponseWriter, r *http.Request) {
	s.resolveReview(w, r, models.ReviewStatusApproved)
}

func (s *Server) rejectReview(w http.ResponseWriter, r *http.Request) {
	s.resolveReview(w, r, models.ReviewStatusRejected)
}

func (s *Server) listReviewAudit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// A review must exist before its trail is listable.
	if _, err := s.store.GetReview(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}

	entries, err := s.store.ListAuditEntries(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
