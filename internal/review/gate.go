// Package review implements confidence-gated routing of classifier
// output: classifications the model is unsure about open a case that a
// human must later approve or reject.
package review

import (
	"context"
	"fmt"

	"github.com/complaintops/copilot/internal/models"
	"github.com/complaintops/copilot/internal/store"
)

// DefaultThreshold is the confidence below which a classification
// requires human sign-off.
const DefaultThreshold = 0.60

// RoutingStatus is the review outcome reported to the caller after
// triage.
type RoutingStatus string

const (
	RoutingAutoApproved  RoutingStatus = "AUTO_APPROVED"
	RoutingPendingReview RoutingStatus = "PENDING_REVIEW"
)

// RoutingDecision is the gate's answer for one classification result.
// ReviewID is empty when no case was opened.
type RoutingDecision struct {
	NeedsHumanReview bool          `json:"needs_human_review"`
	ReviewStatus     RoutingStatus `json:"review_status"`
	ReviewID         string        `json:"review_id,omitempty"`
}

// Gate owns ReviewRecord creation and resolution. Callers reference
// records only by id.
type Gate struct {
	store     store.Store
	threshold float64
}

// NewGate creates a review gate over the given store. A non-positive
// threshold falls back to DefaultThreshold.
func NewGate(s store.Store, threshold float64) *Gate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Gate{store: s, threshold: threshold}
}

// Threshold returns the configured confidence threshold.
func (g *Gate) Threshold() float64 { return g.threshold }

// Evaluate reports whether a classification needs human review: true
// iff either confidence is strictly below the threshold. A confidence
// exactly at the threshold does not count as low.
func (g *Gate) Evaluate(categoryConfidence, urgencyConfidence float64) bool {
	return categoryConfidence < g.threshold || urgencyConfidence < g.threshold
}

// Open creates a PENDING_REVIEW case for a low-confidence
// classification and returns the persisted record.
func (g *Gate) Open(ctx context.Context, maskedText string, t models.TriageResult) (*models.ReviewRecord, error) {
	r := &models.ReviewRecord{
		MaskedText:         maskedText,
		Category:           string(t.Category),
		CategoryConfidence: t.CategoryConfidence,
		Urgency:            string(t.Urgency),
		UrgencyConfidence:  t.UrgencyConfidence,
	}
	if err := g.store.CreateReview(ctx, r); err != nil {
		return nil, fmt.Errorf("open review: %w", err)
	}
	return r, nil
}

// Route applies the gate policy to a classification: low confidence
// opens a case and reports PENDING_REVIEW, otherwise AUTO_APPROVED with
// no id. Deterministic given identical confidences.
func (g *Gate) Route(ctx context.Context, maskedText string, t models.TriageResult) (RoutingDecision, error) {
	if !g.Evaluate(t.CategoryConfidence, t.UrgencyConfidence) {
		return RoutingDecision{ReviewStatus: RoutingAutoApproved}, nil
	}

	r, err := g.Open(ctx, maskedText, t)
	if err != nil {
		return RoutingDecision{}, err
	}
	return RoutingDecision{
		NeedsHumanReview: true,
		ReviewStatus:     RoutingPendingReview,
		ReviewID:         r.ID,
	}, nil
}

// Resolve applies a human approve/reject decision. Unknown ids surface
// store.ErrNotFound; records already in a terminal state surface
// store.ErrInvalidTransition.
func (g *Gate) Resolve(ctx context.Context, id string, status models.ReviewStatus, notes string) (*models.ReviewRecord, error) {
	if status != models.ReviewStatusApproved && status != models.ReviewStatusRejected {
		return nil, fmt.Errorf("invalid resolution status %q", status)
	}
	return g.store.ResolveReview(ctx, id, status, notes)
}
