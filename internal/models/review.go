package models

import "time"

// ReviewStatus represents the lifecycle state of a review case.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "PENDING_REVIEW"
	ReviewStatusApproved ReviewStatus = "APPROVED"
	ReviewStatusRejected ReviewStatus = "REJECTED"
)

// Terminal reports whether the status can no longer transition.
func (s ReviewStatus) Terminal() bool {
	return s == ReviewStatusApproved || s == ReviewStatusRejected
}

// Valid reports whether s is a known review status.
func (s ReviewStatus) Valid() bool {
	return s == ReviewStatusPending || s == ReviewStatusApproved || s == ReviewStatusRejected
}

// ReviewRecord is a complaint classification held for human sign-off.
// Records are created only when classifier confidence falls below the
// configured threshold, and are resolved exactly once by an approve or
// reject action.
type ReviewRecord struct {
	ID                 string       `json:"review_id"`
	Status             ReviewStatus `json:"status"`
	MaskedText         string       `json:"masked_text"`
	Category           string       `json:"category"`
	CategoryConfidence float64      `json:"category_confidence"`
	Urgency            string       `json:"urgency"`
	UrgencyConfidence  float64      `json:"urgency_confidence"`
	Notes              string       `json:"notes,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// AuditEntry is one immutable row in a review record's transition log.
// The store appends one entry per create and per resolve; nothing in
// this service reads entries back except the audit listing endpoint.
type AuditEntry struct {
	Seq       int64        `json:"seq"`
	ReviewID  string       `json:"review_id"`
	Status    ReviewStatus `json:"status"`
	Notes     string       `json:"notes,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
