package models

// Category is a complaint category label.
type Category string

const (
	CategoryCardDispute   Category = "CARD_DISPUTE"
	CategoryFraud         Category = "FRAUD"
	CategoryMoneyTransfer Category = "MONEY_TRANSFER"
	CategoryAccountAccess Category = "ACCOUNT_ACCESS"
	CategoryFees          Category = "FEES_AND_CHARGES"
	CategoryOther         Category = "OTHER"
	CategoryUnknown       Category = "UNKNOWN"
)

// Categories lists the labels the classifier can assign, in the order
// they are offered to the drafter prompt.
var Categories = []Category{
	CategoryCardDispute,
	CategoryFraud,
	CategoryMoneyTransfer,
	CategoryAccountAccess,
	CategoryFees,
	CategoryOther,
}

// Urgency is a complaint urgency label.
type Urgency string

const (
	UrgencyLow    Urgency = "LOW"
	UrgencyMedium Urgency = "MEDIUM"
	UrgencyHigh   Urgency = "HIGH"
)

// TriageResult is the classifier output for one complaint.
type TriageResult struct {
	Category           Category `json:"category"`
	CategoryConfidence float64  `json:"category_confidence"`
	Urgency            Urgency  `json:"urgency"`
	UrgencyConfidence  float64  `json:"urgency_confidence"`
}

// Snippet is one retrieved SOP passage with its provenance, passed to
// the drafter to ground the generated reply.
type Snippet struct {
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
	DocName string `json:"doc_name"`
	ChunkID string `json:"chunk_id"`
}

// SOPChunk is a stored slice of an ingested SOP document.
type SOPChunk struct {
	ChunkID  string `json:"chunk_id"`
	DocName  string `json:"doc_name"`
	Source   string `json:"source"`
	Category string `json:"category,omitempty"` // empty = applies to all categories
	Text     string `json:"text"`
	Ordinal  int    `json:"ordinal"`
}

// Draft is the validated drafter output: the agent-facing action plan
// and the customer-facing reply.
type Draft struct {
	ActionPlan         []string  `json:"action_plan"`
	CustomerReplyDraft string    `json:"customer_reply_draft"`
	RiskFlags          []string  `json:"risk_flags"`
	Sources            []Snippet `json:"sources"`
}
