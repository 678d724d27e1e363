// Package triage assigns a category and an urgency to masked complaint
// text, each with a confidence score. Classification is a deterministic
// weighted keyword model: the trained artifact it stands in for lives
// outside this service, and the scoring tables here are tuned to the
// same label set.
package triage

import (
	"strings"

	"github.com/complaintops/copilot/internal/models"
)

// signal is one weighted keyword cue. Multi-word phrases carry more
// weight than single generic terms.
type signal struct {
	keyword string
	weight  float64
}

var categorySignals = map[models.Category][]signal{
	models.CategoryCardDispute: {
		{"chargeback", 2.0},
		{"dispute", 2.0},
		{"charged twice", 2.0},
		{"double charge", 2.0},
		{"unrecognized charge", 2.0},
		{"refund", 1.0},
		{"card payment", 1.0},
		{"pos ", 1.0},
	},
	models.CategoryFraud: {
		{"fraud", 2.0},
		{"phishing", 2.0},
		{"without my knowledge", 2.0},
		{"stolen", 1.5},
		{"unauthorized", 1.5},
		{"scam", 1.5},
		{"suspicious", 1.0},
	},
	models.CategoryMoneyTransfer: {
		{"[masked_iban]", 2.0},
		{"wire transfer", 2.0},
		{" eft", 1.5}, // leading space keeps "theft"/"left" from matching
		{"transfer", 1.5},
		{"swift", 1.0},
		{"remittance", 1.0},
	},
	models.CategoryAccountAccess: {
		{"cannot access", 2.0},
		{"locked", 1.5},
		{"blocked", 1.5},
		{"password", 1.5},
		{"login", 1.5},
		{"otp", 1.0},
		{" pin", 1.0},
	},
	models.CategoryFees: {
		{"annual fee", 2.0},
		{"card fee", 2.0},
		{"fee", 1.5},
		{"commission", 1.5},
		{"interest charge", 1.5},
	},
	models.CategoryOther: {
		{"branch", 1.0},
		{"atm", 1.0},
		{"app", 1.0},
		{"website", 1.0},
		{"waiting time", 1.0},
	},
}

var urgencyHighSignals = []signal{
	{"urgent", 2.0},
	{"immediately", 2.0},
	{"emergency", 2.0},
	{"legal", 2.0},
	{"lawyer", 2.0},
	{"police", 2.0},
	{"fraud", 1.5},
	{"stolen", 1.5},
	{"unauthorized", 1.5},
	{"locked out", 1.5},
	{"asap", 1.0},
}

var urgencyLowSignals = []signal{
	{"suggestion", 2.0},
	{"feedback", 2.0},
	{"not urgent", 2.0},
	{"whenever", 1.0},
	{"minor", 1.0},
	{"cosmetic", 1.0},
}

// mediumPrior is the confidence reported for MEDIUM urgency when no
// cue fires either way.
const mediumPrior = 0.70

// Classifier scores masked complaint text against the signal tables.
type Classifier struct{}

// NewClassifier returns the default classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

func scoreSignals(text string, signals []signal) float64 {
	var score float64
	for _, s := range signals {
		if strings.Contains(text, s.keyword) {
			score += s.weight
		}
	}
	return score
}

// Classify assigns category and urgency with confidences in [0,1].
// Confidence is the winning score over the total matched score plus
// one, so a single weak cue stays below the review threshold while
// corroborating cues push past it. Text with no category signal at all
// comes back UNKNOWN at zero confidence, which always routes to human
// review.
func (c *Classifier) Classify(maskedText string) models.TriageResult {
	text := strings.ToLower(maskedText)

	var best models.Category
	var bestScore, total float64
	for _, cat := range models.Categories {
		score := scoreSignals(text, categorySignals[cat])
		total += score
		if score > bestScore {
			best = cat
			bestScore = score
		}
	}

	result := models.TriageResult{
		Category: models.CategoryUnknown,
		Urgency:  models.UrgencyMedium,
	}
	if bestScore > 0 {
		result.Category = best
		result.CategoryConfidence = bestScore / (total + 1.0)
	}

	high := scoreSignals(text, urgencyHighSignals)
	low := scoreSignals(text, urgencyLowSignals)
	switch {
	case high == 0 && low == 0:
		result.Urgency = models.UrgencyMedium
		result.UrgencyConfidence = mediumPrior
	case high >= low:
		result.Urgency = models.UrgencyHigh
		result.UrgencyConfidence = high / (high + low + 1.0)
	default:
		result.Urgency = models.UrgencyLow
		result.UrgencyConfidence = low / (high + low + 1.0)
	}

	return result
}
