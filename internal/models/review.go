package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sentiment classifies the overall tone of a review
type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNeutral  Sentiment = "Neutral"
	SentimentNegative Sentiment = "Negative"
)

// Performance classifies the delivery speed signal of a review
type Performance string

const (
	PerformanceFast    Performance = "Fast"
	PerformanceAverage Performance = "Average"
	PerformanceSlow    Performance = "Slow"
)

// Accuracy classifies whether the order was delivered as placed
type Accuracy string

const (
	AccuracyAccurate    Accuracy = "Accurate"
	AccuracyMistake     Accuracy = "Mistake"
	AccuracyUnspecified Accuracy = "Unspecified"
)

// Confidence indicates how reliable the classifier considers its output.
// Only the automated path sets it; a manually tagged record that was never
// auto-tagged carries an empty value.
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// TagMethod records the provenance of a review's current tags
type TagMethod string

const (
	TagMethodAuto     TagMethod = "auto"
	TagMethodManual   TagMethod = "manual"
	TagMethodUntagged TagMethod = "untagged"
)

// IssueCategory is a complaint type detected by the tagger.
// Categories are independent; a review may carry several at once.
type IssueCategory string

const (
	IssueLateDelivery    IssueCategory = "LATE_DELIVERY"
	IssueWrongItems      IssueCategory = "WRONG_ITEMS"
	IssueDamaged         IssueCategory = "DAMAGED"
	IssueCustomerService IssueCategory = "CUSTOMER_SERVICE"
	IssueFoodQuality     IssueCategory = "FOOD_QUALITY"
)

// AllIssueCategories lists every category the tagger can emit.
// The lexicon consistency check at boot iterates this slice, so a category
// added here without trigger phrases fails startup rather than request time.
var AllIssueCategories = []IssueCategory{
	IssueLateDelivery,
	IssueWrongItems,
	IssueDamaged,
	IssueCustomerService,
	IssueFoodQuality,
}

// TagSet is the derived classification attached to a review
type TagSet struct {
	Sentiment   Sentiment   `json:"sentiment" db:"tag_sentiment"`
	Performance Performance `json:"performance" db:"tag_performance"`
	Accuracy    Accuracy    `json:"accuracy" db:"tag_accuracy"`
	Confidence  Confidence  `json:"confidence,omitempty" db:"tag_confidence"`
}

// TagPatch is a partial TagSet supplied by a manual override.
// Nil fields leave the existing value untouched.
type TagPatch struct {
	Sentiment   *Sentiment   `json:"sentiment,omitempty" binding:"omitempty,oneof=Positive Neutral Negative"`
	Performance *Performance `json:"performance,omitempty" binding:"omitempty,oneof=Fast Average Slow"`
	Accuracy    *Accuracy    `json:"accuracy,omitempty" binding:"omitempty,oneof=Accurate Mistake Unspecified"`
	Confidence  *Confidence  `json:"confidence,omitempty" binding:"omitempty,oneof=High Medium Low"`
}

// Empty reports whether the patch supplies no fields at all
func (p *TagPatch) Empty() bool {
	return p.Sentiment == nil && p.Performance == nil && p.Accuracy == nil && p.Confidence == nil
}

// Merge applies the patch over an existing tag set: a supplied field wins,
// an absent field retains its previous value. base may be nil (record was
// never tagged), in which case unsupplied fields stay zero.
func (p *TagPatch) Merge(base *TagSet) TagSet {
	merged := TagSet{}
	if base != nil {
		merged = *base
	}
	if p.Sentiment != nil {
		merged.Sentiment = *p.Sentiment
	}
	if p.Performance != nil {
		merged.Performance = *p.Performance
	}
	if p.Accuracy != nil {
		merged.Accuracy = *p.Accuracy
	}
	if p.Confidence != nil {
		merged.Confidence = *p.Confidence
	}
	return merged
}

// Review represents a customer review of a delivery agent
type Review struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	AgentID         string          `json:"agent_id" db:"agent_id"`
	Location        string          `json:"location" db:"location"`
	Rating          int             `json:"rating" db:"rating"`
	Comment         string          `json:"comment" db:"comment"`
	OrderPrice      decimal.Decimal `json:"order_price" db:"order_price"`
	DiscountApplied bool            `json:"discount_applied" db:"discount_applied"`
	Issues          []IssueCategory `json:"issues" db:"issues"`
	Tags            *TagSet         `json:"tags,omitempty"`
	TagMethod       TagMethod       `json:"tag_method" db:"tag_method"`
	TaggedBy        *uuid.UUID      `json:"tagged_by,omitempty" db:"tagged_by"`
	LastTaggedAt    *time.Time      `json:"last_tagged_at,omitempty" db:"last_tagged_at"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// HasIssue reports whether the review carries the given issue category
func (r *Review) HasIssue(cat IssueCategory) bool {
	for _, c := range r.Issues {
		if c == cat {
			return true
		}
	}
	return false
}
