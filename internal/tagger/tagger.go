package tagger

import (
	"fmt"
	"strings"

	"github.com/mchileshe/CourierIQ/internal/lexicon"
	"github.com/mchileshe/CourierIQ/internal/models"
)

// Classifier derives a tag set and issue categories from a review's rating
// and comment text. Implementations are pure: no I/O, no side effects, and
// the same input always yields the same output.
//
// Two strategies exist: the keyword classifier (lexicon substring matching,
// the default) and the weighted classifier (token scoring). A future
// model-backed classifier only needs to satisfy this interface; the tag
// applier and aggregator never see past it.
type Classifier interface {
	Classify(rating int, comment string) (models.TagSet, []models.IssueCategory)
	Name() string
}

// New returns the classifier for the configured strategy
func New(strategy string) (Classifier, error) {
	switch strategy {
	case "keyword":
		return &KeywordClassifier{}, nil
	case "weighted":
		return &WeightedClassifier{}, nil
	default:
		return nil, fmt.Errorf("unknown classifier strategy %q", strategy)
	}
}

// KeywordClassifier classifies by case-insensitive substring containment
// against the lexicon tables.
type KeywordClassifier struct{}

// Name returns the strategy name
func (c *KeywordClassifier) Name() string { return "keyword" }

// Classify derives tags and issues from the rating and comment.
//
// Issues: a category is detected when any of its trigger phrases occurs
// anywhere in the lowercased comment. Containment is deliberate, not
// word-boundary tokenization; "bad" matching inside a longer word is
// accepted imprecision of the rule-based approach.
//
// Sentiment comes from the rating alone: >=4 Positive, <=2 Negative,
// otherwise Neutral. Keeping it independent of the text keeps the signal
// auditable against the rating the customer actually gave.
//
// Performance: fast and slow trigger sets are tested independently; an
// exclusive match wins, and both-matched collapses to Average the same as
// neither-matched.
//
// Accuracy is Mistake exactly when WRONG_ITEMS was detected. Confidence is
// always High on this path; it is a placeholder dial, not a calibration.
func (c *KeywordClassifier) Classify(rating int, comment string) (models.TagSet, []models.IssueCategory) {
	lowered := strings.ToLower(comment)

	var issues []models.IssueCategory
	for _, cat := range models.AllIssueCategories {
		if containsAny(lowered, lexicon.IssueTriggers[cat]) {
			issues = append(issues, cat)
		}
	}

	tags := models.TagSet{
		Sentiment:   sentimentFromRating(rating),
		Performance: speedFromText(lowered),
		Accuracy:    accuracyFromIssues(issues),
		Confidence:  models.ConfidenceHigh,
	}
	return tags, issues
}

func sentimentFromRating(rating int) models.Sentiment {
	switch {
	case rating >= 4:
		return models.SentimentPositive
	case rating <= 2:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

func speedFromText(lowered string) models.Performance {
	hasFast := containsAny(lowered, lexicon.FastTriggers)
	hasSlow := containsAny(lowered, lexicon.SlowTriggers)

	switch {
	case hasFast && !hasSlow:
		return models.PerformanceFast
	case hasSlow && !hasFast:
		return models.PerformanceSlow
	default:
		// Ties (both matched) resolve to the neutral label, same as neither
		return models.PerformanceAverage
	}
}

func accuracyFromIssues(issues []models.IssueCategory) models.Accuracy {
	for _, cat := range issues {
		if cat == models.IssueWrongItems {
			return models.AccuracyMistake
		}
	}
	return models.AccuracyAccurate
}

func containsAny(lowered string, triggers []string) bool {
	for _, trigger := range triggers {
		if strings.Contains(lowered, trigger) {
			return true
		}
	}
	return false
}
