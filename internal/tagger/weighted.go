package tagger

import (
	"strings"
	"unicode"

	"github.com/mchileshe/CourierIQ/internal/lexicon"
	"github.com/mchileshe/CourierIQ/internal/models"
)

// WeightedClassifier is the token-scoring strategy. It tokenizes the
// comment, reduces tokens to crude stems, and scores lexicon hits instead
// of doing raw substring containment, so "badge" no longer counts as "bad".
// Its outputs are not required to match the keyword strategy except for the
// rating-derived sentiment, which both strategies share.
type WeightedClassifier struct{}

// Name returns the strategy name
func (c *WeightedClassifier) Name() string { return "weighted" }

// Classify derives tags and issues by scoring stemmed token matches.
// An issue category is detected when at least one of its triggers matches
// a token stem. Performance goes to whichever speed set scores strictly
// higher; equal scores collapse to Average. Confidence reflects match
// strength: High with two or more total speed hits, Medium otherwise.
func (c *WeightedClassifier) Classify(rating int, comment string) (models.TagSet, []models.IssueCategory) {
	stems := stemTokens(comment)

	var issues []models.IssueCategory
	for _, cat := range models.AllIssueCategories {
		if scoreTriggers(stems, lexicon.IssueTriggers[cat]) > 0 {
			issues = append(issues, cat)
		}
	}

	fastScore := scoreTriggers(stems, lexicon.FastTriggers)
	slowScore := scoreTriggers(stems, lexicon.SlowTriggers)

	performance := models.PerformanceAverage
	if fastScore > slowScore {
		performance = models.PerformanceFast
	} else if slowScore > fastScore {
		performance = models.PerformanceSlow
	}

	confidence := models.ConfidenceMedium
	if fastScore+slowScore >= 2 {
		confidence = models.ConfidenceHigh
	}

	tags := models.TagSet{
		Sentiment:   sentimentFromRating(rating),
		Performance: performance,
		Accuracy:    accuracyFromIssues(issues),
		Confidence:  confidence,
	}
	return tags, issues
}

// stemTokens lowercases, splits on non-letter runs, and strips common
// inflection suffixes. Not a real stemmer; just enough to fold "waited"
// and "waiting" onto "wait".
func stemTokens(text string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})

	stems := make(map[string]bool, len(fields))
	for _, field := range fields {
		stems[stem(field)] = true
	}
	return stems
}

var suffixes = []string{"ing", "ed", "ly", "es", "s"}

func stem(word string) string {
	for _, suffix := range suffixes {
		if strings.HasSuffix(word, suffix) && len(word)-len(suffix) >= 3 {
			return word[:len(word)-len(suffix)]
		}
	}
	return word
}

// scoreTriggers counts how many triggers match a token stem. Multi-word
// triggers match when every word's stem is present.
func scoreTriggers(stems map[string]bool, triggers []string) int {
	score := 0
	for _, trigger := range triggers {
		words := strings.Fields(trigger)
		matched := len(words) > 0
		for _, word := range words {
			if !stems[stem(word)] {
				matched = false
				break
			}
		}
		if matched {
			score++
		}
	}
	return score
}
