// Package lexicon holds the static trigger tables the rule-based tagger
// matches against. The tables are process-wide configuration: loaded once,
// never mutated, and consistency-checked at startup.
package lexicon

import (
	"fmt"

	"github.com/mchileshe/CourierIQ/internal/models"
)

// IssueTriggers maps each issue category to the phrases that signal it.
// Matching is case-insensitive substring containment, so short triggers
// like "bad" also match inside longer words.
var IssueTriggers = map[models.IssueCategory][]string{
	models.IssueLateDelivery:    {"late", "delay", "slow", "waited", "forever", "waiting"},
	models.IssueWrongItems:      {"wrong", "incorrect", "missing", "different"},
	models.IssueDamaged:         {"damaged", "broken", "poor condition", "bad condition"},
	models.IssueCustomerService: {"rude", "unhelpful", "unprofessional", "poor service"},
	models.IssueFoodQuality:     {"cold", "stale", "bad", "poor quality", "not fresh"},
}

// FastTriggers and SlowTriggers signal delivery-speed tone. They are kept
// independent of IssueTriggers: speed is a tone signal, issues are a
// category signal, and the two sets are not required to stay in sync.
var (
	FastTriggers = []string{"quick", "rapid", "prompt", "speedy", "early", "lightning", "fast"}
	SlowTriggers = []string{"delay", "late", "slow", "forever", "waited", "waiting", "long"}
)

// IssueLabels maps issue categories to their display labels for reports
var IssueLabels = map[models.IssueCategory]string{
	models.IssueLateDelivery:    "Late Delivery",
	models.IssueWrongItems:      "Wrong Items",
	models.IssueDamaged:         "Damaged Items",
	models.IssueCustomerService: "Poor Service",
	models.IssueFoodQuality:     "Food Quality Issues",
}

// Label returns the display label for an issue category, falling back to
// the raw category value for anything unknown
func Label(cat models.IssueCategory) string {
	if label, ok := IssueLabels[cat]; ok {
		return label
	}
	return string(cat)
}

// Validate checks that every declared issue category has trigger phrases
// and a display label. Called at startup so that adding a category to the
// enum without lexicon entries fails the boot, not a request.
func Validate() error {
	for _, cat := range models.AllIssueCategories {
		triggers, ok := IssueTriggers[cat]
		if !ok || len(triggers) == 0 {
			return fmt.Errorf("issue category %s has no trigger phrases", cat)
		}
		for _, trigger := range triggers {
			if trigger == "" {
				return fmt.Errorf("issue category %s has an empty trigger phrase", cat)
			}
		}
		if _, ok := IssueLabels[cat]; !ok {
			return fmt.Errorf("issue category %s has no display label", cat)
		}
	}
	if len(FastTriggers) == 0 || len(SlowTriggers) == 0 {
		return fmt.Errorf("speed trigger sets must not be empty")
	}
	return nil
}
