package analytics

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mchileshe/CourierIQ/internal/store"
	"github.com/shopspring/decimal"
)

// Criteria are the optional raw query parameters a caller may supply.
// Every field is optional; an omitted field imposes no constraint.
type Criteria struct {
	Location    string `form:"location"`
	MinRating   string `form:"minRating"`
	PriceRange  string `form:"priceRange"`
	HasDiscount string `form:"hasDiscount"`
}

// ValidationError reports a malformed criterion and the field at fault
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ParseCriteria translates raw criteria into the normalized filter the
// aggregator consumes. Malformed values are rejected with the specific
// field at fault, never silently ignored.
func ParseCriteria(c Criteria) (store.Filter, error) {
	filter := store.Filter{Location: strings.TrimSpace(c.Location)}

	if c.MinRating != "" {
		minRating, err := strconv.Atoi(c.MinRating)
		if err != nil {
			return store.Filter{}, &ValidationError{Field: "minRating", Reason: "must be an integer"}
		}
		if minRating < 1 || minRating > 5 {
			return store.Filter{}, &ValidationError{Field: "minRating", Reason: "must be between 1 and 5"}
		}
		filter.MinRating = minRating
	}

	if c.PriceRange != "" {
		min, max, err := parsePriceRange(c.PriceRange)
		if err != nil {
			return store.Filter{}, err
		}
		filter.PriceMin = min
		filter.PriceMax = max
	}

	if c.HasDiscount != "" {
		hasDiscount, err := strconv.ParseBool(c.HasDiscount)
		if err != nil {
			return store.Filter{}, &ValidationError{Field: "hasDiscount", Reason: "must be true or false"}
		}
		filter.HasDiscount = &hasDiscount
	}

	return filter, nil
}

// parsePriceRange parses "min-max" or "min+". A "min+" range is unbounded
// above: the open upper end means positive infinity, not a parse error.
// Currency symbols are tolerated ("$26-50" and "26-50" are equivalent).
func parsePriceRange(raw string) (*decimal.Decimal, *decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), "$", "")

	if suffix, ok := strings.CutSuffix(cleaned, "+"); ok {
		min, err := parsePrice(suffix)
		if err != nil {
			return nil, nil, err
		}
		return min, nil, nil
	}

	minPart, maxPart, found := strings.Cut(cleaned, "-")
	if !found || maxPart == "" {
		return nil, nil, &ValidationError{Field: "priceRange", Reason: `must be of the form "min-max" or "min+"`}
	}

	min, err := parsePrice(minPart)
	if err != nil {
		return nil, nil, err
	}
	max, err := parsePrice(maxPart)
	if err != nil {
		return nil, nil, err
	}
	if max.LessThan(*min) {
		return nil, nil, &ValidationError{Field: "priceRange", Reason: "max must not be less than min"}
	}
	return min, max, nil
}

func parsePrice(raw string) (*decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return nil, &ValidationError{Field: "priceRange", Reason: "bounds must be numeric"}
	}
	if value.IsNegative() {
		return nil, &ValidationError{Field: "priceRange", Reason: "bounds must not be negative"}
	}
	return &value, nil
}
