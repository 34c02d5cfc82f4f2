// Package store defines the narrow read/write contract the tagging and
// analytics services use to reach the review collection, together with a
// Postgres implementation and an in-memory implementation for tests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mchileshe/CourierIQ/internal/models"
	"github.com/shopspring/decimal"
)

// Store errors
var (
	ErrReviewNotFound = errors.New("review not found")

	// ErrStorageUnavailable marks connectivity-class failures (dial
	// errors, closed pools, timeouts) as opposed to statements the
	// server processed and rejected. The HTTP edge maps it to 503.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Filter is the normalized predicate the filter builder produces. All
// present criteria combine with logical AND; zero values impose no
// constraint. The same Filter value is passed unmodified to every
// aggregation facet so all reports describe one filtered population.
type Filter struct {
	Location    string           // exact match; empty = any
	MinRating   int              // inclusive lower bound; 0 = any
	PriceMin    *decimal.Decimal // inclusive; nil = unbounded
	PriceMax    *decimal.Decimal // inclusive; nil = positive infinity
	HasDiscount *bool            // nil = any
}

// Matches reports whether a review satisfies the filter. The memory store
// evaluates it directly; the Postgres store compiles the same semantics to
// a WHERE clause.
func (f Filter) Matches(r *models.Review) bool {
	if f.Location != "" && r.Location != f.Location {
		return false
	}
	if f.MinRating != 0 && r.Rating < f.MinRating {
		return false
	}
	if f.PriceMin != nil && r.OrderPrice.LessThan(*f.PriceMin) {
		return false
	}
	if f.PriceMax != nil && r.OrderPrice.GreaterThan(*f.PriceMax) {
		return false
	}
	if f.HasDiscount != nil && r.DiscountApplied != *f.HasDiscount {
		return false
	}
	return true
}

// IsZero reports whether the filter imposes no constraint at all
func (f Filter) IsZero() bool {
	return f.Location == "" && f.MinRating == 0 && f.PriceMin == nil &&
		f.PriceMax == nil && f.HasDiscount == nil
}

// TagUpdate describes a tagging write. Issues are only replaced when
// ReplaceIssues is set: the automated path rewrites them, a manual
// override never touches them. A nil TaggedBy retains the previous value,
// so an auto re-tag does not erase who last hand-tagged the record.
type TagUpdate struct {
	Tags          models.TagSet
	Issues        []models.IssueCategory
	ReplaceIssues bool
	Method        models.TagMethod
	TaggedBy      *uuid.UUID
	TaggedAt      time.Time
}

// ListOptions control paginated review listing
type ListOptions struct {
	Page      int
	Limit     int
	Location  string
	MinRating int
	AgentID   string
}

// ReviewStore is the collection contract the core queries through.
// Implementations return ErrReviewNotFound when an identifier does not
// resolve; any other error is surfaced unchanged (the core neither
// retries nor suppresses storage failures).
type ReviewStore interface {
	Insert(ctx context.Context, review *models.Review) error
	FetchByID(ctx context.Context, id uuid.UUID) (*models.Review, error)
	FetchAll(ctx context.Context, filter Filter) ([]models.Review, error)
	FetchUntagged(ctx context.Context) ([]models.Review, error)
	List(ctx context.Context, opts ListOptions) ([]models.Review, int64, error)
	UpdateTags(ctx context.Context, id uuid.UUID, update TagUpdate) (*models.Review, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DistinctLocations(ctx context.Context) ([]string, error)
}
