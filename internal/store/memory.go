package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mchileshe/CourierIQ/internal/models"
)

// MemoryStore is an in-memory ReviewStore. It backs the tagging and
// analytics tests so the core laws run without a database; it follows the
// same last-write-wins semantics as the Postgres store.
type MemoryStore struct {
	mu      sync.RWMutex
	reviews map[uuid.UUID]*models.Review
	order   []uuid.UUID // insertion order, stands in for created_at ordering
}

// NewMemoryStore creates an empty in-memory review store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reviews: make(map[uuid.UUID]*models.Review),
	}
}

// Insert creates a new review
func (s *MemoryStore) Insert(_ context.Context, review *models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now()
	}
	review.TagMethod = models.TagMethodUntagged

	clone := cloneReview(review)
	s.reviews[review.ID] = &clone
	s.order = append(s.order, review.ID)
	return nil
}

// FetchByID retrieves a single review
func (s *MemoryStore) FetchByID(_ context.Context, id uuid.UUID) (*models.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	review, ok := s.reviews[id]
	if !ok {
		return nil, ErrReviewNotFound
	}
	clone := cloneReview(review)
	return &clone, nil
}

// FetchAll retrieves every review matching the filter, in insertion order
func (s *MemoryStore) FetchAll(_ context.Context, filter Filter) ([]models.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Review
	for _, id := range s.order {
		review := s.reviews[id]
		if filter.Matches(review) {
			out = append(out, cloneReview(review))
		}
	}
	return out, nil
}

// FetchUntagged retrieves reviews that have never been through a tagging pass
func (s *MemoryStore) FetchUntagged(_ context.Context) ([]models.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Review
	for _, id := range s.order {
		review := s.reviews[id]
		if review.TagMethod == models.TagMethodUntagged {
			out = append(out, cloneReview(review))
		}
	}
	return out, nil
}

// List retrieves reviews with pagination, newest first
func (s *MemoryStore) List(_ context.Context, opts ListOptions) ([]models.Review, int64, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 || opts.Limit > 100 {
		opts.Limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.Review
	for _, id := range s.order {
		review := s.reviews[id]
		if opts.Location != "" && review.Location != opts.Location {
			continue
		}
		if opts.MinRating != 0 && review.Rating < opts.MinRating {
			continue
		}
		if opts.AgentID != "" && review.AgentID != opts.AgentID {
			continue
		}
		matched = append(matched, cloneReview(review))
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (opts.Page - 1) * opts.Limit
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + opts.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// UpdateTags writes a tagging result, last write wins
func (s *MemoryStore) UpdateTags(_ context.Context, id uuid.UUID, update TagUpdate) (*models.Review, error) {
	if err := validateTagUpdate(update); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	review, ok := s.reviews[id]
	if !ok {
		return nil, ErrReviewNotFound
	}

	tags := update.Tags
	review.Tags = &tags
	if update.ReplaceIssues {
		review.Issues = append([]models.IssueCategory(nil), update.Issues...)
	}
	review.TagMethod = update.Method
	if update.TaggedBy != nil {
		review.TaggedBy = update.TaggedBy
	}
	taggedAt := update.TaggedAt
	review.LastTaggedAt = &taggedAt

	clone := cloneReview(review)
	return &clone, nil
}

// Delete removes a review
func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reviews[id]; !ok {
		return ErrReviewNotFound
	}
	delete(s.reviews, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// DistinctLocations returns every location in the unfiltered collection
func (s *MemoryStore) DistinctLocations(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var locations []string
	for _, id := range s.order {
		loc := s.reviews[id].Location
		if !seen[loc] {
			seen[loc] = true
			locations = append(locations, loc)
		}
	}
	sort.Strings(locations)
	return locations, nil
}

// validateTagUpdate mirrors the tag column CHECK constraints so a write
// the database would reject fails here too instead of only in production.
// Method is held to auto|manual: a tagging write never reverts a record
// to untagged.
func validateTagUpdate(update TagUpdate) error {
	switch update.Tags.Sentiment {
	case models.SentimentPositive, models.SentimentNeutral, models.SentimentNegative:
	default:
		return fmt.Errorf("tag_sentiment constraint violation: %q", update.Tags.Sentiment)
	}
	switch update.Tags.Performance {
	case models.PerformanceFast, models.PerformanceAverage, models.PerformanceSlow:
	default:
		return fmt.Errorf("tag_performance constraint violation: %q", update.Tags.Performance)
	}
	switch update.Tags.Accuracy {
	case models.AccuracyAccurate, models.AccuracyMistake, models.AccuracyUnspecified:
	default:
		return fmt.Errorf("tag_accuracy constraint violation: %q", update.Tags.Accuracy)
	}
	switch update.Tags.Confidence {
	case "", models.ConfidenceHigh, models.ConfidenceMedium, models.ConfidenceLow:
	default:
		return fmt.Errorf("tag_confidence constraint violation: %q", update.Tags.Confidence)
	}
	switch update.Method {
	case models.TagMethodAuto, models.TagMethodManual:
		return nil
	default:
		return fmt.Errorf("tag_method constraint violation: %q", update.Method)
	}
}

func cloneReview(r *models.Review) models.Review {
	clone := *r
	clone.Issues = append([]models.IssueCategory(nil), r.Issues...)
	if r.Tags != nil {
		tags := *r.Tags
		clone.Tags = &tags
	}
	if r.TaggedBy != nil {
		id := *r.TaggedBy
		clone.TaggedBy = &id
	}
	if r.LastTaggedAt != nil {
		ts := *r.LastTaggedAt
		clone.LastTaggedAt = &ts
	}
	return clone
}
