// Package tagging orchestrates the tagger over the review collection:
// batch auto-tagging with per-record failure isolation, and manual
// overrides that merge partial tag sets non-destructively.
package tagging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mchileshe/CourierIQ/internal/logging"
	"github.com/mchileshe/CourierIQ/internal/models"
	"github.com/mchileshe/CourierIQ/internal/monitoring"
	"github.com/mchileshe/CourierIQ/internal/store"
	"github.com/mchileshe/CourierIQ/internal/tagger"
	"github.com/rs/zerolog"
)

// Service errors
var (
	ErrEmptyTagPatch = errors.New("tag patch supplies no fields")
)

// ReportInvalidator purges cached analytics reports after a tag write.
// Optional; a nil invalidator is a no-op.
type ReportInvalidator interface {
	Invalidate(ctx context.Context)
}

// Service applies tags to reviews
type Service struct {
	store       store.ReviewStore
	classifier  tagger.Classifier
	workers     int
	invalidator ReportInvalidator
	logger      zerolog.Logger
}

// NewService creates a tagging service. workers bounds the batch fan-out;
// invalidator may be nil.
func NewService(reviews store.ReviewStore, classifier tagger.Classifier, workers int, invalidator ReportInvalidator) *Service {
	if workers < 1 {
		workers = 1
	}
	return &Service{
		store:       reviews,
		classifier:  classifier,
		workers:     workers,
		invalidator: invalidator,
		logger:      logging.NewLogger("tagging"),
	}
}

// RecordError reports a single review that could not be tagged in a batch
type RecordError struct {
	ReviewID uuid.UUID `json:"review_id"`
	Error    string    `json:"error"`
}

// BatchResult summarizes an auto-tag batch run. A non-zero Failed count is
// a partial failure reported in-band, not an abort: sibling records were
// still tagged.
type BatchResult struct {
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Errors    []RecordError `json:"errors,omitempty"`
}

// RunAutoTagBatch classifies and persists tags for a set of reviews.
// onlyUntagged restricts the batch to reviews never yet tagged; false
// re-tags everything. Both modes are first-class, there is no default.
//
// Records are processed by a bounded worker pool; ordering is immaterial
// since no record depends on another. A failure on one record is isolated
// and collected, never aborting its siblings. Two overlapping batch runs
// race per record, last write wins; re-tagging is a pure function of the
// current rating and comment, so convergence is idempotent.
func (s *Service) RunAutoTagBatch(ctx context.Context, onlyUntagged bool) (*BatchResult, error) {
	start := time.Now()

	var reviews []models.Review
	var err error
	if onlyUntagged {
		reviews, err = s.store.FetchUntagged(ctx)
	} else {
		reviews, err = s.store.FetchAll(ctx, store.Filter{})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load batch: %w", err)
	}

	jobs := make(chan models.Review)
	results := make(chan RecordError)

	var wg sync.WaitGroup
	workers := s.workers
	if workers > len(reviews) && len(reviews) > 0 {
		workers = len(reviews)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for review := range jobs {
				if err := s.tagOne(ctx, &review); err != nil {
					results <- RecordError{ReviewID: review.ID, Error: err.Error()}
				} else {
					results <- RecordError{}
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, review := range reviews {
			select {
			case jobs <- review:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	result := &BatchResult{}
	for r := range results {
		if r.Error != "" {
			result.Failed++
			result.Errors = append(result.Errors, r)
			monitoring.Get().ReviewsTaggedTotal.WithLabelValues("auto", "error").Inc()
			monitoring.Get().TagBatchFailuresTotal.Inc()
		} else {
			result.Processed++
			monitoring.Get().ReviewsTaggedTotal.WithLabelValues("auto", "ok").Inc()
		}
	}

	elapsed := time.Since(start)
	monitoring.Get().TagBatchDuration.Observe(elapsed.Seconds())
	logging.LogTagBatch(onlyUntagged, result.Processed, result.Failed, elapsed)

	s.invalidateReports(ctx)
	return result, nil
}

// tagOne classifies a single review and persists the result
func (s *Service) tagOne(ctx context.Context, review *models.Review) error {
	tags, issues := s.classifier.Classify(review.Rating, review.Comment)

	_, err := s.store.UpdateTags(ctx, review.ID, store.TagUpdate{
		Tags:          tags,
		Issues:        issues,
		ReplaceIssues: true,
		Method:        models.TagMethodAuto,
		TaggedAt:      time.Now().UTC(),
	})
	return err
}

// ApplyManualTag merges a partial tag set over a review's existing tags.
// Supplied fields win; absent fields retain their previous value, so the
// resulting tag set stays coherent. Persisted tags are all-or-nothing: a
// patch on a never-tagged review first classifies it so the stored set is
// complete, then the patch overrides. The acting identity is recorded and
// provenance flips to manual. Returns store.ErrReviewNotFound when the
// identifier does not resolve.
func (s *Service) ApplyManualTag(ctx context.Context, id uuid.UUID, patch *models.TagPatch, actorID uuid.UUID) (*models.Review, error) {
	if patch == nil || patch.Empty() {
		return nil, ErrEmptyTagPatch
	}

	review, err := s.store.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	base := review.Tags
	var issues []models.IssueCategory
	replaceIssues := false
	if base == nil {
		derived, derivedIssues := s.classifier.Classify(review.Rating, review.Comment)
		base = &derived
		issues = derivedIssues
		replaceIssues = true
	}
	merged := patch.Merge(base)

	updated, err := s.store.UpdateTags(ctx, id, store.TagUpdate{
		Tags:          merged,
		Issues:        issues,
		ReplaceIssues: replaceIssues,
		Method:        models.TagMethodManual,
		TaggedBy:      &actorID,
		TaggedAt:      time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	monitoring.Get().ReviewsTaggedTotal.WithLabelValues("manual", "ok").Inc()
	s.logger.Info().
		Str("review_id", id.String()).
		Str("actor_id", actorID.String()).
		Msg("Review manually tagged")

	s.invalidateReports(ctx)
	return updated, nil
}

func (s *Service) invalidateReports(ctx context.Context) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx)
	}
}
