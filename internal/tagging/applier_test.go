package tagging

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mchileshe/CourierIQ/internal/models"
	"github.com/mchileshe/CourierIQ/internal/store"
	"github.com/mchileshe/CourierIQ/internal/tagger"
)

func newTestService(t *testing.T, reviews store.ReviewStore) *Service {
	t.Helper()
	classifier, err := tagger.New("keyword")
	require.NoError(t, err)
	return NewService(reviews, classifier, 4, nil)
}

func insertReview(t *testing.T, reviews store.ReviewStore, rating int, comment string) uuid.UUID {
	t.Helper()
	review := &models.Review{
		AgentID:  "AG001",
		Location: "Chicago",
		Rating:   rating,
		Comment:  comment,
	}
	require.NoError(t, reviews.Insert(context.Background(), review))
	return review.ID
}

func TestRunAutoTagBatchTagsEverything(t *testing.T) {
	ctx := context.Background()
	reviews := store.NewMemoryStore()
	svc := newTestService(t, reviews)

	ids := []uuid.UUID{
		insertReview(t, reviews, 5, "Very fast delivery, great service!"),
		insertReview(t, reviews, 2, "Delivery was late and food was cold"),
		insertReview(t, reviews, 3, "Average delivery time, nothing special"),
	}

	result, err := svc.RunAutoTagBatch(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 0, result.Failed)
	assert.Empty(t, result.Errors)

	for _, id := range ids {
		review, err := reviews.FetchByID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, review.Tags)
		assert.Equal(t, models.TagMethodAuto, review.TagMethod)
		assert.NotNil(t, review.LastTaggedAt)
	}
}

func TestRunAutoTagBatchOnlyUntaggedSkipsTagged(t *testing.T) {
	ctx := context.Background()
	reviews := store.NewMemoryStore()
	svc := newTestService(t, reviews)

	tagged := insertReview(t, reviews, 1, "Delivery was late and food was cold")
	untagged := insertReview(t, reviews, 5, "Perfect delivery, right on time")

	sentiment := models.SentimentPositive
	_, err := svc.ApplyManualTag(ctx, tagged, &models.TagPatch{Sentiment: &sentiment}, uuid.New())
	require.NoError(t, err)

	result, err := svc.RunAutoTagBatch(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)

	// The manual override survives an untagged-only pass.
	review, err := reviews.FetchByID(ctx, tagged)
	require.NoError(t, err)
	assert.Equal(t, models.TagMethodManual, review.TagMethod)
	assert.Equal(t, models.SentimentPositive, review.Tags.Sentiment)

	review, err = reviews.FetchByID(ctx, untagged)
	require.NoError(t, err)
	assert.Equal(t, models.TagMethodAuto, review.TagMethod)
}

func TestRunAutoTagBatchFullModeRetagsManual(t *testing.T) {
	ctx := context.Background()
	reviews := store.NewMemoryStore()
	svc := newTestService(t, reviews)

	id := insertReview(t, reviews, 1, "Delivery was late and food was cold")
	actor := uuid.New()

	sentiment := models.SentimentPositive
	_, err := svc.ApplyManualTag(ctx, id, &models.TagPatch{Sentiment: &sentiment}, actor)
	require.NoError(t, err)

	result, err := svc.RunAutoTagBatch(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)

	review, err := reviews.FetchByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.TagMethodAuto, review.TagMethod)
	assert.Equal(t, models.SentimentNegative, review.Tags.Sentiment)
	// Provenance of the last human touch is kept even after re-tagging.
	require.NotNil(t, review.TaggedBy)
	assert.Equal(t, actor, *review.TaggedBy)
}

func TestRunAutoTagBatchEmptyCollection(t *testing.T) {
	reviews := store.NewMemoryStore()
	svc := newTestService(t, reviews)

	result, err := svc.RunAutoTagBatch(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, 0, result.Failed)
}

// failingStore wraps a MemoryStore and fails tag writes for chosen reviews.
type failingStore struct {
	*store.MemoryStore
	failIDs map[uuid.UUID]bool
}

func (f *failingStore) UpdateTags(ctx context.Context, id uuid.UUID, update store.TagUpdate) (*models.Review, error) {
	if f.failIDs[id] {
		return nil, fmt.Errorf("write rejected for %s", id)
	}
	return f.MemoryStore.UpdateTags(ctx, id, update)
}

func TestRunAutoTagBatchIsolatesRecordFailures(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	broken := insertReview(t, mem, 2, "Wrong items in my order")
	healthy := []uuid.UUID{
		insertReview(t, mem, 5, "Outstanding service and very punctual"),
		insertReview(t, mem, 4, "Food arrived hot and on time"),
	}

	reviews := &failingStore{MemoryStore: mem, failIDs: map[uuid.UUID]bool{broken: true}}
	svc := newTestService(t, reviews)

	result, err := svc.RunAutoTagBatch(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, broken, result.Errors[0].ReviewID)

	// Siblings of the failed record were still tagged.
	for _, id := range healthy {
		review, err := mem.FetchByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.TagMethodAuto, review.TagMethod)
	}
	review, err := mem.FetchByID(ctx, broken)
	require.NoError(t, err)
	assert.Equal(t, models.TagMethodUntagged, review.TagMethod)
}

func TestAutoTagBatchIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		reviews := store.NewMemoryStore()
		classifier, err := tagger.New("keyword")
		if err != nil {
			t.Fatalf("classifier: %v", err)
		}
		svc := NewService(reviews, classifier, 2, nil)

		n := rapid.IntRange(1, 8).Draw(t, "reviewCount")
		ids := make([]uuid.UUID, 0, n)
		for i := 0; i < n; i++ {
			review := &models.Review{
				AgentID:  "AG001",
				Location: "Phoenix",
				Rating:   rapid.IntRange(1, 5).Draw(t, "rating"),
				Comment:  rapid.StringMatching(`[a-z ]{0,40}`).Draw(t, "comment"),
			}
			if err := reviews.Insert(ctx, review); err != nil {
				t.Fatalf("insert: %v", err)
			}
			ids = append(ids, review.ID)
		}

		if _, err := svc.RunAutoTagBatch(ctx, false); err != nil {
			t.Fatalf("first batch: %v", err)
		}
		first := make(map[uuid.UUID]models.TagSet, n)
		for _, id := range ids {
			review, err := reviews.FetchByID(ctx, id)
			if err != nil {
				t.Fatalf("fetch: %v", err)
			}
			first[id] = *review.Tags
		}

		if _, err := svc.RunAutoTagBatch(ctx, false); err != nil {
			t.Fatalf("second batch: %v", err)
		}
		for _, id := range ids {
			review, err := reviews.FetchByID(ctx, id)
			if err != nil {
				t.Fatalf("fetch: %v", err)
			}
			if *review.Tags != first[id] {
				t.Fatalf("re-tagging changed tags for %s: %+v != %+v", id, *review.Tags, first[id])
			}
		}
	})
}

func TestApplyManualTagMergesOverExisting(t *testing.T) {
	ctx := context.Background()
	reviews := store.NewMemoryStore()
	svc := newTestService(t, reviews)

	id := insertReview(t, reviews, 1, "Delivery was late, wrong items in my order")
	_, err := svc.RunAutoTagBatch(ctx, false)
	require.NoError(t, err)

	before, err := reviews.FetchByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.SentimentNegative, before.Tags.Sentiment)
	require.Equal(t, models.PerformanceSlow, before.Tags.Performance)
	require.Equal(t, models.AccuracyMistake, before.Tags.Accuracy)

	actor := uuid.New()
	sentiment := models.SentimentPositive
	updated, err := svc.ApplyManualTag(ctx, id, &models.TagPatch{Sentiment: &sentiment}, actor)
	require.NoError(t, err)

	assert.Equal(t, models.SentimentPositive, updated.Tags.Sentiment)
	assert.Equal(t, models.PerformanceSlow, updated.Tags.Performance)
	assert.Equal(t, models.AccuracyMistake, updated.Tags.Accuracy)
	assert.Equal(t, models.TagMethodManual, updated.TagMethod)
	require.NotNil(t, updated.TaggedBy)
	assert.Equal(t, actor, *updated.TaggedBy)
	// Issues are untouched by a manual override.
	assert.ElementsMatch(t, before.Issues, updated.Issues)
}

// A partial patch on a never-tagged review must never persist a partial
// tag set: the unsupplied fields are classified first, so the stored set
// is complete and satisfies the tag column constraints.
func TestApplyManualTagOnUntaggedReviewCompletesTagSet(t *testing.T) {
	ctx := context.Background()
	reviews := store.NewMemoryStore()
	svc := newTestService(t, reviews)

	id := insertReview(t, reviews, 3, "Average delivery time, nothing special")

	performance := models.PerformanceFast
	updated, err := svc.ApplyManualTag(ctx, id, &models.TagPatch{Performance: &performance}, uuid.New())
	require.NoError(t, err)

	assert.Equal(t, models.PerformanceFast, updated.Tags.Performance)
	assert.Equal(t, models.SentimentNeutral, updated.Tags.Sentiment)
	assert.Equal(t, models.AccuracyAccurate, updated.Tags.Accuracy)
	assert.Equal(t, models.ConfidenceHigh, updated.Tags.Confidence)

	persisted, err := reviews.FetchByID(ctx, id)
	require.NoError(t, err)
	assert.NotEmpty(t, persisted.Tags.Sentiment)
	assert.NotEmpty(t, persisted.Tags.Performance)
	assert.NotEmpty(t, persisted.Tags.Accuracy)
}

func TestApplyManualTagOnUntaggedReviewDerivesIssues(t *testing.T) {
	ctx := context.Background()
	reviews := store.NewMemoryStore()
	svc := newTestService(t, reviews)

	id := insertReview(t, reviews, 2, "Wrong items in my order")

	sentiment := models.SentimentNeutral
	updated, err := svc.ApplyManualTag(ctx, id, &models.TagPatch{Sentiment: &sentiment}, uuid.New())
	require.NoError(t, err)

	// Classification of the untagged base fills issues and accuracy;
	// the patch only overrides sentiment.
	assert.Equal(t, models.SentimentNeutral, updated.Tags.Sentiment)
	assert.Equal(t, models.AccuracyMistake, updated.Tags.Accuracy)
	assert.Contains(t, updated.Issues, models.IssueWrongItems)
}

func TestApplyManualTagEmptyPatch(t *testing.T) {
	reviews := store.NewMemoryStore()
	svc := newTestService(t, reviews)
	id := insertReview(t, reviews, 4, "Excellent service, very professional")

	_, err := svc.ApplyManualTag(context.Background(), id, &models.TagPatch{}, uuid.New())
	assert.ErrorIs(t, err, ErrEmptyTagPatch)

	_, err = svc.ApplyManualTag(context.Background(), id, nil, uuid.New())
	assert.ErrorIs(t, err, ErrEmptyTagPatch)
}

func TestApplyManualTagNotFound(t *testing.T) {
	reviews := store.NewMemoryStore()
	svc := newTestService(t, reviews)

	sentiment := models.SentimentNeutral
	_, err := svc.ApplyManualTag(context.Background(), uuid.New(), &models.TagPatch{Sentiment: &sentiment}, uuid.New())
	assert.True(t, errors.Is(err, store.ErrReviewNotFound))
}

func TestManualTagPatchLastWriteWins(t *testing.T) {
	ctx := context.Background()
	reviews := store.NewMemoryStore()
	svc := newTestService(t, reviews)

	id := insertReview(t, reviews, 2, "Delivery was late and food was cold")

	negative := models.SentimentNegative
	slow := models.PerformanceSlow
	_, err := svc.ApplyManualTag(ctx, id, &models.TagPatch{Sentiment: &negative, Performance: &slow}, uuid.New())
	require.NoError(t, err)

	positive := models.SentimentPositive
	updated, err := svc.ApplyManualTag(ctx, id, &models.TagPatch{Sentiment: &positive}, uuid.New())
	require.NoError(t, err)

	assert.Equal(t, models.SentimentPositive, updated.Tags.Sentiment)
	assert.Equal(t, models.PerformanceSlow, updated.Tags.Performance)
}
