package analytics

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mchileshe/CourierIQ/internal/models"
	"github.com/mchileshe/CourierIQ/internal/store"
)

func seedReview(t *testing.T, reviews store.ReviewStore, agentID, location string, rating int, price float64, issues ...models.IssueCategory) {
	t.Helper()
	review := &models.Review{
		AgentID:    agentID,
		Location:   location,
		Rating:     rating,
		Comment:    "seeded",
		OrderPrice: decimal.NewFromFloat(price),
	}
	require.NoError(t, reviews.Insert(context.Background(), review))
	if len(issues) > 0 {
		_, err := reviews.UpdateTags(context.Background(), review.ID, store.TagUpdate{
			Tags: models.TagSet{
				Sentiment:   models.SentimentNegative,
				Performance: models.PerformanceAverage,
				Accuracy:    models.AccuracyAccurate,
			},
			Issues:        issues,
			ReplaceIssues: true,
			Method:        models.TagMethodAuto,
		})
		require.NoError(t, err)
	}
}

func TestBucketFor(t *testing.T) {
	tests := []struct {
		price float64
		want  string
	}{
		{0, "$0-25"},
		{10, "$0-25"},
		{25, "$0-25"},
		{25.99, "$0-25"},
		{26, "$26-50"},
		{50, "$26-50"},
		{51, "$51-100"},
		{100, "$51-100"},
		{101, "$100+"},
		{1000, "$100+"},
		{-5, "Other"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.2f", tt.price), func(t *testing.T) {
			assert.Equal(t, tt.want, bucketFor(decimal.NewFromFloat(tt.price)))
		})
	}
}

func TestPriceHistogramAlwaysEmitsEveryBucket(t *testing.T) {
	rows := priceHistogram(nil)
	require.Len(t, rows, 5)
	for i, label := range bucketLabels {
		assert.Equal(t, label, rows[i].Label)
		assert.Equal(t, 0, rows[i].Count)
		assert.Equal(t, 0.0, rows[i].AvgRating)
	}
}

func TestComplaintFrequencySortedByCount(t *testing.T) {
	reviews := []models.Review{
		{Issues: []models.IssueCategory{models.IssueLateDelivery}},
		{Issues: []models.IssueCategory{models.IssueLateDelivery, models.IssueWrongItems}},
		{Issues: []models.IssueCategory{models.IssueLateDelivery, models.IssueFoodQuality}},
		{Issues: nil},
	}

	rows := complaintFrequency(reviews)
	require.Len(t, rows, 3)
	assert.Equal(t, models.IssueLateDelivery, rows[0].Category)
	assert.Equal(t, "Late Delivery", rows[0].Label)
	assert.Equal(t, 3, rows[0].Count)
	// Ties keep first-seen order.
	assert.Equal(t, models.IssueWrongItems, rows[1].Category)
	assert.Equal(t, models.IssueFoodQuality, rows[2].Category)
}

func TestSplitLeaderboard(t *testing.T) {
	ranked := make([]AgentPerformance, 7)
	for i := range ranked {
		ranked[i] = AgentPerformance{AgentID: fmt.Sprintf("AG%03d", i+1), AvgRating: float64(7 - i)}
	}

	top, bottom := splitLeaderboard(ranked)
	require.Len(t, top, 5)
	require.Len(t, bottom, 5)
	assert.Equal(t, "AG001", top[0].AgentID)
	// Bottom view leads with the worst performer.
	assert.Equal(t, "AG007", bottom[0].AgentID)
	assert.Equal(t, "AG003", bottom[4].AgentID)
}

func TestSplitLeaderboardFewerThanFiveAgents(t *testing.T) {
	ranked := []AgentPerformance{
		{AgentID: "AG001", AvgRating: 4.5},
		{AgentID: "AG002", AvgRating: 2.0},
	}

	top, bottom := splitLeaderboard(ranked)
	require.Len(t, top, 2)
	require.Len(t, bottom, 2)
	assert.Equal(t, "AG001", top[0].AgentID)
	assert.Equal(t, "AG002", bottom[0].AgentID)
}

func TestAgentPerformanceIssueRate(t *testing.T) {
	reviews := []models.Review{
		{AgentID: "AG001", Rating: 5},
		{AgentID: "AG001", Rating: 2},
		{AgentID: "AG001", Rating: 1},
		{AgentID: "AG001", Rating: 4},
	}

	rows := agentPerformance(reviews)
	require.Len(t, rows, 1)
	assert.Equal(t, 3.0, rows[0].AvgRating)
	assert.Equal(t, 4, rows[0].TotalReviews)
	assert.Equal(t, 50.0, rows[0].IssueRate)
}

func TestAverageRatingByLocationRounding(t *testing.T) {
	reviews := []models.Review{
		{Location: "Chicago", Rating: 5},
		{Location: "Chicago", Rating: 4},
		{Location: "Chicago", Rating: 4},
		{Location: "Phoenix", Rating: 2},
	}

	rows := averageRatingByLocation(reviews)
	require.Len(t, rows, 2)
	assert.Equal(t, "Chicago", rows[0].Location)
	assert.Equal(t, 4.3, rows[0].AverageRating)
	assert.Equal(t, 3, rows[0].Count)
	assert.Equal(t, "Phoenix", rows[1].Location)
}

func TestComputeAnalyticsCombinedReport(t *testing.T) {
	ctx := context.Background()
	reviews := store.NewMemoryStore()
	svc := NewService(reviews, nil)

	seedReview(t, reviews, "AG001", "New York", 5, 20)
	seedReview(t, reviews, "AG001", "New York", 4, 45)
	seedReview(t, reviews, "AG002", "Chicago", 2, 80, models.IssueLateDelivery)
	seedReview(t, reviews, "AG002", "Chicago", 1, 120, models.IssueLateDelivery, models.IssueWrongItems)

	report, err := svc.ComputeAnalytics(ctx, store.Filter{})
	require.NoError(t, err)

	require.Len(t, report.CommonComplaints, 2)
	assert.Equal(t, models.IssueLateDelivery, report.CommonComplaints[0].Category)
	assert.Equal(t, 2, report.CommonComplaints[0].Count)

	require.Len(t, report.AverageRatings, 2)
	assert.Equal(t, "New York", report.AverageRatings[0].Location)
	assert.Equal(t, 4.5, report.AverageRatings[0].AverageRating)

	require.Len(t, report.TopAgents, 2)
	assert.Equal(t, "AG001", report.TopAgents[0].AgentID)
	assert.Equal(t, "AG002", report.BottomAgents[0].AgentID)
	assert.Equal(t, 100.0, report.BottomAgents[0].IssueRate)

	require.Len(t, report.PriceRanges, 5)
	counts := map[string]int{}
	for _, bucket := range report.PriceRanges {
		counts[bucket.Label] = bucket.Count
	}
	assert.Equal(t, 1, counts["$0-25"])
	assert.Equal(t, 1, counts["$26-50"])
	assert.Equal(t, 1, counts["$51-100"])
	assert.Equal(t, 1, counts["$100+"])
	assert.Equal(t, 0, counts["Other"])

	assert.Equal(t, []string{"Chicago", "New York"}, report.Locations)
}

func TestComputeAnalyticsFilterNarrowsFacetsButNotLocations(t *testing.T) {
	ctx := context.Background()
	reviews := store.NewMemoryStore()
	svc := NewService(reviews, nil)

	seedReview(t, reviews, "AG001", "New York", 5, 20)
	seedReview(t, reviews, "AG002", "Chicago", 1, 80, models.IssueLateDelivery)

	report, err := svc.ComputeAnalytics(ctx, store.Filter{Location: "New York"})
	require.NoError(t, err)

	require.Len(t, report.AverageRatings, 1)
	assert.Equal(t, "New York", report.AverageRatings[0].Location)
	assert.Empty(t, report.CommonComplaints)
	// The location list ignores the filter so callers can broaden it.
	assert.Equal(t, []string{"Chicago", "New York"}, report.Locations)
}

func TestComputeAnalyticsEmptyCollection(t *testing.T) {
	svc := NewService(store.NewMemoryStore(), nil)

	report, err := svc.ComputeAnalytics(context.Background(), store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, report.CommonComplaints)
	assert.Empty(t, report.AverageRatings)
	assert.Empty(t, report.TopAgents)
	assert.Empty(t, report.BottomAgents)
	require.Len(t, report.PriceRanges, 5)
	assert.Empty(t, report.Locations)
}

// brokenLocationStore fails the one facet that touches the store a second
// time, exercising the all-or-nothing join.
type brokenLocationStore struct {
	*store.MemoryStore
}

func (b *brokenLocationStore) DistinctLocations(context.Context) ([]string, error) {
	return nil, fmt.Errorf("connection reset")
}

func TestComputeAnalyticsFacetFailureFailsReport(t *testing.T) {
	mem := store.NewMemoryStore()
	seedReview(t, mem, "AG001", "New York", 5, 20)
	svc := NewService(&brokenLocationStore{MemoryStore: mem}, nil)

	report, err := svc.ComputeAnalytics(context.Background(), store.Filter{})
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Contains(t, err.Error(), "locations facet")
}

func TestFacetTotalsMatchPopulation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 40).Draw(t, "reviewCount")
		reviews := make([]models.Review, n)
		for i := range reviews {
			reviews[i] = models.Review{
				AgentID:    fmt.Sprintf("AG%03d", rapid.IntRange(1, 5).Draw(t, "agent")),
				Location:   rapid.SampledFrom([]string{"New York", "Chicago", "Phoenix"}).Draw(t, "location"),
				Rating:     rapid.IntRange(1, 5).Draw(t, "rating"),
				OrderPrice: decimal.NewFromInt(int64(rapid.IntRange(-10, 200).Draw(t, "price"))),
			}
		}

		bucketTotal := 0
		for _, bucket := range priceHistogram(reviews) {
			bucketTotal += bucket.Count
		}
		if bucketTotal != n {
			t.Fatalf("histogram drops or duplicates reviews: %d != %d", bucketTotal, n)
		}

		locationTotal := 0
		for _, row := range averageRatingByLocation(reviews) {
			locationTotal += row.Count
			if row.AverageRating < 1 || row.AverageRating > 5 {
				t.Fatalf("average rating %f out of range", row.AverageRating)
			}
		}
		if locationTotal != n {
			t.Fatalf("location grouping drops or duplicates reviews: %d != %d", locationTotal, n)
		}

		agentTotal := 0
		for _, row := range agentPerformance(reviews) {
			agentTotal += row.TotalReviews
			if row.IssueRate < 0 || row.IssueRate > 100 {
				t.Fatalf("issue rate %f out of range", row.IssueRate)
			}
		}
		if agentTotal != n {
			t.Fatalf("agent grouping drops or duplicates reviews: %d != %d", agentTotal, n)
		}
	})
}
