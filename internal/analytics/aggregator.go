// Package analytics builds the combined rollup report: complaint
// frequencies, per-location ratings, agent leaderboards, price-bucket
// histograms, and the distinct-location list, all over one consistently
// filtered snapshot of the review collection.
package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mchileshe/CourierIQ/internal/lexicon"
	"github.com/mchileshe/CourierIQ/internal/logging"
	"github.com/mchileshe/CourierIQ/internal/models"
	"github.com/mchileshe/CourierIQ/internal/monitoring"
	"github.com/mchileshe/CourierIQ/internal/store"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const leaderboardSize = 5

// ComplaintCount is one row of the complaint-frequency facet
type ComplaintCount struct {
	Category models.IssueCategory `json:"category"`
	Label    string               `json:"label"`
	Count    int                  `json:"count"`
}

// LocationRating is one row of the average-rating-by-location facet
type LocationRating struct {
	Location      string  `json:"location"`
	AverageRating float64 `json:"average_rating"`
	Count         int     `json:"count"`
}

// AgentPerformance is one row of the agent leaderboard facet
type AgentPerformance struct {
	AgentID      string  `json:"agent_id"`
	AvgRating    float64 `json:"avg_rating"`
	TotalReviews int     `json:"total_reviews"`
	IssueRate    float64 `json:"issue_rate"`
}

// PriceBucket is one row of the price-histogram facet
type PriceBucket struct {
	Label     string  `json:"label"`
	Count     int     `json:"count"`
	AvgRating float64 `json:"avg_rating"`
}

// Report bundles the five facets. All facets except Locations describe
// the same filtered population; Locations is always unfiltered so a user
// can broaden an overly narrow filter.
type Report struct {
	CommonComplaints []ComplaintCount   `json:"common_complaints"`
	AverageRatings   []LocationRating   `json:"average_ratings"`
	TopAgents        []AgentPerformance `json:"top_agents"`
	BottomAgents     []AgentPerformance `json:"bottom_agents"`
	PriceRanges      []PriceBucket      `json:"price_ranges"`
	Locations        []string           `json:"locations"`
}

// Service computes analytics reports
type Service struct {
	store  store.ReviewStore
	cache  *ReportCache
	logger zerolog.Logger
}

// NewService creates an analytics service. cache may be nil.
func NewService(reviews store.ReviewStore, cache *ReportCache) *Service {
	return &Service{
		store:  reviews,
		cache:  cache,
		logger: logging.NewLogger("analytics"),
	}
}

// ComputeAnalytics produces the combined report for the given filter.
// The filtered snapshot is fetched once and the five facets run over it
// concurrently; they are joined before the report is returned, and a
// failure in any facet fails the whole report rather than being masked by
// fabricated zeros.
func (s *Service) ComputeAnalytics(ctx context.Context, filter store.Filter) (*Report, error) {
	if s.cache != nil {
		if report, ok := s.cache.Get(ctx, filter); ok {
			monitoring.Get().AnalyticsCacheHits.Inc()
			return report, nil
		}
		monitoring.Get().AnalyticsCacheMisses.Inc()
	}

	reviews, err := s.store.FetchAll(ctx, filter)
	if err != nil {
		monitoring.Get().AnalyticsRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to fetch filtered reviews: %w", err)
	}

	report := &Report{}
	errs := make(chan error, 5)

	run := func(facet string, compute func() error) {
		go func() {
			start := time.Now()
			err := compute()
			monitoring.Get().AnalyticsFacetDuration.WithLabelValues(facet).Observe(time.Since(start).Seconds())
			errs <- err
		}()
	}

	run("complaints", func() error {
		report.CommonComplaints = complaintFrequency(reviews)
		return nil
	})
	run("location_ratings", func() error {
		report.AverageRatings = averageRatingByLocation(reviews)
		return nil
	})
	run("agent_performance", func() error {
		ranked := agentPerformance(reviews)
		report.TopAgents, report.BottomAgents = splitLeaderboard(ranked)
		return nil
	})
	run("price_buckets", func() error {
		report.PriceRanges = priceHistogram(reviews)
		return nil
	})
	run("locations", func() error {
		// Unfiltered by design
		locations, err := s.store.DistinctLocations(ctx)
		if err != nil {
			return fmt.Errorf("locations facet: %w", err)
		}
		report.Locations = locations
		return nil
	})

	for i := 0; i < 5; i++ {
		if err := <-errs; err != nil {
			monitoring.Get().AnalyticsRequestsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
	}

	monitoring.Get().AnalyticsRequestsTotal.WithLabelValues("ok").Inc()

	if s.cache != nil {
		s.cache.Set(ctx, filter, report)
	}
	return report, nil
}

// complaintFrequency counts issue occurrences; a review with N issues
// contributes to N groups. Only reviews with at least one recorded issue
// participate. Sorted descending by count, ties in first-seen order.
func complaintFrequency(reviews []models.Review) []ComplaintCount {
	counts := make(map[models.IssueCategory]int)
	var order []models.IssueCategory
	for _, review := range reviews {
		for _, cat := range review.Issues {
			if counts[cat] == 0 {
				order = append(order, cat)
			}
			counts[cat]++
		}
	}

	rows := make([]ComplaintCount, 0, len(order))
	for _, cat := range order {
		rows = append(rows, ComplaintCount{
			Category: cat,
			Label:    lexicon.Label(cat),
			Count:    counts[cat],
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Count > rows[j].Count })
	return rows
}

// averageRatingByLocation groups by location with mean rating and count,
// sorted descending by mean. Ties keep grouping order (stable sort).
func averageRatingByLocation(reviews []models.Review) []LocationRating {
	type acc struct {
		sum   int
		count int
	}
	sums := make(map[string]*acc)
	var order []string
	for _, review := range reviews {
		a, ok := sums[review.Location]
		if !ok {
			a = &acc{}
			sums[review.Location] = a
			order = append(order, review.Location)
		}
		a.sum += review.Rating
		a.count++
	}

	rows := make([]LocationRating, 0, len(order))
	for _, loc := range order {
		a := sums[loc]
		rows = append(rows, LocationRating{
			Location:      loc,
			AverageRating: round1(float64(a.sum) / float64(a.count)),
			Count:         a.count,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].AverageRating > rows[j].AverageRating
	})
	return rows
}

// agentPerformance ranks agents by mean rating (one decimal place) with
// review counts and an issue rate: the percentage of an agent's reviews
// rated below 3.
func agentPerformance(reviews []models.Review) []AgentPerformance {
	type acc struct {
		sum      int
		count    int
		lowCount int
	}
	sums := make(map[string]*acc)
	var order []string
	for _, review := range reviews {
		a, ok := sums[review.AgentID]
		if !ok {
			a = &acc{}
			sums[review.AgentID] = a
			order = append(order, review.AgentID)
		}
		a.sum += review.Rating
		a.count++
		if review.Rating < 3 {
			a.lowCount++
		}
	}

	rows := make([]AgentPerformance, 0, len(order))
	for _, agentID := range order {
		a := sums[agentID]
		rows = append(rows, AgentPerformance{
			AgentID:      agentID,
			AvgRating:    round1(float64(a.sum) / float64(a.count)),
			TotalReviews: a.count,
			IssueRate:    float64(a.lowCount) / float64(a.count) * 100,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].AvgRating > rows[j].AvgRating })
	return rows
}

// splitLeaderboard derives the top and bottom views from one ranked list.
// The bottom view is reversed so the worst performer appears first.
func splitLeaderboard(ranked []AgentPerformance) (top, bottom []AgentPerformance) {
	n := len(ranked)
	topEnd := leaderboardSize
	if topEnd > n {
		topEnd = n
	}
	top = append(top, ranked[:topEnd]...)

	bottomStart := n - leaderboardSize
	if bottomStart < 0 {
		bottomStart = 0
	}
	for i := n - 1; i >= bottomStart; i-- {
		bottom = append(bottom, ranked[i])
	}
	return top, bottom
}

// Price band boundaries are fixed constants, not configurable per call
var (
	priceBand26  = decimal.NewFromInt(26)
	priceBand51  = decimal.NewFromInt(51)
	priceBand101 = decimal.NewFromInt(101)
)

const bucketOther = "Other"

var bucketLabels = []string{"$0-25", "$26-50", "$51-100", "$100+", bucketOther}

// priceHistogram partitions reviews into the four fixed price bands plus
// an explicit Other bucket for prices outside them; nothing is silently
// dropped. Every bucket is always present, empty ones with zero counts.
func priceHistogram(reviews []models.Review) []PriceBucket {
	type acc struct {
		sum   int
		count int
	}
	sums := make(map[string]*acc, len(bucketLabels))
	for _, label := range bucketLabels {
		sums[label] = &acc{}
	}

	for _, review := range reviews {
		a := sums[bucketFor(review.OrderPrice)]
		a.sum += review.Rating
		a.count++
	}

	rows := make([]PriceBucket, 0, len(bucketLabels))
	for _, label := range bucketLabels {
		a := sums[label]
		row := PriceBucket{Label: label, Count: a.count}
		if a.count > 0 {
			row.AvgRating = round1(float64(a.sum) / float64(a.count))
		}
		rows = append(rows, row)
	}
	return rows
}

// bucketFor maps a price to its band label. Bands are [0,26) [26,51)
// [51,101) [101,inf); anything else (negative prices) is Other.
func bucketFor(price decimal.Decimal) string {
	switch {
	case price.IsNegative():
		return bucketOther
	case price.LessThan(priceBand26):
		return "$0-25"
	case price.LessThan(priceBand51):
		return "$26-50"
	case price.LessThan(priceBand101):
		return "$51-100"
	default:
		return "$100+"
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
