package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jaswdr/faker"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mchileshe/CourierIQ/internal/models"
	"github.com/mchileshe/CourierIQ/internal/store"
	"github.com/mchileshe/CourierIQ/internal/tagger"
)

var fake = faker.New()

var seedLocations = []string{"New York", "Los Angeles", "Chicago", "Houston", "Phoenix"}

var seedComments = []string{
	"Very fast delivery, great service!",
	"Delivery was late and food was cold",
	"Perfect delivery, right on time",
	"Wrong items in my order",
	"Excellent service, very professional",
	"The delivery was quick but items were missing",
	"Average delivery time, nothing special",
	"Outstanding service and very punctual",
	"Delayed delivery but driver was apologetic",
	"Food arrived hot and on time",
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var (
		count       int
		databaseURL string
	)
	flag.IntVar(&count, "count", 500, "Number of reviews to generate")
	flag.StringVar(&databaseURL, "database", "", "Database URL (overrides DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		log.Fatal().Msg("DATABASE_URL environment variable or -database flag is required")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}

	classifier := &tagger.KeywordClassifier{}
	reviews := store.NewPostgresStore(pool)

	start := time.Now()
	inserted := 0
	for i := 0; i < count; i++ {
		review := randomReview()
		if err := reviews.Insert(ctx, review); err != nil {
			log.Error().Err(err).Int("index", i).Msg("Failed to insert review")
			continue
		}

		tags, issues := classifier.Classify(review.Rating, review.Comment)
		update := store.TagUpdate{
			Tags:          tags,
			Issues:        issues,
			ReplaceIssues: true,
			Method:        models.TagMethodAuto,
			TaggedAt:      time.Now().UTC(),
		}
		if _, err := reviews.UpdateTags(ctx, review.ID, update); err != nil {
			log.Error().Err(err).Str("review_id", review.ID.String()).Msg("Failed to tag review")
			continue
		}

		// Backdate so the data spreads over a realistic window.
		createdAt := fake.Time().TimeBetween(time.Now().AddDate(0, 0, -30), time.Now())
		if _, err := pool.Exec(ctx, `UPDATE reviews SET created_at = $1 WHERE id = $2`, createdAt, review.ID); err != nil {
			log.Error().Err(err).Str("review_id", review.ID.String()).Msg("Failed to backdate review")
			continue
		}
		inserted++
	}

	log.Info().
		Int("requested", count).
		Int("inserted", inserted).
		Dur("elapsed", time.Since(start)).
		Msg("Seed completed")
}

func randomReview() *models.Review {
	return &models.Review{
		AgentID:         fmt.Sprintf("AG%03d", fake.IntBetween(1, 20)),
		Location:        seedLocations[fake.IntBetween(0, len(seedLocations)-1)],
		Rating:          fake.IntBetween(1, 5),
		Comment:         seedComments[fake.IntBetween(0, len(seedComments)-1)],
		OrderPrice:      decimal.NewFromInt(int64(fake.IntBetween(10, 160))),
		DiscountApplied: fake.IntBetween(1, 100) <= 30,
	}
}
