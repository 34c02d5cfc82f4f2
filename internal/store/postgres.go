package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mchileshe/CourierIQ/internal/models"
)

const reviewColumns = `id, agent_id, location, rating, comment, order_price,
	discount_applied, issues, tag_sentiment, tag_performance, tag_accuracy,
	tag_confidence, tag_method, tagged_by, last_tagged_at, created_at`

// PostgresStore implements ReviewStore on a pgx connection pool
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed review store
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Insert creates a new review. The tag columns stay NULL and the method
// stays untagged until the first tagging pass.
func (s *PostgresStore) Insert(ctx context.Context, review *models.Review) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO reviews (agent_id, location, rating, comment, order_price, discount_applied)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, tag_method, created_at
	`, review.AgentID, review.Location, review.Rating, review.Comment,
		review.OrderPrice, review.DiscountApplied,
	).Scan(&review.ID, &review.TagMethod, &review.CreatedAt)
	if err != nil {
		return storageErr("failed to insert review", err)
	}
	return nil
}

// FetchByID retrieves a single review
func (s *PostgresStore) FetchByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	row := s.db.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id)
	review, err := scanReview(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		return nil, storageErr("failed to fetch review", err)
	}
	return review, nil
}

// FetchAll retrieves every review matching the filter
func (s *PostgresStore) FetchAll(ctx context.Context, filter Filter) ([]models.Review, error) {
	where, args := buildWhere(filter)

	rows, err := s.db.Query(ctx, `SELECT `+reviewColumns+` FROM reviews`+where+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, storageErr("failed to fetch reviews", err)
	}
	defer rows.Close()

	return collectReviews(rows)
}

// FetchUntagged retrieves reviews that have never been through a tagging pass
func (s *PostgresStore) FetchUntagged(ctx context.Context) ([]models.Review, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+reviewColumns+` FROM reviews
		WHERE tag_method = $1 ORDER BY created_at
	`, models.TagMethodUntagged)
	if err != nil {
		return nil, storageErr("failed to fetch untagged reviews", err)
	}
	defer rows.Close()

	return collectReviews(rows)
}

// List retrieves reviews with pagination, newest first
func (s *PostgresStore) List(ctx context.Context, opts ListOptions) ([]models.Review, int64, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 || opts.Limit > 100 {
		opts.Limit = 10
	}

	conditions := []string{}
	args := []any{}
	if opts.Location != "" {
		args = append(args, opts.Location)
		conditions = append(conditions, fmt.Sprintf("location = $%d", len(args)))
	}
	if opts.MinRating != 0 {
		args = append(args, opts.MinRating)
		conditions = append(conditions, fmt.Sprintf("rating >= $%d", len(args)))
	}
	if opts.AgentID != "" {
		args = append(args, opts.AgentID)
		conditions = append(conditions, fmt.Sprintf("agent_id = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM reviews`+where, args...).Scan(&total); err != nil {
		return nil, 0, storageErr("failed to count reviews", err)
	}

	args = append(args, opts.Limit, (opts.Page-1)*opts.Limit)
	query := fmt.Sprintf(`SELECT %s FROM reviews%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		reviewColumns, where, len(args)-1, len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, storageErr("failed to list reviews", err)
	}
	defer rows.Close()

	reviews, err := collectReviews(rows)
	if err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

// UpdateTags writes a tagging result. The update is a single statement so
// concurrent writers race whole-row, last write wins.
func (s *PostgresStore) UpdateTags(ctx context.Context, id uuid.UUID, update TagUpdate) (*models.Review, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE reviews SET
			tag_sentiment = $2,
			tag_performance = $3,
			tag_accuracy = $4,
			tag_confidence = NULLIF($5, ''),
			issues = CASE WHEN $6 THEN $7 ELSE issues END,
			tag_method = $8,
			tagged_by = COALESCE($9, tagged_by),
			last_tagged_at = $10
		WHERE id = $1
		RETURNING `+reviewColumns,
		id, update.Tags.Sentiment, update.Tags.Performance, update.Tags.Accuracy,
		update.Tags.Confidence, update.ReplaceIssues, issueStrings(update.Issues),
		update.Method, update.TaggedBy, update.TaggedAt,
	)

	review, err := scanReview(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		return nil, storageErr("failed to update tags", err)
	}
	return review, nil
}

// Delete removes a review
func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return storageErr("failed to delete review", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReviewNotFound
	}
	return nil
}

// DistinctLocations returns every location present in the unfiltered
// collection. Deliberately ignores any active filter so the result can
// populate filter-selection choices.
func (s *PostgresStore) DistinctLocations(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT location FROM reviews ORDER BY location`)
	if err != nil {
		return nil, storageErr("failed to fetch locations", err)
	}
	defer rows.Close()

	var locations []string
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, storageErr("failed to scan location", err)
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

// storageErr wraps a storage failure, marking connectivity-class errors
// with ErrStorageUnavailable. A *pgconn.PgError means the server received
// and rejected the statement; anything else (dial failure, closed pool,
// timeout) is a connectivity failure the caller cannot distinguish from
// an outage.
func storageErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}

func buildWhere(filter Filter) (string, []any) {
	conditions := []string{}
	args := []any{}

	if filter.Location != "" {
		args = append(args, filter.Location)
		conditions = append(conditions, fmt.Sprintf("location = $%d", len(args)))
	}
	if filter.MinRating != 0 {
		args = append(args, filter.MinRating)
		conditions = append(conditions, fmt.Sprintf("rating >= $%d", len(args)))
	}
	if filter.PriceMin != nil {
		args = append(args, *filter.PriceMin)
		conditions = append(conditions, fmt.Sprintf("order_price >= $%d", len(args)))
	}
	if filter.PriceMax != nil {
		args = append(args, *filter.PriceMax)
		conditions = append(conditions, fmt.Sprintf("order_price <= $%d", len(args)))
	}
	if filter.HasDiscount != nil {
		args = append(args, *filter.HasDiscount)
		conditions = append(conditions, fmt.Sprintf("discount_applied = $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanReview(row pgx.Row) (*models.Review, error) {
	var review models.Review
	var issues []string
	var sentiment, performance, accuracy, confidence *string

	err := row.Scan(
		&review.ID, &review.AgentID, &review.Location, &review.Rating,
		&review.Comment, &review.OrderPrice, &review.DiscountApplied,
		&issues, &sentiment, &performance, &accuracy, &confidence,
		&review.TagMethod, &review.TaggedBy, &review.LastTaggedAt,
		&review.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	for _, issue := range issues {
		review.Issues = append(review.Issues, models.IssueCategory(issue))
	}

	// Tags are either fully absent or complete; sentiment is the witness
	if sentiment != nil {
		tags := &models.TagSet{
			Sentiment:   models.Sentiment(*sentiment),
			Performance: models.Performance(deref(performance)),
			Accuracy:    models.Accuracy(deref(accuracy)),
		}
		if confidence != nil {
			tags.Confidence = models.Confidence(*confidence)
		}
		review.Tags = tags
	}

	return &review, nil
}

func collectReviews(rows pgx.Rows) ([]models.Review, error) {
	var reviews []models.Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, storageErr("failed to scan review", err)
		}
		reviews = append(reviews, *review)
	}
	return reviews, rows.Err()
}

func issueStrings(issues []models.IssueCategory) []string {
	out := make([]string, 0, len(issues))
	for _, issue := range issues {
		out = append(out, string(issue))
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
