package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apierrors "github.com/mchileshe/CourierIQ/internal/errors"
	"github.com/mchileshe/CourierIQ/internal/middleware"
	"github.com/mchileshe/CourierIQ/internal/models"
	"github.com/mchileshe/CourierIQ/internal/monitoring"
	"github.com/mchileshe/CourierIQ/internal/store"
	"github.com/mchileshe/CourierIQ/internal/tagging"
	"github.com/shopspring/decimal"
)

// CreateReviewRequest represents a request to submit a review
type CreateReviewRequest struct {
	AgentID         string          `json:"agent_id" binding:"required"`
	Location        string          `json:"location" binding:"required"`
	Rating          int             `json:"rating" binding:"required,min=1,max=5"`
	Comment         string          `json:"comment" binding:"required"`
	OrderPrice      decimal.Decimal `json:"order_price"`
	DiscountApplied bool            `json:"discount_applied"`
}

// ListReviewsResponse represents a paginated list of reviews
type ListReviewsResponse struct {
	Reviews    []models.Review `json:"reviews"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
}

// handleListReviews returns reviews with pagination and optional filters
func (s *APIServer) handleListReviews(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	opts := store.ListOptions{
		Page:     page,
		Limit:    limit,
		Location: c.Query("location"),
		AgentID:  c.Query("agentId"),
	}

	if raw := c.Query("minRating"); raw != "" {
		minRating, err := strconv.Atoi(raw)
		if err != nil || minRating < 1 || minRating > 5 {
			respondError(c, apierrors.NewValidationError(gin.H{"field": "minRating", "reason": "must be an integer between 1 and 5"}))
			return
		}
		opts.MinRating = minRating
	}

	reviews, total, err := s.reviews.List(c.Request.Context(), opts)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	if opts.Limit < 1 {
		opts.Limit = 10
	}
	c.JSON(http.StatusOK, ListReviewsResponse{
		Reviews:    reviews,
		Total:      total,
		Page:       opts.Page,
		PageSize:   opts.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(opts.Limit))),
	})
}

// handleCreateReview submits a new review. It is created untagged; the
// next auto-tag batch (or a manual edit) classifies it.
func (s *APIServer) handleCreateReview(c *gin.Context) {
	var req CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}
	if req.OrderPrice.IsNegative() {
		respondError(c, apierrors.NewValidationError(gin.H{"field": "order_price", "reason": "must not be negative"}))
		return
	}

	review := &models.Review{
		AgentID:         req.AgentID,
		Location:        req.Location,
		Rating:          req.Rating,
		Comment:         req.Comment,
		OrderPrice:      req.OrderPrice,
		DiscountApplied: req.DiscountApplied,
	}
	if err := s.reviews.Insert(c.Request.Context(), review); err != nil {
		respondStoreError(c, err)
		return
	}

	monitoring.Get().ReviewsCreated.Inc()
	c.JSON(http.StatusCreated, review)
}

// handleDeleteReview removes a review (admin only)
func (s *APIServer) handleDeleteReview(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewValidationError(gin.H{"field": "id", "reason": "must be a valid UUID"}))
		return
	}

	if err := s.reviews.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrReviewNotFound) {
			respondError(c, apierrors.ErrReviewNotFoundError)
		} else {
			respondStoreError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Review deleted successfully"})
}

// handleAutoTag runs an auto-tag batch (admin only). The only_untagged
// query flag selects the mode; when absent the batch re-tags everything,
// matching the unconditional path. Per-record failures are reported
// in-band in the summary, not as a request failure.
func (s *APIServer) handleAutoTag(c *gin.Context) {
	onlyUntagged := false
	if raw := c.Query("only_untagged"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, apierrors.NewValidationError(gin.H{"field": "only_untagged", "reason": "must be true or false"}))
			return
		}
		onlyUntagged = parsed
	}

	result, err := s.taggingService.RunAutoTagBatch(c.Request.Context(), onlyUntagged)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleManualTag applies a partial tag override to one review (admin
// only). Omitted fields keep their current values.
func (s *APIServer) handleManualTag(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewValidationError(gin.H{"field": "id", "reason": "must be a valid UUID"}))
		return
	}

	var patch models.TagPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	actorID := middleware.GetUserIDFromContext(c)
	review, err := s.taggingService.ApplyManualTag(c.Request.Context(), id, &patch, actorID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrReviewNotFound):
			respondError(c, apierrors.ErrReviewNotFoundError)
		case errors.Is(err, tagging.ErrEmptyTagPatch):
			respondError(c, apierrors.NewValidationError(gin.H{"field": "tags", "reason": "at least one tag field is required"}))
		default:
			respondStoreError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, review)
}
