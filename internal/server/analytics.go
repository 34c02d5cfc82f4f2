package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mchileshe/CourierIQ/internal/analytics"
	apierrors "github.com/mchileshe/CourierIQ/internal/errors"
)

// handleAnalytics computes the combined five-facet report for the
// optional filter criteria in the query string
func (s *APIServer) handleAnalytics(c *gin.Context) {
	var criteria analytics.Criteria
	if err := c.ShouldBindQuery(&criteria); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	filter, err := analytics.ParseCriteria(criteria)
	if err != nil {
		var verr *analytics.ValidationError
		if errors.As(err, &verr) {
			respondError(c, apierrors.NewValidationError(verr))
			return
		}
		respondError(c, apierrors.ErrInternalServerError)
		return
	}

	report, err := s.analyticsService.ComputeAnalytics(c.Request.Context(), filter)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": report})
}
