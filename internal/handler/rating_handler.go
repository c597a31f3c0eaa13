package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/faculty-reporting-api/internal/models"
	"github.com/noah-isme/faculty-reporting-api/internal/service"
	appErrors "github.com/noah-isme/faculty-reporting-api/pkg/errors"
	"github.com/noah-isme/faculty-reporting-api/pkg/response"
)

// RatingHandler exposes course rating endpoints.
type RatingHandler struct {
	ratings *service.RatingService
}

// NewRatingHandler constructs RatingHandler.
func NewRatingHandler(ratings *service.RatingService) *RatingHandler {
	return &RatingHandler{ratings: ratings}
}

// List godoc
// @Summary List ratings visible to the caller
// @Tags Ratings
// @Produce json
// @Param courseId query string false "Filter by course"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /ratings [get]
func (h *RatingHandler) List(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.RatingFilter
	if courseID := c.Query("courseId"); courseID != "" {
		filter.CourseID = &courseID
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	ratings, pagination, err := h.ratings.List(c.Request.Context(), id, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ratings, pagination)
}

// Submit godoc
// @Summary Submit or replace a course rating
// @Tags Ratings
// @Accept json
// @Produce json
// @Param payload body models.SubmitRatingRequest true "Rating payload"
// @Success 201 {object} response.Envelope
// @Router /ratings [post]
func (h *RatingHandler) Submit(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.SubmitRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	rating, err := h.ratings.Submit(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rating)
}

// Summaries godoc
// @Summary Per-course rating aggregates
// @Tags Ratings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /ratings/summary [get]
func (h *RatingHandler) Summaries(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	summaries, err := h.ratings.Summaries(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries, nil)
}
